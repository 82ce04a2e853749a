package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/freshfield/cleanbooking/internal/domain"
	"github.com/freshfield/cleanbooking/internal/kafka"
	"github.com/freshfield/cleanbooking/internal/metrics"
	"github.com/freshfield/cleanbooking/internal/pricing"
	"github.com/freshfield/cleanbooking/internal/repository"
	"github.com/freshfield/cleanbooking/internal/service/coupons"
)

var (
	ErrSlotHeld       = errors.New("slot is currently held by another customer")
	ErrSlotFull       = errors.New("no professionals available for this slot")
	ErrNotPending     = errors.New("booking is not pending")
	ErrEmptyBooking   = errors.New("booking must contain at least one service")
	ErrPriceZero      = errors.New("booking total resolves to zero")
	ErrCouponRejected = errors.New("coupon rejected")
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	ConfirmBooking(ctx context.Context, token string) (*domain.Booking, error)
	CancelBooking(ctx context.Context, token string) (*domain.Booking, error)
	GetBooking(ctx context.Context, token string) (*domain.Booking, error)
	ExpirePendingBookings(ctx context.Context) ([]domain.Booking, error)
	CheckAvailability(ctx context.Context, slot time.Time) (*Availability, error)
}

type Catalog interface {
	ListServices(ctx context.Context) ([]domain.Service, error)
	ListExtras(ctx context.Context) ([]domain.Extra, error)
}

type Coupons interface {
	Validate(ctx context.Context, input coupons.ValidateInput) (*coupons.Validation, error)
	Apply(ctx context.Context, input coupons.ValidateInput, bookingToken string) (*domain.CouponUsage, error)
}

type Cache interface {
	AcquireSlotHold(ctx context.Context, slot time.Time, email string, ttl time.Duration) (bool, error)
	ReleaseSlotHold(ctx context.Context, slot time.Time, email string) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookingService struct {
	bookings           repository.BookingRepository
	catalog            Catalog
	coupons            Coupons
	cache              Cache
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	holdTTL            time.Duration
	confirmationTTL    time.Duration
	logger             *slog.Logger
}

type CreateBookingInput struct {
	Email      string           `json:"email"`
	Address    string           `json:"address"`
	SlotStart  time.Time        `json:"slot_start"`
	Items      []ItemSelection  `json:"items"`
	Extras     []ExtraSelection `json:"extras"`
	CouponCode string           `json:"coupon_code"`
}

// ItemSelection is a requested service with its quantity, e.g. 3 bedrooms.
type ItemSelection struct {
	ServiceID int64 `json:"service_id"`
	Quantity  int   `json:"quantity"`
}

// ExtraSelection is a requested add-on. Checked covers checkbox extras,
// Value covers select and text ones.
type ExtraSelection struct {
	ExtraID int64  `json:"extra_id"`
	Checked bool   `json:"checked"`
	Value   string `json:"value"`
}

// Availability reports how many professionals a slot still has free.
type Availability struct {
	Slot      time.Time `json:"slot"`
	Capacity  int       `json:"capacity"`
	Booked    int       `json:"booked"`
	Available bool      `json:"available"`
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithLogger(logger *slog.Logger) BookingServiceOption {
	return func(s *BookingService) {
		s.logger = logger
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	catalog Catalog,
	couponSvc Coupons,
	cache Cache,
	producer Producer,
	bookingTopic string,
	holdTTL, confirmationTTL time.Duration,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:        bookings,
		catalog:         catalog,
		coupons:         couponSvc,
		cache:           cache,
		producer:        producer,
		bookingTopic:    bookingTopic,
		holdTTL:         holdTTL,
		confirmationTTL: confirmationTTL,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CreateBooking prices the selection server-side from the catalog, never
// trusting client-supplied amounts, and freezes the result on the booking row.
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if input.Email == "" {
		return nil, errors.New("email is required")
	}
	if input.SlotStart.IsZero() {
		return nil, errors.New("slot start is required")
	}
	if len(input.Items) == 0 {
		return nil, ErrEmptyBooking
	}

	snapshot, booking, err := s.price(ctx, input)
	if err != nil {
		return nil, err
	}

	held := false
	if s.cache != nil {
		ok, err := s.cache.AcquireSlotHold(ctx, input.SlotStart, input.Email, s.holdTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire slot hold: %w", err)
		}
		if !ok {
			return nil, ErrSlotHeld
		}
		held = true
	}

	expiresIn := s.confirmationTTL
	if expiresIn == 0 {
		expiresIn = s.holdTTL
	}

	booking.Token = uuid.NewString()
	booking.Email = input.Email
	booking.Address = input.Address
	booking.SlotStart = input.SlotStart
	booking.CouponCode = input.CouponCode
	booking.SubtotalCents = snapshot.Subtotal
	booking.DiscountCents = snapshot.Discount
	booking.TotalCents = snapshot.Total
	booking.ExpiresAt = time.Now().Add(expiresIn)

	if err := s.bookings.CreatePending(ctx, booking); err != nil {
		if held {
			_ = s.cache.ReleaseSlotHold(ctx, input.SlotStart, input.Email)
		}
		if errors.Is(err, repository.ErrSlotFull) {
			return nil, ErrSlotFull
		}
		return nil, err
	}
	booking.Status = domain.BookingStatusPending
	metrics.BookingsCreated.Inc()

	if input.CouponCode != "" && s.coupons != nil {
		_, err := s.coupons.Apply(ctx, coupons.ValidateInput{
			Code:          input.CouponCode,
			SubtotalCents: booking.SubtotalCents,
			CustomerEmail: input.Email,
		}, booking.Token)
		if err != nil {
			s.logger.WarnContext(ctx, "coupon apply failed after booking create",
				slog.String("token", booking.Token),
				slog.String("code", input.CouponCode),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.publish(ctx, "booking_created", booking); err != nil {
		s.logger.WarnContext(ctx, "failed to publish booking_created event",
			slog.String("token", booking.Token),
			slog.String("error", err.Error()),
		)
	}
	return booking, nil
}

// price builds a pricing engine from the catalog and replays the customer's
// selection through it, so the stored totals obey the same arithmetic the
// quote endpoints expose.
func (s *BookingService) price(ctx context.Context, input CreateBookingInput) (pricing.Snapshot, *domain.Booking, error) {
	services, err := s.catalog.ListServices(ctx)
	if err != nil {
		return pricing.Snapshot{}, nil, fmt.Errorf("list services: %w", err)
	}
	extras, err := s.catalog.ListExtras(ctx)
	if err != nil {
		return pricing.Snapshot{}, nil, fmt.Errorf("list extras: %w", err)
	}

	serviceByID := make(map[int64]domain.Service, len(services))
	for _, svc := range services {
		serviceByID[svc.ID] = svc
	}
	extraByID := make(map[int64]domain.Extra, len(extras))
	for _, ex := range extras {
		extraByID[ex.ID] = ex
	}

	engine := pricing.NewEngine(nil)
	booking := &domain.Booking{}

	for _, sel := range input.Items {
		svc, ok := serviceByID[sel.ServiceID]
		if !ok || !svc.Active {
			return pricing.Snapshot{}, nil, fmt.Errorf("unknown service %d", sel.ServiceID)
		}
		qty := sel.Quantity
		if qty < svc.MinQuantity {
			qty = svc.MinQuantity
		}
		engine.AddItem(pricing.LineItem{
			ID:          strconv.FormatInt(svc.ID, 10),
			Label:       svc.Name,
			UnitPrice:   svc.UnitPriceCents,
			Quantity:    qty,
			MinQuantity: svc.MinQuantity,
		})
		booking.Items = append(booking.Items, domain.BookingItem{
			ServiceID:      svc.ID,
			Quantity:       qty,
			UnitPriceCents: svc.UnitPriceCents,
		})
	}

	for _, sel := range input.Extras {
		ex, ok := extraByID[sel.ExtraID]
		if !ok || !ex.Active {
			return pricing.Snapshot{}, nil, fmt.Errorf("unknown extra %d", sel.ExtraID)
		}
		id := strconv.FormatInt(ex.ID, 10)
		engine.AddPreference(pricing.Preference{
			ID:   id,
			Kind: pricing.Kind(ex.Kind),
			Fee:  ex.FeeCents,
		})
		active := false
		if ex.Kind == domain.ExtraKindCheckbox {
			if sel.Checked {
				if _, err := engine.SetChecked(id, true); err != nil {
					return pricing.Snapshot{}, nil, err
				}
				active = true
			}
		} else if sel.Value != "" {
			if _, err := engine.SetValue(id, sel.Value); err != nil {
				return pricing.Snapshot{}, nil, err
			}
			active = true
		}
		if active {
			booking.Extras = append(booking.Extras, domain.BookingExtra{
				ExtraID:  ex.ID,
				Value:    sel.Value,
				FeeCents: ex.FeeCents,
			})
		}
	}

	if input.CouponCode != "" && s.coupons != nil {
		base, err := engine.Recompute(true)
		if err != nil {
			return pricing.Snapshot{}, nil, ErrPriceZero
		}
		validation, err := s.coupons.Validate(ctx, coupons.ValidateInput{
			Code:          input.CouponCode,
			SubtotalCents: base.Subtotal,
			CustomerEmail: input.Email,
		})
		if err != nil {
			return pricing.Snapshot{}, nil, fmt.Errorf("validate coupon: %w", err)
		}
		if !validation.Valid {
			return pricing.Snapshot{}, nil, fmt.Errorf("%w: %s", ErrCouponRejected, validation.Message)
		}
		if _, err := engine.SetCoupon(&pricing.Coupon{
			Code:     input.CouponCode,
			Discount: validation.DiscountCents,
			Message:  validation.Message,
		}); err != nil {
			return pricing.Snapshot{}, nil, err
		}
	}

	snapshot, err := engine.Recompute(true)
	if err != nil {
		return pricing.Snapshot{}, nil, ErrPriceZero
	}
	return snapshot, booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, token string) (*domain.Booking, error) {
	return s.bookings.GetByToken(ctx, token)
}

func (s *BookingService) ConfirmBooking(ctx context.Context, token string) (*domain.Booking, error) {
	current, err := s.bookings.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if current.Status != domain.BookingStatusPending {
		return nil, ErrNotPending
	}

	updated, err := s.bookings.UpdateStatus(ctx, token, domain.BookingStatusConfirmed)
	if err != nil {
		return nil, err
	}
	if err := s.publish(ctx, "booking_confirmed", updated); err != nil {
		s.logger.WarnContext(ctx, "failed to publish booking_confirmed event",
			slog.String("token", updated.Token),
			slog.String("error", err.Error()),
		)
	}
	if s.cache != nil {
		_ = s.cache.ReleaseSlotHold(ctx, updated.SlotStart, updated.Email)
	}
	return updated, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, token string) (*domain.Booking, error) {
	current, err := s.bookings.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.BookingStatusCancelled || current.Status == domain.BookingStatusExpired {
		return current, nil
	}

	updated, err := s.bookings.UpdateStatus(ctx, token, domain.BookingStatusCancelled)
	if err != nil {
		return nil, err
	}
	if err := s.publish(ctx, "booking_cancelled", updated); err != nil {
		s.logger.WarnContext(ctx, "failed to publish booking_cancelled event",
			slog.String("token", updated.Token),
			slog.String("error", err.Error()),
		)
	}
	if s.cache != nil {
		_ = s.cache.ReleaseSlotHold(ctx, updated.SlotStart, updated.Email)
	}
	return updated, nil
}

func (s *BookingService) ExpirePendingBookings(ctx context.Context) ([]domain.Booking, error) {
	expired, err := s.bookings.ExpirePendingBefore(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	for i := range expired {
		b := &expired[i]
		_ = s.publish(ctx, "booking_expired", b)
		if s.cache != nil {
			_ = s.cache.ReleaseSlotHold(ctx, b.SlotStart, b.Email)
		}
	}
	if len(expired) > 0 {
		s.logger.InfoContext(ctx, "expired pending bookings", slog.Int("count", len(expired)))
	}
	return expired, nil
}

// CheckAvailability compares confirmed and pending bookings for the slot
// against the number of active professionals.
func (s *BookingService) CheckAvailability(ctx context.Context, slot time.Time) (*Availability, error) {
	capacity, err := s.bookings.SlotCapacity(ctx)
	if err != nil {
		return nil, err
	}
	booked, err := s.bookings.CountForSlot(ctx, slot)
	if err != nil {
		return nil, err
	}
	return &Availability{
		Slot:      slot,
		Capacity:  capacity,
		Booked:    booked,
		Available: booked < capacity,
	}, nil
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) error {
	if s.producer == nil || s.bookingTopic == "" {
		return nil
	}
	event := kafka.BookingEvent{
		Type:       eventType,
		Token:      booking.Token,
		Email:      booking.Email,
		Status:     string(booking.Status),
		SlotStart:  booking.SlotStart,
		TotalCents: booking.TotalCents,
		ExpiresAt:  booking.ExpiresAt,
	}
	if err := s.producer.Publish(ctx, s.bookingTopic, booking.Token, event); err != nil {
		return err
	}
	if s.notificationsTopic != "" {
		return s.producer.Publish(ctx, s.notificationsTopic, booking.Token, event)
	}
	return nil
}

var _ BookingUseCase = (*BookingService)(nil)
