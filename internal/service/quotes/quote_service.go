package quotes

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/freshfield/cleanbooking/internal/domain"
	"github.com/freshfield/cleanbooking/internal/metrics"
	"github.com/freshfield/cleanbooking/internal/pricing"
)

var ErrSessionNotFound = errors.New("quote session not found")

type Catalog interface {
	ListServices(ctx context.Context) ([]domain.Service, error)
	ListExtras(ctx context.Context) ([]domain.Extra, error)
}

// session owns one customer's live pricing state: the engine, the display
// synchronizer with its watch goroutine, and the coupon validator.
type session struct {
	token       string
	engine      *pricing.Engine
	validator   *pricing.Validator
	sync        *pricing.Synchronizer
	cancelWatch context.CancelFunc

	mu          sync.Mutex
	expiresAt   time.Time
	corrections int64
}

// QuoteService keeps interactive quote sessions in memory. Each mutation
// recomputes the totals through the shared pricing engine and pushes them to
// the session's display targets, the same pipeline the booking form renders.
type QuoteService struct {
	catalog           Catalog
	couponEndpoint    string
	validationTimeout time.Duration
	monitorInterval   time.Duration
	ttl               time.Duration
	logger            *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

func NewQuoteService(catalog Catalog, couponEndpoint string, validationTimeout, monitorInterval, ttl time.Duration, logger *slog.Logger) *QuoteService {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteService{
		catalog:           catalog,
		couponEndpoint:    couponEndpoint,
		validationTimeout: validationTimeout,
		monitorInterval:   monitorInterval,
		ttl:               ttl,
		logger:            logger,
	}
}

// QuoteView is the session state the API returns after every operation.
type QuoteView struct {
	Token       string            `json:"token"`
	Snapshot    pricing.Snapshot  `json:"snapshot"`
	Display     map[string]string `json:"display"`
	Items       []ItemView        `json:"items"`
	Preferences []PreferenceView  `json:"preferences"`
	Coupon      *CouponView       `json:"coupon,omitempty"`
	ErrorState  bool              `json:"error_state"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

type ItemView struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type PreferenceView struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Fee    int64  `json:"fee"`
	Active bool   `json:"active"`
	Value  string `json:"value,omitempty"`
}

type CouponView struct {
	Code     string `json:"code"`
	Discount int64  `json:"discount"`
	Message  string `json:"message,omitempty"`
}

// Create builds a session seeded with the active catalog: every service
// becomes a line item at its minimum quantity, every extra an inactive
// preference. The divergence watch starts immediately.
func (s *QuoteService) Create(ctx context.Context, customerEmail string) (*QuoteView, error) {
	services, err := s.catalog.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	extras, err := s.catalog.ListExtras(ctx)
	if err != nil {
		return nil, err
	}

	bus := pricing.NewBus()
	engine := pricing.NewEngine(bus)
	synchronizer := pricing.NewSynchronizer(bus, s.monitorInterval)
	for _, field := range []pricing.Field{pricing.FieldSubtotal, pricing.FieldDiscount, pricing.FieldTotal} {
		synchronizer.Register(field, &pricing.StringTarget{})
	}

	for _, svc := range services {
		if !svc.Active {
			continue
		}
		engine.AddItem(pricing.LineItem{
			ID:          strconv.FormatInt(svc.ID, 10),
			Label:       svc.Name,
			UnitPrice:   svc.UnitPriceCents,
			Quantity:    svc.MinQuantity,
			MinQuantity: svc.MinQuantity,
		})
	}
	for _, ex := range extras {
		if !ex.Active {
			continue
		}
		engine.AddPreference(pricing.Preference{
			ID:   strconv.FormatInt(ex.ID, 10),
			Kind: pricing.Kind(ex.Kind),
			Fee:  ex.FeeCents,
		})
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	sess := &session{
		token:       uuid.NewString(),
		engine:      engine,
		validator:   pricing.NewValidator(engine, s.couponEndpoint, customerEmail, s.validationTimeout),
		sync:        synchronizer,
		cancelWatch: cancel,
		expiresAt:   time.Now().Add(s.ttl),
	}
	go synchronizer.Watch(watchCtx)

	if _, err := engine.Recompute(true); err != nil {
		if errors.Is(err, pricing.ErrZeroTotal) {
			synchronizer.SyncError()
		} else {
			cancel()
			return nil, err
		}
	}
	metrics.QuoteRecomputes.Inc()

	s.mu.Lock()
	if s.sessions == nil {
		s.sessions = make(map[string]*session)
	}
	s.sessions[sess.token] = sess
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "quote session created", slog.String("token", sess.token))
	return s.view(sess), nil
}

func (s *QuoteService) Get(token string) (*QuoteView, error) {
	sess, err := s.lookup(token)
	if err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

// SetQuantity changes a line item's quantity and recomputes. Quantities below
// the item's floor are lifted, never rejected.
func (s *QuoteService) SetQuantity(token, itemID string, qty int) (*QuoteView, error) {
	sess, err := s.lookup(token)
	if err != nil {
		return nil, err
	}
	if _, err := sess.engine.SetQuantity(itemID, qty); err != nil {
		if errors.Is(err, pricing.ErrZeroTotal) {
			sess.sync.SyncError()
		} else {
			return nil, err
		}
	}
	metrics.QuoteRecomputes.Inc()
	return s.view(sess), nil
}

// SetPreference toggles a checkbox extra or sets a select/text extra's value.
func (s *QuoteService) SetPreference(token, prefID string, checked bool, value string) (*QuoteView, error) {
	sess, err := s.lookup(token)
	if err != nil {
		return nil, err
	}
	var kind pricing.Kind
	for _, p := range sess.engine.Preferences() {
		if p.ID == prefID {
			kind = p.Kind
			break
		}
	}
	if kind == "" {
		return nil, pricing.ErrUnknownPreference
	}

	var setErr error
	if kind == pricing.KindCheckbox {
		_, setErr = sess.engine.SetChecked(prefID, checked)
	} else {
		_, setErr = sess.engine.SetValue(prefID, value)
	}
	if setErr != nil {
		if errors.Is(setErr, pricing.ErrZeroTotal) {
			sess.sync.SyncError()
		} else {
			return nil, setErr
		}
	}
	metrics.QuoteRecomputes.Inc()
	return s.view(sess), nil
}

// ApplyCoupon runs the async validation against the coupon endpoint. The
// error taxonomy passes through untouched so the API can map each case:
// rejection, network failure, in-flight, superseded.
func (s *QuoteService) ApplyCoupon(ctx context.Context, token, code string) (*QuoteView, error) {
	sess, err := s.lookup(token)
	if err != nil {
		return nil, err
	}

	_, applyErr := sess.validator.Apply(ctx, code)
	switch {
	case applyErr == nil:
		metrics.CouponValidations.WithLabelValues("applied").Inc()
	case errors.Is(applyErr, pricing.ErrValidationInFlight):
		metrics.CouponValidations.WithLabelValues("in_flight").Inc()
	case errors.Is(applyErr, pricing.ErrSuperseded):
		metrics.CouponValidations.WithLabelValues("superseded").Inc()
	case errors.Is(applyErr, pricing.ErrNetworkFailure):
		metrics.CouponValidations.WithLabelValues("network_failure").Inc()
	default:
		metrics.CouponValidations.WithLabelValues("rejected").Inc()
	}
	if applyErr == nil {
		metrics.QuoteRecomputes.Inc()
	}
	return s.view(sess), applyErr
}

// RemoveCoupon clears the coupon synchronously, superseding any in-flight
// validation.
func (s *QuoteService) RemoveCoupon(token string) (*QuoteView, error) {
	sess, err := s.lookup(token)
	if err != nil {
		return nil, err
	}
	if _, err := sess.validator.Remove(); err != nil && !errors.Is(err, pricing.ErrZeroTotal) {
		return nil, err
	}
	metrics.QuoteRecomputes.Inc()
	return s.view(sess), nil
}

func (s *QuoteService) Close(token string) error {
	s.mu.Lock()
	sess, ok := s.sessions[token]
	if ok {
		delete(s.sessions, token)
	}
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.stop(sess)
	return nil
}

// Run sweeps expired sessions until ctx is done; bootstrap starts it
// alongside the HTTP server.
func (s *QuoteService) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *QuoteService) sweep() {
	now := time.Now()
	s.mu.Lock()
	var expired []*session
	for token, sess := range s.sessions {
		sess.mu.Lock()
		dead := now.After(sess.expiresAt)
		sess.mu.Unlock()
		if dead {
			delete(s.sessions, token)
			expired = append(expired, sess)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		s.stop(sess)
		s.logger.Info("quote session expired", slog.String("token", sess.token))
	}
}

func (s *QuoteService) closeAll() {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for token, sess := range s.sessions {
		sessions = append(sessions, sess)
		delete(s.sessions, token)
	}
	s.mu.Unlock()
	for _, sess := range sessions {
		s.stop(sess)
	}
}

// stop tears a session down, folding its correction count into the global
// counter.
func (s *QuoteService) stop(sess *session) {
	sess.cancelWatch()
	sess.mu.Lock()
	delta := sess.sync.Corrections() - sess.corrections
	sess.corrections = sess.sync.Corrections()
	sess.mu.Unlock()
	if delta > 0 {
		metrics.DisplayCorrections.Add(float64(delta))
	}
}

func (s *QuoteService) lookup(token string) (*session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[token]
	s.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.mu.Lock()
	sess.expiresAt = time.Now().Add(s.ttl)
	sess.mu.Unlock()
	return sess, nil
}

func (s *QuoteService) view(sess *session) *QuoteView {
	display := make(map[string]string)
	for field, value := range sess.sync.Rendered() {
		display[string(field)] = value
	}

	view := &QuoteView{
		Token:      sess.token,
		Snapshot:   sess.engine.Snapshot(),
		Display:    display,
		ErrorState: sess.engine.Failed(),
	}
	for _, item := range sess.engine.Items() {
		view.Items = append(view.Items, ItemView{
			ID:        item.ID,
			Label:     item.Label,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	for _, p := range sess.engine.Preferences() {
		pv := PreferenceView{
			ID:     p.ID,
			Kind:   string(p.Kind),
			Fee:    p.Fee,
			Active: p.Active(),
		}
		if p.Kind != pricing.KindCheckbox {
			pv.Value = p.Value()
		}
		view.Preferences = append(view.Preferences, pv)
	}
	if c := sess.engine.Coupon(); c != nil {
		view.Coupon = &CouponView{Code: c.Code, Discount: c.Discount, Message: c.Message}
	}

	sess.mu.Lock()
	view.ExpiresAt = sess.expiresAt
	sess.mu.Unlock()
	return view
}
