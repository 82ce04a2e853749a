package coupons

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/freshfield/cleanbooking/internal/domain"
	"github.com/freshfield/cleanbooking/internal/kafka"
	"github.com/freshfield/cleanbooking/internal/pricing"
	"github.com/freshfield/cleanbooking/internal/repository"
)

// RejectionError is a business rejection: the code exists in the request but
// may not be redeemed. The message is safe to show to the customer.
type RejectionError struct {
	Message string
}

func (e *RejectionError) Error() string {
	return "coupon rejected: " + e.Message
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// ValidateInput carries what the booking form knows at validation time.
type ValidateInput struct {
	Code          string
	SubtotalCents int64
	CustomerEmail string
}

// Validation is the outcome the validation endpoint returns. Business
// rejections are a Valid=false result, never an error.
type Validation struct {
	Valid             bool
	DiscountCents     int64
	Message           string
	FormattedDiscount string
}

// CouponService enforces the redemption rules that stay server-side: the
// booking form only ever sees the resolved discount.
type CouponService struct {
	repo     repository.CouponRepository
	producer Producer
	topic    string
	logger   *slog.Logger
}

func NewCouponService(repo repository.CouponRepository, producer Producer, topic string, logger *slog.Logger) *CouponService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CouponService{repo: repo, producer: producer, topic: topic, logger: logger}
}

// Validate resolves a code against the redemption rules for the given
// subtotal and customer. Database unavailability is the only error path.
func (s *CouponService) Validate(ctx context.Context, input ValidateInput) (*Validation, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" {
		return &Validation{Valid: false, Message: "coupon code is required"}, nil
	}

	coupon, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &Validation{Valid: false, Message: "coupon not found"}, nil
		}
		return nil, fmt.Errorf("get coupon by code: %w", err)
	}

	now := time.Now().UTC()

	if !coupon.Active {
		return &Validation{Valid: false, Message: "coupon is not active"}, nil
	}
	if now.Before(coupon.StartsAt) {
		return &Validation{Valid: false, Message: "coupon is not active yet"}, nil
	}
	if now.After(coupon.ExpiresAt) {
		return &Validation{Valid: false, Message: "coupon has expired"}, nil
	}
	if coupon.MaxUses > 0 && coupon.UsedCount >= coupon.MaxUses {
		return &Validation{Valid: false, Message: "coupon usage limit reached"}, nil
	}

	if input.CustomerEmail != "" {
		if coupon.MaxUsesPerCustomer > 0 {
			used, err := s.repo.UsageCountByCustomer(ctx, coupon.ID, input.CustomerEmail)
			if err != nil {
				return nil, fmt.Errorf("usage count by customer: %w", err)
			}
			if used >= coupon.MaxUsesPerCustomer {
				return &Validation{Valid: false, Message: "you have already used this coupon"}, nil
			}
		}
		if coupon.FirstTimeOnly {
			prior, err := s.repo.HasPriorBookings(ctx, input.CustomerEmail)
			if err != nil {
				return nil, fmt.Errorf("prior bookings check: %w", err)
			}
			if prior {
				return &Validation{Valid: false, Message: "coupon is for first-time customers only"}, nil
			}
		}
	}

	if coupon.MinOrderCents > 0 && input.SubtotalCents < coupon.MinOrderCents {
		return &Validation{
			Valid:   false,
			Message: fmt.Sprintf("minimum order of %s required", pricing.FormatUSD(coupon.MinOrderCents)),
		}, nil
	}

	discount := coupon.DiscountFor(input.SubtotalCents)
	return &Validation{
		Valid:             true,
		DiscountCents:     discount,
		Message:           fmt.Sprintf("%s: %s off", coupon.Code, pricing.FormatUSD(discount)),
		FormattedDiscount: pricing.FormatUSD(discount),
	}, nil
}

// Apply re-validates the code and records the redemption against a booking.
// A business rejection comes back as *RejectionError.
func (s *CouponService) Apply(ctx context.Context, input ValidateInput, bookingToken string) (*domain.CouponUsage, error) {
	validation, err := s.Validate(ctx, input)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, &RejectionError{Message: validation.Message}
	}

	code := strings.ToUpper(strings.TrimSpace(input.Code))
	coupon, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get coupon for apply: %w", err)
	}

	usage := &domain.CouponUsage{
		ID:            uuid.NewString(),
		CouponID:      coupon.ID,
		CustomerEmail: input.CustomerEmail,
		BookingToken:  bookingToken,
		DiscountCents: validation.DiscountCents,
	}

	if err := s.repo.RecordUsage(ctx, usage); err != nil {
		return nil, fmt.Errorf("record coupon usage: %w", err)
	}
	if err := s.repo.IncrementUsage(ctx, coupon.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to increment coupon usage count",
			slog.String("code", coupon.Code),
			slog.String("error", err.Error()),
		)
	}

	if s.producer != nil && s.topic != "" {
		event := kafka.CouponEvent{
			Type:          "coupon_applied",
			Code:          coupon.Code,
			CustomerEmail: input.CustomerEmail,
			BookingToken:  bookingToken,
			DiscountCents: validation.DiscountCents,
		}
		if err := s.producer.Publish(ctx, s.topic, coupon.Code, event); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish coupon_applied event",
				slog.String("code", coupon.Code),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "coupon applied",
		slog.String("code", coupon.Code),
		slog.String("booking_token", bookingToken),
		slog.Int64("discount_cents", validation.DiscountCents),
	)

	return usage, nil
}

// ExpireOutdated deactivates coupons whose window has closed; the worker
// runs it on its sweep ticker.
func (s *CouponService) ExpireOutdated(ctx context.Context) (int64, error) {
	n, err := s.repo.DeactivateExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("deactivate expired coupons: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "deactivated expired coupons", slog.Int64("count", n))
	}
	return n, nil
}
