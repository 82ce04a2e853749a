package repository

import (
	"context"
	"time"

	"github.com/freshfield/cleanbooking/internal/domain"
)

type CouponRepository interface {
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	RecordUsage(ctx context.Context, usage *domain.CouponUsage) error
	IncrementUsage(ctx context.Context, couponID int64) error
	UsageCountByCustomer(ctx context.Context, couponID int64, email string) (int, error)
	HasPriorBookings(ctx context.Context, email string) (bool, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type PGCouponRepository struct {
	db DB
}

func NewCouponRepository(db DB) CouponRepository {
	return &PGCouponRepository{db: db}
}

const couponColumns = `id, code, description, discount_type, discount_value, min_order_cents, max_discount_cents, max_uses, used_count, max_uses_per_customer, first_time_only, starts_at, expires_at, active, created_at, updated_at`

func (r *PGCouponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	row := r.db.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code=$1`, code)
	var c domain.Coupon
	if err := row.Scan(&c.ID, &c.Code, &c.Description, &c.DiscountType, &c.DiscountValue, &c.MinOrderCents, &c.MaxDiscountCents, &c.MaxUses, &c.UsedCount, &c.MaxUsesPerCustomer, &c.FirstTimeOnly, &c.StartsAt, &c.ExpiresAt, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PGCouponRepository) RecordUsage(ctx context.Context, usage *domain.CouponUsage) error {
	return r.db.QueryRow(ctx, `INSERT INTO coupon_usage (id, coupon_id, customer_email, booking_token, discount_cents)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		usage.ID, usage.CouponID, usage.CustomerEmail, usage.BookingToken, usage.DiscountCents).Scan(&usage.CreatedAt)
}

func (r *PGCouponRepository) IncrementUsage(ctx context.Context, couponID int64) error {
	_, err := r.db.Exec(ctx, `UPDATE coupons SET used_count = used_count + 1, updated_at = now() WHERE id=$1`, couponID)
	return err
}

func (r *PGCouponRepository) UsageCountByCustomer(ctx context.Context, couponID int64, email string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM coupon_usage WHERE coupon_id=$1 AND customer_email=$2`, couponID, email).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PGCouponRepository) HasPriorBookings(ctx context.Context, email string) (bool, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM bookings WHERE email=$1 AND status <> $2`, email, domain.BookingStatusExpired).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PGCouponRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE coupons SET active = false, updated_at = now() WHERE active AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

var _ CouponRepository = (*PGCouponRepository)(nil)
