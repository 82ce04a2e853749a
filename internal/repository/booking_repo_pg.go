package repository

import (
	"context"
	"errors"
	"time"

	"github.com/freshfield/cleanbooking/internal/domain"
	"github.com/jackc/pgx/v5"
)

// ErrSlotFull means every active professional is already booked for the slot.
var ErrSlotFull = errors.New("no professionals available for this slot")

type BookingRepository interface {
	CreatePending(ctx context.Context, booking *domain.Booking) error
	GetByToken(ctx context.Context, token string) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, token string, status domain.BookingStatus) (*domain.Booking, error)
	ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Booking, error)
	CountForSlot(ctx context.Context, slot time.Time) (int, error)
	SlotCapacity(ctx context.Context) (int, error)
}

type PGBookingRepository struct {
	db DB
}

func NewBookingRepository(db DB) BookingRepository {
	return &PGBookingRepository{db: db}
}

// CreatePending inserts the booking with its frozen line items inside one
// transaction, holding capacity against the active professional count.
func (r *PGBookingRepository) CreatePending(ctx context.Context, booking *domain.Booking) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Serialize creates for the same slot; without this two concurrent
	// transactions for the last free slot both pass the capacity check.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, booking.SlotStart); err != nil {
		return err
	}

	var capacity, used int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM professionals WHERE active`).Scan(&capacity); err != nil {
		return err
	}
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM bookings WHERE slot_start=$1 AND status IN ($2, $3)`,
		booking.SlotStart, domain.BookingStatusPending, domain.BookingStatusConfirmed).Scan(&used); err != nil {
		return err
	}
	if used >= capacity {
		return ErrSlotFull
	}

	booking.Status = domain.BookingStatusPending
	if err := tx.QueryRow(ctx, `INSERT INTO bookings (token, email, address, slot_start, status, subtotal_cents, discount_cents, total_cents, coupon_code, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		booking.Token, booking.Email, booking.Address, booking.SlotStart, booking.Status,
		booking.SubtotalCents, booking.DiscountCents, booking.TotalCents, booking.CouponCode, booking.ExpiresAt).
		Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt); err != nil {
		return err
	}

	for i := range booking.Items {
		item := &booking.Items[i]
		item.BookingID = booking.ID
		if err := tx.QueryRow(ctx, `INSERT INTO booking_items (booking_id, service_id, quantity, unit_price_cents)
			VALUES ($1, $2, $3, $4) RETURNING id`,
			item.BookingID, item.ServiceID, item.Quantity, item.UnitPriceCents).Scan(&item.ID); err != nil {
			return err
		}
	}

	for i := range booking.Extras {
		extra := &booking.Extras[i]
		extra.BookingID = booking.ID
		if err := tx.QueryRow(ctx, `INSERT INTO booking_extras (booking_id, extra_id, value, fee_cents)
			VALUES ($1, $2, $3, $4) RETURNING id`,
			extra.BookingID, extra.ExtraID, extra.Value, extra.FeeCents).Scan(&extra.ID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *PGBookingRepository) GetByToken(ctx context.Context, token string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT id, token, email, address, slot_start, status, subtotal_cents, discount_cents, total_cents, coupon_code, expires_at, created_at, updated_at FROM bookings WHERE token=$1`, token)
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.Token, &b.Email, &b.Address, &b.SlotStart, &b.Status, &b.SubtotalCents, &b.DiscountCents, &b.TotalCents, &b.CouponCode, &b.ExpiresAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PGBookingRepository) UpdateStatus(ctx context.Context, token string, status domain.BookingStatus) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `UPDATE bookings SET status=$1, updated_at=now() WHERE token=$2 RETURNING id, token, email, address, slot_start, status, subtotal_cents, discount_cents, total_cents, coupon_code, expires_at, created_at, updated_at`, status, token)
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.Token, &b.Email, &b.Address, &b.SlotStart, &b.Status, &b.SubtotalCents, &b.DiscountCents, &b.TotalCents, &b.CouponCode, &b.ExpiresAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PGBookingRepository) ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `UPDATE bookings SET status=$1, updated_at=now() WHERE status=$2 AND expires_at <= $3 RETURNING id, token, email, address, slot_start, status, subtotal_cents, discount_cents, total_cents, coupon_code, expires_at, created_at, updated_at`,
		domain.BookingStatusExpired, domain.BookingStatusPending, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.Token, &b.Email, &b.Address, &b.SlotStart, &b.Status, &b.SubtotalCents, &b.DiscountCents, &b.TotalCents, &b.CouponCode, &b.ExpiresAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		expired = append(expired, b)
	}
	return expired, rows.Err()
}

func (r *PGBookingRepository) CountForSlot(ctx context.Context, slot time.Time) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM bookings WHERE slot_start=$1 AND status IN ($2, $3)`,
		slot, domain.BookingStatusPending, domain.BookingStatusConfirmed).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// SlotCapacity is the number of active professionals; each takes one job per slot.
func (r *PGBookingRepository) SlotCapacity(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM professionals WHERE active`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
