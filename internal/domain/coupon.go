package domain

import "time"

// Discount type constants.
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

// Coupon is the server-side promotion record. The booking form only ever sees
// the resolved discount for a given subtotal; these rules stay backend-only.
type Coupon struct {
	ID                  int64
	Code                string
	Description         string
	DiscountType        string
	DiscountValue       int64 // basis points for percentage, cents for fixed
	MinOrderCents       int64
	MaxDiscountCents    int64
	MaxUses             int
	UsedCount           int
	MaxUsesPerCustomer  int
	FirstTimeOnly       bool
	StartsAt            time.Time
	ExpiresAt           time.Time
	Active              bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CouponUsage records a single redemption of a coupon by a customer.
type CouponUsage struct {
	ID            string
	CouponID      int64
	CustomerEmail string
	BookingToken  string
	DiscountCents int64
	CreatedAt     time.Time
}

// DiscountFor resolves the discount this coupon grants against a subtotal,
// applying the percentage/fixed rule and the max-discount cap. It does not
// check eligibility; that is the coupon service's job.
func (c *Coupon) DiscountFor(subtotalCents int64) int64 {
	var discount int64
	switch c.DiscountType {
	case DiscountTypePercentage:
		discount = subtotalCents * c.DiscountValue / 10000
	case DiscountTypeFixed:
		discount = c.DiscountValue
	default:
		return 0
	}
	if c.MaxDiscountCents > 0 && discount > c.MaxDiscountCents {
		discount = c.MaxDiscountCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
