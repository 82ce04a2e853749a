package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusExpired   BookingStatus = "EXPIRED"
)

type Booking struct {
	ID            int64
	Token         string
	Email         string
	Address       string
	SlotStart     time.Time
	Status        BookingStatus
	SubtotalCents int64
	DiscountCents int64
	TotalCents    int64
	CouponCode    string
	ExpiresAt     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Items  []BookingItem
	Extras []BookingExtra
}

// BookingItem is one priced line of a booking (service x quantity) with the
// unit price frozen at booking time.
type BookingItem struct {
	ID             int64
	BookingID      int64
	ServiceID      int64
	Quantity       int
	UnitPriceCents int64
}

// BookingExtra records an add-on selected on the booking, fee frozen likewise.
type BookingExtra struct {
	ID        int64
	BookingID int64
	ExtraID   int64
	Value     string
	FeeCents  int64
}
