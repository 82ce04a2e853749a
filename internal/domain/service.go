package domain

import "time"

// Service is a bookable cleaning service from the catalog, e.g.
// "Standard Cleaning" priced per bedroom.
type Service struct {
	ID             int64
	Slug           string
	Name           string
	Description    string
	UnitLabel      string
	UnitPriceCents int64
	MinQuantity    int
	DurationMin    int
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ExtraKind mirrors the widget the extra is rendered as on the booking form.
type ExtraKind string

const (
	ExtraKindCheckbox ExtraKind = "checkbox"
	ExtraKindSelect   ExtraKind = "select"
	ExtraKindText     ExtraKind = "text"
)

// Extra is an optional add-on with a flat fee (inside fridge, eco products...).
type Extra struct {
	ID        int64
	Slug      string
	Name      string
	Kind      ExtraKind
	FeeCents  int64
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Professional is a cleaner who can take one job per time slot.
type Professional struct {
	ID        int64
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
