package pricing

// Snapshot is one derived {subtotal, discount, total} triple. It is never a
// source of truth; every consumer reads the engine's latest snapshot instead
// of keeping its own copy of the numbers.
type Snapshot struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

// LineItem is a priced row of the booking form (bedrooms, bathrooms, ...).
// Quantity never drops below MinQuantity.
type LineItem struct {
	ID          string
	Label       string
	UnitPrice   int64
	Quantity    int
	MinQuantity int
}

func (i LineItem) total() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Kind mirrors the widget a preference is rendered as.
type Kind string

const (
	KindCheckbox Kind = "checkbox"
	KindSelect   Kind = "select"
	KindText     Kind = "text"
)

// Preference is an optional add-on whose fee counts toward the subtotal only
// while it is active: checked for checkboxes, non-empty value otherwise.
type Preference struct {
	ID      string
	Kind    Kind
	Fee     int64
	checked bool
	value   string
}

func (p *Preference) Active() bool {
	if p.Kind == KindCheckbox {
		return p.checked
	}
	return p.value != ""
}

// Value returns the current select/text value ("" when inactive).
func (p *Preference) Value() string {
	return p.value
}

func (p *Preference) Checked() bool {
	return p.checked
}

// Coupon is the applied discount as the booking form sees it: code, resolved
// amount and the human-readable message from the validation backend. At most
// one is active; applying a new one replaces the prior.
type Coupon struct {
	Code     string
	Discount int64
	Message  string
}
