package pricing

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrZeroTotal means the subtotal resolved to zero while the engine holds
	// a priced catalog. A dynamically priced form never legitimately totals
	// zero once initialized, so this is a data failure, not an empty cart.
	ErrZeroTotal = errors.New("pricing: subtotal resolved to zero")

	ErrUnknownItem       = errors.New("pricing: unknown line item")
	ErrUnknownPreference = errors.New("pricing: unknown preference")
)

// Engine is the single source of truth for the derived total. All mutation
// and recomputation is serialized through its mutex; subscribers always read
// the published snapshot instead of keeping independently writable copies.
type Engine struct {
	mu        sync.Mutex
	bus       *Bus
	items     []*LineItem
	itemIdx   map[string]*LineItem
	prefs     []*Preference
	prefIdx   map[string]*Preference
	coupon    *Coupon
	last      Snapshot
	failed    bool
	recompute atomic.Bool
}

func NewEngine(bus *Bus) *Engine {
	if bus == nil {
		bus = NewBus()
	}
	return &Engine{
		bus:     bus,
		itemIdx: make(map[string]*LineItem),
		prefIdx: make(map[string]*Preference),
	}
}

func (e *Engine) Bus() *Bus {
	return e.bus
}

// AddItem registers a line item. Quantities below the item's floor are lifted
// to it immediately.
func (e *Engine) AddItem(item LineItem) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if item.Quantity < item.MinQuantity {
		item.Quantity = item.MinQuantity
	}
	cp := item
	e.items = append(e.items, &cp)
	e.itemIdx[item.ID] = &cp
}

func (e *Engine) AddPreference(p Preference) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := p
	e.prefs = append(e.prefs, &cp)
	e.prefIdx[p.ID] = &cp
}

// SetQuantity mutates a line item, publishes quantityChanged and force
// recomputes. The floor at MinQuantity is enforced here, not by callers.
func (e *Engine) SetQuantity(id string, qty int) (Snapshot, error) {
	e.mu.Lock()
	item, ok := e.itemIdx[id]
	if !ok {
		e.mu.Unlock()
		return e.Snapshot(), fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	if qty < item.MinQuantity {
		qty = item.MinQuantity
	}
	item.Quantity = qty
	e.mu.Unlock()

	e.bus.PublishQuantityChanged(QuantityChanged{ItemID: id, Quantity: qty})
	return e.Recompute(true)
}

// SetChecked toggles a checkbox preference.
func (e *Engine) SetChecked(id string, checked bool) (Snapshot, error) {
	e.mu.Lock()
	pref, ok := e.prefIdx[id]
	if !ok {
		e.mu.Unlock()
		return e.Snapshot(), fmt.Errorf("%w: %s", ErrUnknownPreference, id)
	}
	pref.checked = checked
	ev := PreferenceChanged{PreferenceID: id, Active: pref.Active(), Fee: pref.Fee}
	e.mu.Unlock()

	e.bus.PublishPreferenceChanged(ev)
	return e.Recompute(true)
}

// SetValue updates a select/text preference; an empty value deactivates it.
func (e *Engine) SetValue(id string, value string) (Snapshot, error) {
	e.mu.Lock()
	pref, ok := e.prefIdx[id]
	if !ok {
		e.mu.Unlock()
		return e.Snapshot(), fmt.Errorf("%w: %s", ErrUnknownPreference, id)
	}
	pref.value = value
	ev := PreferenceChanged{PreferenceID: id, Active: pref.Active(), Fee: pref.Fee}
	e.mu.Unlock()

	e.bus.PublishPreferenceChanged(ev)
	return e.Recompute(true)
}

// SetCoupon installs (or, with nil, clears) the active coupon. A new coupon
// replaces the prior one; there is never more than one.
func (e *Engine) SetCoupon(c *Coupon) (Snapshot, error) {
	e.mu.Lock()
	e.coupon = c
	e.mu.Unlock()

	ev := CouponUpdate{Kind: CouponRemoved}
	if c != nil {
		ev = CouponUpdate{Kind: CouponApplied, Coupon: c, Discount: c.Discount}
	}
	e.bus.PublishCouponUpdate(ev)
	return e.Recompute(true)
}

// Recompute derives a fresh snapshot. With force=false it is a no-op while a
// recompute (including its event dispatch) is still in flight, so subscribers
// reacting to pricingUpdated cannot trigger redundant passes. force=true
// always recomputes; every authoritative mutation uses it.
func (e *Engine) Recompute(force bool) (Snapshot, error) {
	if !force && !e.recompute.CompareAndSwap(false, true) {
		return e.Snapshot(), nil
	}
	if force {
		e.recompute.Store(true)
	}
	defer e.recompute.Store(false)

	e.mu.Lock()
	var subtotal int64
	for _, item := range e.items {
		subtotal += item.total()
	}
	for _, pref := range e.prefs {
		if pref.Active() {
			subtotal += pref.Fee
		}
	}
	if subtotal == 0 {
		e.failed = true
		e.mu.Unlock()
		return Snapshot{}, ErrZeroTotal
	}

	var discount int64
	if e.coupon != nil {
		discount = e.coupon.Discount
	}
	total := subtotal - discount
	if total < 0 {
		total = 0
	}
	snap := Snapshot{Subtotal: subtotal, Discount: discount, Total: total}
	e.last = snap
	e.failed = false
	e.mu.Unlock()

	e.bus.PublishPricingUpdated(snap)
	return snap, nil
}

// Snapshot returns the last successfully computed snapshot.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Failed reports whether the engine is in the zero-total error state. It
// clears on the next successful recompute.
func (e *Engine) Failed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failed
}

// Coupon returns a copy of the active coupon, or nil.
func (e *Engine) Coupon() *Coupon {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.coupon == nil {
		return nil
	}
	cp := *e.coupon
	return &cp
}

// Items returns copies of the current line items in registration order.
func (e *Engine) Items() []LineItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]LineItem, 0, len(e.items))
	for _, item := range e.items {
		out = append(out, *item)
	}
	return out
}

// Preferences returns copies of the current preferences.
func (e *Engine) Preferences() []Preference {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Preference, 0, len(e.prefs))
	for _, pref := range e.prefs {
		out = append(out, *pref)
	}
	return out
}
