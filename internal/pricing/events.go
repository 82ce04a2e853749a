package pricing

import (
	"slices"
	"sync"
)

// The booking form's producers (quantity buttons, preference widgets, the
// coupon form) and consumers (synchronizer, checkout extractor) never call
// each other directly; everything goes through this typed bus. Dispatch is
// synchronous and in subscription order.

type QuantityChanged struct {
	ItemID   string
	Quantity int
}

type PreferenceChanged struct {
	PreferenceID string
	Active       bool
	Fee          int64
}

type CouponUpdateKind string

const (
	CouponApplied CouponUpdateKind = "applied"
	CouponRemoved CouponUpdateKind = "removed"
)

type CouponUpdate struct {
	Kind     CouponUpdateKind
	Coupon   *Coupon
	Discount int64
}

type Bus struct {
	mu         sync.RWMutex
	quantity   []func(QuantityChanged)
	preference []func(PreferenceChanged)
	coupon     []func(CouponUpdate)
	pricing    []func(Snapshot)
	total      []func(Snapshot)
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) OnQuantityChanged(fn func(QuantityChanged)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quantity = append(b.quantity, fn)
}

func (b *Bus) OnPreferenceChanged(fn func(PreferenceChanged)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.preference = append(b.preference, fn)
}

func (b *Bus) OnCouponUpdate(fn func(CouponUpdate)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.coupon = append(b.coupon, fn)
}

func (b *Bus) OnPricingUpdated(fn func(Snapshot)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pricing = append(b.pricing, fn)
}

func (b *Bus) OnTotalUpdated(fn func(Snapshot)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.total = append(b.total, fn)
}

func (b *Bus) PublishQuantityChanged(ev QuantityChanged) {
	for _, fn := range b.quantitySubs() {
		fn(ev)
	}
}

func (b *Bus) PublishPreferenceChanged(ev PreferenceChanged) {
	for _, fn := range b.preferenceSubs() {
		fn(ev)
	}
}

func (b *Bus) PublishCouponUpdate(ev CouponUpdate) {
	for _, fn := range b.couponSubs() {
		fn(ev)
	}
}

func (b *Bus) PublishPricingUpdated(s Snapshot) {
	for _, fn := range b.pricingSubs() {
		fn(s)
	}
}

func (b *Bus) PublishTotalUpdated(s Snapshot) {
	for _, fn := range b.totalSubs() {
		fn(s)
	}
}

func (b *Bus) quantitySubs() []func(QuantityChanged) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.quantity)
}

func (b *Bus) preferenceSubs() []func(PreferenceChanged) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.preference)
}

func (b *Bus) couponSubs() []func(CouponUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.coupon)
}

func (b *Bus) pricingSubs() []func(Snapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.pricing)
}

func (b *Bus) totalSubs() []func(Snapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.total)
}
