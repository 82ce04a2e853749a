package pricing

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Field names a piece of the snapshot that display targets render.
type Field string

const (
	FieldSubtotal Field = "subtotal"
	FieldDiscount Field = "discount"
	FieldTotal    Field = "total"
)

// ErrorIndicator is what targets show in the zero-total failure state
// instead of a silent $0.00.
const ErrorIndicator = "pricing unavailable"

// Target is the binding surface standing in for a DOM node: anything that
// renders a formatted piece of the snapshot.
type Target interface {
	Value() string
	SetValue(string)
}

// StringTarget is the plain Target used by quote sessions and tests.
type StringTarget struct {
	mu sync.Mutex
	s  string
}

func (t *StringTarget) Value() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}

func (t *StringTarget) SetValue(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s = s
}

const defaultMonitorInterval = time.Second

// Synchronizer propagates snapshots to every registered target and watches
// for external writes that diverge from the last known-good snapshot,
// rewriting them within one monitoring tick. Only the engine and this type
// ever write totals.
type Synchronizer struct {
	mu       sync.Mutex
	targets  map[Field][]Target
	last     Snapshot
	haveSnap bool
	failed   bool

	bus         *Bus
	interval    time.Duration
	corrections atomic.Int64
}

// NewSynchronizer wires itself to the bus: every pricingUpdated becomes a
// Sync, which in turn publishes totalUpdated.
func NewSynchronizer(bus *Bus, interval time.Duration) *Synchronizer {
	if interval <= 0 {
		interval = defaultMonitorInterval
	}
	s := &Synchronizer{
		targets:  make(map[Field][]Target),
		bus:      bus,
		interval: interval,
	}
	if bus != nil {
		bus.OnPricingUpdated(s.Sync)
	}
	return s
}

func (s *Synchronizer) Register(f Field, t Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[f] = append(s.targets[f], t)
}

// Sync writes the snapshot to every target and publishes totalUpdated. After
// it returns, each target renders the 2-decimal $-prefixed value for its
// field. A successful sync clears the error state.
func (s *Synchronizer) Sync(snap Snapshot) {
	s.mu.Lock()
	s.last = snap
	s.haveSnap = true
	s.failed = false
	for field, targets := range s.targets {
		want := formatField(field, snap)
		for _, t := range targets {
			t.SetValue(want)
		}
	}
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.PublishTotalUpdated(snap)
	}
}

// SyncError puts every target into the explicit error state and suspends the
// divergence watch until the next successful Sync.
func (s *Synchronizer) SyncError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = true
	for _, targets := range s.targets {
		for _, t := range targets {
			t.SetValue(ErrorIndicator)
		}
	}
}

// Watch runs the anti-regression guard until ctx is done: any target whose
// rendered value disagrees with the last snapshot is corrected and logged,
// never surfaced to the user.
func (s *Synchronizer) Watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.correct()
		}
	}
}

func (s *Synchronizer) correct() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveSnap || s.failed {
		return
	}
	for field, targets := range s.targets {
		want := formatField(field, s.last)
		for _, t := range targets {
			if got := t.Value(); got != want {
				t.SetValue(want)
				s.corrections.Add(1)
				log.Printf("corrected diverged %s display: %q -> %q", field, got, want)
			}
		}
	}
}

// Corrections reports how many external writes the watch has repaired.
func (s *Synchronizer) Corrections() int64 {
	return s.corrections.Load()
}

// Rendered returns the target values for inspection (formatted strings per
// field), reflecting whatever the targets currently show.
func (s *Synchronizer) Rendered() map[Field]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Field]string, len(s.targets))
	for field, targets := range s.targets {
		if len(targets) > 0 {
			out[field] = targets[0].Value()
		}
	}
	return out
}

func formatField(f Field, snap Snapshot) string {
	switch f {
	case FieldSubtotal:
		return FormatUSD(snap.Subtotal)
	case FieldDiscount:
		return FormatUSD(snap.Discount)
	default:
		return FormatUSD(snap.Total)
	}
}
