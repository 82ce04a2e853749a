package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrValidationInFlight rejects a second submission while one is pending;
	// the user retries after the first resolves.
	ErrValidationInFlight = errors.New("pricing: coupon validation already in flight")

	// ErrSuperseded marks a validation response that arrived after a newer
	// request or a removal; its result is discarded without touching state.
	ErrSuperseded = errors.New("pricing: coupon validation superseded")

	// ErrNetworkFailure wraps transport-level failures and timeouts. The
	// currently applied coupon, if any, stays untouched.
	ErrNetworkFailure = errors.New("pricing: coupon validation request failed")
)

// RejectionError is a business rejection from the validation backend
// (invalid, expired, below minimum, usage limit). No state mutates.
type RejectionError struct {
	Message string
}

func (e *RejectionError) Error() string {
	return "pricing: coupon rejected: " + e.Message
}

const defaultValidationTimeout = 10 * time.Second

type validateRequest struct {
	Code          string  `json:"code"`
	Subtotal      float64 `json:"subtotal"`
	CustomerEmail string  `json:"customer_email"`
}

type validateResponse struct {
	Valid             bool    `json:"valid"`
	DiscountAmount    float64 `json:"discount_amount"`
	Message           string  `json:"message"`
	FormattedDiscount string  `json:"formatted_discount"`
}

// Validator resolves user-entered codes against the external validation
// endpoint and installs the resulting coupon on the engine. Responses carry a
// monotonically increasing request id; anything that is no longer the latest
// is dropped, so a slow validation can never overwrite a newer state.
type Validator struct {
	engine   *Engine
	endpoint string
	email    string
	client   *http.Client

	mu      sync.Mutex
	pending bool
	seq     atomic.Uint64
}

func NewValidator(engine *Engine, endpoint, customerEmail string, timeout time.Duration) *Validator {
	if timeout <= 0 {
		timeout = defaultValidationTimeout
	}
	return &Validator{
		engine:   engine,
		endpoint: endpoint,
		email:    customerEmail,
		client:   &http.Client{Timeout: timeout},
	}
}

// Apply validates a code against the backend and, on success, installs the
// coupon and force recomputes. Exactly one call may be in flight at a time.
func (v *Validator) Apply(ctx context.Context, code string) (Snapshot, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return v.engine.Snapshot(), &RejectionError{Message: "coupon code is required"}
	}

	v.mu.Lock()
	if v.pending {
		v.mu.Unlock()
		return v.engine.Snapshot(), ErrValidationInFlight
	}
	v.pending = true
	v.mu.Unlock()
	defer func() {
		v.mu.Lock()
		v.pending = false
		v.mu.Unlock()
	}()

	id := v.seq.Add(1)

	body, err := json.Marshal(validateRequest{
		Code:          code,
		Subtotal:      CentsToDollars(v.engine.Snapshot().Subtotal),
		CustomerEmail: v.email,
	})
	if err != nil {
		return v.engine.Snapshot(), fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return v.engine.Snapshot(), fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return v.engine.Snapshot(), fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return v.engine.Snapshot(), fmt.Errorf("%w: unexpected status %d", ErrNetworkFailure, resp.StatusCode)
	}

	var result validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return v.engine.Snapshot(), fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}

	return v.resolve(id, code, result)
}

// resolve installs the backend's answer for request id. The staleness check
// and the install hold the same lock Remove takes, so a removal that lands
// between the response arriving and the install always wins.
func (v *Validator) resolve(id uint64, code string, result validateResponse) (Snapshot, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if id != v.seq.Load() {
		log.Printf("discarding stale coupon validation for %q (request %d)", code, id)
		return v.engine.Snapshot(), ErrSuperseded
	}

	if !result.Valid {
		return v.engine.Snapshot(), &RejectionError{Message: result.Message}
	}

	discount := DollarsToCents(result.DiscountAmount)
	if discount < 0 {
		discount = 0
	}
	return v.engine.SetCoupon(&Coupon{
		Code:     code,
		Discount: discount,
		Message:  result.Message,
	})
}

// Remove clears the active coupon synchronously and supersedes any in-flight
// validation, then force recomputes.
func (v *Validator) Remove() (Snapshot, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq.Add(1)
	return v.engine.SetCoupon(nil)
}
