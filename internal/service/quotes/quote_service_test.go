package quotes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/freshfield/cleanbooking/internal/domain"
	"github.com/freshfield/cleanbooking/internal/pricing"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) ListServices(ctx context.Context) ([]domain.Service, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Service), args.Error(1)
}

func (m *MockCatalog) ListExtras(ctx context.Context) ([]domain.Extra, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Extra), args.Error(1)
}

func seededCatalog() *MockCatalog {
	catalog := new(MockCatalog)
	catalog.On("ListServices", mock.Anything).Return([]domain.Service{
		{ID: 1, Name: "Bedrooms", UnitPriceCents: 2500, MinQuantity: 1, Active: true},
		{ID: 2, Name: "Bathrooms", UnitPriceCents: 1000, MinQuantity: 1, Active: true},
		{ID: 3, Name: "Retired", UnitPriceCents: 9900, MinQuantity: 1, Active: false},
	}, nil)
	catalog.On("ListExtras", mock.Anything).Return([]domain.Extra{
		{ID: 10, Name: "Inside fridge", Kind: domain.ExtraKindCheckbox, FeeCents: 1500, Active: true},
		{ID: 11, Name: "Cleaning products", Kind: domain.ExtraKindSelect, FeeCents: 500, Active: true},
	}, nil)
	return catalog
}

func newTestService(t *testing.T, endpoint string) *QuoteService {
	t.Helper()
	svc := NewQuoteService(seededCatalog(), endpoint, time.Second, time.Hour, time.Minute, nil)
	t.Cleanup(svc.closeAll)
	return svc
}

func TestCreate_SeedsFromActiveCatalog(t *testing.T) {
	svc := newTestService(t, "")

	view, err := svc.Create(context.Background(), "anna@example.com")

	require.NoError(t, err)
	assert.NotEmpty(t, view.Token)
	assert.Len(t, view.Items, 2)
	assert.Len(t, view.Preferences, 2)
	assert.Equal(t, int64(3500), view.Snapshot.Subtotal)
	assert.Equal(t, int64(3500), view.Snapshot.Total)
	assert.Equal(t, "$35.00", view.Display["subtotal"])
	assert.Equal(t, "$35.00", view.Display["total"])
	assert.Equal(t, "$0.00", view.Display["discount"])
	assert.False(t, view.ErrorState)
}

func TestSetQuantity_RecomputesAndRenders(t *testing.T) {
	svc := newTestService(t, "")
	created, err := svc.Create(context.Background(), "")
	require.NoError(t, err)

	view, err := svc.SetQuantity(created.Token, "1", 3)

	require.NoError(t, err)
	assert.Equal(t, int64(8500), view.Snapshot.Subtotal)
	assert.Equal(t, "$85.00", view.Display["total"])
}

func TestSetQuantity_FloorsAtMinimum(t *testing.T) {
	svc := newTestService(t, "")
	created, err := svc.Create(context.Background(), "")
	require.NoError(t, err)

	view, err := svc.SetQuantity(created.Token, "1", 0)

	require.NoError(t, err)
	for _, item := range view.Items {
		if item.ID == "1" {
			assert.Equal(t, 1, item.Quantity)
		}
	}
	assert.Equal(t, int64(3500), view.Snapshot.Subtotal)
}

func TestSetPreference_CheckboxAndSelect(t *testing.T) {
	svc := newTestService(t, "")
	created, err := svc.Create(context.Background(), "")
	require.NoError(t, err)

	view, err := svc.SetPreference(created.Token, "10", true, "")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), view.Snapshot.Subtotal)

	view, err = svc.SetPreference(created.Token, "11", false, "eco")
	require.NoError(t, err)
	assert.Equal(t, int64(5500), view.Snapshot.Subtotal)

	view, err = svc.SetPreference(created.Token, "10", false, "")
	require.NoError(t, err)
	assert.Equal(t, int64(4000), view.Snapshot.Subtotal)
}

func TestSetPreference_Unknown(t *testing.T) {
	svc := newTestService(t, "")
	created, err := svc.Create(context.Background(), "")
	require.NoError(t, err)

	_, err = svc.SetPreference(created.Token, "999", true, "")

	assert.ErrorIs(t, err, pricing.ErrUnknownPreference)
}

func TestApplyCoupon_EndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"valid":              true,
			"discount_amount":    10.50,
			"message":            "SAVE10: $10.50 off",
			"formatted_discount": "$10.50",
		})
	}))
	defer server.Close()

	svc := newTestService(t, server.URL)
	created, err := svc.Create(context.Background(), "anna@example.com")
	require.NoError(t, err)

	view, err := svc.ApplyCoupon(context.Background(), created.Token, "save10")

	require.NoError(t, err)
	require.NotNil(t, view.Coupon)
	assert.Equal(t, "SAVE10", view.Coupon.Code)
	assert.Equal(t, int64(1050), view.Snapshot.Discount)
	assert.Equal(t, int64(2450), view.Snapshot.Total)
	assert.Equal(t, "$10.50", view.Display["discount"])
	assert.Equal(t, "$24.50", view.Display["total"])
}

func TestApplyCoupon_RejectionKeepsState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"valid":   false,
			"message": "coupon has expired",
		})
	}))
	defer server.Close()

	svc := newTestService(t, server.URL)
	created, err := svc.Create(context.Background(), "")
	require.NoError(t, err)

	view, err := svc.ApplyCoupon(context.Background(), created.Token, "OLD")

	var rejection *pricing.RejectionError
	assert.ErrorAs(t, err, &rejection)
	assert.Nil(t, view.Coupon)
	assert.Equal(t, int64(0), view.Snapshot.Discount)
}

func TestRemoveCoupon(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"valid":           true,
			"discount_amount": 5.0,
		})
	}))
	defer server.Close()

	svc := newTestService(t, server.URL)
	created, err := svc.Create(context.Background(), "")
	require.NoError(t, err)
	_, err = svc.ApplyCoupon(context.Background(), created.Token, "FIVE")
	require.NoError(t, err)

	view, err := svc.RemoveCoupon(created.Token)

	require.NoError(t, err)
	assert.Nil(t, view.Coupon)
	assert.Equal(t, int64(0), view.Snapshot.Discount)
	assert.Equal(t, view.Snapshot.Subtotal, view.Snapshot.Total)
}

func TestUnknownTokenIsNotFound(t *testing.T) {
	svc := newTestService(t, "")

	_, err := svc.Get("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.SetQuantity("nope", "1", 2)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestClose_RemovesSession(t *testing.T) {
	svc := newTestService(t, "")
	created, err := svc.Create(context.Background(), "")
	require.NoError(t, err)

	require.NoError(t, svc.Close(created.Token))

	_, err = svc.Get(created.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.Close(created.Token), ErrSessionNotFound)
}

func TestCreate_ZeroTotalCatalogIsErrorState(t *testing.T) {
	catalog := new(MockCatalog)
	catalog.On("ListServices", mock.Anything).Return([]domain.Service{
		{ID: 1, Name: "Custom job", UnitPriceCents: 2500, MinQuantity: 0, Active: true},
	}, nil)
	catalog.On("ListExtras", mock.Anything).Return([]domain.Extra{}, nil)
	svc := NewQuoteService(catalog, "", time.Second, time.Hour, time.Minute, nil)
	t.Cleanup(svc.closeAll)

	view, err := svc.Create(context.Background(), "")

	require.NoError(t, err)
	assert.True(t, view.ErrorState)
	assert.Equal(t, pricing.ErrorIndicator, view.Display["total"])

	recovered, err := svc.SetQuantity(view.Token, "1", 2)
	require.NoError(t, err)
	assert.False(t, recovered.ErrorState)
	assert.Equal(t, "$50.00", recovered.Display["total"])
}

func TestSweep_DropsExpiredSessions(t *testing.T) {
	svc := newTestService(t, "")
	svc.ttl = -time.Second
	created, err := svc.Create(context.Background(), "")
	require.NoError(t, err)

	svc.sweep()

	_, err = svc.Get(created.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
