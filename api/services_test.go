package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/freshfield/cleanbooking/internal/domain"
	"github.com/freshfield/cleanbooking/internal/service/booking"
)

type MockCatalogUseCase struct {
	mock.Mock
}

func (m *MockCatalogUseCase) ListServices(ctx context.Context) ([]domain.Service, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Service), args.Error(1)
}

func (m *MockCatalogUseCase) GetService(ctx context.Context, id int64) (*domain.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Service), args.Error(1)
}

func (m *MockCatalogUseCase) ListExtras(ctx context.Context) ([]domain.Extra, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Extra), args.Error(1)
}

func TestCatalogHandler_listServices(t *testing.T) {
	mockService := &MockCatalogUseCase{}
	handler := NewCatalogHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/services", nil)

	services := []domain.Service{
		{ID: 1, Slug: "bedrooms", Name: "Bedrooms", UnitPriceCents: 2500, MinQuantity: 1, Active: true},
	}
	mockService.On("ListServices", c.Request.Context()).Return(services, nil)

	handler.listServices(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response []domain.Service
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Len(t, response, 1)
	assert.Equal(t, "bedrooms", response[0].Slug)

	mockService.AssertExpectations(t)
}

func TestCatalogHandler_getServiceInvalidID(t *testing.T) {
	mockService := &MockCatalogUseCase{}
	handler := NewCatalogHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	c.Request = httptest.NewRequest("GET", "/services/abc", nil)

	handler.getService(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "GetService", mock.Anything, mock.Anything)
}

func TestCatalogHandler_listExtras(t *testing.T) {
	mockService := &MockCatalogUseCase{}
	handler := NewCatalogHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/extras", nil)

	extras := []domain.Extra{
		{ID: 10, Slug: "inside-fridge", Kind: domain.ExtraKindCheckbox, FeeCents: 1500, Active: true},
	}
	mockService.On("ListExtras", c.Request.Context()).Return(extras, nil)

	handler.listExtras(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestAvailabilityHandler_check(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewAvailabilityHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	slot := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	c.Request = httptest.NewRequest("GET", "/availability?slot="+slot.Format(time.RFC3339), nil)

	mockService.On("CheckAvailability", c.Request.Context(), slot).
		Return(&booking.Availability{Slot: slot, Capacity: 3, Booked: 1, Available: true}, nil)

	handler.check(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response booking.Availability
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.True(t, response.Available)
	assert.Equal(t, 3, response.Capacity)

	mockService.AssertExpectations(t)
}

func TestAvailabilityHandler_checkBadSlot(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewAvailabilityHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/availability?slot=tomorrow", nil)

	handler.check(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "CheckAvailability", mock.Anything, mock.Anything)
}
