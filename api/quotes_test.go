package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/freshfield/cleanbooking/internal/pricing"
	"github.com/freshfield/cleanbooking/internal/service/quotes"
)

type MockQuoteUseCase struct {
	mock.Mock
}

func (m *MockQuoteUseCase) Create(ctx context.Context, customerEmail string) (*quotes.QuoteView, error) {
	args := m.Called(ctx, customerEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*quotes.QuoteView), args.Error(1)
}

func (m *MockQuoteUseCase) Get(token string) (*quotes.QuoteView, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*quotes.QuoteView), args.Error(1)
}

func (m *MockQuoteUseCase) SetQuantity(token, itemID string, qty int) (*quotes.QuoteView, error) {
	args := m.Called(token, itemID, qty)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*quotes.QuoteView), args.Error(1)
}

func (m *MockQuoteUseCase) SetPreference(token, prefID string, checked bool, value string) (*quotes.QuoteView, error) {
	args := m.Called(token, prefID, checked, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*quotes.QuoteView), args.Error(1)
}

func (m *MockQuoteUseCase) ApplyCoupon(ctx context.Context, token, code string) (*quotes.QuoteView, error) {
	args := m.Called(ctx, token, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*quotes.QuoteView), args.Error(1)
}

func (m *MockQuoteUseCase) RemoveCoupon(token string) (*quotes.QuoteView, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*quotes.QuoteView), args.Error(1)
}

func (m *MockQuoteUseCase) Close(token string) error {
	args := m.Called(token)
	return args.Error(0)
}

func quoteView(token string) *quotes.QuoteView {
	return &quotes.QuoteView{
		Token:    token,
		Snapshot: pricing.Snapshot{Subtotal: 7500, Discount: 0, Total: 7500},
		Display: map[string]string{
			"subtotal": "$75.00",
			"discount": "$0.00",
			"total":    "$75.00",
		},
	}
}

func TestQuoteHandler_create(t *testing.T) {
	mockService := &MockQuoteUseCase{}
	handler := NewQuoteHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body, _ := json.Marshal(createQuoteRequest{CustomerEmail: "anna@example.com"})
	c.Request = httptest.NewRequest("POST", "/quotes", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("Create", c.Request.Context(), "anna@example.com").Return(quoteView("q1"), nil)

	handler.create(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response quotes.QuoteView
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "q1", response.Token)
	assert.Equal(t, "$75.00", response.Display["total"])

	mockService.AssertExpectations(t)
}

func TestQuoteHandler_setQuantity(t *testing.T) {
	mockService := &MockQuoteUseCase{}
	handler := NewQuoteHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "token", Value: "q1"}, {Key: "id", Value: "bedrooms"}}
	body, _ := json.Marshal(setQuantityRequest{Quantity: 3})
	c.Request = httptest.NewRequest("PATCH", "/quotes/q1/items/bedrooms", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("SetQuantity", "q1", "bedrooms", 3).Return(quoteView("q1"), nil)

	handler.setQuantity(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestQuoteHandler_getUnknownSession(t *testing.T) {
	mockService := &MockQuoteUseCase{}
	handler := NewQuoteHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "token", Value: "nope"}}
	c.Request = httptest.NewRequest("GET", "/quotes/nope", nil)

	mockService.On("Get", "nope").Return(nil, quotes.ErrSessionNotFound)

	handler.get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuoteHandler_applyCouponRejected(t *testing.T) {
	mockService := &MockQuoteUseCase{}
	handler := NewQuoteHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "token", Value: "q1"}}
	body, _ := json.Marshal(applyCouponRequest{Code: "OLD"})
	c.Request = httptest.NewRequest("POST", "/quotes/q1/coupon", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("ApplyCoupon", c.Request.Context(), "q1", "OLD").
		Return(quoteView("q1"), &pricing.RejectionError{Message: "coupon has expired"})

	handler.applyCoupon(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "coupon has expired")
}

func TestQuoteHandler_applyCouponInFlight(t *testing.T) {
	mockService := &MockQuoteUseCase{}
	handler := NewQuoteHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "token", Value: "q1"}}
	body, _ := json.Marshal(applyCouponRequest{Code: "SAVE25"})
	c.Request = httptest.NewRequest("POST", "/quotes/q1/coupon", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("ApplyCoupon", c.Request.Context(), "q1", "SAVE25").
		Return(quoteView("q1"), pricing.ErrValidationInFlight)

	handler.applyCoupon(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestQuoteHandler_applyCouponNetworkFailure(t *testing.T) {
	mockService := &MockQuoteUseCase{}
	handler := NewQuoteHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "token", Value: "q1"}}
	body, _ := json.Marshal(applyCouponRequest{Code: "SAVE25"})
	c.Request = httptest.NewRequest("POST", "/quotes/q1/coupon", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("ApplyCoupon", c.Request.Context(), "q1", "SAVE25").
		Return(quoteView("q1"), pricing.ErrNetworkFailure)

	handler.applyCoupon(c)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestQuoteHandler_applyCouponSupersededIsOK(t *testing.T) {
	mockService := &MockQuoteUseCase{}
	handler := NewQuoteHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "token", Value: "q1"}}
	body, _ := json.Marshal(applyCouponRequest{Code: "SAVE25"})
	c.Request = httptest.NewRequest("POST", "/quotes/q1/coupon", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("ApplyCoupon", c.Request.Context(), "q1", "SAVE25").
		Return(quoteView("q1"), pricing.ErrSuperseded)

	handler.applyCoupon(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestQuoteHandler_removeCoupon(t *testing.T) {
	mockService := &MockQuoteUseCase{}
	handler := NewQuoteHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "token", Value: "q1"}}
	c.Request = httptest.NewRequest("DELETE", "/quotes/q1/coupon", nil)

	mockService.On("RemoveCoupon", "q1").Return(quoteView("q1"), nil)

	handler.removeCoupon(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestQuoteHandler_close(t *testing.T) {
	mockService := &MockQuoteUseCase{}
	handler := NewQuoteHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "token", Value: "q1"}}
	c.Request = httptest.NewRequest("DELETE", "/quotes/q1", nil)

	mockService.On("Close", "q1").Return(nil)

	handler.close(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockService.AssertExpectations(t)
}
