package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/freshfield/cleanbooking/internal/pricing"
	"github.com/freshfield/cleanbooking/internal/service/quotes"
)

type QuoteUseCase interface {
	Create(ctx context.Context, customerEmail string) (*quotes.QuoteView, error)
	Get(token string) (*quotes.QuoteView, error)
	SetQuantity(token, itemID string, qty int) (*quotes.QuoteView, error)
	SetPreference(token, prefID string, checked bool, value string) (*quotes.QuoteView, error)
	ApplyCoupon(ctx context.Context, token, code string) (*quotes.QuoteView, error)
	RemoveCoupon(token string) (*quotes.QuoteView, error)
	Close(token string) error
}

type QuoteHandler struct {
	service QuoteUseCase
}

type createQuoteRequest struct {
	CustomerEmail string `json:"customer_email"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type setPreferenceRequest struct {
	Checked bool   `json:"checked"`
	Value   string `json:"value"`
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

func NewQuoteHandler(service QuoteUseCase) *QuoteHandler {
	return &QuoteHandler{service: service}
}

func (h *QuoteHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/:token", h.get)
	router.PATCH("/:token/items/:id", h.setQuantity)
	router.PATCH("/:token/preferences/:id", h.setPreference)
	router.POST("/:token/coupon", h.applyCoupon)
	router.DELETE("/:token/coupon", h.removeCoupon)
	router.DELETE("/:token", h.close)
}

func (h *QuoteHandler) create(c *gin.Context) {
	var req createQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.service.Create(c.Request.Context(), req.CustomerEmail)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *QuoteHandler) get(c *gin.Context) {
	view, err := h.service.Get(c.Param("token"))
	if err != nil {
		h.renderError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *QuoteHandler) setQuantity(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.service.SetQuantity(c.Param("token"), c.Param("id"), req.Quantity)
	if err != nil {
		h.renderError(c, err, view)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *QuoteHandler) setPreference(c *gin.Context) {
	var req setPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.service.SetPreference(c.Param("token"), c.Param("id"), req.Checked, req.Value)
	if err != nil {
		h.renderError(c, err, view)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *QuoteHandler) applyCoupon(c *gin.Context) {
	var req applyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.service.ApplyCoupon(c.Request.Context(), c.Param("token"), req.Code)
	if err != nil {
		h.renderError(c, err, view)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *QuoteHandler) removeCoupon(c *gin.Context) {
	view, err := h.service.RemoveCoupon(c.Param("token"))
	if err != nil {
		h.renderError(c, err, view)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *QuoteHandler) close(c *gin.Context) {
	if err := h.service.Close(c.Param("token")); err != nil {
		h.renderError(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// renderError maps the pricing error taxonomy onto HTTP statuses. A
// superseded validation is not an error for the caller: the current state
// comes back as a 200.
func (h *QuoteHandler) renderError(c *gin.Context, err error, view *quotes.QuoteView) {
	var rejection *pricing.RejectionError
	switch {
	case errors.Is(err, quotes.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, pricing.ErrSuperseded):
		c.JSON(http.StatusOK, view)
	case errors.Is(err, pricing.ErrValidationInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "a coupon validation is already in progress"})
	case errors.Is(err, pricing.ErrNetworkFailure):
		c.JSON(http.StatusBadGateway, gin.H{"error": "coupon validation unavailable"})
	case errors.As(err, &rejection):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": rejection.Message, "quote": view})
	case errors.Is(err, pricing.ErrUnknownItem), errors.Is(err, pricing.ErrUnknownPreference):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
