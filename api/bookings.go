package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/freshfield/cleanbooking/internal/domain"
	"github.com/freshfield/cleanbooking/internal/pricing"
	"github.com/freshfield/cleanbooking/internal/service/booking"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type bookingResponse struct {
	Token      string `json:"token"`
	Status     string `json:"status"`
	Email      string `json:"email"`
	Address    string `json:"address,omitempty"`
	SlotStart  string `json:"slot_start"`
	Subtotal   string `json:"subtotal"`
	Discount   string `json:"discount"`
	Total      string `json:"total"`
	CouponCode string `json:"coupon_code,omitempty"`
	ExpiresAt  string `json:"expires_at"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/:token", h.get)
	router.PUT("/:token", h.confirm)
	router.DELETE("/:token", h.cancel)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req booking.CreateBookingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.service.CreateBooking(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrSlotHeld), errors.Is(err, booking.ErrSlotFull):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, booking.ErrCouponRejected):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, toBookingResponse(created))
}

func (h *BookingHandler) get(c *gin.Context) {
	found, err := h.service.GetBooking(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(found))
}

func (h *BookingHandler) confirm(c *gin.Context) {
	updated, err := h.service.ConfirmBooking(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(updated))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	updated, err := h.service.CancelBooking(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(updated))
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		Token:      b.Token,
		Status:     string(b.Status),
		Email:      b.Email,
		Address:    b.Address,
		SlotStart:  b.SlotStart.Format(time.RFC3339),
		Subtotal:   pricing.FormatUSD(b.SubtotalCents),
		Discount:   pricing.FormatUSD(b.DiscountCents),
		Total:      pricing.FormatUSD(b.TotalCents),
		CouponCode: b.CouponCode,
		ExpiresAt:  b.ExpiresAt.Format(time.RFC3339),
	}
}
