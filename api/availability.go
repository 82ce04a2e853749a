package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/freshfield/cleanbooking/internal/service/booking"
)

type AvailabilityHandler struct {
	service booking.BookingUseCase
}

func NewAvailabilityHandler(service booking.BookingUseCase) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

func (h *AvailabilityHandler) Register(router *gin.RouterGroup) {
	router.GET("/availability", h.check)
}

func (h *AvailabilityHandler) check(c *gin.Context) {
	slot, err := time.Parse(time.RFC3339, c.Query("slot"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slot must be an RFC3339 timestamp"})
		return
	}

	availability, err := h.service.CheckAvailability(c.Request.Context(), slot)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, availability)
}
