package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/freshfield/cleanbooking/internal/pricing"
	"github.com/freshfield/cleanbooking/internal/service/coupons"
)

// CouponValidator is what the validation endpoint needs from the coupon
// service.
type CouponValidator interface {
	Validate(ctx context.Context, input coupons.ValidateInput) (*coupons.Validation, error)
}

type CouponHandler struct {
	service CouponValidator
}

// Amounts cross this boundary in dollars; everything behind it is cents.
type validateCouponRequest struct {
	Code          string  `json:"code"`
	Subtotal      float64 `json:"subtotal"`
	CustomerEmail string  `json:"customer_email"`
}

type validateCouponResponse struct {
	Valid             bool    `json:"valid"`
	DiscountAmount    float64 `json:"discount_amount"`
	Message           string  `json:"message"`
	FormattedDiscount string  `json:"formatted_discount"`
}

func NewCouponHandler(service CouponValidator) *CouponHandler {
	return &CouponHandler{service: service}
}

func (h *CouponHandler) Register(router *gin.RouterGroup) {
	router.POST("/coupons/validate", h.validate)
}

// validate resolves a code against the redemption rules. Business rejections
// are a 200 with valid=false; only backend failures surface as errors.
func (h *CouponHandler) validate(c *gin.Context) {
	var req validateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Validate(c.Request.Context(), coupons.ValidateInput{
		Code:          req.Code,
		SubtotalCents: pricing.DollarsToCents(req.Subtotal),
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "coupon validation unavailable"})
		return
	}

	c.JSON(http.StatusOK, validateCouponResponse{
		Valid:             result.Valid,
		DiscountAmount:    pricing.CentsToDollars(result.DiscountCents),
		Message:           result.Message,
		FormattedDiscount: result.FormattedDiscount,
	})
}
