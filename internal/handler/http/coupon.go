package http

import (
	"log/slog"
	"net/http"

	"github.com/ssnivlek/kelvo-ecomm/internal/coupon"
	"github.com/ssnivlek/kelvo-ecomm/pkg/httputil"
)

// ValidateCouponRequest is the JSON request body for POST /coupons/validate.
type ValidateCouponRequest struct {
	CouponCode string `json:"couponCode" validate:"notblank"`
}

// CouponHandler serves coupon lookups to other services.
type CouponHandler struct {
	validator coupon.Validator
	logger    *slog.Logger
}

// NewCouponHandler creates a new coupon HTTP handler.
func NewCouponHandler(v coupon.Validator, logger *slog.Logger) *CouponHandler {
	return &CouponHandler{validator: v, logger: logger}
}

// Validate handles POST /coupons/validate
func (h *CouponHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateCouponRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	c, err := h.validator.Validate(r.Context(), req.CouponCode)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, coupon.ValidateResponse{
		Code:            c.Code,
		DiscountPercent: c.DiscountPercent,
		Label:           c.Label,
		FreeShipping:    c.FreeShipping,
	})
}
