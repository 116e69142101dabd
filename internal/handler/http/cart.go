package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ssnivlek/kelvo-ecomm/internal/domain"
	"github.com/ssnivlek/kelvo-ecomm/internal/service"
	"github.com/ssnivlek/kelvo-ecomm/pkg/httputil"
	"github.com/ssnivlek/kelvo-ecomm/pkg/logger"
)

// Messages returned alongside the cart after a successful mutation.
const (
	MessageItemAdded   = "Item added to cart"
	MessageCartUpdated = "Cart updated"
	MessageItemRemoved = "Item removed from cart"
	MessageCartCleared = "Cart cleared"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	carts   *service.CartService
	coupons *service.CouponService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(carts *service.CartService, coupons *service.CouponService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		carts:   carts,
		coupons: coupons,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding an item to the cart.
// productId may be sent as a string or a number.
type AddItemRequest struct {
	SessionID   string           `json:"sessionId" validate:"notblank"`
	ProductID   domain.ProductID `json:"productId" validate:"notblank"`
	ProductName string           `json:"productName" validate:"notblank,max=500"`
	Price       *float64         `json:"price" validate:"required,gte=0"`
	Quantity    int              `json:"quantity" validate:"gte=0"`
	ImageURL    string           `json:"imageUrl"`
}

// UpdateQuantityRequest is the JSON request body for setting an item's quantity.
type UpdateQuantityRequest struct {
	SessionID string           `json:"sessionId" validate:"notblank"`
	ProductID domain.ProductID `json:"productId" validate:"notblank"`
	Quantity  *int             `json:"quantity" validate:"required"`
}

// ApplyCouponRequest is the JSON request body for applying a coupon.
type ApplyCouponRequest struct {
	SessionID  string `json:"sessionId" validate:"notblank"`
	CouponCode string `json:"couponCode" validate:"notblank"`
}

// RemoveCouponRequest is the JSON request body for removing a coupon.
type RemoveCouponRequest struct {
	SessionID string `json:"sessionId" validate:"notblank"`
}

// --- Response DTOs ---

// MutationResponse wraps the recomputed cart after a change.
type MutationResponse struct {
	Cart    domain.Snapshot `json:"cart"`
	Message string          `json:"message"`
}

// --- Handlers ---

// GetCart handles GET /cart/{sessionId}
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionId"))
	ctx := withSession(r.Context(), sessionID)

	snap, err := h.carts.GetCart(ctx, sessionID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, snap)
}

// AddItem handles POST /cart/add
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	ctx := withSession(r.Context(), req.SessionID)

	snap, err := h.carts.AddItem(ctx, req.SessionID, service.AddItemInput{
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		Price:       *req.Price,
		Quantity:    req.Quantity,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MutationResponse{Cart: snap, Message: MessageItemAdded})
}

// UpdateQuantity handles PUT /cart/update
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	ctx := withSession(r.Context(), req.SessionID)

	snap, err := h.carts.UpdateQuantity(ctx, req.SessionID, req.ProductID, *req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MutationResponse{Cart: snap, Message: MessageCartUpdated})
}

// RemoveItem handles DELETE /cart/{sessionId}/item/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionId"))
	productID := domain.ProductID(chi.URLParam(r, "productId"))
	ctx := withSession(r.Context(), sessionID)

	snap, err := h.carts.RemoveItem(ctx, sessionID, productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MutationResponse{Cart: snap, Message: MessageItemRemoved})
}

// ClearCart handles DELETE /cart/{sessionId}
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionId"))
	ctx := withSession(r.Context(), sessionID)

	snap, err := h.carts.ClearCart(ctx, sessionID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MutationResponse{Cart: snap, Message: MessageCartCleared})
}

// ApplyCoupon handles POST /cart/apply-coupon
func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req ApplyCouponRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	ctx := withSession(r.Context(), req.SessionID)

	res, err := h.coupons.ApplyCoupon(ctx, req.SessionID, req.CouponCode)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MutationResponse{Cart: res.Cart, Message: res.Message})
}

// RemoveCoupon handles POST /cart/remove-coupon
func (h *CartHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	var req RemoveCouponRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	ctx := withSession(r.Context(), req.SessionID)

	res, err := h.coupons.RemoveCoupon(ctx, req.SessionID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MutationResponse{Cart: res.Cart, Message: res.Message})
}

// withSession tags ctx, and the request-scoped logger in it, with the cart
// session being operated on.
func withSession(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" || logger.SessionIDFromContext(ctx) == sessionID {
		return ctx
	}
	ctx = logger.WithSessionID(ctx, sessionID)
	l := logger.FromContext(ctx).With(slog.String("session_id", sessionID))
	return logger.NewContext(ctx, l)
}
