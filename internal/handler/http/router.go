package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ssnivlek/kelvo-ecomm/internal/coupon"
	"github.com/ssnivlek/kelvo-ecomm/internal/service"
	"github.com/ssnivlek/kelvo-ecomm/pkg/health"
	"github.com/ssnivlek/kelvo-ecomm/pkg/middleware"
)

// ServiceName labels metrics and spans emitted by the router.
const ServiceName = "cart"

// CartPrefixes are the mount points of the cart API. /api/cart is the path
// the storefront frontend calls through its proxy.
var CartPrefixes = []string{"/cart", "/api/cart"}

// RouterConfig holds the HTTP policies applied by NewRouter.
type RouterConfig struct {
	CORS middleware.CORSConfig

	// CouponRateLimit guards the coupon endpoints against code guessing.
	CouponRateLimit middleware.RateLimitConfig
}

// DefaultRouterConfig allows every origin and does not rate limit.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{CORS: middleware.DefaultCORSConfig()}
}

// NewRouter creates a chi router with all cart service routes registered.
func NewRouter(
	carts *service.CartService,
	coupons *service.CouponService,
	validator coupon.Validator,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.Identity)
	r.Use(middleware.RequestLogger(logger))

	r.NotFound(notFound)

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", middleware.MetricsHandler())

	couponLimit := middleware.RateLimit(cfg.CouponRateLimit, logger)

	cartHandler := NewCartHandler(carts, coupons, logger)
	for _, prefix := range CartPrefixes {
		r.Route(prefix, func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Use(middleware.NoStore)

			r.Post("/add", cartHandler.AddItem)
			r.Put("/update", cartHandler.UpdateQuantity)
			r.With(couponLimit).Post("/apply-coupon", cartHandler.ApplyCoupon)
			r.Post("/remove-coupon", cartHandler.RemoveCoupon)

			r.Get("/{sessionId}", cartHandler.GetCart)
			r.Delete("/{sessionId}", cartHandler.ClearCart)
			r.Delete("/{sessionId}/item/{productId}", cartHandler.RemoveItem)
		})
	}

	couponHandler := NewCouponHandler(validator, logger)
	r.With(ContentTypeJSON, couponLimit).Post("/coupons/validate", couponHandler.Validate)

	return r
}
