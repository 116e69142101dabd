package service

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ssnivlek/kelvo-ecomm/pkg/tracing"
)

const tracerName = "github.com/ssnivlek/kelvo-ecomm/internal/service"

var (
	cartOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_operations_total",
			Help: "Cart operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	couponApplicationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_coupon_applications_total",
			Help: "Coupon application attempts by result",
		},
		[]string{"result"},
	)
)

// Coupon application results.
const (
	couponApplied       = "applied"
	couponEmptyCart     = "empty_cart"
	couponInvalid       = "invalid"
	couponUpstreamError = "upstream_error"
	couponStoreError    = "store_error"
)

func recordOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	cartOperationsTotal.WithLabelValues(operation, result).Inc()
}

func startSpan(ctx context.Context, name, sessionID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("cart.session_id", sessionID))
	return tracing.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
