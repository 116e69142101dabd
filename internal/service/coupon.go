package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ssnivlek/kelvo-ecomm/internal/coupon"
	"github.com/ssnivlek/kelvo-ecomm/internal/domain"
	"github.com/ssnivlek/kelvo-ecomm/internal/event"
	"github.com/ssnivlek/kelvo-ecomm/internal/repository"
	apperrors "github.com/ssnivlek/kelvo-ecomm/pkg/errors"
	"github.com/ssnivlek/kelvo-ecomm/pkg/tracing"
)

// CouponResult is the outcome of a coupon operation: the recomputed cart and
// a message for the shopper.
type CouponResult struct {
	Cart    domain.Snapshot
	Message string
}

// CouponService applies and removes coupons on a session's cart.
type CouponService struct {
	repo      repository.CartRepository
	validator coupon.Validator
	events    event.Publisher
	logger    *slog.Logger
}

// NewCouponService creates a new coupon service.
func NewCouponService(repo repository.CartRepository, validator coupon.Validator, events event.Publisher, logger *slog.Logger) *CouponService {
	if events == nil {
		events = event.NopPublisher{}
	}
	return &CouponService{
		repo:      repo,
		validator: validator,
		events:    events,
		logger:    logger,
	}
}

// ApplyCoupon validates code and records it as the cart's discount. An empty
// cart is rejected before the validator is consulted. A failed validation
// leaves the stored cart unchanged.
func (s *CouponService) ApplyCoupon(ctx context.Context, sessionID, code string) (result *CouponResult, err error) {
	code = domain.CanonicalCouponCode(code)
	ctx, span := startSpan(ctx, "cart.applyCoupon", sessionID, attribute.String("coupon.code", code))
	defer span.End()
	defer func() { recordOperation("apply_coupon", err) }()

	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}
	if code == "" {
		return nil, apperrors.InvalidInput("coupon code is required")
	}

	cart, err := getOrCreateCart(ctx, s.repo, sessionID)
	if err != nil {
		couponApplicationsTotal.WithLabelValues(couponStoreError).Inc()
		tracing.RecordError(span, err, "CartStoreFailure")
		return nil, err
	}
	if cart.IsEmpty() {
		couponApplicationsTotal.WithLabelValues(couponEmptyCart).Inc()
		return nil, apperrors.InvalidInput("cart is empty")
	}

	cp, err := s.validator.Validate(ctx, code)
	if err != nil {
		return nil, s.validationFailure(ctx, span, sessionID, code, err)
	}

	cart.ApplyCoupon(cp)
	if err := s.repo.Save(ctx, cart); err != nil {
		couponApplicationsTotal.WithLabelValues(couponStoreError).Inc()
		tracing.RecordError(span, err, "CartStoreFailure")
		return nil, fmt.Errorf("save cart: %w", err)
	}
	couponApplicationsTotal.WithLabelValues(couponApplied).Inc()
	span.SetAttributes(attribute.Float64("coupon.discount_percent", cp.DiscountPercent))

	if err := s.events.PublishCouponApplied(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.coupon_applied event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "coupon applied",
		slog.String("session_id", sessionID),
		slog.String("coupon_code", cp.Code),
		slog.Float64("discount_percent", cp.DiscountPercent),
	)

	return &CouponResult{
		Cart:    cart.Snapshot(),
		Message: "Coupon applied: " + cp.Label,
	}, nil
}

// RemoveCoupon clears any coupon on the cart. Removing from a cart without a
// coupon succeeds with the same result.
func (s *CouponService) RemoveCoupon(ctx context.Context, sessionID string) (result *CouponResult, err error) {
	ctx, span := startSpan(ctx, "cart.removeCoupon", sessionID)
	defer span.End()
	defer func() { recordOperation("remove_coupon", err) }()

	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}

	cart, err := getOrCreateCart(ctx, s.repo, sessionID)
	if err != nil {
		tracing.RecordError(span, err, "CartStoreFailure")
		return nil, err
	}

	previous := cart.Coupon
	cart.ClearCoupon()
	if err := s.repo.Save(ctx, cart); err != nil {
		tracing.RecordError(span, err, "CartStoreFailure")
		return nil, fmt.Errorf("save cart: %w", err)
	}

	if previous != "" {
		if err := s.events.PublishCouponRemoved(ctx, sessionID, previous); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish cart.coupon_removed event",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
		s.logger.InfoContext(ctx, "coupon removed",
			slog.String("session_id", sessionID),
			slog.String("coupon_code", previous),
		)
	}

	return &CouponResult{
		Cart:    cart.Snapshot(),
		Message: "Coupon removed",
	}, nil
}

// validationFailure classifies a validator error. Unknown codes pass through;
// anything else becomes an upstream failure with a generic message.
func (s *CouponService) validationFailure(ctx context.Context, span trace.Span, sessionID, code string, err error) error {
	if errors.Is(err, apperrors.ErrInvalidCoupon) {
		couponApplicationsTotal.WithLabelValues(couponInvalid).Inc()
		tracing.RecordError(span, err, "InvalidCoupon")
		s.logger.InfoContext(ctx, "coupon rejected",
			slog.String("session_id", sessionID),
			slog.String("coupon_code", code),
		)
		return err
	}

	couponApplicationsTotal.WithLabelValues(couponUpstreamError).Inc()
	tracing.RecordError(span, err, "CouponValidationFailure")
	s.logger.ErrorContext(ctx, "coupon validation failed",
		slog.String("session_id", sessionID),
		slog.String("coupon_code", code),
		slog.String("error", err.Error()),
	)
	if errors.Is(err, apperrors.ErrUpstream) {
		return err
	}
	return apperrors.UpstreamFailure("coupon-validator", err)
}
