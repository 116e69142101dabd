package coupon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ssnivlek/kelvo-ecomm/internal/domain"
	apperrors "github.com/ssnivlek/kelvo-ecomm/pkg/errors"
	"github.com/ssnivlek/kelvo-ecomm/pkg/httpclient"
)

// ValidatePath is the default collaborator endpoint that resolves a coupon
// code. The original payment service serves it at /api/payment/validate-coupon.
const ValidatePath = "/coupons/validate"

// ValidateRequest is the body sent to the collaborator.
type ValidateRequest struct {
	CouponCode string `json:"couponCode"`
}

// ValidateResponse is the collaborator's answer for a known code.
type ValidateResponse struct {
	Code            string  `json:"code,omitempty"`
	DiscountPercent float64 `json:"discountPercent"`
	Label           string  `json:"label"`
	FreeShipping    bool    `json:"freeShipping"`
}

// RemoteConfig configures a RemoteValidator.
type RemoteConfig struct {
	// Upstream names the collaborator in logs and errors.
	Upstream string
	BaseURL  string
	// ValidatePath is appended to BaseURL. Empty means ValidatePath.
	ValidatePath string
	// MaxRetries is the retry budget of the underlying client, reported in
	// logs when the collaborator keeps failing.
	MaxRetries int
}

// RemoteValidator asks an HTTP collaborator whether a code is valid. A 400 or
// 422 answer, or any 4xx whose error envelope carries INVALID_COUPON, means
// the code is unknown. Every other non-2xx answer (404 from a wrong route,
// 408, 429, 5xx) and any transport failure is an upstream failure.
type RemoteValidator struct {
	client httpclient.Doer
	cfg    RemoteConfig
	logger *slog.Logger
}

var _ Validator = (*RemoteValidator)(nil)

// NewRemoteValidator creates a validator that sends requests through client,
// normally a *httpclient.CircuitBreakerClient wrapping a retrying client.
func NewRemoteValidator(client httpclient.Doer, cfg RemoteConfig, logger *slog.Logger) *RemoteValidator {
	if cfg.Upstream == "" {
		cfg.Upstream = "coupon-service"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ValidatePath == "" {
		cfg.ValidatePath = ValidatePath
	}
	if !strings.HasPrefix(cfg.ValidatePath, "/") {
		cfg.ValidatePath = "/" + cfg.ValidatePath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteValidator{client: client, cfg: cfg, logger: logger}
}

// Validate resolves code against the collaborator.
func (v *RemoteValidator) Validate(ctx context.Context, code string) (domain.Coupon, error) {
	code = domain.CanonicalCouponCode(code)

	body, err := json.Marshal(ValidateRequest{CouponCode: code})
	if err != nil {
		return domain.Coupon{}, apperrors.Internal(fmt.Errorf("marshal coupon request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.BaseURL+v.cfg.ValidatePath, bytes.NewReader(body))
	if err != nil {
		return domain.Coupon{}, apperrors.Internal(fmt.Errorf("create coupon request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(ctx, req)
	if err != nil {
		return domain.Coupon{}, v.upstreamFailure(ctx, code, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return v.decode(ctx, code, resp)
	}

	cause := httpclient.ParseResponseError(resp, v.cfg.Upstream)
	if !rejectsCode(resp.StatusCode, cause) {
		return domain.Coupon{}, v.upstreamFailure(ctx, code, cause)
	}
	v.logger.DebugContext(ctx, "coupon rejected by upstream",
		slog.String("upstream", v.cfg.Upstream),
		slog.String("coupon_code", code),
		slog.Int("status", resp.StatusCode),
		slog.String("reason", cause.Error()),
	)
	return domain.Coupon{}, apperrors.InvalidCoupon(code)
}

// rejectsCode reports whether a non-2xx answer is a verdict on the code
// rather than a failure to reach one.
func rejectsCode(status int, cause error) bool {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return true
	case httpclient.IsClientError(status):
		return errors.Is(cause, apperrors.ErrInvalidCoupon)
	default:
		return false
	}
}

func (v *RemoteValidator) decode(ctx context.Context, code string, resp *http.Response) (domain.Coupon, error) {
	defer func() { _ = resp.Body.Close() }()

	var out ValidateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Coupon{}, v.upstreamFailure(ctx, code, fmt.Errorf("decode coupon response: %w", err))
	}

	c := domain.Coupon{
		Code:            code,
		DiscountPercent: out.DiscountPercent,
		Label:           out.Label,
		FreeShipping:    out.FreeShipping,
	}
	if err := c.Validate(); err != nil {
		return domain.Coupon{}, v.upstreamFailure(ctx, code, fmt.Errorf("malformed coupon response: %w", err))
	}
	return c, nil
}

func (v *RemoteValidator) upstreamFailure(ctx context.Context, code string, cause error) error {
	attempts := httpclient.Attempts(cause)
	var se *httpclient.StatusError
	if attempts == 0 && errors.As(cause, &se) {
		attempts = v.cfg.MaxRetries + 1
	}

	v.logger.ErrorContext(ctx, "coupon validation upstream failure",
		slog.String("upstream", v.cfg.Upstream),
		slog.String("coupon_code", code),
		slog.Int("attempts", attempts),
		slog.Int("max_retries", v.cfg.MaxRetries),
		slog.Bool("circuit_open", errors.Is(cause, httpclient.ErrCircuitOpen)),
		slog.String("error", cause.Error()),
	)
	return apperrors.UpstreamFailure(v.cfg.Upstream, cause)
}
