package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/ssnivlek/kelvo-ecomm/pkg/errors"
	"github.com/ssnivlek/kelvo-ecomm/pkg/logger"
	"github.com/ssnivlek/kelvo-ecomm/pkg/validator"
)

// ErrorEnvelope is the JSON body written for every failed request.
type ErrorEnvelope struct {
	Error *ErrorResponse `json:"error"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// retryAfterSeconds is advertised on transient dependency failures.
const retryAfterSeconds = "1"

// WriteError maps err onto a status code and the error envelope. AppErrors
// keep their code and user-facing message, validation failures carry their
// field errors, and anything else becomes a generic 500. Every 5xx is logged
// with its full cause; the cause itself never reaches the response body.
// Transient upstream failures log at warn and carry a Retry-After hint.
//
// The request-scoped logger from context (set by the RequestLogger
// middleware) is preferred over fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	requestID := logger.CorrelationIDFromContext(r.Context())

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, ErrorEnvelope{
			Error: &ErrorResponse{
				Code:      "VALIDATION_ERROR",
				Message:   valErr.Error(),
				Fields:    valErr.Fields(),
				RequestID: requestID,
			},
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	resp := &ErrorResponse{RequestID: requestID}

	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		resp.Code = appErr.Code
		resp.Message = appErr.Message
	case errors.Is(err, apperrors.ErrNotFound):
		resp.Code, resp.Message = "NOT_FOUND", "resource not found"
	case errors.Is(err, apperrors.ErrInvalidInput):
		resp.Code, resp.Message = "INVALID_INPUT", err.Error()
	case errors.Is(err, apperrors.ErrInvalidCoupon):
		resp.Code, resp.Message = "INVALID_COUPON", "invalid coupon code"
	case errors.Is(err, apperrors.ErrUpstream):
		resp.Code, resp.Message = "UPSTREAM_FAILURE", "could not apply coupon code"
	case errors.Is(err, apperrors.ErrServiceUnavail):
		resp.Code, resp.Message = "SERVICE_UNAVAILABLE", "service temporarily unavailable"
	default:
		resp.Code, resp.Message = "INTERNAL_ERROR", "an internal error occurred"
	}

	if status >= http.StatusInternalServerError {
		level := slog.LevelError
		if apperrors.IsTransient(err) {
			level = slog.LevelWarn
			w.Header().Set("Retry-After", retryAfterSeconds)
		}
		l.Log(r.Context(), level, "request failed",
			slog.String("error", err.Error()),
			slog.String("code", resp.Code),
			slog.Int("status", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, ErrorEnvelope{Error: resp})
}

// DecodeJSON decodes the request body into dst and validates it. Errors are
// returned ready for WriteError: malformed bodies become InvalidInput and
// failed constraints a *validator.ValidationError.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return apperrors.InvalidInput("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.InvalidInput("invalid request body: " + err.Error())
	}
	return validator.Validate(dst)
}
