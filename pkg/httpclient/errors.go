package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/ssnivlek/kelvo-ecomm/pkg/errors"
)

// StatusError reports a response whose status the caller treats as a failure.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server error %d", e.StatusCode)
	}
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Body)
}

// downstreamError accepts both the structured envelope
// {"error":{"code","message"}} and the flat {"error":"message"} form.
type downstreamError struct {
	Error json.RawMessage `json:"error"`
}

type structuredError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an AppError named after serviceName. The body is fully consumed and
// closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	code, message := "", ""
	var env downstreamError
	if json.Unmarshal(bodyBytes, &env) == nil && len(env.Error) > 0 {
		var se structuredError
		var flat string
		switch {
		case json.Unmarshal(env.Error, &se) == nil:
			code, message = se.Code, se.Message
		case json.Unmarshal(env.Error, &flat) == nil:
			message = flat
		}
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return mapDownstreamError(resp.StatusCode, code, message, serviceName)
}

// mapDownstreamError translates a downstream status and error code into an
// AppError with the same semantics in this service. The downstream code and
// message are kept verbatim so they can be shown to the user; serviceName
// only qualifies the wrapped cause.
func mapDownstreamError(status int, code, message, serviceName string) error {
	switch {
	case code == "INVALID_COUPON":
		return downstream(http.StatusBadRequest, code, message, serviceName, apperrors.ErrInvalidCoupon)
	case status == http.StatusNotFound:
		return downstream(status, orDefault(code, "NOT_FOUND"), message, serviceName, apperrors.ErrNotFound)
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return downstream(status, orDefault(code, "INVALID_INPUT"), message, serviceName, apperrors.ErrInvalidInput)
	case status == http.StatusConflict:
		return downstream(status, orDefault(code, "CONFLICT"), message, serviceName, apperrors.ErrConflict)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return downstream(status, orDefault(code, "UNAUTHORIZED"), message, serviceName, apperrors.ErrUnauthorized)
	case status >= http.StatusInternalServerError:
		return apperrors.UpstreamFailure(serviceName, &StatusError{StatusCode: status, Body: message})
	default:
		return &apperrors.AppError{
			Code:    orDefault(code, "DOWNSTREAM_ERROR"),
			Message: message,
			Status:  status,
			Err:     fmt.Errorf("%s returned status %d", serviceName, status),
		}
	}
}

func downstream(status int, code, message, serviceName string, sentinel error) *apperrors.AppError {
	return &apperrors.AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     fmt.Errorf("%s: %w", serviceName, sentinel),
	}
}

func orDefault(code, fallback string) string {
	if code == "" {
		return fallback
	}
	return code
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
