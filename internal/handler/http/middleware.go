package http

import (
	"net/http"
	"strings"

	apperrors "github.com/ssnivlek/kelvo-ecomm/pkg/errors"
	"github.com/ssnivlek/kelvo-ecomm/pkg/httputil"
)

// ContentTypeJSON rejects request bodies that declare a non-JSON content
// type. A missing Content-Type is accepted; the storefront client omits it on
// some calls.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.ErrorEnvelope{
					Error: &httputil.ErrorResponse{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Message: "Content-Type must be application/json",
					},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// notFound answers unknown routes with the standard error envelope.
func notFound(w http.ResponseWriter, r *http.Request) {
	httputil.WriteError(w, r, apperrors.NotFound("route", r.Method+" "+r.URL.Path), nil)
}
