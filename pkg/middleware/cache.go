package middleware

import "net/http"

// NoStore marks every response as uncacheable. Cart snapshots change on each
// mutation and are scoped to one session.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
