// Package requesttime stamps each request with one "now" so every value
// derived while serving it agrees on the time.
package requesttime

import (
	"net/http"
	"time"

	"skrining/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
