// Package requesttime pins a single "now" per HTTP request so every
// evaluation in that request sees the same year boundary.
package requesttime

import (
	"net/http"
	"time"

	"kuruma/pkg/requestcontext"
)

// Clock returns the current time; tests replace it.
type Clock func() time.Time

// Middleware captures the request time using time.Now in loc.
func Middleware(loc *time.Location) func(http.Handler) http.Handler {
	return WithClock(func() time.Time { return time.Now().In(loc) })
}

// WithClock captures the request time from clock.
func WithClock(clock Clock) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clock())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
