package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"kuruma/internal/platform/metrics"
	"kuruma/pkg/platform/httputil"
	"kuruma/pkg/platform/middleware/requestid"
	"kuruma/pkg/requestcontext"
	"kuruma/pkg/testutil"
)

type probeRoutes struct{}

func (probeRoutes) Register(r chi.Router) {
	r.Get("/probe", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"request_id": requestcontext.RequestID(ctx),
			"language":   requestcontext.Language(ctx).String(),
			"year":       requestcontext.Now(ctx).Year(),
			"zone":       requestcontext.Now(ctx).Location().String(),
		})
	})
	r.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })
}

func newTestRouter(checks map[string]HealthCheck) http.Handler {
	return newTestRouterWith(checks, nil)
}

func newTestRouterWith(checks map[string]HealthCheck, limit func(http.Handler) http.Handler) http.Handler {
	reg := prometheus.NewRegistry()
	tokyo, _ := time.LoadLocation("Asia/Tokyo")
	return NewRouter(Dependencies{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Location:  tokyo,
		Metrics:   metrics.NewWithRegisterer(reg),
		Gatherer:  reg,
		Checks:    checks,
		Routes:    []Registrar{probeRoutes{}},
		RateLimit: limit,
	})
}

func TestRouter(t *testing.T) {
	testutil.Given(t, "a router with a probe route", func(t *testing.T) {
		router := newTestRouter(nil)

		testutil.When(t, "a request arrives with Accept-Language ja", func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodGet, "/probe")
			req.Header.Set("Accept-Language", "ja-JP")
			req.Header.Set(requestid.Header, "req-123")
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "request context is populated by middleware", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				body := testutil.UnmarshalResponse[map[string]any](t, rr)
				assert.Equal(t, "req-123", (*body)["request_id"])
				assert.Equal(t, language.Japanese.String(), (*body)["language"])
				assert.Equal(t, "Asia/Tokyo", (*body)["zone"])
				assert.Equal(t, "req-123", rr.Header().Get(requestid.Header))
			})
			testutil.And(t, "a header-derived language is not persisted", func(t *testing.T) {
				assert.Empty(t, rr.Header().Get("Set-Cookie"))
			})
		})

		testutil.When(t, "a handler panics", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/panic"))

			testutil.Then(t, "the client gets an internal error", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusInternalServerError, "internal_error")
			})
		})

		testutil.When(t, "metrics are scraped", func(t *testing.T) {
			testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/probe"))
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))

			testutil.Then(t, "route latency is exported", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				assert.Contains(t, string(testutil.ReadBody(t, rr)), `route="/probe"`)
			})
		})
	})
}

func TestHealthz(t *testing.T) {
	testutil.Given(t, "healthy dependencies", func(t *testing.T) {
		router := newTestRouter(map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
		})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))

		testutil.Then(t, "status is ok", func(t *testing.T) {
			testutil.AssertStatusOK(t, rr)
			body := testutil.UnmarshalResponse[healthResponse](t, rr)
			assert.Equal(t, "ok", body.Status)
			assert.Equal(t, "up", body.Checks["postgres"])
		})
	})

	testutil.Given(t, "a failing dependency", func(t *testing.T) {
		router := newTestRouter(map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))

		testutil.Then(t, "status is degraded", func(t *testing.T) {
			testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
			body := testutil.UnmarshalResponse[healthResponse](t, rr)
			assert.Equal(t, "degraded", body.Status)
			assert.Equal(t, "down", body.Checks["redis"])
			assert.Equal(t, "up", body.Checks["postgres"])
		})
	})
}

func TestRateLimitSkipsOperationalRoutes(t *testing.T) {
	testutil.Given(t, "a limiter that rejects everything", func(t *testing.T) {
		reject := func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			})
		}
		router := newTestRouterWith(nil, reject)

		testutil.Then(t, "feature routes are limited", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/probe"))
			testutil.AssertStatus(t, rr, http.StatusTooManyRequests)
		})
		testutil.Then(t, "health and metrics are not", func(t *testing.T) {
			testutil.AssertStatusOK(t, testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz")))
			testutil.AssertStatusOK(t, testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics")))
		})
	})
}
