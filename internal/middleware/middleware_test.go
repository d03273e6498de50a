package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bryanwahyu/x402guard/internal/log"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("hello"))
}

func TestRequestIDAndLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	var ctxLogger *zap.Logger
	h := RequestID(Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger = log.FromContext(r.Context())
		okHandler(w, r)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tiers", nil))

	id := rec.Header().Get(HeaderRequestID)
	assert.Len(t, id, 36)
	require.NotNil(t, ctxLogger)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, id, fields["request_id"])
	assert.Equal(t, int64(http.StatusAccepted), fields["status"])
	assert.Equal(t, int64(5), fields["bytes"])
	assert.Equal(t, "/api/tiers", fields["path"])

	// id dari client dipakai ulang
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rl := NewRateLimiter(1, 2)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"), "burst exhausted")
	assert.True(t, rl.Allow("b"), "keys are independent")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"), "refilled after one second")

	now = now.Add(11 * time.Minute)
	rl.Allow("c")
	assert.Equal(t, 2, rl.Cleanup(10*time.Minute))
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	h := rl.Middleware(http.HandlerFunc(okHandler))

	call := func(method string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/api/audit/quick", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusAccepted, call(http.MethodPost).Code)
	rec := call(http.MethodPost)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded, please try again later"}`, rec.Body.String())
	assert.Equal(t, http.StatusAccepted, call(http.MethodOptions).Code, "preflight is never limited")

	disabled := NewRateLimiter(0, 0).Middleware(http.HandlerFunc(okHandler))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		disabled.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusAccepted, rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	mux := chi.NewRouter()
	mux.Use(m.Middleware)
	mux.Post("/api/audit/{tier}", okHandler)
	mux.Handle("/metrics", m.Handler())

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/audit/quick", nil))
	m.ObserveAudit("quick", http.StatusPaymentRequired)
	m.ObserveUpstreamError()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	assert.Contains(t, out, `x402guard_http_requests_total{method="POST",route="/api/audit/{tier}",status="202"} 1`)
	assert.Contains(t, out, `x402guard_audit_proxy_total{status="402",tier="quick"} 1`)
	assert.Contains(t, out, `x402guard_audit_upstream_errors_total 1`)
}

func TestReadinessHandler(t *testing.T) {
	checkers := map[string]HealthChecker{
		"upstream": CheckerFunc(func(context.Context) error { return nil }),
	}
	rec := httptest.NewRecorder()
	ReadinessHandler(checkers)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	checkers["upstream"] = CheckerFunc(func(context.Context) error { return errors.New("down") })
	rec = httptest.NewRecorder()
	ReadinessHandler(checkers)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "unavailable", status.Status)
	assert.Equal(t, CheckStatus{Status: "unhealthy", Message: "down"}, status.Checks["upstream"])
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"status":"ok"`))
}
