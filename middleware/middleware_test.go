package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestClerkAuthMiddleware_RejectsMissingOrMalformedHeader(t *testing.T) {
	h := ClerkAuthMiddleware(ok)

	for _, header := range []string{"", "Token abc", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/api/gamification/status", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "header %q", header)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		assert.Contains(t, rr.Body.String(), `"error"`)
	}
}

func TestGetClerkID(t *testing.T) {
	_, found := GetClerkID(context.Background())
	assert.False(t, found)

	_, found = GetClerkID(WithClerkID(context.Background(), ""))
	assert.False(t, found)

	id, found := GetClerkID(WithClerkID(context.Background(), "user_123"))
	assert.True(t, found)
	assert.Equal(t, "user_123", id)
}

func TestRateLimiter_PerIP(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	h := rl.Middleware(ok)

	status := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, status("1.1.1.1"))
	assert.Equal(t, http.StatusOK, status("1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, status("1.1.1.1"))
	assert.Equal(t, http.StatusOK, status("2.2.2.2"))
}

func TestRateLimiter_CleanupDropsIdleVisitors(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5, 30)
	rl.now = func() time.Time { return now }

	rl.limiter("1.1.1.1")
	now = now.Add(2 * time.Minute)
	rl.limiter("2.2.2.2")
	now = now.Add(2 * time.Minute)

	assert.Equal(t, 1, rl.Cleanup())
	_, kept := rl.visitors["2.2.2.2"]
	assert.True(t, kept)
}

func TestBasicAuthMiddleware(t *testing.T) {
	h := BasicAuthMiddleware("prom", "secret")(ok)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req.SetBasicAuth("prom", "secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	// unset credentials never match
	open := BasicAuthMiddleware("", "")(ok)
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("", "")
	rr = httptest.NewRecorder()
	open.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPprofSecurityMiddleware(t *testing.T) {
	h := PprofSecurityMiddleware("s3cret")(ok)

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req.Header.Set("X-Pprof-Secret", "s3cret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMonitorMiddleware_LabelsByRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(MonitorMiddleware)
	r.HandleFunc("/api/diet/program/{program_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := httpRequestsTotal.WithLabelValues("/api/diet/program/{program_id}", http.MethodGet, "404")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/diet/program/"+id, nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	}

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}
