package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harentsoaR/diagnosia-api/internal/config"
)

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t, false)

	rec := api.json(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"status":"ok"}}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = api.json(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "diagnosia_http_requests_total")
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t, false)
	rec := api.json(http.MethodGet, "/api/v1/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Ruta no encontrada"}`, rec.Body.String())
}

// loginsAllowed sends n logins from one peer, each with a fresh X-Forwarded-For,
// and counts the ones the limiter let through.
func loginsAllowed(t *testing.T, proxies []string, n int) int {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	api := newTestAPIWith(t, false, func(d *RouterDeps) {
		d.Redis = rdb
		d.TrustedProxies = proxies
		d.RateLimit = config.RateLimitConfig{
			Enabled:        true,
			Capacity:       2,
			RefillTokens:   1,
			RefillInterval: time.Minute,
			TTL:            10 * time.Minute,
			Prefix:         "rl",
		}
	})

	allowed := 0
	for i := 0; i < n; i++ {
		req := httptest.NewRequest(http.MethodPost, APIPrefix+"/auth/login", strings.NewReader(`{}`))
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusTooManyRequests {
			allowed++
		}
	}
	return allowed
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	assert.Equal(t, 2, loginsAllowed(t, nil, 20))
}

func TestRateLimitHonoursForwardedForFromTrustedProxy(t *testing.T) {
	assert.Equal(t, 20, loginsAllowed(t, []string{"10.0.0.1"}, 20))
}

func TestInvalidTrustedProxiesTrustNone(t *testing.T) {
	assert.Equal(t, 2, loginsAllowed(t, []string{"not-an-ip"}, 5))
}
