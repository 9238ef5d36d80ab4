package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserve(t *testing.T) {
	m := New(nil)
	m.ObserveHTTP(http.MethodGet, "/api/v1/auth/me", 200, 0.02)
	m.ObserveHTTP(http.MethodGet, "", 404, 0.01)
	m.ObserveSMS(true)
	m.ObserveSMS(false)
	m.ObserveAI("analyze_text", nil)
	m.ObserveAI("chat", errors.New("boom"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	out := string(body)
	assert.Contains(t, out, `diagnosia_http_requests_total{method="GET",route="/api/v1/auth/me",status="200"} 1`)
	assert.Contains(t, out, `route="unmatched"`)
	assert.Contains(t, out, `diagnosia_sms_sent_total{status="failed"} 1`)
	assert.Contains(t, out, `diagnosia_ai_requests_total{operation="chat",status="error"} 1`)
}

func TestMetricsCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveSMS(true)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("GET", "/", 200, 0.1)
	m.ObserveSMS(true)
	m.ObserveAI("chat", nil)
	assert.NotNil(t, m.Handler())
}
