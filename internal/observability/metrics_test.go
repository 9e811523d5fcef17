package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_ExposesObservations(t *testing.T) {
	m := NewMetrics()
	m.ObserveBet("inside", true, 2.5)
	m.ObserveBet("inside", false, 1)
	m.ObserveBet("between", false, 1)
	m.ObserveRelay("bet", 20*time.Millisecond, nil)
	m.ObserveRelay("join", time.Millisecond, errors.New("boom"))
	m.ObserveRequest(http.MethodPost, "/bet/", http.StatusOK, time.Millisecond)
	m.SessionCreated()

	body := scrape(t, m)
	assert.Contains(t, body, `crashdice_bets_total{mode="inside",outcome="win"} 1`)
	assert.Contains(t, body, `crashdice_bets_total{mode="between",outcome="loss"} 1`)
	assert.Contains(t, body, `crashdice_wagered_total 4.5`)
	assert.Contains(t, body, `crashdice_relay_request_duration_seconds_count{op="join",status="error"} 1`)
	assert.Contains(t, body, `crashdice_http_requests_total{method="POST",route="/bet/",status="200"} 1`)
	assert.Contains(t, body, `crashdice_sessions_created_total 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.SessionCreated()
	assert.Contains(t, scrape(t, b), `crashdice_sessions_created_total 0`)
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBet("inside", true, 1)
		m.ObserveRelay("bet", time.Second, nil)
		m.ObserveRequest(http.MethodGet, "/", 200, time.Second)
		m.SessionCreated()
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
