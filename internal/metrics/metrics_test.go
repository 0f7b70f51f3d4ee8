package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestNewRegistersOnPrivateRegistry(t *testing.T) {
	// Two instances must not collide.
	m1 := New(nil)
	m2 := New(nil)

	m1.PairsAggregated.Add(3)
	m2.PairsAggregated.Add(1)

	assert.Contains(t, scrape(t, m1), "cocoscore_pairs_aggregated_total 3")
	assert.Contains(t, scrape(t, m2), "cocoscore_pairs_aggregated_total 1")
}

func TestHandlerExposesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RunsTotal.WithLabelValues("diseases", "ok").Inc()

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	assert.Contains(t, scrape(t, m), `cocoscore_runs_total{pipeline="diseases",status="ok"} 1`)
}
