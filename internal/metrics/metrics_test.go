package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New(nil)

	r.ObserveDiscovery("alpha", 2*time.Second, 3)
	r.ObserveDiscovery("alpha", time.Second, 0)
	r.ObserveIssue("wrong_beacon_port", "critical")
	r.ObserveIssue("wrong_beacon_port", "critical")
	r.ObserveRepair("update_beacon_port", true)
	r.ObserveRepair("update_stack", false)
	r.ObserveDrift("stack_mismatch", "warning")
	r.ObserveCycle(CycleOK, time.Unix(1700000000, 0))
	r.SetHistorySize(4)

	assert.Equal(t, 3.0, testutil.ToFloat64(r.discoveryErrors.WithLabelValues("alpha")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.issues.WithLabelValues("wrong_beacon_port", "critical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.repairs.WithLabelValues("update_stack", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.driftEvents.WithLabelValues("stack_mismatch", "warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cycles.WithLabelValues(CycleOK)))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(r.lastCycle))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.historySize))
	assert.Equal(t, 1, testutil.CollectAndCount(r.discoveryDuration))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveDiscovery("alpha", time.Second, 1)
		r.ObserveIssue("x", "info")
		r.ObserveRepair("x", true)
		r.ObserveDrift("x", "warning")
		r.ObserveCycle(CycleError, time.Now())
		r.SetHistorySize(1)
	})
	assert.Nil(t, r.Registry())
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New(nil)
	r.ObserveDrift("beacon_api_port_mismatch", "critical")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `fleetsync_drift_events_total{severity="critical",type="beacon_api_port_mismatch"} 1`)
}
