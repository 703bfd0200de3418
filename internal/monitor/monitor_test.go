package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetsync/internal/fleet"
	"fleetsync/internal/metrics"
	"fleetsync/internal/testing/mock"
	"fleetsync/internal/validator"
)

var t0 = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

func fleetDoc() *fleet.Document {
	return &fleet.Document{Nodes: []*fleet.NodeConfig{
		{Name: "alpha", Stack: []string{"eth-docker"}, BeaconAPIPort: fleet.Ptr(5052)},
		{Name: "bravo", Stack: []string{"disabled"}},
		{Name: "charlie", Stack: []string{"eth-docker"}, BeaconAPIPort: fleet.Ptr(5052)},
		{Name: "delta", Stack: []string{"eth-docker"}, BeaconAPIPort: fleet.Ptr(5052)},
	}}
}

func fleetDiscoverer() *mock.StaticDiscoverer {
	return mock.NewStaticDiscoverer().
		Set("alpha", mock.Result("alpha", []string{"eth-docker"}, []string{"mainnet"}, 5053)).
		Fail("charlie", errors.New("dial tcp: connection refused")).
		Set("delta", mock.Result("delta", []string{"eth-docker"}, []string{"mainnet"}, 5052))
}

func newTestMonitor(store fleet.Store, disc *mock.StaticDiscoverer, clock *mock.MockClock) *Monitor {
	return New(store, disc, Options{
		Concurrency: 2,
		Clock:       clock,
		History:     NewHistory(HistoryOptions{Clock: clock}),
		Metrics:     metrics.New(nil),
	})
}

func TestSyncAllNodes(t *testing.T) {
	store := mock.NewMemoryStore(fleetDoc())
	disc := fleetDiscoverer()
	m := newTestMonitor(store, disc, mock.NewMockClock(t0))

	report, err := m.SyncAllNodes(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, report.TotalNodes)
	assert.Equal(t, 1, report.UpdatedNodes)
	assert.Equal(t, []string{"alpha"}, report.UpdatedNodeNames)

	var statuses []SyncStatus
	for _, r := range report.Results {
		statuses = append(statuses, r.Status)
	}
	assert.Equal(t, []SyncStatus{StatusUpdated, StatusSkipped, StatusError, StatusNoChanges}, statuses)

	alpha, ok := report.Result("alpha")
	require.True(t, ok)
	assert.Equal(t, []validator.Change{{Type: validator.ChangeBeaconPort, OldValue: 5052, NewValue: 5053}}, alpha.Changes)
	assert.Equal(t, 5052, alpha.OldConfig.Port())
	assert.Equal(t, 5053, alpha.NewConfig.Port())

	charlie, _ := report.Result("charlie")
	assert.Equal(t, "dial tcp: connection refused", charlie.Error)
	bravo, _ := report.Result("bravo")
	assert.Equal(t, "Node is disabled", bravo.Reason)
	assert.Equal(t, 0, disc.Calls("bravo"))

	assert.Equal(t, 1, store.Saves())
	assert.Equal(t, 5053, store.Document().Nodes[0].Port())

	report, err = m.SyncAllNodes(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.UpdatedNodes)
	assert.Equal(t, []string{}, report.UpdatedNodeNames)
	assert.Equal(t, 1, store.Saves())
}

func TestSyncAllNodesSaveFailure(t *testing.T) {
	store := mock.NewMemoryStore(fleetDoc())
	store.FailSaves(errors.New("read-only file system"))
	m := newTestMonitor(store, fleetDiscoverer(), mock.NewMockClock(t0))

	report, err := m.SyncAllNodes(context.Background(), nil)
	var perr *fleet.PersistenceError
	require.ErrorAs(t, err, &perr)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.UpdatedNodes)
}

func TestSyncAllNodesInvalidChange(t *testing.T) {
	store := mock.NewMemoryStore(&fleet.Document{Nodes: []*fleet.NodeConfig{
		{Name: "alpha", Stack: []string{"eth-docker"}, BeaconAPIPort: fleet.Ptr(5052)},
	}})
	disc := mock.NewStaticDiscoverer().Set("alpha", mock.Result("alpha", []string{"eth-docker"}, nil, 70000))
	m := newTestMonitor(store, disc, mock.NewMockClock(t0))

	report, err := m.SyncAllNodes(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusError, report.Results[0].Status)
	assert.Contains(t, report.Results[0].Error, "beacon_api_port")
	assert.Equal(t, 0, store.Saves())
}

func TestDetectDriftBeaconPort(t *testing.T) {
	clock := mock.NewMockClock(t0)
	store := mock.NewMemoryStore(&fleet.Document{Nodes: []*fleet.NodeConfig{
		{Name: "alpha", Stack: []string{"eth-docker"}, BeaconAPIPort: fleet.Ptr(5052)},
	}})
	disc := mock.NewStaticDiscoverer().Set("alpha", mock.Result("alpha", []string{"eth-docker"}, []string{"mainnet"}, 5053))
	m := newTestMonitor(store, disc, clock)

	drift, err := m.DetectDrift(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, drift, 1)

	d := drift[0]
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, "alpha", d.Node)
	assert.Equal(t, DriftBeaconPort, d.DriftType)
	assert.Equal(t, validator.SeverityCritical, d.Severity)
	assert.True(t, d.AutoCorrectable)
	assert.Equal(t, t0, d.Timestamp)
	assert.Equal(t, map[string]any{"beacon_api_port": 5052}, d.ConfigState)
	assert.Equal(t, map[string]any{"beacon_api_port": 5053}, d.LiveState)
	assert.NotNil(t, d.Discovery)

	assert.Equal(t, 1, m.History().Len())
	assert.Equal(t, 0, store.Saves(), "drift detection never writes")
}

func TestDetectDriftErrorsAndNetworks(t *testing.T) {
	store := mock.NewMemoryStore(&fleet.Document{Nodes: []*fleet.NodeConfig{
		{Name: "alpha", Stack: []string{"eth-docker"}},
		{Name: "bravo", Stack: []string{"eth-docker"}},
		{
			Name:          "charlie",
			Stack:         []string{"eth-docker", "eth-hoodi"},
			BeaconAPIPort: fleet.Ptr(5052),
			Networks: map[string]*fleet.NetworkConfig{
				"mainnet": {BeaconAPIPort: 5052},
				"testnet": {BeaconAPIPort: 5053},
			},
		},
	}})
	disc := mock.NewStaticDiscoverer().
		Fail("alpha", errors.New("ssh: handshake failed")).
		Panic("bravo").
		Set("charlie", mock.Result("charlie", []string{"eth-docker", "eth-hoodi"}, []string{"mainnet"}, 5052))
	m := newTestMonitor(store, disc, mock.NewMockClock(t0))

	drift, err := m.DetectDrift(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, drift, 3)

	for _, d := range drift[:2] {
		assert.Equal(t, DriftDetectionError, d.DriftType)
		assert.Equal(t, validator.SeverityCritical, d.Severity)
		assert.False(t, d.AutoCorrectable)
	}
	assert.Equal(t, "ssh: handshake failed", drift[0].LiveState["error"])
	assert.Contains(t, drift[1].LiveState["error"], "panic")

	assert.Equal(t, "charlie", drift[2].Node)
	assert.Equal(t, DriftInactiveNetwork, drift[2].DriftType)
	assert.Equal(t, validator.SeverityWarning, drift[2].Severity)
	assert.Equal(t, map[string]any{"network": "testnet"}, drift[2].ConfigState)
	assert.Equal(t, map[string]any{"active_networks": []string{"mainnet"}}, drift[2].LiveState)
}

func TestRefreshSingleNode(t *testing.T) {
	store := mock.NewMemoryStore(fleetDoc())
	m := newTestMonitor(store, fleetDiscoverer(), mock.NewMockClock(t0))

	res, err := m.RefreshSingleNode(context.Background(), nil, "alpha")
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, res.Status)
	assert.Equal(t, 5052, res.OldConfig.Port())
	assert.Equal(t, 5053, res.NewConfig.Port())
	assert.Equal(t, 1, store.Saves())

	res, err = m.RefreshSingleNode(context.Background(), nil, "delta")
	require.NoError(t, err)
	assert.Equal(t, StatusNoChanges, res.Status)

	res, err = m.RefreshSingleNode(context.Background(), nil, "zulu")
	require.NoError(t, err)
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, "Node zulu not found in configuration", res.Error)
	assert.Equal(t, 1, store.Saves())
}

func TestMonitorSummary(t *testing.T) {
	clock := mock.NewMockClock(t0)
	store := mock.NewMemoryStore(&fleet.Document{Nodes: []*fleet.NodeConfig{
		{Name: "alpha", Stack: []string{"eth-docker"}, BeaconAPIPort: fleet.Ptr(5052)},
		{Name: "bravo", Stack: []string{"eth-docker"}},
	}})
	disc := mock.NewStaticDiscoverer().
		Set("alpha", mock.Result("alpha", []string{"rocketpool"}, nil, 5053)).
		Fail("bravo", errors.New("timeout"))
	m := newTestMonitor(store, disc, clock)

	_, err := m.DetectDrift(context.Background(), nil)
	require.NoError(t, err)

	s := m.Summary()
	assert.Equal(t, 3, s.TotalDrift)
	assert.Equal(t, 2, s.Critical)
	assert.Equal(t, 1, s.Warning)
	assert.Equal(t, 2, s.AutoCorrectable)
	assert.Equal(t, 2, s.NodesWithDrift)
	assert.Equal(t, map[string]int{DriftBeaconPort: 1, DriftStack: 1, DriftDetectionError: 1}, s.CommonTypes)

	clock.Advance(25 * time.Hour)
	disc.Set("bravo", mock.Result("bravo", []string{"eth-docker"}, nil))
	_, err = m.DetectDrift(context.Background(), nil)
	require.NoError(t, err)

	s = m.Summary()
	assert.Equal(t, 2, s.TotalDrift)
	assert.Equal(t, 1, s.NodesWithDrift)
	assert.Len(t, m.History().Since(48), 5)
}
