package formatting

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"fleetsync/internal/fleet"
	"fleetsync/internal/monitor"
	"fleetsync/internal/testing/mock"
	"fleetsync/internal/validator"
)

var sampleIssues = []validator.Issue{{
	Node:           "alpha",
	Type:           validator.IssueStackMismatch,
	Severity:       validator.SeverityWarning,
	Description:    "Stack mismatch: configured [eth-docker], detected [eth-docker, rocketpool]",
	CurrentValue:   []string{"eth-docker"},
	SuggestedValue: []string{"eth-docker", "rocketpool"},
	AutoFixable:    true,
}}

var sampleRepairs = []validator.RepairAction{{
	Node:       "alpha",
	ActionType: validator.ActionUpdateStack,
	Success:    true,
}}

func TestJSONValidation(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatJSON, Output: &buf}).Validation(sampleIssues, sampleRepairs))

	var doc struct {
		Issues  []map[string]any `json:"issues"`
		Repairs []map[string]any `json:"repairs"`
		Summary validator.Summary
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Issues, 1)
	assert.Equal(t, "stack_mismatch", doc.Issues[0]["issue_type"])
	assert.Equal(t, []any{"eth-docker", "rocketpool"}, doc.Issues[0]["suggested_value"])
	assert.Equal(t, 1, doc.Summary.TotalIssues)
	assert.Equal(t, true, doc.Repairs[0]["success"])
}

func TestJSONEmptyListsAreArrays(t *testing.T) {
	var buf bytes.Buffer
	f := New(Options{Format: FormatJSON, Output: &buf})
	require.NoError(t, f.Validation(nil, nil))
	assert.Contains(t, buf.String(), `"issues": []`)

	buf.Reset()
	require.NoError(t, f.Drift(nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestYAMLDrift(t *testing.T) {
	var buf bytes.Buffer
	drift := []monitor.DriftDetection{{
		ID:              "0b7c",
		Node:            "alpha",
		DriftType:       monitor.DriftBeaconPort,
		Timestamp:       time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC),
		ConfigState:     map[string]any{"beacon_api_port": 5052},
		LiveState:       map[string]any{"beacon_api_port": 5053},
		Severity:        validator.SeverityCritical,
		AutoCorrectable: true,
		Discovery:       mock.Result("alpha", nil, nil, 5053),
	}}
	require.NoError(t, New(Options{Format: FormatYAML, Output: &buf}).Drift(drift))

	var out []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "beacon_api_port_mismatch", out[0]["drift_type"])
	assert.NotContains(t, out[0], "discovery", "raw discovery is omitted from YAML")
}

func TestTableValidation(t *testing.T) {
	var buf bytes.Buffer
	f := New(Options{Format: FormatTable, Output: &buf})
	require.NoError(t, f.Validation(sampleIssues, sampleRepairs))

	out := buf.String()
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "stack_mismatch")
	assert.Contains(t, out, "update_stack")
	assert.Contains(t, out, "1 issues")

	buf.Reset()
	require.NoError(t, f.Validation(nil, nil))
	assert.Contains(t, buf.String(), "Configuration matches the running fleet")
}

func TestTableSync(t *testing.T) {
	var buf bytes.Buffer
	report := &monitor.SyncReport{
		TotalNodes:   2,
		UpdatedNodes: 1,
		Results: []monitor.NodeSyncResult{
			{Node: "alpha", Status: monitor.StatusUpdated, Changes: []validator.Change{{Type: validator.ChangeBeaconPort, OldValue: 5052, NewValue: 5053}}},
			{Node: "bravo", Status: monitor.StatusSkipped, Reason: "Node is disabled"},
		},
	}
	require.NoError(t, New(Options{Output: &buf}).Sync(report))
	out := buf.String()
	assert.Contains(t, out, "beacon_api_port: 5052 -> 5053")
	assert.Contains(t, out, "Node is disabled")
	assert.Contains(t, out, "1 of 2 nodes updated")
}

func TestTableDataFallsBackToYAML(t *testing.T) {
	var buf bytes.Buffer
	node := &fleet.NodeConfig{Name: "alpha", BeaconAPIPort: fleet.Ptr(5052)}
	require.NoError(t, New(Options{Output: &buf}).Data(node))
	assert.Contains(t, buf.String(), "beacon_api_port: 5052")
}
