package monitor

import (
	"time"

	"fleetsync/internal/discovery"
	"fleetsync/internal/fleet"
	"fleetsync/internal/validator"
)

// Drift types.
const (
	DriftBeaconPort      = "beacon_api_port_mismatch"
	DriftStack           = "stack_mismatch"
	DriftInactiveNetwork = "inactive_network"
	DriftNetworkPort     = "network_port_mismatch"
	DriftDetectionError  = "detection_error"
)

// DriftDetection records one difference between configured and live state
// seen during a drift check.
type DriftDetection struct {
	ID              string             `json:"id" yaml:"id"`
	Node            string             `json:"node" yaml:"node"`
	DriftType       string             `json:"drift_type" yaml:"drift_type"`
	Timestamp       time.Time          `json:"timestamp" yaml:"timestamp"`
	ConfigState     map[string]any     `json:"config_state" yaml:"config_state"`
	LiveState       map[string]any     `json:"live_state" yaml:"live_state"`
	Severity        validator.Severity `json:"severity" yaml:"severity"`
	AutoCorrectable bool               `json:"auto_correctable" yaml:"auto_correctable"`
	Discovery       *discovery.Result  `json:"discovery,omitempty" yaml:"-"`
}

// SyncStatus is the per-node outcome of a sync.
type SyncStatus string

const (
	StatusSkipped   SyncStatus = "skipped"
	StatusUpdated   SyncStatus = "updated"
	StatusNoChanges SyncStatus = "no_changes"
	StatusError     SyncStatus = "error"
)

// NodeSyncResult describes what a sync did to one node. OldConfig and
// NewConfig are set for updated nodes.
type NodeSyncResult struct {
	Node      string             `json:"node" yaml:"node"`
	Status    SyncStatus         `json:"status" yaml:"status"`
	Changes   []validator.Change `json:"changes,omitempty" yaml:"changes,omitempty"`
	Reason    string             `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error     string             `json:"error,omitempty" yaml:"error,omitempty"`
	OldConfig *fleet.NodeConfig  `json:"old_config,omitempty" yaml:"old_config,omitempty"`
	NewConfig *fleet.NodeConfig  `json:"new_config,omitempty" yaml:"new_config,omitempty"`
}

// SyncReport is the result of SyncAllNodes. Results follow document order.
type SyncReport struct {
	TotalNodes       int              `json:"total_nodes" yaml:"total_nodes"`
	UpdatedNodes     int              `json:"updated_nodes" yaml:"updated_nodes"`
	UpdatedNodeNames []string         `json:"updated_node_names" yaml:"updated_node_names"`
	Results          []NodeSyncResult `json:"results" yaml:"results"`
}

// Result returns the entry for node.
func (r *SyncReport) Result(node string) (NodeSyncResult, bool) {
	for _, res := range r.Results {
		if res.Node == node {
			return res, true
		}
	}
	return NodeSyncResult{}, false
}

// Summary aggregates drift seen over the last 24 hours.
type Summary struct {
	TotalDrift      int            `json:"total_drift_events_24h" yaml:"total_drift_events_24h"`
	Critical        int            `json:"critical_drift_24h" yaml:"critical_drift_24h"`
	Warning         int            `json:"warning_drift_24h" yaml:"warning_drift_24h"`
	AutoCorrectable int            `json:"auto_correctable_24h" yaml:"auto_correctable_24h"`
	NodesWithDrift  int            `json:"nodes_with_drift_24h" yaml:"nodes_with_drift_24h"`
	CommonTypes     map[string]int `json:"common_drift_types" yaml:"common_drift_types"`
}

// Summarize aggregates drift records.
func Summarize(drift []DriftDetection) Summary {
	s := Summary{CommonTypes: make(map[string]int)}
	nodes := make(map[string]bool)
	for _, d := range drift {
		s.TotalDrift++
		switch d.Severity {
		case validator.SeverityCritical:
			s.Critical++
		case validator.SeverityWarning:
			s.Warning++
		}
		if d.AutoCorrectable {
			s.AutoCorrectable++
		}
		nodes[d.Node] = true
		s.CommonTypes[d.DriftType]++
	}
	s.NodesWithDrift = len(nodes)
	return s
}
