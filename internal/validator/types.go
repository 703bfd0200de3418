package validator

// Severity ranks an issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Issue types.
const (
	IssueDiscoveryError   = "discovery_error"
	IssueWrongBeaconPort  = "wrong_beacon_port"
	IssueInactiveNetwork  = "inactive_network"
	IssueWrongNetworkPort = "wrong_network_port"
	IssueStackMismatch    = "stack_mismatch"
	IssueWrongDockerPath  = "wrong_docker_path"
	IssueValidationError  = "validation_error"
	IssueNodeNotFound     = "node_not_found"
)

// Repair action types.
const (
	ActionUpdateBeaconPort  = "update_beacon_port"
	ActionRemoveNetwork     = "remove_inactive_network"
	ActionUpdateNetworkPort = "update_network_port"
	ActionUpdateStack       = "update_stack"
	ActionUpdateDockerPath  = "update_docker_path"
)

// Issue is one disagreement between configuration and live state.
type Issue struct {
	Node           string   `json:"node" yaml:"node"`
	Type           string   `json:"issue_type" yaml:"issue_type"`
	Severity       Severity `json:"severity" yaml:"severity"`
	Description    string   `json:"description" yaml:"description"`
	CurrentValue   any      `json:"current_value" yaml:"current_value"`
	SuggestedValue any      `json:"suggested_value" yaml:"suggested_value"`
	AutoFixable    bool     `json:"auto_fixable" yaml:"auto_fixable"`
}

// RepairAction records one repair attempt.
type RepairAction struct {
	Node         string         `json:"node" yaml:"node"`
	ActionType   string         `json:"action_type" yaml:"action_type"`
	Description  string         `json:"description" yaml:"description"`
	OldConfig    map[string]any `json:"old_config" yaml:"old_config"`
	NewConfig    map[string]any `json:"new_config" yaml:"new_config"`
	Success      bool           `json:"success" yaml:"success"`
	ErrorMessage string         `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// Summary counts issues.
type Summary struct {
	TotalIssues int            `json:"total_issues" yaml:"total_issues"`
	Critical    int            `json:"critical" yaml:"critical"`
	Warnings    int            `json:"warnings" yaml:"warnings"`
	Info        int            `json:"info" yaml:"info"`
	AutoFixable int            `json:"auto_fixable" yaml:"auto_fixable"`
	ByNode      map[string]int `json:"by_node" yaml:"by_node"`
	ByType      map[string]int `json:"by_type" yaml:"by_type"`
}

// Summarize counts issues by severity, node and type.
func Summarize(issues []Issue) Summary {
	s := Summary{
		TotalIssues: len(issues),
		ByNode:      make(map[string]int),
		ByType:      make(map[string]int),
	}
	for _, i := range issues {
		switch i.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityWarning:
			s.Warnings++
		case SeverityInfo:
			s.Info++
		}
		if i.AutoFixable {
			s.AutoFixable++
		}
		s.ByNode[i.Node]++
		s.ByType[i.Type]++
	}
	return s
}
