package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fleetsync/internal/discovery"
	"fleetsync/internal/fleet"
	"fleetsync/internal/metrics"
	"fleetsync/internal/validator"
	"fleetsync/pkg/logging"
)

// Repairer runs the validator's repair path. *validator.Validator
// implements it.
type Repairer interface {
	ValidateAndRepair(ctx context.Context, doc *fleet.Document, autoRepair bool) ([]validator.Issue, []validator.RepairAction, error)
}

// Options configures a Monitor.
type Options struct {
	// Concurrency bounds parallel node discovery; values below 1 mean 1.
	Concurrency int
	// History receives drift records. A default History is created when nil.
	History *History
	Clock   Clock
	Metrics *metrics.Recorder
	// Repairer is used by MonitorContinuous when auto-fix is enabled.
	Repairer Repairer
}

// Monitor detects and corrects configuration drift across the fleet.
type Monitor struct {
	store      fleet.Store
	discoverer discovery.Discoverer
	opts       Options
}

// New creates a Monitor reading and writing the fleet document through store.
func New(store fleet.Store, discoverer discovery.Discoverer, opts Options) *Monitor {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.History == nil {
		opts.History = NewHistory(HistoryOptions{Clock: opts.Clock})
	}
	return &Monitor{store: store, discoverer: discoverer, opts: opts}
}

// History returns the drift history.
func (m *Monitor) History() *History {
	return m.opts.History
}

// Summary aggregates the drift recorded over the last 24 hours.
func (m *Monitor) Summary() Summary {
	return Summarize(m.opts.History.Since(24))
}

func (m *Monitor) load(doc *fleet.Document) (*fleet.Document, error) {
	if doc != nil {
		return doc, nil
	}
	return m.store.Load()
}

// nodeOutcome is the discovery outcome for one node.
type nodeOutcome struct {
	node *fleet.NodeConfig
	res  *discovery.Result
	err  error
}

func (m *Monitor) discover(ctx context.Context, node *fleet.NodeConfig) (p nodeOutcome) {
	p.node = node
	defer func() {
		if r := recover(); r != nil {
			p.res, p.err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	p.res, p.err = m.discoverer.Discover(ctx, node.Target())
	if p.err == nil && p.res == nil {
		p.err = errors.New("discovery returned no result")
	}
	return p
}

// discoverAll inspects nodes with at most Concurrency discoveries in flight.
// Results keep the order of nodes.
func (m *Monitor) discoverAll(ctx context.Context, nodes []*fleet.NodeConfig) []nodeOutcome {
	out := make([]nodeOutcome, len(nodes))
	g := new(errgroup.Group)
	g.SetLimit(m.opts.Concurrency)
	for i, node := range nodes {
		g.Go(func() error {
			out[i] = m.discover(ctx, node)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// SyncAllNodes brings every enabled node in line with discovery and saves
// the document once if any node changed. A nil doc is loaded from the
// store. Only a load or save failure is returned as an error; the report
// is returned alongside a save error.
func (m *Monitor) SyncAllNodes(ctx context.Context, doc *fleet.Document) (*SyncReport, error) {
	doc, err := m.load(doc)
	if err != nil {
		return nil, err
	}
	logging.Info("Monitor", "Starting fleet-wide configuration sync")

	report := &SyncReport{TotalNodes: len(doc.Nodes), UpdatedNodeNames: []string{}}

	// positions maps each checked node back to its document index and its
	// slot in the report.
	type position struct{ doc, result int }
	var (
		nodes     []*fleet.NodeConfig
		positions []position
	)
	for i, node := range doc.Nodes {
		if node == nil {
			continue
		}
		if node.Disabled() {
			report.Results = append(report.Results, NodeSyncResult{Node: node.Name, Status: StatusSkipped, Reason: "Node is disabled"})
			continue
		}
		positions = append(positions, position{doc: i, result: len(report.Results)})
		report.Results = append(report.Results, NodeSyncResult{Node: node.Name})
		nodes = append(nodes, node)
	}

	for j, p := range m.discoverAll(ctx, nodes) {
		pos := positions[j]
		result, updated := m.syncNode(p)
		report.Results[pos.result] = result
		if updated != nil {
			doc.Nodes[pos.doc] = updated
			report.UpdatedNodeNames = append(report.UpdatedNodeNames, updated.Name)
		}
	}
	report.UpdatedNodes = len(report.UpdatedNodeNames)

	if report.UpdatedNodes > 0 {
		if err := m.store.Save(doc); err != nil {
			logging.Error("Monitor", err, "Failed to save synced configuration")
			return report, err
		}
		logging.Info("Monitor", "Configuration updated for %d nodes: %v", report.UpdatedNodes, report.UpdatedNodeNames)
	}
	return report, nil
}

// syncNode applies the changes discovery calls for to a copy of the node.
// The copy is returned when it should replace the node.
func (m *Monitor) syncNode(p nodeOutcome) (NodeSyncResult, *fleet.NodeConfig) {
	name := p.node.Name
	if p.err != nil {
		logging.Error("Monitor", p.err, "Sync failed for %s", name)
		return NodeSyncResult{Node: name, Status: StatusError, Error: p.err.Error()}, nil
	}

	changes := validator.Analyze(p.node, p.res)
	if len(changes) == 0 {
		return NodeSyncResult{Node: name, Status: StatusNoChanges, Reason: "Configuration is up to date"}, nil
	}

	updated := p.node.Clone()
	err := validator.ApplyChanges(updated, changes)
	if err == nil {
		err = updated.Validate()
	}
	if err != nil {
		logging.Error("Monitor", err, "Sync failed for %s", name)
		return NodeSyncResult{Node: name, Status: StatusError, Changes: changes, Error: err.Error()}, nil
	}

	logging.Info("Monitor", "Updating configuration for %s (%d changes)", name, len(changes))
	return NodeSyncResult{
		Node:      name,
		Status:    StatusUpdated,
		Changes:   changes,
		OldConfig: p.node.Clone(),
		NewConfig: updated.Clone(),
	}, updated
}

// RefreshSingleNode syncs the named node and saves the document if it
// changed. An unknown node yields a result with StatusError.
func (m *Monitor) RefreshSingleNode(ctx context.Context, doc *fleet.Document, name string) (NodeSyncResult, error) {
	doc, err := m.load(doc)
	if err != nil {
		return NodeSyncResult{}, err
	}
	logging.Info("Monitor", "Refreshing configuration for node %s", name)

	index := -1
	for i, node := range doc.Nodes {
		if node != nil && node.Name == name {
			index = i
			break
		}
	}
	if index < 0 {
		return NodeSyncResult{
			Node:   name,
			Status: StatusError,
			Error:  fmt.Sprintf("Node %s not found in configuration", name),
		}, nil
	}

	result, updated := m.syncNode(m.discover(ctx, doc.Nodes[index]))
	if updated == nil {
		return result, nil
	}
	doc.Nodes[index] = updated
	if err := m.store.Save(doc); err != nil {
		logging.Error("Monitor", err, "Failed to save refreshed configuration for %s", name)
		return result, err
	}
	return result, nil
}

// DetectDrift compares every enabled node with discovery and records one
// DriftDetection per mismatch in the history. A node whose discovery fails
// yields a detection_error record.
func (m *Monitor) DetectDrift(ctx context.Context, doc *fleet.Document) ([]DriftDetection, error) {
	doc, err := m.load(doc)
	if err != nil {
		return nil, err
	}
	logging.Info("Monitor", "Detecting configuration drift")

	nodes := doc.EnabledNodes()
	now := m.opts.Clock.Now()

	var out []DriftDetection
	for _, p := range m.discoverAll(ctx, nodes) {
		if p.err != nil {
			logging.Error("Monitor", p.err, "Drift detection failed for %s", p.node.Name)
			out = append(out, DriftDetection{
				Node:        p.node.Name,
				DriftType:   DriftDetectionError,
				ConfigState: map[string]any{},
				LiveState:   map[string]any{"error": p.err.Error()},
				Severity:    validator.SeverityCritical,
			})
			continue
		}
		out = append(out, compare(p.node, p.res)...)
	}

	for i := range out {
		out[i].ID = uuid.NewString()
		out[i].Timestamp = now
		m.opts.Metrics.ObserveDrift(out[i].DriftType, string(out[i].Severity))
	}
	m.opts.History.Append(out...)
	m.opts.Metrics.SetHistorySize(m.opts.History.Len())
	return out, nil
}

// compare turns the changes a node needs into drift records.
func compare(node *fleet.NodeConfig, res *discovery.Result) []DriftDetection {
	var out []DriftDetection
	add := func(driftType string, sev validator.Severity, config, live map[string]any) {
		out = append(out, DriftDetection{
			Node:            node.Name,
			DriftType:       driftType,
			ConfigState:     config,
			LiveState:       live,
			Severity:        sev,
			AutoCorrectable: true,
			Discovery:       res,
		})
	}

	for _, c := range validator.Analyze(node, res) {
		switch c.Type {
		case validator.ChangeBeaconPort:
			add(DriftBeaconPort, validator.SeverityCritical,
				map[string]any{"beacon_api_port": c.OldValue},
				map[string]any{"beacon_api_port": c.NewValue})
		case validator.ChangeStack:
			add(DriftStack, validator.SeverityWarning,
				map[string]any{"stack": c.OldValue},
				map[string]any{"stack": c.NewValue})
		case validator.ChangeRemoveNetwork:
			add(DriftInactiveNetwork, validator.SeverityWarning,
				map[string]any{"network": c.Network},
				map[string]any{"active_networks": res.NetworkKeys()})
		case validator.ChangeNetworkPort:
			add(DriftNetworkPort, validator.SeverityCritical,
				map[string]any{"network": c.Network, "beacon_api_port": c.OldValue},
				map[string]any{"network": c.Network, "beacon_api_port": c.NewValue})
		}
	}
	return out
}
