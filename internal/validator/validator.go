package validator

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"fleetsync/internal/discovery"
	"fleetsync/internal/fleet"
	"fleetsync/internal/metrics"
	"fleetsync/pkg/logging"
)

// Options tunes a Validator.
type Options struct {
	// Concurrency bounds parallel node validation; values below 1 mean 1.
	Concurrency int
	Metrics     *metrics.Recorder
}

// Validator checks fleet configuration against discovery.
type Validator struct {
	store      fleet.Store
	discoverer discovery.Discoverer
	opts       Options
}

// New creates a Validator. store receives the repaired document.
func New(store fleet.Store, discoverer discovery.Discoverer, opts Options) *Validator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Validator{store: store, discoverer: discoverer, opts: opts}
}

// nodeOutcome is the result of validating one node. updated is the
// repaired copy of the node, or nil when nothing was repaired.
type nodeOutcome struct {
	issues  []Issue
	repairs []RepairAction
	updated *fleet.NodeConfig
}

// ValidateAndRepair validates every enabled node of doc. With autoRepair,
// auto-fixable issues are repaired in doc and the document is saved once
// if any repair succeeded. A nil doc is loaded from the store.
//
// The returned error is non-nil only when the document cannot be loaded or
// saved; issues and repairs are returned alongside a save error so the
// caller can still report them.
func (v *Validator) ValidateAndRepair(ctx context.Context, doc *fleet.Document, autoRepair bool) ([]Issue, []RepairAction, error) {
	if doc == nil {
		var err error
		if doc, err = v.store.Load(); err != nil {
			return nil, nil, err
		}
	}

	type slot struct {
		index   int
		outcome nodeOutcome
	}
	var slots []*slot
	for i, node := range doc.Nodes {
		if node == nil || node.Disabled() {
			continue
		}
		slots = append(slots, &slot{index: i})
	}
	logging.Info("Validator", "Validating %d nodes (auto-repair: %t)", len(slots), autoRepair)

	g := new(errgroup.Group)
	g.SetLimit(v.opts.Concurrency)
	for _, s := range slots {
		node := doc.Nodes[s.index]
		g.Go(func() error {
			s.outcome = v.validateNode(ctx, node, autoRepair)
			return nil
		})
	}
	_ = g.Wait()

	var (
		issues   []Issue
		repairs  []RepairAction
		repaired int
	)
	for _, s := range slots {
		issues = append(issues, s.outcome.issues...)
		repairs = append(repairs, s.outcome.repairs...)
		if s.outcome.updated != nil {
			doc.Nodes[s.index] = s.outcome.updated
			repaired++
		}
	}

	if autoRepair && repaired > 0 {
		if err := v.store.Save(doc); err != nil {
			logging.Error("Validator", err, "Failed to save repaired configuration")
			return issues, repairs, err
		}
		logging.Info("Validator", "Saved configuration with repairs on %d nodes", repaired)
	}
	return issues, repairs, nil
}

// ValidateSingleNode validates one node without repairing it.
func (v *Validator) ValidateSingleNode(ctx context.Context, doc *fleet.Document, name string) []Issue {
	node, err := doc.Node(name)
	if err != nil {
		return []Issue{{
			Node:        name,
			Type:        IssueNodeNotFound,
			Severity:    SeverityCritical,
			Description: fmt.Sprintf("Node %q not found in configuration", name),
		}}
	}
	return v.validateNode(ctx, node, false).issues
}

// validateNode works on a copy of node so a failure part way through leaves
// the document untouched.
func (v *Validator) validateNode(ctx context.Context, node *fleet.NodeConfig, autoRepair bool) (out nodeOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = v.failed(node.Name, fmt.Errorf("panic: %v", r))
		}
	}()

	res, err := v.discoverer.Discover(ctx, node.Target())
	if err != nil {
		return v.failed(node.Name, err)
	}
	if res == nil {
		return v.failed(node.Name, fmt.Errorf("discovery returned no result"))
	}

	for _, e := range res.Errors {
		out.issues = append(out.issues, v.issue(Issue{
			Node:        node.Name,
			Type:        IssueDiscoveryError,
			Severity:    SeverityWarning,
			Description: e,
		}))
	}

	work := node.Clone()
	multi := len(work.Networks) > 0

	for _, f := range checks(work, res) {
		out.issues = append(out.issues, v.issue(f.issue))
		if autoRepair && f.issue.AutoFixable {
			out.repairs = append(out.repairs, v.repair(work, f))
		}
	}

	// Removing the last network turns the node into a single-network node,
	// whose top-level port is checked against the first live port.
	if autoRepair && multi && len(work.Networks) == 0 {
		if f, ok := beaconPortFinding(work, res); ok {
			out.issues = append(out.issues, v.issue(f.issue))
			out.repairs = append(out.repairs, v.repair(work, f))
		}
	}

	for _, r := range out.repairs {
		if r.Success {
			out.updated = work
			break
		}
	}
	logging.Debug("Validator", "%s: %d issues, %d repairs", node.Name, len(out.issues), len(out.repairs))
	return out
}

func (v *Validator) failed(node string, err error) nodeOutcome {
	logging.Error("Validator", err, "Validation failed for %s", node)
	return nodeOutcome{issues: []Issue{v.issue(Issue{
		Node:        node,
		Type:        IssueValidationError,
		Severity:    SeverityCritical,
		Description: fmt.Sprintf("Validation failed: %v", err),
	})}}
}

func (v *Validator) issue(i Issue) Issue {
	v.opts.Metrics.ObserveIssue(i.Type, string(i.Severity))
	return i
}

// repair applies f's change to work. A change that fails or leaves the node
// invalid is rolled back and reported with Success false.
func (v *Validator) repair(work *fleet.NodeConfig, f finding) RepairAction {
	action := RepairAction{
		Node:        work.Name,
		ActionType:  f.action,
		Description: f.repairDescription,
		OldConfig:   f.before(work),
	}

	snapshot := work.Clone()
	err := ApplyChanges(work, []Change{f.change})
	if err == nil {
		err = work.Validate()
	}
	if err != nil {
		*work = *snapshot
		action.ErrorMessage = err.Error()
		logging.Warn("Validator", "Repair %s on %s failed: %v", f.action, work.Name, err)
	} else {
		action.Success = true
		logging.Info("Validator", "%s: %s", work.Name, f.repairDescription)
	}
	action.NewConfig = f.before(work)
	v.opts.Metrics.ObserveRepair(action.ActionType, action.Success)
	return action
}

// finding pairs an issue with the change that repairs it.
type finding struct {
	issue             Issue
	change            Change
	action            string
	repairDescription string
	// before snapshots the fields the change touches.
	before func(*fleet.NodeConfig) map[string]any
}

// checks runs the per-node comparisons in order: beacon port (single-network
// nodes), networks, stack, docker path.
func checks(node *fleet.NodeConfig, res *discovery.Result) []finding {
	var out []finding

	if len(node.Networks) == 0 {
		if f, ok := beaconPortFinding(node, res); ok {
			out = append(out, f)
		}
	}
	out = append(out, networkFindings(node, res)...)
	if f, ok := stackFinding(node, res); ok {
		out = append(out, f)
	}
	if f, ok := dockerPathFinding(node, res); ok {
		out = append(out, f)
	}
	return out
}

func beaconPortFinding(node *fleet.NodeConfig, res *discovery.Result) (finding, bool) {
	c, ok := beaconPortChange(node, res)
	if !ok {
		return finding{}, false
	}
	return finding{
		issue: Issue{
			Node:           node.Name,
			Type:           IssueWrongBeaconPort,
			Severity:       SeverityCritical,
			Description:    fmt.Sprintf("Beacon API port mismatch: configured %v, but %v is responding", c.OldValue, c.NewValue),
			CurrentValue:   c.OldValue,
			SuggestedValue: c.NewValue,
			AutoFixable:    true,
		},
		change:            c,
		action:            ActionUpdateBeaconPort,
		repairDescription: fmt.Sprintf("Updated beacon API port from %v to %v", c.OldValue, c.NewValue),
		before: func(n *fleet.NodeConfig) map[string]any {
			return map[string]any{"beacon_api_port": n.Port()}
		},
	}, true
}

func networkFindings(node *fleet.NodeConfig, res *discovery.Result) []finding {
	var out []finding
	keys := node.NetworkKeys()

	for _, key := range keys {
		if res.HasNetwork(key) {
			continue
		}
		out = append(out, finding{
			issue: Issue{
				Node:           node.Name,
				Type:           IssueInactiveNetwork,
				Severity:       SeverityWarning,
				Description:    fmt.Sprintf("Network %q is configured but not running", key),
				CurrentValue:   key,
				SuggestedValue: "remove",
				AutoFixable:    true,
			},
			change:            Change{Type: ChangeRemoveNetwork, Network: key, OldValue: key},
			action:            ActionRemoveNetwork,
			repairDescription: fmt.Sprintf("Removed inactive network: %s", key),
			before: func(n *fleet.NodeConfig) map[string]any {
				return map[string]any{"networks": n.NetworkKeys()}
			},
		})
	}

	for _, key := range keys {
		if !res.HasNetwork(key) {
			continue
		}
		c, ok := networkPortChange(node, res, key)
		if !ok {
			continue
		}
		out = append(out, finding{
			issue: Issue{
				Node:           node.Name,
				Type:           IssueWrongNetworkPort,
				Severity:       SeverityCritical,
				Description:    fmt.Sprintf("Network %q port mismatch: configured %v, actual %v", key, c.OldValue, c.NewValue),
				CurrentValue:   c.OldValue,
				SuggestedValue: c.NewValue,
				AutoFixable:    true,
			},
			change:            c,
			action:            ActionUpdateNetworkPort,
			repairDescription: fmt.Sprintf("Updated %s port from %v to %v", key, c.OldValue, c.NewValue),
			before: func(n *fleet.NodeConfig) map[string]any {
				port := 0
				if nc := n.Networks[key]; nc != nil {
					port = nc.BeaconAPIPort
				}
				return map[string]any{"port": port}
			},
		})
	}
	return out
}

func stackFinding(node *fleet.NodeConfig, res *discovery.Result) (finding, bool) {
	if sameSet(node.Stack, res.DetectedStacks) {
		return finding{}, false
	}
	current, detected := sortedCopy(node.Stack), sortedCopy(res.DetectedStacks)
	return finding{
		issue: Issue{
			Node:           node.Name,
			Type:           IssueStackMismatch,
			Severity:       SeverityWarning,
			Description:    fmt.Sprintf("Stack mismatch: configured [%s], detected [%s]", strings.Join(current, ", "), strings.Join(detected, ", ")),
			CurrentValue:   current,
			SuggestedValue: detected,
			// Never repair to an empty stack.
			AutoFixable: len(detected) > 0,
		},
		change:            Change{Type: ChangeStack, OldValue: current, NewValue: detected},
		action:            ActionUpdateStack,
		repairDescription: fmt.Sprintf("Updated stack from [%s] to [%s]", strings.Join(current, ", "), strings.Join(detected, ", ")),
		before: func(n *fleet.NodeConfig) map[string]any {
			return map[string]any{"stack": sortedCopy(n.Stack)}
		},
	}, true
}

func dockerPathFinding(node *fleet.NodeConfig, res *discovery.Result) (finding, bool) {
	if node.EthDockerPath == "" || len(res.DockerPaths) == 0 {
		return finding{}, false
	}
	for _, p := range res.DockerPaths {
		if p == node.EthDockerPath {
			return finding{}, false
		}
	}
	suggested := res.DockerPaths[0]
	return finding{
		issue: Issue{
			Node:           node.Name,
			Type:           IssueWrongDockerPath,
			Severity:       SeverityWarning,
			Description:    fmt.Sprintf("Docker path not found: %s, found: [%s]", node.EthDockerPath, strings.Join(res.DockerPaths, ", ")),
			CurrentValue:   node.EthDockerPath,
			SuggestedValue: suggested,
			AutoFixable:    true,
		},
		change:            Change{Type: ChangeDockerPath, OldValue: node.EthDockerPath, NewValue: suggested},
		action:            ActionUpdateDockerPath,
		repairDescription: fmt.Sprintf("Updated docker path from %s to %s", node.EthDockerPath, suggested),
		before: func(n *fleet.NodeConfig) map[string]any {
			return map[string]any{"eth_docker_path": n.EthDockerPath}
		},
	}, true
}
