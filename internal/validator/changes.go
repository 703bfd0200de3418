package validator

import (
	"fmt"
	"sort"

	"fleetsync/internal/discovery"
	"fleetsync/internal/fleet"
)

// ChangeType names a configuration update derived from discovery.
type ChangeType string

const (
	ChangeBeaconPort    ChangeType = "beacon_api_port"
	ChangeStack         ChangeType = "stack"
	ChangeRemoveNetwork ChangeType = "remove_inactive_network"
	ChangeNetworkPort   ChangeType = "network_port"
	ChangeDockerPath    ChangeType = "eth_docker_path"
)

// Change is one field update that brings a node in line with discovery.
// Network is set for network-scoped changes.
type Change struct {
	Type     ChangeType `json:"type" yaml:"type"`
	Network  string     `json:"network,omitempty" yaml:"network,omitempty"`
	OldValue any        `json:"old_value" yaml:"old_value"`
	NewValue any        `json:"new_value" yaml:"new_value"`
}

func (c Change) String() string {
	if c.Network != "" {
		return fmt.Sprintf("%s[%s]: %v -> %v", c.Type, c.Network, c.OldValue, c.NewValue)
	}
	return fmt.Sprintf("%s: %v -> %v", c.Type, c.OldValue, c.NewValue)
}

// Analyze lists the changes node needs to match res.
//
// The top-level beacon port is compared with the first live port on
// single-network nodes and with the primary network's live port on
// multi-network nodes. Stacks are only changed when discovery found some.
// Configured networks that are not active are removed; the others take
// their live port.
func Analyze(node *fleet.NodeConfig, res *discovery.Result) []Change {
	var changes []Change

	if c, ok := beaconPortChange(node, res); ok {
		changes = append(changes, c)
	}
	if c, ok := stackChange(node, res); ok {
		changes = append(changes, c)
	}

	keys := node.NetworkKeys()
	for _, key := range keys {
		if !res.HasNetwork(key) {
			changes = append(changes, Change{Type: ChangeRemoveNetwork, Network: key, OldValue: key})
		}
	}
	for _, key := range keys {
		if !res.HasNetwork(key) {
			continue
		}
		if c, ok := networkPortChange(node, res, key); ok {
			changes = append(changes, c)
		}
	}
	return changes
}

// expectedPort returns the live port the top-level beacon_api_port should
// hold.
func expectedPort(node *fleet.NodeConfig, res *discovery.Result) (int, bool) {
	if primary := node.PrimaryNetworkKey(); primary != "" {
		return res.Port(primary)
	}
	return res.FirstPort()
}

func beaconPortChange(node *fleet.NodeConfig, res *discovery.Result) (Change, bool) {
	if node.BeaconAPIPort == nil {
		return Change{}, false
	}
	port, ok := expectedPort(node, res)
	if !ok || port == *node.BeaconAPIPort {
		return Change{}, false
	}
	return Change{Type: ChangeBeaconPort, OldValue: *node.BeaconAPIPort, NewValue: port}, true
}

func stackChange(node *fleet.NodeConfig, res *discovery.Result) (Change, bool) {
	if len(res.DetectedStacks) == 0 || sameSet(node.Stack, res.DetectedStacks) {
		return Change{}, false
	}
	return Change{Type: ChangeStack, OldValue: sortedCopy(node.Stack), NewValue: sortedCopy(res.DetectedStacks)}, true
}

func networkPortChange(node *fleet.NodeConfig, res *discovery.Result, key string) (Change, bool) {
	nc := node.Networks[key]
	port, ok := res.Port(key)
	if nc == nil || !ok || nc.BeaconAPIPort == 0 || nc.BeaconAPIPort == port {
		return Change{}, false
	}
	return Change{Type: ChangeNetworkPort, Network: key, OldValue: nc.BeaconAPIPort, NewValue: port}, true
}

// ApplyChanges writes changes onto node. The top-level beacon_api_port and
// eth_docker_path of a multi-network node stay mirrored to the primary
// network: updating or removing the primary re-mirrors both, and a docker
// path change is written to the primary network as well.
func ApplyChanges(node *fleet.NodeConfig, changes []Change) error {
	for _, c := range changes {
		if err := applyChange(node, c); err != nil {
			return fmt.Errorf("%s: %w", node.Name, err)
		}
	}
	return nil
}

func applyChange(node *fleet.NodeConfig, c Change) error {
	switch c.Type {
	case ChangeBeaconPort:
		port, ok := c.NewValue.(int)
		if !ok {
			return fmt.Errorf("beacon port change carries %T", c.NewValue)
		}
		node.BeaconAPIPort = fleet.Ptr(port)

	case ChangeStack:
		stack, ok := c.NewValue.([]string)
		if !ok || len(stack) == 0 {
			return fmt.Errorf("refusing to set an empty stack")
		}
		node.Stack = sortedCopy(stack)

	case ChangeDockerPath:
		path, ok := c.NewValue.(string)
		if !ok || path == "" {
			return fmt.Errorf("refusing to set an empty docker path")
		}
		node.EthDockerPath = path
		if nc := node.Networks[node.PrimaryNetworkKey()]; nc != nil {
			nc.EthDockerPath = path
		}

	case ChangeRemoveNetwork:
		if _, ok := node.Networks[c.Network]; !ok {
			return fmt.Errorf("network %q is not configured", c.Network)
		}
		primary := node.PrimaryNetworkKey()
		delete(node.Networks, c.Network)
		if len(node.Networks) == 0 {
			node.Networks = nil
		} else if c.Network == primary {
			mirrorPrimary(node)
		}

	case ChangeNetworkPort:
		nc, ok := node.Networks[c.Network]
		if !ok {
			return fmt.Errorf("network %q is not configured", c.Network)
		}
		port, ok := c.NewValue.(int)
		if !ok {
			return fmt.Errorf("network port change carries %T", c.NewValue)
		}
		nc.BeaconAPIPort = port
		if c.Network == node.PrimaryNetworkKey() {
			mirrorPrimary(node)
		}

	default:
		return fmt.Errorf("unknown change type %q", c.Type)
	}
	return nil
}

func mirrorPrimary(node *fleet.NodeConfig) {
	nc := node.Networks[node.PrimaryNetworkKey()]
	if nc == nil {
		return
	}
	if nc.BeaconAPIPort != 0 {
		node.BeaconAPIPort = fleet.Ptr(nc.BeaconAPIPort)
	}
	if nc.EthDockerPath != "" {
		node.EthDockerPath = nc.EthDockerPath
	}
}

func sameSet(a, b []string) bool {
	as := make(map[string]bool, len(a))
	for _, s := range a {
		as[s] = true
	}
	bs := make(map[string]bool, len(b))
	for _, s := range b {
		bs[s] = true
	}
	if len(as) != len(bs) {
		return false
	}
	for s := range as {
		if !bs[s] {
			return false
		}
	}
	return true
}

func sortedCopy(s []string) []string {
	out := append([]string{}, s...)
	sort.Strings(out)
	return out
}
