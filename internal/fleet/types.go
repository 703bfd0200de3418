package fleet

import (
	"errors"
	"fmt"
	"sort"

	"fleetsync/internal/executor"
)

// StackDisabled marks a node whose Ethereum clients are intentionally off.
const StackDisabled = "disabled"

// MainnetKey is the network key preferred as primary network.
const MainnetKey = "mainnet"

// ErrNodeNotFound is returned when a node name is not present in the document.
var ErrNodeNotFound = errors.New("node not found")

// Document is the fleet configuration document. Unknown top-level keys are
// kept in Extra so a load/save cycle does not drop operator settings.
type Document struct {
	Nodes []*NodeConfig  `yaml:"nodes" json:"nodes" validate:"dive,required"`
	Extra map[string]any `yaml:",inline" json:"-"`
}

// NodeConfig is the persisted configuration of one machine.
//
// When Networks is non-empty, BeaconAPIPort and EthDockerPath mirror the
// primary network (see PrimaryNetworkKey).
type NodeConfig struct {
	Name                   string                    `yaml:"name" json:"name" validate:"required"`
	TailscaleDomain        string                    `yaml:"tailscale_domain,omitempty" json:"tailscale_domain,omitempty" validate:"omitempty,hostname_rfc1123"`
	SSHUser                string                    `yaml:"ssh_user,omitempty" json:"ssh_user,omitempty"`
	SSHPort                int                       `yaml:"ssh_port,omitempty" json:"ssh_port,omitempty" validate:"omitempty,min=1,max=65535"`
	IsLocal                bool                      `yaml:"is_local,omitempty" json:"is_local,omitempty"`
	Stack                  []string                  `yaml:"stack,omitempty" json:"stack,omitempty" validate:"omitempty,dive,required"`
	EthereumClientsEnabled *bool                     `yaml:"ethereum_clients_enabled,omitempty" json:"ethereum_clients_enabled,omitempty"`
	BeaconAPIPort          *int                      `yaml:"beacon_api_port,omitempty" json:"beacon_api_port,omitempty" validate:"omitempty,min=1,max=65535"`
	EthDockerPath          string                    `yaml:"eth_docker_path,omitempty" json:"eth_docker_path,omitempty"`
	Networks               map[string]*NetworkConfig `yaml:"networks,omitempty" json:"networks,omitempty" validate:"omitempty,dive,required"`
	Extra                  map[string]any            `yaml:",inline" json:"-"`
}

// NetworkConfig describes one network served by a multi-network node.
type NetworkConfig struct {
	NetworkName     string         `yaml:"network_name,omitempty" json:"network_name,omitempty"`
	ContainerPrefix string         `yaml:"container_prefix,omitempty" json:"container_prefix,omitempty"`
	EthDockerPath   string         `yaml:"eth_docker_path,omitempty" json:"eth_docker_path,omitempty"`
	BeaconAPIPort   int            `yaml:"beacon_api_port,omitempty" json:"beacon_api_port,omitempty" validate:"omitempty,min=1,max=65535"`
	Extra           map[string]any `yaml:",inline" json:"-"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Disabled reports whether the node is excluded from discovery.
func (n *NodeConfig) Disabled() bool {
	if n.EthereumClientsEnabled != nil && !*n.EthereumClientsEnabled {
		return true
	}
	for _, s := range n.Stack {
		if s == StackDisabled {
			return true
		}
	}
	return false
}

// Local reports whether commands for this node run on this machine.
func (n *NodeConfig) Local() bool {
	return n.IsLocal || n.SSHUser == "local"
}

// Host returns the address used to reach the node over SSH.
func (n *NodeConfig) Host() string {
	if n.TailscaleDomain != "" {
		return n.TailscaleDomain
	}
	return n.Name
}

// Target returns the execution target for this node.
func (n *NodeConfig) Target() executor.Target {
	if n.Local() {
		return executor.Target{Name: n.Name, Local: true}
	}
	return executor.Target{
		Name: n.Name,
		User: n.SSHUser,
		Host: n.Host(),
		Port: n.SSHPort,
	}
}

// NetworkKeys returns the configured network keys with the primary network
// first and the rest sorted, giving a stable iteration order.
func (n *NodeConfig) NetworkKeys() []string {
	keys := make([]string, 0, len(n.Networks))
	for k := range n.Networks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	primary := n.PrimaryNetworkKey()
	for i, k := range keys {
		if k == primary && i > 0 {
			copy(keys[1:i+1], keys[:i])
			keys[0] = primary
			break
		}
	}
	return keys
}

// PrimaryNetworkKey returns "mainnet" when configured, otherwise the
// lexically first network key, or "" for single-network nodes.
func (n *NodeConfig) PrimaryNetworkKey() string {
	if len(n.Networks) == 0 {
		return ""
	}
	if _, ok := n.Networks[MainnetKey]; ok {
		return MainnetKey
	}
	first := ""
	for k := range n.Networks {
		if first == "" || k < first {
			first = k
		}
	}
	return first
}

// Port returns the configured beacon API port or 0.
func (n *NodeConfig) Port() int {
	if n.BeaconAPIPort == nil {
		return 0
	}
	return *n.BeaconAPIPort
}

// Clone returns a deep copy of the node.
func (n *NodeConfig) Clone() *NodeConfig {
	if n == nil {
		return nil
	}
	c := *n
	if n.Stack != nil {
		c.Stack = append([]string(nil), n.Stack...)
	}
	if n.EthereumClientsEnabled != nil {
		c.EthereumClientsEnabled = Ptr(*n.EthereumClientsEnabled)
	}
	if n.BeaconAPIPort != nil {
		c.BeaconAPIPort = Ptr(*n.BeaconAPIPort)
	}
	if n.Networks != nil {
		c.Networks = make(map[string]*NetworkConfig, len(n.Networks))
		for k, v := range n.Networks {
			c.Networks[k] = v.Clone()
		}
	}
	c.Extra = cloneMap(n.Extra)
	return &c
}

// Clone returns a deep copy of the network.
func (nc *NetworkConfig) Clone() *NetworkConfig {
	if nc == nil {
		return nil
	}
	c := *nc
	c.Extra = cloneMap(nc.Extra)
	return &c
}

// Node returns the node with the given name.
func (d *Document) Node(name string) (*NodeConfig, error) {
	for _, n := range d.Nodes {
		if n != nil && n.Name == name {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, name)
}

// Add appends a node, rejecting duplicate names.
func (d *Document) Add(node *NodeConfig) error {
	if node == nil || node.Name == "" {
		return fmt.Errorf("node name cannot be empty")
	}
	if _, err := d.Node(node.Name); err == nil {
		return fmt.Errorf("node %q already exists", node.Name)
	}
	d.Nodes = append(d.Nodes, node)
	return nil
}

// EnabledNodes returns the nodes that take part in discovery, in
// document order.
func (d *Document) EnabledNodes() []*NodeConfig {
	var out []*NodeConfig
	for _, n := range d.Nodes {
		if n != nil && !n.Disabled() {
			out = append(out, n)
		}
	}
	return out
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := &Document{Extra: cloneMap(d.Extra)}
	if d.Nodes != nil {
		c.Nodes = make([]*NodeConfig, len(d.Nodes))
		for i, n := range d.Nodes {
			c.Nodes[i] = n.Clone()
		}
	}
	return c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
