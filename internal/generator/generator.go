package generator

import (
	"sort"

	"fleetsync/internal/discovery"
	"fleetsync/internal/fleet"
	"fleetsync/pkg/logging"
)

// Kind names a fragment shape.
type Kind string

const (
	KindDisabled      Kind = "disabled"
	KindSingleNetwork Kind = "single_network"
	KindMultiNetwork  Kind = "multi_network"
)

// defaultPorts are used when discovery found no live port for a network.
var defaultPorts = map[string]int{
	"mainnet": 5052,
	"testnet": 5053,
	"hoodi":   5053,
	"holesky": 5154,
	"sepolia": 5155,
}

// defaultPath is used when a network carries no docker path.
const defaultPath = "/root/eth-docker"

// DefaultPort returns the conventional beacon API port for network.
func DefaultPort(network string) int {
	if p, ok := defaultPorts[network]; ok {
		return p
	}
	return 5052
}

// Fragment is a generated configuration shape.
type Fragment interface {
	Kind() Kind
	// Apply writes the fragment onto node, replacing the fields it owns.
	Apply(node *fleet.NodeConfig)
}

// DisabledFragment marks a node with no active network.
type DisabledFragment struct{}

// Kind implements Fragment.
func (DisabledFragment) Kind() Kind { return KindDisabled }

// Apply implements Fragment.
func (DisabledFragment) Apply(node *fleet.NodeConfig) {
	node.EthereumClientsEnabled = fleet.Ptr(false)
	node.Stack = []string{fleet.StackDisabled}
	node.BeaconAPIPort = nil
	node.Networks = nil
}

// SingleNetworkFragment configures a node serving one network.
type SingleNetworkFragment struct {
	Network       string
	EthDockerPath string
	BeaconAPIPort int
	Stack         []string
}

// Kind implements Fragment.
func (SingleNetworkFragment) Kind() Kind { return KindSingleNetwork }

// Apply implements Fragment.
func (f SingleNetworkFragment) Apply(node *fleet.NodeConfig) {
	enable(node)
	node.EthDockerPath = f.EthDockerPath
	node.BeaconAPIPort = fleet.Ptr(f.BeaconAPIPort)
	node.Networks = nil
	if len(f.Stack) > 0 {
		node.Stack = append([]string(nil), f.Stack...)
	}
}

// NetworkEntry is one network of a multi-network fragment.
type NetworkEntry struct {
	Key    string
	Config fleet.NetworkConfig
}

// MultiNetworkFragment configures a node serving several networks. The
// top-level path and port mirror Primary.
type MultiNetworkFragment struct {
	Primary       string
	EthDockerPath string
	BeaconAPIPort int
	Networks      []NetworkEntry
	Stack         []string
}

// Kind implements Fragment.
func (MultiNetworkFragment) Kind() Kind { return KindMultiNetwork }

// Apply implements Fragment.
func (f MultiNetworkFragment) Apply(node *fleet.NodeConfig) {
	enable(node)
	node.EthDockerPath = f.EthDockerPath
	node.BeaconAPIPort = fleet.Ptr(f.BeaconAPIPort)
	node.Networks = make(map[string]*fleet.NetworkConfig, len(f.Networks))
	for _, n := range f.Networks {
		cfg := n.Config
		node.Networks[n.Key] = &cfg
	}
	if len(f.Stack) > 0 {
		node.Stack = append([]string(nil), f.Stack...)
	}
}

// enable clears an explicit disable left by a previous DisabledFragment.
func enable(node *fleet.NodeConfig) {
	if node.EthereumClientsEnabled != nil {
		node.EthereumClientsEnabled = fleet.Ptr(true)
	}
	var stack []string
	for _, s := range node.Stack {
		if s != fleet.StackDisabled {
			stack = append(stack, s)
		}
	}
	node.Stack = stack
}

// Generate picks the fragment shape for res.
func Generate(res *discovery.Result) Fragment {
	var f Fragment
	switch len(res.Networks) {
	case 0:
		f = DisabledFragment{}
	case 1:
		f = single(res)
	default:
		f = multi(res)
	}
	logging.Debug("Generator", "Generated %s fragment for %s", f.Kind(), res.NodeName)
	return f
}

func single(res *discovery.Result) SingleNetworkFragment {
	n := res.Networks[0]
	port, ok := res.Port(n.Key)
	if !ok {
		port, ok = res.FirstPort()
	}
	if !ok {
		port = DefaultPort(n.Key)
	}
	return SingleNetworkFragment{
		Network:       n.Key,
		EthDockerPath: pathOrDefault(n.EthDockerPath),
		BeaconAPIPort: port,
		Stack:         stacks(res),
	}
}

func multi(res *discovery.Result) MultiNetworkFragment {
	primary := res.Networks[0].Key
	if res.HasNetwork(fleet.MainnetKey) {
		primary = fleet.MainnetKey
	}

	f := MultiNetworkFragment{Primary: primary, Stack: stacks(res)}
	for _, n := range res.Networks {
		port, ok := res.Port(n.Key)
		if !ok {
			port = DefaultPort(n.Key)
		}
		entry := NetworkEntry{Key: n.Key, Config: fleet.NetworkConfig{
			NetworkName:     n.NetworkName,
			ContainerPrefix: n.ContainerPrefix,
			EthDockerPath:   pathOrDefault(n.EthDockerPath),
			BeaconAPIPort:   port,
		}}
		if n.Key == primary {
			f.EthDockerPath = entry.Config.EthDockerPath
			f.BeaconAPIPort = port
		}
		f.Networks = append(f.Networks, entry)
	}
	return f
}

func stacks(res *discovery.Result) []string {
	if len(res.DetectedStacks) == 0 {
		return nil
	}
	out := append([]string(nil), res.DetectedStacks...)
	sort.Strings(out)
	return out
}

func pathOrDefault(p string) string {
	if p == "" {
		return defaultPath
	}
	return p
}

// NewNode builds a node from a discovery result, taking the name and
// transport fields from the discovered target.
func NewNode(res *discovery.Result) *fleet.NodeConfig {
	t := res.Target
	node := &fleet.NodeConfig{Name: res.NodeName}
	if t.Local {
		node.IsLocal = true
	} else {
		node.SSHUser = t.User
		if t.Host != "" && t.Host != res.NodeName {
			node.TailscaleDomain = t.Host
		}
		node.SSHPort = t.Port
	}
	Generate(res).Apply(node)
	return node
}

// Optimize returns a copy of current updated to match res: live ports,
// detected stacks and removal of inactive networks. The node keeps its
// single or multi-network shape.
func Optimize(current *fleet.NodeConfig, res *discovery.Result) *fleet.NodeConfig {
	out := current.Clone()

	if len(out.Networks) > 0 {
		for key, nc := range out.Networks {
			if port, ok := res.Port(key); ok {
				nc.BeaconAPIPort = port
			}
		}
		for key := range out.Networks {
			if !res.HasNetwork(key) {
				logging.Info("Generator", "Removing inactive network %s from %s", key, out.Name)
				delete(out.Networks, key)
			}
		}
		if primary := out.PrimaryNetworkKey(); primary != "" {
			nc := out.Networks[primary]
			if nc.BeaconAPIPort != 0 {
				out.BeaconAPIPort = fleet.Ptr(nc.BeaconAPIPort)
			}
			if nc.EthDockerPath != "" {
				out.EthDockerPath = nc.EthDockerPath
			}
		}
	} else if port, ok := res.FirstPort(); ok {
		out.BeaconAPIPort = fleet.Ptr(port)
	}

	if s := stacks(res); s != nil {
		out.Stack = s
	}
	return out
}
