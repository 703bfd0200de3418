package discovery

import (
	"context"

	"fleetsync/internal/executor"
)

// Discoverer learns the live state of one node. Implementations report check
// failures in Result.Errors; the error return is reserved for callers that
// wrap an Engine with something that can fail outright.
type Discoverer interface {
	Discover(ctx context.Context, target executor.Target) (*Result, error)
}

// Role is a client role on an Ethereum node.
type Role string

const (
	RoleExecution Role = "execution"
	RoleConsensus Role = "consensus"
	RoleValidator Role = "validator"
)

// Roles lists the client roles in display order.
var Roles = []Role{RoleExecution, RoleConsensus, RoleValidator}

// Container is one running container as reported by docker ps.
type Container struct {
	Name   string `json:"name" yaml:"name"`
	Image  string `json:"image" yaml:"image"`
	Status string `json:"status" yaml:"status"`
	Ports  string `json:"ports,omitempty" yaml:"ports,omitempty"`
}

// Network is an active network inferred from the container set.
type Network struct {
	Key             string `json:"key" yaml:"key"`
	NetworkName     string `json:"network_name" yaml:"network_name"`
	ContainerPrefix string `json:"container_prefix" yaml:"container_prefix"`
	EthDockerPath   string `json:"eth_docker_path" yaml:"eth_docker_path"`
}

// PortBinding is a beacon API port that answered the version check.
type PortBinding struct {
	Network string `json:"network" yaml:"network"`
	Port    int    `json:"port" yaml:"port"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Client identifies the container serving one role.
type Client struct {
	Name      string `json:"name" yaml:"name"`
	Container string `json:"container" yaml:"container"`
	Image     string `json:"image" yaml:"image"`
}

// Result is the outcome of discovering one node. Slices keep detection
// order; DetectedStacks is sorted.
type Result struct {
	NodeName       string          `json:"node_name" yaml:"node_name"`
	Target         executor.Target `json:"target" yaml:"target"`
	DockerPaths    []string        `json:"docker_paths" yaml:"docker_paths"`
	Containers     []Container     `json:"containers" yaml:"containers"`
	Networks       []Network       `json:"active_networks" yaml:"active_networks"`
	APIPorts       []PortBinding   `json:"api_ports" yaml:"api_ports"`
	DetectedStacks []string        `json:"detected_stacks" yaml:"detected_stacks"`
	Clients        map[Role]Client `json:"client_info" yaml:"client_info"`
	Errors         []string        `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// NewResult returns an empty result for target.
func NewResult(target executor.Target) *Result {
	return &Result{
		NodeName:       target.Name,
		Target:         target,
		DockerPaths:    []string{},
		Containers:     []Container{},
		Networks:       []Network{},
		APIPorts:       []PortBinding{},
		DetectedStacks: []string{},
		Clients:        map[Role]Client{},
	}
}

// Network returns the active network with the given key.
func (r *Result) Network(key string) (Network, bool) {
	for _, n := range r.Networks {
		if n.Key == key {
			return n, true
		}
	}
	return Network{}, false
}

// HasNetwork reports whether key is an active network.
func (r *Result) HasNetwork(key string) bool {
	_, ok := r.Network(key)
	return ok
}

// NetworkKeys returns the active network keys in detection order.
func (r *Result) NetworkKeys() []string {
	keys := make([]string, len(r.Networks))
	for i, n := range r.Networks {
		keys[i] = n.Key
	}
	return keys
}

// Port returns the live API port attributed to network.
func (r *Result) Port(network string) (int, bool) {
	for _, p := range r.APIPorts {
		if p.Network == network {
			return p.Port, true
		}
	}
	return 0, false
}

// FirstPort returns the first live API port in check order.
func (r *Result) FirstPort() (int, bool) {
	if len(r.APIPorts) == 0 {
		return 0, false
	}
	return r.APIPorts[0].Port, true
}

// HasStack reports whether stack was detected.
func (r *Result) HasStack(stack string) bool {
	for _, s := range r.DetectedStacks {
		if s == stack {
			return true
		}
	}
	return false
}

// Failed reports whether any step recorded an error.
func (r *Result) Failed() bool {
	return len(r.Errors) > 0
}
