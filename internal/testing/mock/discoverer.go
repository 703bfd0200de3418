package mock

import (
	"context"
	"fmt"
	"sync"

	"fleetsync/internal/discovery"
	"fleetsync/internal/executor"
)

// StaticDiscoverer returns preset discovery results per node name. A node
// can instead be set to return an error or to panic. Nodes without a
// preset get an empty result.
type StaticDiscoverer struct {
	mu      sync.Mutex
	results map[string]*discovery.Result
	errs    map[string]error
	panics  map[string]bool
	calls   map[string]int
}

// NewStaticDiscoverer creates a discoverer with no presets.
func NewStaticDiscoverer() *StaticDiscoverer {
	return &StaticDiscoverer{
		results: make(map[string]*discovery.Result),
		errs:    make(map[string]error),
		panics:  make(map[string]bool),
		calls:   make(map[string]int),
	}
}

// Set makes node discover as res.
func (s *StaticDiscoverer) Set(node string, res *discovery.Result) *StaticDiscoverer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[node] = res
	delete(s.errs, node)
	delete(s.panics, node)
	return s
}

// Fail makes discovery of node return err.
func (s *StaticDiscoverer) Fail(node string, err error) *StaticDiscoverer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[node] = err
	return s
}

// Panic makes discovery of node panic.
func (s *StaticDiscoverer) Panic(node string) *StaticDiscoverer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panics[node] = true
	return s
}

// Calls returns how often node was discovered.
func (s *StaticDiscoverer) Calls(node string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[node]
}

// Discover implements discovery.Discoverer.
func (s *StaticDiscoverer) Discover(_ context.Context, target executor.Target) (*discovery.Result, error) {
	s.mu.Lock()
	s.calls[target.Name]++
	res, err, panics := s.results[target.Name], s.errs[target.Name], s.panics[target.Name]
	s.mu.Unlock()

	if panics {
		panic(fmt.Sprintf("discovery of %s blew up", target.Name))
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return discovery.NewResult(target), nil
	}
	return res, nil
}

// Result builds a discovery result for tests. Ports are attributed with
// discovery.NetworkForPort and networks use the default marker rules.
func Result(node string, stacks []string, networks []string, ports ...int) *discovery.Result {
	res := discovery.NewResult(executor.Target{Name: node})
	for _, key := range networks {
		n := discovery.Network{Key: key, NetworkName: key}
		for _, rule := range discovery.DefaultNetworkRules {
			if rule.Key == key {
				n = discovery.Network{
					Key:             key,
					NetworkName:     rule.NetworkName,
					ContainerPrefix: rule.ContainerPrefix,
					EthDockerPath:   rule.DefaultPath,
				}
			}
		}
		res.Networks = append(res.Networks, n)
	}
	for _, p := range ports {
		res.APIPorts = append(res.APIPorts, discovery.PortBinding{Network: discovery.NetworkForPort(p), Port: p})
	}
	res.DetectedStacks = append(res.DetectedStacks, stacks...)
	return res
}
