package discovery

import (
	"path/filepath"
	"strings"
)

// NetworkClassifier infers active networks from running containers.
// dockerPaths are the install directories found on the node.
type NetworkClassifier interface {
	Classify(containers []Container, dockerPaths []string) []Network
}

// NetworkRule maps a container name marker to a network.
type NetworkRule struct {
	Key             string
	NetworkName     string
	ContainerPrefix string
	// Marker must appear in the container name and Exclude must not.
	Marker      string
	Exclude     string
	DefaultPath string
}

// DefaultNetworkRules recognise the eth-docker mainnet install and the
// eth-hoodi testnet install.
var DefaultNetworkRules = []NetworkRule{
	{
		Key:             "mainnet",
		NetworkName:     "mainnet",
		ContainerPrefix: "eth-docker",
		Marker:          "eth-docker",
		Exclude:         "eth-hoodi",
		DefaultPath:     "/root/eth-docker",
	},
	{
		Key:             "testnet",
		NetworkName:     "hoodi",
		ContainerPrefix: "eth-hoodi",
		Marker:          "eth-hoodi",
		DefaultPath:     "/root/eth-hoodi",
	},
}

// MarkerClassifier matches each container against Rules in order; the first
// matching rule wins for that container and a network is recorded once.
type MarkerClassifier struct {
	Rules []NetworkRule
}

// NewMarkerClassifier returns a classifier over DefaultNetworkRules.
func NewMarkerClassifier() *MarkerClassifier {
	return &MarkerClassifier{Rules: DefaultNetworkRules}
}

// Classify implements NetworkClassifier.
func (m *MarkerClassifier) Classify(containers []Container, dockerPaths []string) []Network {
	networks := []Network{}
	seen := make(map[string]bool)

	for _, c := range containers {
		name := strings.ToLower(c.Name)
		for _, rule := range m.Rules {
			if !strings.Contains(name, rule.Marker) {
				continue
			}
			if rule.Exclude != "" && strings.Contains(name, rule.Exclude) {
				continue
			}
			if !seen[rule.Key] {
				seen[rule.Key] = true
				networks = append(networks, Network{
					Key:             rule.Key,
					NetworkName:     rule.NetworkName,
					ContainerPrefix: rule.ContainerPrefix,
					EthDockerPath:   pathFor(rule, dockerPaths),
				})
			}
			break
		}
	}
	return networks
}

// pathFor returns the first discovered directory named after the rule's
// container prefix, or the rule's default.
func pathFor(rule NetworkRule, dockerPaths []string) string {
	for _, p := range dockerPaths {
		if filepath.Base(p) == rule.ContainerPrefix {
			return p
		}
	}
	return rule.DefaultPath
}
