package discovery

import (
	"fmt"
	"strings"
)

// VersionEndpoint is checked on every candidate port.
const VersionEndpoint = "/eth/v1/node/version"

// DefaultCandidatePaths are the install directories checked on each node.
// Entries may contain shell globs; a hit is one existing directory.
var DefaultCandidatePaths = []string{
	"/opt/eth-docker",
	"/home/*/eth-docker",
	"/home/*/eth-hoodi",
	"/root/eth-docker",
}

// DefaultCandidatePorts are the beacon API ports checked on each node.
var DefaultCandidatePorts = []int{5052, 5053, 5054, 5155, 5156}

// PortNetworks attributes a live port to a network key.
var PortNetworks = map[int]string{
	5052: "mainnet",
	5053: "testnet",
	5154: "holesky",
	5155: "sepolia",
}

// NetworkForPort returns the network key for port, or unknown_port_<N>.
func NetworkForPort(port int) string {
	if n, ok := PortNetworks[port]; ok {
		return n
	}
	return fmt.Sprintf("unknown_port_%d", port)
}

// StackRule tags a container with Stack when its name contains any of
// InName or its image contains any of InImage, unless the name contains
// any of NotInName.
type StackRule struct {
	Stack     string
	InName    []string
	InImage   []string
	NotInName []string
}

// StackRules is evaluated against every container; all matching rules
// contribute their tag.
var StackRules = []StackRule{
	{Stack: "eth-docker", InName: []string{"eth-docker"}},
	{Stack: "eth-hoodi", InName: []string{"eth-hoodi"}, NotInName: []string{"eth-docker"}},
	{Stack: "obol", InName: []string{"charon"}, InImage: []string{"charon"}},
	{Stack: "lido-csm", InName: []string{"csm", "lido"}},
	{Stack: "rocketpool", InName: []string{"rocketpool", "rocket"}},
	{Stack: "hyperdrive", InName: []string{"hyperdrive"}, InImage: []string{"nodeset"}},
}

// Match reports whether the rule tags c.
func (r StackRule) Match(c Container) bool {
	name := strings.ToLower(c.Name)
	image := strings.ToLower(c.Image)
	if containsAny(name, r.NotInName) {
		return false
	}
	return containsAny(name, r.InName) || containsAny(image, r.InImage)
}

// ClientRule identifies a client implementation. Markers are matched
// against container names and images.
type ClientRule struct {
	Name    string
	Role    Role
	Markers []string
}

// ClientRules is ordered; the first rule whose marker appears in an image
// names the client.
var ClientRules = []ClientRule{
	{Name: "geth", Role: RoleExecution, Markers: []string{"geth", "client-go"}},
	{Name: "nethermind", Role: RoleExecution, Markers: []string{"nethermind"}},
	{Name: "reth", Role: RoleExecution, Markers: []string{"reth"}},
	{Name: "besu", Role: RoleExecution, Markers: []string{"besu"}},
	{Name: "erigon", Role: RoleExecution, Markers: []string{"erigon"}},
	{Name: "lighthouse", Role: RoleConsensus, Markers: []string{"lighthouse"}},
	{Name: "prysm", Role: RoleConsensus, Markers: []string{"prysm"}},
	{Name: "teku", Role: RoleConsensus, Markers: []string{"teku"}},
	{Name: "nimbus", Role: RoleConsensus, Markers: []string{"nimbus"}},
	{Name: "lodestar", Role: RoleConsensus, Markers: []string{"lodestar"}},
	{Name: "grandine", Role: RoleConsensus, Markers: []string{"grandine"}},
}

// UnknownClient names a container whose image matches no client rule.
const UnknownClient = "unknown"

// ClientFromImage returns the client name for image.
func ClientFromImage(image string) string {
	image = strings.ToLower(image)
	for _, r := range ClientRules {
		if containsAny(image, r.Markers) {
			return r.Name
		}
	}
	return UnknownClient
}

func markersFor(role Role) []string {
	var out []string
	for _, r := range ClientRules {
		if r.Role == role {
			out = append(out, r.Markers...)
		}
	}
	return out
}

var (
	executionMarkers = markersFor(RoleExecution)
	consensusMarkers = markersFor(RoleConsensus)
)

// ClassifyRole returns the role a container serves.
//
// A container is execution when an execution marker appears in its name or
// image and its name says execution or names the client. Otherwise it is
// consensus when a consensus marker appears and its name says consensus or
// does not say validator. Otherwise it is a validator when its name says
// validator but not consensus, so all-in-one consensus containers are never
// reported as plain validators.
func ClassifyRole(c Container) (Role, bool) {
	name := strings.ToLower(c.Name)
	image := strings.ToLower(c.Image)

	if containsAny(name, executionMarkers) || containsAny(image, executionMarkers) {
		if strings.Contains(name, "execution") || containsAny(name, executionMarkers) {
			return RoleExecution, true
		}
	}
	if containsAny(name, consensusMarkers) || containsAny(image, consensusMarkers) {
		if strings.Contains(name, "consensus") || !strings.Contains(name, "validator") {
			return RoleConsensus, true
		}
	}
	if strings.Contains(name, "validator") && !strings.Contains(name, "consensus") {
		return RoleValidator, true
	}
	return "", false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
