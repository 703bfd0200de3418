// Package generator turns a discovery result into node configuration.
//
// Generate returns one of three fragment shapes depending on how many
// networks discovery found: DisabledFragment, SingleNetworkFragment or
// MultiNetworkFragment. A fragment is applied onto a fleet.NodeConfig with
// Apply; NewNode builds a fresh node from a result. Optimize rewrites an
// existing node to match discovery without changing its shape.
package generator
