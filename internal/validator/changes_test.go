package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetsync/internal/discovery"
	"fleetsync/internal/fleet"
	"fleetsync/internal/testing/mock"
)

func TestAnalyzeSingleNetwork(t *testing.T) {
	node := &fleet.NodeConfig{Name: "alpha", Stack: []string{"rocketpool", "eth-docker"}, BeaconAPIPort: fleet.Ptr(5052)}

	changes := Analyze(node, mock.Result("alpha", []string{"eth-docker"}, []string{"mainnet"}, 5053))
	assert.Equal(t, []Change{
		{Type: ChangeBeaconPort, OldValue: 5052, NewValue: 5053},
		{Type: ChangeStack, OldValue: []string{"eth-docker", "rocketpool"}, NewValue: []string{"eth-docker"}},
	}, changes)

	// No live ports and no detected stacks leave the node alone.
	assert.Empty(t, Analyze(node, mock.Result("alpha", nil, nil)))

	// An unset port is never filled in.
	unset := &fleet.NodeConfig{Name: "beta", Stack: []string{"eth-docker"}}
	assert.Empty(t, Analyze(unset, mock.Result("beta", []string{"eth-docker"}, nil, 5052)))
}

func TestAnalyzeMultiNetwork(t *testing.T) {
	node := multiNetworkNode()
	res := betaResult()

	changes := Analyze(node, res)
	assert.Equal(t, []Change{
		{Type: ChangeBeaconPort, OldValue: 5052, NewValue: 5062},
		{Type: ChangeStack, OldValue: []string{"eth-docker", "obol"}, NewValue: []string{"eth-docker"}},
		{Type: ChangeRemoveNetwork, Network: "testnet", OldValue: "testnet"},
		{Type: ChangeNetworkPort, Network: "mainnet", OldValue: 5052, NewValue: 5062},
	}, changes)

	require.NoError(t, ApplyChanges(node, changes))
	assert.Equal(t, 5062, node.Port())
	assert.Equal(t, []string{"mainnet"}, node.NetworkKeys())
	assert.Equal(t, 5062, node.Networks["mainnet"].BeaconAPIPort)
	assert.Equal(t, []string{"eth-docker"}, node.Stack)

	assert.Empty(t, Analyze(node, res))
}

func TestApplyChangesMirrorsPrimary(t *testing.T) {
	node := &fleet.NodeConfig{
		Name:          "gamma",
		BeaconAPIPort: fleet.Ptr(5052),
		Networks: map[string]*fleet.NetworkConfig{
			"mainnet": {BeaconAPIPort: 5052},
			"testnet": {BeaconAPIPort: 5053},
		},
	}

	require.NoError(t, ApplyChanges(node, []Change{{Type: ChangeNetworkPort, Network: "testnet", OldValue: 5053, NewValue: 5063}}))
	assert.Equal(t, 5052, node.Port(), "secondary network does not touch the top-level port")

	require.NoError(t, ApplyChanges(node, []Change{{Type: ChangeRemoveNetwork, Network: "mainnet"}}))
	assert.Equal(t, "testnet", node.PrimaryNetworkKey())
	assert.Equal(t, 5063, node.Port())

	require.NoError(t, ApplyChanges(node, []Change{{Type: ChangeRemoveNetwork, Network: "testnet"}}))
	assert.Nil(t, node.Networks)
	assert.Equal(t, 5063, node.Port())
}

func TestApplyChangesMirrorsDockerPath(t *testing.T) {
	node := &fleet.NodeConfig{
		Name:          "beta",
		EthDockerPath: "/root/eth-docker",
		Networks: map[string]*fleet.NetworkConfig{
			"mainnet": {BeaconAPIPort: 5052, EthDockerPath: "/root/eth-docker"},
			"testnet": {BeaconAPIPort: 5053, EthDockerPath: "/root/eth-hoodi"},
		},
	}

	require.NoError(t, ApplyChanges(node, []Change{{Type: ChangeDockerPath, OldValue: "/root/eth-docker", NewValue: "/home/egk/eth-docker"}}))
	assert.Equal(t, "/home/egk/eth-docker", node.EthDockerPath)
	assert.Equal(t, "/home/egk/eth-docker", node.Networks["mainnet"].EthDockerPath)
	assert.Equal(t, "/root/eth-hoodi", node.Networks["testnet"].EthDockerPath)

	require.NoError(t, ApplyChanges(node, []Change{{Type: ChangeRemoveNetwork, Network: "mainnet"}}))
	assert.Equal(t, "/root/eth-hoodi", node.EthDockerPath, "new primary's path is mirrored")
}

func TestApplyChangesRejectsBadChanges(t *testing.T) {
	node := &fleet.NodeConfig{Name: "alpha", Stack: []string{"eth-docker"}, EthDockerPath: "/root/eth-docker"}

	tests := map[string]Change{
		"empty stack":     {Type: ChangeStack, NewValue: []string{}},
		"empty path":      {Type: ChangeDockerPath, NewValue: ""},
		"port type":       {Type: ChangeBeaconPort, NewValue: "5052"},
		"missing network": {Type: ChangeRemoveNetwork, Network: "hoodi"},
		"missing port":    {Type: ChangeNetworkPort, Network: "hoodi", NewValue: 5053},
		"unknown":         {Type: "ssh_user", NewValue: "root"},
	}
	for name, c := range tests {
		t.Run(name, func(t *testing.T) {
			err := ApplyChanges(node, []Change{c})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "alpha")
		})
	}
	assert.Equal(t, []string{"eth-docker"}, node.Stack)
	assert.Equal(t, "/root/eth-docker", node.EthDockerPath)
}

func TestChangeString(t *testing.T) {
	assert.Equal(t, "beacon_api_port: 5052 -> 5053", Change{Type: ChangeBeaconPort, OldValue: 5052, NewValue: 5053}.String())
	assert.Equal(t, "network_port[testnet]: 5053 -> 5063", Change{Type: ChangeNetworkPort, Network: "testnet", OldValue: 5053, NewValue: 5063}.String())
}

func TestExpectedPortPrefersPrimaryNetwork(t *testing.T) {
	res := mock.Result("beta", nil, []string{"mainnet", "testnet"})
	res.APIPorts = []discovery.PortBinding{{Network: "testnet", Port: 5053}, {Network: "mainnet", Port: 5062}}

	port, ok := expectedPort(multiNetworkNode(), res)
	require.True(t, ok)
	assert.Equal(t, 5062, port)

	port, ok = expectedPort(&fleet.NodeConfig{Name: "alpha"}, res)
	require.True(t, ok)
	assert.Equal(t, 5053, port)
}
