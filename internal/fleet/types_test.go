package fleet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeConfigDisabled(t *testing.T) {
	tests := []struct {
		name string
		node NodeConfig
		want bool
	}{
		{"plain", NodeConfig{Name: "a", Stack: []string{"eth-docker"}}, false},
		{"disabled stack", NodeConfig{Name: "a", Stack: []string{"disabled"}}, true},
		{"clients off", NodeConfig{Name: "a", EthereumClientsEnabled: Ptr(false)}, true},
		{"clients on", NodeConfig{Name: "a", EthereumClientsEnabled: Ptr(true)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.node.Disabled())
		})
	}
}

func TestNodeConfigTarget(t *testing.T) {
	remote := NodeConfig{Name: "alpha", SSHUser: "egk", TailscaleDomain: "alpha.ts.net", SSHPort: 2222}
	target := remote.Target()
	assert.False(t, target.Local)
	assert.Equal(t, "egk", target.User)
	assert.Equal(t, "alpha.ts.net", target.Host)
	assert.Equal(t, 2222, target.Port)

	local := NodeConfig{Name: "laptop", SSHUser: "local"}
	assert.True(t, local.Target().Local)
	assert.Equal(t, "laptop", local.Target().Name)
}

func TestPrimaryNetworkKey(t *testing.T) {
	n := NodeConfig{Name: "a"}
	assert.Equal(t, "", n.PrimaryNetworkKey())

	n.Networks = map[string]*NetworkConfig{"testnet": {}, "sepolia": {}}
	assert.Equal(t, "sepolia", n.PrimaryNetworkKey())

	n.Networks["mainnet"] = &NetworkConfig{}
	assert.Equal(t, "mainnet", n.PrimaryNetworkKey())
	assert.Equal(t, []string{"mainnet", "sepolia", "testnet"}, n.NetworkKeys())
}

func TestCloneIsDeep(t *testing.T) {
	doc := &Document{Nodes: []*NodeConfig{{
		Name:          "alpha",
		Stack:         []string{"eth-docker"},
		BeaconAPIPort: Ptr(5052),
		Networks:      map[string]*NetworkConfig{"mainnet": {BeaconAPIPort: 5052}},
		Extra:         map[string]any{"metrics": map[string]any{"port": 9090}},
	}}}

	c := doc.Clone()
	c.Nodes[0].Stack[0] = "rocketpool"
	*c.Nodes[0].BeaconAPIPort = 5053
	c.Nodes[0].Networks["mainnet"].BeaconAPIPort = 5053
	c.Nodes[0].Extra["metrics"].(map[string]any)["port"] = 1

	orig := doc.Nodes[0]
	assert.Equal(t, "eth-docker", orig.Stack[0])
	assert.Equal(t, 5052, orig.Port())
	assert.Equal(t, 5052, orig.Networks["mainnet"].BeaconAPIPort)
	assert.Equal(t, 9090, orig.Extra["metrics"].(map[string]any)["port"])
}

func TestDocumentNodeAndAdd(t *testing.T) {
	doc := &Document{}
	require.NoError(t, doc.Add(&NodeConfig{Name: "alpha"}))
	assert.Error(t, doc.Add(&NodeConfig{Name: "alpha"}))
	assert.Error(t, doc.Add(&NodeConfig{}))

	n, err := doc.Node("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", n.Name)

	_, err = doc.Node("zeta")
	assert.True(t, errors.Is(err, ErrNodeNotFound))
}

func TestNodeConfigValidate(t *testing.T) {
	assert.NoError(t, (&NodeConfig{Name: "alpha", BeaconAPIPort: Ptr(5052)}).Validate())

	err := (&NodeConfig{Name: "alpha", BeaconAPIPort: Ptr(70000)}).Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"beacon_api_port: 70000 is out of range 1-65535"}, verr.Problems)
}
