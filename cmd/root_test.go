package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetsync/internal/config"
	"fleetsync/internal/fleet"
	"fleetsync/internal/monitor"
	"fleetsync/internal/validator"
)

func TestSetVersion(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()

	SetVersion("1.2.3-test")
	assert.Equal(t, "1.2.3-test", GetVersion())
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "fleetsync", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestVersionTemplate(t *testing.T) {
	testCmd := &cobra.Command{
		Use:     "test",
		Version: "1.0.0",
	}
	testCmd.SetVersionTemplate(`{{printf "fleetsync version %s\n" .Version}}`)

	var buf bytes.Buffer
	testCmd.SetOut(&buf)
	testCmd.SetArgs([]string{"--version"})
	require.NoError(t, testCmd.Execute())
	assert.Equal(t, "fleetsync version 1.0.0\n", buf.String())
}

func TestSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = true
	}
	for _, name := range []string{"version", "discover", "validate", "sync", "drift", "refresh", "monitor", "template"} {
		assert.True(t, found[name], "expected subcommand %s", name)
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"generic", errors.New("boom"), ExitCodeError},
		{"persistence", &fleet.PersistenceError{Path: "config.yaml", Op: "save", Err: errors.New("disk full")}, ExitCodePersistence},
		{"wrapped persistence", fmt.Errorf("sync: %w", &fleet.PersistenceError{Op: "load", Err: os.ErrNotExist}), ExitCodePersistence},
		{"configuration", config.NewConfigurationError("config.yaml", "parse", "bad"), ExitCodeConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getExitCode(tt.err))
		})
	}
}

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"node_name=alpha", "port=5053", "enabled=true", "fee=", "list=[a, b]", "url=http://x:1/a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"node_name": "alpha",
		"port":      5053,
		"enabled":   true,
		"fee":       "",
		"list":      "[a, b]",
		"url":       "http://x:1/a=b",
	}, vars)

	_, err = parseVars([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseVars([]string{"=x"})
	assert.Error(t, err)
}

func TestCycleStatus(t *testing.T) {
	assert.Contains(t, cycleStatus(monitorCycle(nil, 2, 1)), "2 drift records, 1 repairs")
	assert.Contains(t, cycleStatus(monitorCycle(errors.New("load failed"), 0, 0)), "failed: load failed")
}

// executeCommand runs the root command against a fresh settings directory.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configDir, fleetConfig, templatesDir, logLevel, logFormat, outputFormat = "", "", "", "", "text", "table"

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config-dir", t.TempDir()}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestTemplateListJSON(t *testing.T) {
	out, err := executeCommand(t, "template", "list", "--output", "json")
	require.NoError(t, err)

	var templates []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &templates))
	require.Len(t, templates, 6)
	assert.Equal(t, "eth_docker_basic", templates[0]["name"])
}

func TestTemplateGenerateAddsNode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodes:\n  - name: alpha\n    stack: [eth-docker]\n    beacon_api_port: 5052\n"), 0644))

	out, err := executeCommand(t, "--fleet-config", path, "template", "generate", "testnet_only", "--node", "beta", "--var", "ssh_user=egk", "--add")
	require.NoError(t, err)
	assert.Contains(t, out, "name: beta")

	doc, err := fleet.NewFileStore(path).Load()
	require.NoError(t, err)
	require.Len(t, doc.Nodes, 2)
	assert.Equal(t, "egk", doc.Nodes[1].SSHUser)
	assert.Equal(t, 5053, doc.Nodes[1].Port())
}

func TestValidateRejectsRepairWithNode(t *testing.T) {
	_, err := executeCommand(t, "validate", "--node", "alpha", "--repair")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fleetsync refresh")
}

func TestDiscoverUnknownNode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodes:\n  - name: alpha\n"), 0644))

	_, err := executeCommand(t, "--fleet-config", path, "discover", "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fleet.ErrNodeNotFound))
	assert.Contains(t, err.Error(), "--host or --local")
}

func TestMissingFleetConfigIsPersistenceError(t *testing.T) {
	_, err := executeCommand(t, "--fleet-config", filepath.Join(t.TempDir(), "missing.yaml"), "sync")
	require.Error(t, err)
	assert.Equal(t, ExitCodePersistence, getExitCode(err))
}

func TestInvalidOutputFormat(t *testing.T) {
	_, err := executeCommand(t, "template", "list", "--output", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func monitorCycle(err error, drift, repairs int) monitor.Cycle {
	return monitor.Cycle{
		Started: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Drift:   make([]monitor.DriftDetection, drift),
		Repairs: make([]validator.RepairAction, repairs),
		Err:     err,
	}
}

func TestParseNetworks(t *testing.T) {
	nets, err := parseNetworks([]string{"mainnet=5052", "hoodi"})
	require.NoError(t, err)
	assert.Equal(t, 5052, nets["mainnet"].BeaconAPIPort)
	assert.Zero(t, nets["hoodi"].BeaconAPIPort)

	for _, bad := range [][]string{{"=5052"}, {"mainnet=abc"}, {"mainnet=70000"}, {"mainnet", "mainnet=5053"}} {
		_, err := parseNetworks(bad)
		assert.Error(t, err, bad)
	}
}

func TestTemplateGenerateWithNetworks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodes:\n  - name: alpha\n    stack: [eth-docker]\n    beacon_api_port: 5052\n"), 0644))

	_, err := executeCommand(t, "--fleet-config", path, "template", "generate", "eth_docker_basic", "--network", "mainnet")
	assert.ErrorContains(t, err, "--network requires --node")

	_, err = executeCommand(t, "--fleet-config", path, "template", "generate", "eth_docker_basic",
		"--node", "gamma", "--network", "mainnet=5052", "--network", "hoodi=5053", "--add")
	require.NoError(t, err)

	doc, err := fleet.NewFileStore(path).Load()
	require.NoError(t, err)
	gamma, err := doc.Node("gamma")
	require.NoError(t, err)
	require.Len(t, gamma.Networks, 2)
	assert.Equal(t, 5053, gamma.Networks["hoodi"].BeaconAPIPort)
	assert.Equal(t, []string{"eth-docker"}, gamma.Stack)
}

func TestTemplateDelete(t *testing.T) {
	configDir := t.TempDir()
	base := filepath.Join(t.TempDir(), "obol.yaml")
	require.NoError(t, os.WriteFile(base, []byte("name: \"{{node_name}}\"\nstack: [obol]\n"), 0644))

	_, err := executeCommand(t, "--config-dir", configDir, "template", "create", "obol_cluster", "--from-file", base, "--stack", "obol")
	require.NoError(t, err)

	out, err := executeCommand(t, "--config-dir", configDir, "template", "delete", "obol_cluster")
	require.NoError(t, err)
	assert.Contains(t, out, "Template obol_cluster deleted")

	_, err = executeCommand(t, "--config-dir", configDir, "template", "show", "obol_cluster")
	assert.Error(t, err)

	_, err = executeCommand(t, "--config-dir", configDir, "template", "delete", "eth_docker_basic")
	assert.ErrorContains(t, err, "built in")
}
