package template

import "time"

func metricsSection() map[string]any {
	return map[string]any{
		"prometheus_enabled": true,
		"prometheus_port":    9090,
		"grafana_enabled":    true,
		"grafana_port":       3000,
	}
}

func baseNode(execution, consensus string, stack ...string) map[string]any {
	stackList := make([]any, len(stack))
	for i, s := range stack {
		stackList[i] = s
	}
	return map[string]any{
		"name":                     "{{node_name}}",
		"tailscale_domain":         "{{node_name}}.ts.net",
		"ssh_user":                 "{{ssh_user|default:root}}",
		"ethereum_clients_enabled": true,
		"execution_client":         execution,
		"consensus_client":         consensus,
		"stack":                    stackList,
		"beacon_api_port":          5052,
		"metrics":                  metricsSection(),
	}
}

// builtinTemplates returns the registry shipped with fleetsync, in
// registration order. DefaultForStack returns the first match in this order.
func builtinTemplates(now time.Time) []*ConfigTemplate {
	mk := func(name, description string, data map[string]any, stacks, networks []string) *ConfigTemplate {
		return &ConfigTemplate{
			Name:              name,
			Description:       description,
			Data:              data,
			SupportedStacks:   stacks,
			SupportedNetworks: networks,
			Version:           "1.0",
			Created:           now,
			Updated:           now,
		}
	}

	rocketpool := baseNode("geth", "lighthouse", "rocketpool")
	rocketpool["rocketpool"] = map[string]any{
		"node_fee":      "{{rocketpool_fee|default:15}}",
		"node_timezone": "UTC",
	}

	multi := baseNode("erigon", "caplin", "eth-docker")
	multi["networks"] = map[string]any{
		"mainnet": map[string]any{"enabled": true, "beacon_api_port": 5052},
		"hoodi":   map[string]any{"enabled": true, "beacon_api_port": 5053},
	}

	testnet := map[string]any{
		"name":             "{{node_name}}",
		"tailscale_domain": "{{node_name}}.ts.net",
		"ssh_user":         "{{ssh_user|default:root}}",
		"eth_docker_path":  "{{eth_docker_path|default:/root/eth-hoodi}}",
		"beacon_api_port":  5053,
		"stack":            []any{"eth-hoodi"},
		"networks": map[string]any{
			"testnet": map[string]any{
				"network_name":     "hoodi",
				"container_prefix": "eth-hoodi",
				"beacon_api_port":  5053,
				"eth_docker_path":  "{{eth_docker_path|default:/root/eth-hoodi}}",
			},
		},
	}

	return []*ConfigTemplate{
		mk("eth_docker_basic", "Basic ETH-Docker setup for mainnet validation",
			baseNode("erigon", "caplin", "eth-docker"), []string{"eth-docker"}, []string{"mainnet"}),
		mk("rocketpool", "RocketPool node configuration",
			rocketpool, []string{"rocketpool"}, []string{"mainnet"}),
		mk("nodeset_hyperdrive", "NodeSet Hyperdrive configuration",
			baseNode("geth", "lighthouse", "nodeset", "hyperdrive"), []string{"nodeset", "hyperdrive"}, []string{"mainnet"}),
		mk("lido_csm", "Lido Community Staking Module configuration",
			baseNode("geth", "lighthouse", "lido-csm"), []string{"lido-csm"}, []string{"mainnet"}),
		mk("multi_network", "Multi-network node supporting mainnet and testnet",
			multi, []string{"eth-docker"}, []string{"mainnet", "hoodi"}),
		mk("testnet_only", "Testnet-only node running eth-docker against Hoodi",
			testnet, []string{"eth-hoodi"}, []string{"hoodi"}),
	}
}
