package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fleetsync/internal/fleet"
	"fleetsync/internal/template"
)

func newTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage node configuration templates",
		Long: `Templates are node configuration blueprints with {{variable}} placeholders.
Built-in templates cover eth-docker, Rocket Pool, NodeSet Hyperdrive, Lido
CSM, multi-network and testnet nodes. Created and imported templates are
kept in the templates directory and loaded on start-up.`,
	}

	cmd.AddCommand(newTemplateListCmd())
	cmd.AddCommand(newTemplateShowCmd())
	cmd.AddCommand(newTemplateGenerateCmd())
	cmd.AddCommand(newTemplateCreateCmd())
	cmd.AddCommand(newTemplateExportCmd())
	cmd.AddCommand(newTemplateImportCmd())
	cmd.AddCommand(newTemplateValidateCmd())
	cmd.AddCommand(newTemplateDeleteCmd())
	return cmd
}

func newTemplateListCmd() *cobra.Command {
	var stack string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if stack != "" {
				return a.out.Templates(a.templates.ByStack(stack))
			}
			return a.out.Templates(a.templates.List())
		},
	}
	cmd.Flags().StringVar(&stack, "stack", "", "only list templates supporting this stack")
	return cmd
}

func newTemplateShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <template>",
		Short: "Show a template with its placeholders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			tpl, err := a.templates.Get(args[0])
			if err != nil {
				return err
			}
			vars, err := a.templates.Variables(args[0])
			if err != nil {
				return err
			}
			return a.out.Data(templateDetail{ConfigTemplate: *tpl, Variables: vars})
		},
	}
}

// templateDetail is a template with the variables its placeholders use.
type templateDetail struct {
	template.ConfigTemplate `yaml:",inline"`
	Variables               []string `json:"variables" yaml:"variables"`
}

func newTemplateGenerateCmd() *cobra.Command {
	var (
		vars     []string
		networks []string
		stacks   []string
		node     string
		add      bool
	)
	cmd := &cobra.Command{
		Use:   "generate <template>",
		Short: "Resolve a template into a node configuration",
		Long: `Resolve a template's placeholders with the given variables and print the
resulting node configuration. With --add the node is appended to the fleet
configuration, which is then saved.

--network names a network the node serves, optionally with its beacon API
port. Two or more networks replace the template's networks section.`,
		Example: `  fleetsync template generate rocketpool --node alpha --var rocketpool_fee=10
  fleetsync template generate testnet_only --node beta --var ssh_user=egk --add
  fleetsync template generate eth_docker_basic --node gamma --network mainnet=5052 --network hoodi=5053`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseVars(vars)
			if err != nil {
				return err
			}
			nets, err := parseNetworks(networks)
			if err != nil {
				return err
			}
			if add && node == "" {
				return fmt.Errorf("--add requires --node")
			}
			if len(nets) > 0 && node == "" {
				return fmt.Errorf("--network requires --node")
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(nets) > 0 && len(stacks) == 0 {
				tpl, err := a.templates.Get(args[0])
				if err != nil {
					return err
				}
				stacks = tpl.SupportedStacks
			}

			if add {
				doc, err := a.store.Load()
				if err != nil {
					return err
				}
				var created *fleet.NodeConfig
				if len(nets) > 0 {
					created, err = a.templates.InstantiateNetworkNode(doc, node, args[0], stacks, nets, values)
				} else {
					created, err = a.templates.InstantiateNode(doc, node, args[0], values)
				}
				if err != nil {
					return err
				}
				if err := doc.Validate(); err != nil {
					return err
				}
				if err := a.store.Save(doc); err != nil {
					return err
				}
				return a.out.Data(created)
			}

			var cfg map[string]any
			switch {
			case len(nets) > 0:
				cfg, err = a.templates.GenerateNodeConfig(node, args[0], stacks, nets, values)
			case node != "":
				cfg, err = a.templates.Generate(args[0], template.MergeVariables(values, map[string]any{"node_name": node}))
			default:
				cfg, err = a.templates.Generate(args[0], values)
			}
			if err != nil {
				return err
			}
			return a.out.Data(cfg)
		},
	}
	cmd.Flags().StringArrayVar(&vars, "var", nil, "template variable as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&networks, "network", nil, "network as name or name=port (repeatable)")
	cmd.Flags().StringSliceVar(&stacks, "stack", nil, "node stack, defaults to the template's supported stacks")
	cmd.Flags().StringVar(&node, "node", "", "node name, sets the node_name variable")
	cmd.Flags().BoolVar(&add, "add", false, "append the generated node to the fleet configuration")
	return cmd
}

func newTemplateDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <template>",
		Short: "Delete a created or imported template",
		Long: `Delete a template from the templates directory. Built-in templates cannot
be deleted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.templates.Delete(args[0]); err != nil {
				return err
			}
			return a.out.Data(fmt.Sprintf("Template %s deleted", args[0]))
		},
	}
}

func newTemplateCreateCmd() *cobra.Command {
	var (
		fromFile    string
		description string
		stacks      []string
		networks    []string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a template from a YAML node configuration",
		Long: `Create a template from a YAML file holding a node configuration with
{{variable}} placeholders. The template is saved in the templates directory.`,
		Example: `  fleetsync template create obol_cluster --from-file obol.yaml --stack obol --network mainnet`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(fromFile)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", fromFile, err)
			}
			var base map[string]any
			if err := yaml.Unmarshal(data, &base); err != nil {
				return fmt.Errorf("failed to parse %s: %w", fromFile, err)
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			tpl, err := a.templates.Create(args[0], description, base, stacks, networks)
			if err != nil {
				return err
			}
			return a.out.Templates([]*template.ConfigTemplate{tpl})
		},
	}
	cmd.Flags().StringVarP(&fromFile, "from-file", "f", "", "YAML file with the base configuration")
	cmd.Flags().StringVar(&description, "description", "", "template description")
	cmd.Flags().StringSliceVar(&stacks, "stack", nil, "supported stack (repeatable)")
	cmd.Flags().StringSliceVar(&networks, "network", nil, "supported network (repeatable)")
	_ = cmd.MarkFlagRequired("from-file")
	return cmd
}

func newTemplateExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <template> <file>",
		Short: "Write a template document to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.templates.Export(args[0], args[1]); err != nil {
				return err
			}
			return a.out.Data(fmt.Sprintf("Template %s exported to %s", args[0], args[1]))
		},
	}
}

func newTemplateImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Register a template document",
		Long: `Register a template document for this run. Imported templates with the
name of an existing template replace it. Use create to keep a template
across runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			tpl, err := a.templates.Import(args[0])
			if err != nil {
				return err
			}
			return a.out.Templates([]*template.ConfigTemplate{tpl})
		},
	}
}

func newTemplateValidateCmd() *cobra.Command {
	var vars []string
	cmd := &cobra.Command{
		Use:   "validate <template>",
		Short: "Check that variables cover every placeholder of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseVars(vars)
			if err != nil {
				return err
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			problems := a.templates.ValidateVariables(args[0], values)
			if len(problems) == 0 {
				return a.out.Data(fmt.Sprintf("Template %s: all variables provided", args[0]))
			}
			if err := a.out.Data(problems); err != nil {
				return err
			}
			return fmt.Errorf("template %s: %d problems", args[0], len(problems))
		},
	}
	cmd.Flags().StringArrayVar(&vars, "var", nil, "template variable as key=value (repeatable)")
	return cmd
}

// parseVars turns key=value pairs into template variables. Values are read
// as YAML scalars so ports and flags keep their types.
func parseVars(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable %q, expected key=value", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || isCollection(value) {
			value = raw
		}
		if value == nil {
			value = raw
		}
		out[key] = value
	}
	return out, nil
}

// parseNetworks turns name or name=port entries into network specs.
func parseNetworks(entries []string) (map[string]template.NetworkSpec, error) {
	out := make(map[string]template.NetworkSpec, len(entries))
	for _, entry := range entries {
		name, rawPort, hasPort := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid network %q, expected name or name=port", entry)
		}
		var spec template.NetworkSpec
		if hasPort {
			port, err := strconv.Atoi(strings.TrimSpace(rawPort))
			if err != nil || port < 1 || port > 65535 {
				return nil, fmt.Errorf("invalid port in network %q", entry)
			}
			spec.BeaconAPIPort = port
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("network %s given twice", name)
		}
		out[name] = spec
	}
	return out, nil
}

func isCollection(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}
