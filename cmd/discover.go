package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"fleetsync/internal/discovery"
	"fleetsync/internal/executor"
	"fleetsync/internal/fleet"
	"fleetsync/internal/generator"
)

type discoverOptions struct {
	generate bool
	host     string
	user     string
	port     int
	local    bool
}

func newDiscoverCmd() *cobra.Command {
	opts := &discoverOptions{}
	cmd := &cobra.Command{
		Use:   "discover <node>",
		Short: "Inspect a node and show what is actually running on it",
		Long: `Inspect a node for eth-docker directories, running containers, active
networks, live beacon API ports and client software.

The node is looked up in the fleet configuration. Nodes that are not yet
configured can be inspected with --host or --local. With --generate the
discovered state is turned into a node configuration: an updated copy of
the existing entry, or a new entry for an unknown node.`,
		Example: `  fleetsync discover alpha
  fleetsync discover beta --host beta.example.ts.net --user egk --generate
  fleetsync discover local --local -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.generate, "generate", false, "print a node configuration generated from the discovered state")
	cmd.Flags().StringVar(&opts.host, "host", "", "inspect this host instead of the configured one")
	cmd.Flags().StringVar(&opts.user, "user", "", "SSH user for --host")
	cmd.Flags().IntVar(&opts.port, "ssh-port", 0, "SSH port for --host")
	cmd.Flags().BoolVar(&opts.local, "local", false, "inspect the local machine")
	cmd.MarkFlagsMutuallyExclusive("host", "local")
	return cmd
}

func runDiscover(cmd *cobra.Command, name string, opts *discoverOptions) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	node, target, err := lookupTarget(a.store, name, opts)
	if err != nil {
		return err
	}

	var res *discovery.Result
	err = a.withSpinner(cmd, fmt.Sprintf("Discovering %s...", name), func() error {
		var derr error
		res, derr = a.engine.Discover(cmd.Context(), target)
		return derr
	})
	if err != nil {
		return err
	}

	if !opts.generate {
		return a.out.Discovery(res)
	}
	if node == nil {
		return a.out.Data(generator.NewNode(res))
	}
	return a.out.Data(generator.Optimize(node, res))
}

// lookupTarget resolves name to a configured node and its target. With
// --host or --local the fleet document is not consulted and node is nil.
func lookupTarget(store fleet.Store, name string, opts *discoverOptions) (*fleet.NodeConfig, executor.Target, error) {
	if opts.local {
		return nil, executor.Target{Name: name, Local: true}, nil
	}
	if opts.host != "" {
		return nil, executor.Target{Name: name, Host: opts.host, User: opts.user, Port: opts.port}, nil
	}

	doc, err := store.Load()
	if err != nil {
		return nil, executor.Target{}, err
	}
	node, err := doc.Node(name)
	if err != nil {
		if errors.Is(err, fleet.ErrNodeNotFound) {
			err = fmt.Errorf("%w (use --host or --local to inspect an unconfigured node)", err)
		}
		return nil, executor.Target{}, err
	}
	return node, node.Target(), nil
}
