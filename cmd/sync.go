package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"fleetsync/internal/monitor"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Update the fleet configuration to match every running node",
		Long: `Discover every enabled node and rewrite its configuration entry to match:
live beacon API ports, detected stacks and removal of networks that are no
longer running. The configuration is saved once if any node changed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var report *monitor.SyncReport
			serr := a.withSpinner(cmd, "Syncing fleet configuration...", func() error {
				var err error
				report, err = a.monitor.SyncAllNodes(cmd.Context(), nil)
				return err
			})
			if report == nil {
				return serr
			}
			if err := a.out.Sync(report); err != nil {
				return err
			}
			return serr
		},
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <node>",
		Short: "Update one node's configuration to match what is running on it",
		Long: `Discover a single node and rewrite its configuration entry to match the
live state. Disabled nodes are refreshed too. The configuration is saved
only when the entry changed.`,
		Example: `  fleetsync refresh alpha`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var res monitor.NodeSyncResult
			rerr := a.withSpinner(cmd, fmt.Sprintf("Refreshing %s...", args[0]), func() error {
				var err error
				res, err = a.monitor.RefreshSingleNode(cmd.Context(), nil, args[0])
				return err
			})
			if res.Node == "" {
				return rerr
			}
			if err := a.out.NodeSync(res); err != nil {
				return err
			}
			if rerr != nil {
				return rerr
			}
			if res.Status == monitor.StatusError {
				return fmt.Errorf("refresh of %s failed: %s", res.Node, res.Error)
			}
			return nil
		},
	}
}

func newDriftCmd() *cobra.Command {
	var summary bool

	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Detect configuration drift across the fleet",
		Long: `Discover every enabled node and list each difference between its
configuration entry and the live state, with severity and whether it can be
corrected automatically. Nothing is changed; use sync or validate --repair
to correct drift.`,
		Example: `  fleetsync drift
  fleetsync drift --summary -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var drift []monitor.DriftDetection
			err = a.withSpinner(cmd, "Detecting drift...", func() error {
				var err error
				drift, err = a.monitor.DetectDrift(cmd.Context(), nil)
				return err
			})
			if err != nil {
				return err
			}
			if summary {
				return a.out.MonitorSummary(a.monitor.Summary())
			}
			return a.out.Drift(drift)
		},
	}

	cmd.Flags().BoolVar(&summary, "summary", false, "show totals instead of individual drift records")
	return cmd
}
