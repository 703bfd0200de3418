package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"fleetsync/internal/validator"
)

func newValidateCmd() *cobra.Command {
	var (
		repair bool
		node   string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Compare the fleet configuration with the running nodes",
		Long: `Discover every enabled node and report where the fleet configuration
disagrees with reality: wrong beacon API ports, stale stacks, networks that
are no longer running and eth-docker directories that moved.

With --repair the auto-fixable issues are corrected and the configuration
is saved once at the end.`,
		Example: `  fleetsync validate
  fleetsync validate --repair
  fleetsync validate --node alpha -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if node != "" && repair {
				return errors.New("--repair cannot be combined with --node; use 'fleetsync refresh <node>' to repair a single node")
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if node != "" {
				doc, err := a.store.Load()
				if err != nil {
					return err
				}
				var issues []validator.Issue
				_ = a.withSpinner(cmd, fmt.Sprintf("Validating %s...", node), func() error {
					issues = a.validator.ValidateSingleNode(cmd.Context(), doc, node)
					return nil
				})
				return a.out.Validation(issues, nil)
			}

			var (
				issues  []validator.Issue
				repairs []validator.RepairAction
			)
			verr := a.withSpinner(cmd, "Validating fleet...", func() error {
				var err error
				issues, repairs, err = a.validator.ValidateAndRepair(cmd.Context(), nil, repair)
				return err
			})
			if issues == nil && repairs == nil && verr != nil {
				return verr
			}
			if err := a.out.Validation(issues, repairs); err != nil {
				return err
			}
			return verr
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "apply auto-fixable repairs and save the configuration")
	cmd.Flags().StringVar(&node, "node", "", "validate a single node without repairing it")
	return cmd
}
