package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/shopflow/internal/bdd"
	"github.com/xkilldash9x/shopflow/internal/browser"
	"github.com/xkilldash9x/shopflow/internal/observability"
	"github.com/xkilldash9x/shopflow/internal/results"
)

func newFeaturesCmd() *cobra.Command {
	var tags, format string

	featuresCmd := &cobra.Command{
		Use:   "features [paths...]",
		Short: "Runs Gherkin feature files against the target store (bundled features when no path is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			manager := browser.NewManager(cfg, newLauncher(logger), logger)
			return withResults(ctx, cfg, logger, func(pub results.Publisher) error {
				suite := bdd.NewSuite(cfg, manager, pub, logger)
				status := suite.Run(ctx, bdd.Options{
					Paths:  args,
					Format: format,
					Tags:   tags,
					Output: cmd.OutOrStdout(),
				})
				if status != 0 {
					return fmt.Errorf("feature run failed with status %d", status)
				}
				return nil
			})
		},
	}

	featuresCmd.Flags().StringVar(&tags, "tags", "", "tag expression selecting scenarios, e.g. \"~@negative\"")
	featuresCmd.Flags().StringVar(&format, "format", "pretty", "godog formatter: pretty, progress, cucumber, junit")
	addSessionFlags(featuresCmd)
	return featuresCmd
}
