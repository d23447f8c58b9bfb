package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/shopflow/internal/browser"
	"github.com/xkilldash9x/shopflow/internal/journey"
	"github.com/xkilldash9x/shopflow/internal/observability"
	"github.com/xkilldash9x/shopflow/internal/results"
)

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the purchase journey once against the target store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			manager := browser.NewManager(cfg, newLauncher(logger), logger)
			return withResults(ctx, cfg, logger, func(pub results.Publisher) error {
				report, err := journey.NewRunner(cfg, manager, pub, logger).Run(ctx)
				if report != nil {
					logger.Info("Journey finished.",
						zap.String("run_id", report.RunID),
						zap.String("status", string(report.Status)),
						zap.Int("steps", len(report.Steps)))
				}
				return err
			})
		},
	}
	addSessionFlags(runCmd)
	return runCmd
}

// addSessionFlags registers the flags shared by every command that drives a
// browser, annotated with the config key each one overrides.
func addSessionFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("base-url", "", "storefront URL to run against")
	flags.String("browser", "", "browser to drive: chromium, firefox, webkit, chrome or msedge")
	flags.Bool("headless", true, "run the browser without a window")
	flags.StringP("output", "o", "", "report file (default is stdout)")
	flags.String("report-format", "", "report format (json)")
	flags.String("database-url", "", "PostgreSQL URL to persist results to")

	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	for name, key := range map[string]string{
		"base-url":      "target.base_url",
		"browser":       "browser.channel",
		"headless":      "browser.headless",
		"output":        "results.output",
		"report-format": "results.format",
		"database-url":  "results.database_url",
	} {
		cmd.Annotations[name] = key
	}
}
