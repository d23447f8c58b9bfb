package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/shopflow/internal/observability"
)

func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install [browsers...]",
		Short: "Downloads the Playwright driver and browsers (all of them when none are named)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return installBrowsers(cmd.Context(), args, observability.GetLogger())
		},
	}
}
