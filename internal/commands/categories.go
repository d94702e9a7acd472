package commands

import (
	"github.com/spf13/cobra"

	"github.com/widgetstore/wsq/internal/output"
)

// NewCategoriesCmd creates the categories command.
func NewCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "categories",
		Aliases: []string{"cats"},
		Short:   "List widget categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromCmd(cmd)
			if err != nil {
				return err
			}

			cats := app.API.Categories(cmd.Context())
			return app.OK(cats, output.WithSummary(app.Output.Locale().FormatCount(len(cats))+" categories"))
		},
	}
}
