package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/widgetstore/wsq/internal/models"
	"github.com/widgetstore/wsq/internal/output"
)

// NewWidgetsCmd creates the widgets command group.
func NewWidgetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "widgets",
		Aliases: []string{"widget", "w"},
		Short:   "Browse and manage widgets",
	}

	cmd.AddCommand(
		newWidgetsListCmd(),
		newWidgetsMineCmd(),
		newWidgetsGetCmd(),
		newWidgetsAddCmd(),
		newWidgetsCopyCmd(),
		newWidgetsDeleteCmd(),
		newWidgetsHTMLCmd(),
	)

	return cmd
}

func addListFlags(cmd *cobra.Command, params *models.ListParams, typ *string) {
	cmd.Flags().StringVar(typ, "type", "", "Filter by widget type (basic, icon, background, chart)")
	cmd.Flags().IntVar(&params.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&params.Limit, "limit", 20, "Page size")
	cmd.Flags().StringVar(&params.Search, "search", "", "Search by name")
}

func newWidgetsListCmd() *cobra.Command {
	var params models.ListParams
	var typ string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List widgets from the public gallery",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromCmd(cmd)
			if err != nil {
				return err
			}

			params.Type = models.WidgetType(typ)
			widgets := app.API.PublicWidgets(cmd.Context(), params)
			return app.OK(widgets, output.WithSummary(app.Output.Locale().FormatCount(len(widgets))+" widgets"))
		},
	}

	addListFlags(cmd, &params, &typ)
	return cmd
}

func newWidgetsMineCmd() *cobra.Command {
	var params models.ListParams
	var typ string

	cmd := &cobra.Command{
		Use:   "mine",
		Short: "List widgets in your library",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromCmd(cmd)
			if err != nil {
				return err
			}

			if !app.Auth.IsAuthenticated() {
				return output.ErrAuth("Not signed in")
			}

			params.Type = models.WidgetType(typ)
			widgets := app.API.UserWidgets(cmd.Context(), params)
			return app.OK(widgets, output.WithSummary(app.Output.Locale().FormatCount(len(widgets))+" widgets"))
		},
	}

	addListFlags(cmd, &params, &typ)
	return cmd
}

func newWidgetsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <widget-id>",
		Short: "Show one widget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromCmd(cmd)
			if err != nil {
				return err
			}

			widget := app.API.Widget(cmd.Context(), args[0])
			if widget == nil {
				return output.ErrNotFound("widget", args[0])
			}
			return app.OK(widget)
		},
	}
}

func newWidgetsAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <widget-id>",
		Short: "Add a gallery widget to your library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromCmd(cmd)
			if err != nil {
				return err
			}

			if !app.Auth.IsAuthenticated() {
				return output.ErrAuth("Not signed in")
			}

			if !app.API.AddUserWidget(cmd.Context(), args[0]) {
				return output.ErrAPI(0, fmt.Sprintf("Could not add widget %s", args[0]))
			}
			return app.OK(map[string]string{
				"status":   "added",
				"widgetId": args[0],
			}, output.WithSummary("Added widget "+args[0]))
		},
	}
}

func newWidgetsCopyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy <widget-id>",
		Short: "Copy a widget into your library as an editable document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromCmd(cmd)
			if err != nil {
				return err
			}

			if !app.Auth.IsAuthenticated() {
				return output.ErrAuth("Not signed in")
			}

			uw := app.API.CreateUserWidget(cmd.Context(), args[0])
			if uw == nil {
				return output.ErrAPI(0, fmt.Sprintf("Could not copy widget %s", args[0]))
			}
			return app.OK(uw, output.WithSummary("Copied widget "+args[0]))
		},
	}
}

func newWidgetsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <user-widget-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a widget from your library",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromCmd(cmd)
			if err != nil {
				return err
			}

			if !app.Auth.IsAuthenticated() {
				return output.ErrAuth("Not signed in")
			}

			if !app.API.DeleteUserWidget(cmd.Context(), args[0]) {
				return output.ErrAPI(0, fmt.Sprintf("Could not delete widget %s", args[0]))
			}
			return app.OK(map[string]string{
				"status":   "deleted",
				"widgetId": args[0],
			}, output.WithSummary("Deleted widget "+args[0]))
		},
	}
}

func newWidgetsHTMLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "html <widget-id>",
		Short: "Fetch a widget's rendered HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromCmd(cmd)
			if err != nil {
				return err
			}

			html := app.API.WidgetHTML(cmd.Context(), args[0])
			if html == "" {
				return output.ErrNotFound("widget", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), html)
			return nil
		},
	}
}
