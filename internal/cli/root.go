package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/widgetstore/wsq/internal/appctx"
	"github.com/widgetstore/wsq/internal/commands"
	"github.com/widgetstore/wsq/internal/config"
	"github.com/widgetstore/wsq/internal/output"
	"github.com/widgetstore/wsq/internal/version"
)

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	var flags appctx.GlobalFlags

	cmd := &cobra.Command{
		Use:           "wsq",
		Short:         "Command-line interface for the widget store",
		Long:          "wsq browses the widget gallery, manages your widget library, and handles\nthe browser-delegated sign-in flow used by the store.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}

			overrides := config.FlagOverrides{
				EnvName: flags.EnvName,
				DataDir: flags.DataDir,
			}
			if cmd.Flags().Changed("dev") {
				flags.DevSet = true
				overrides.DevMode = &flags.Dev
			}

			cfg, err := config.Load(overrides)
			if err != nil {
				return err
			}

			app := appctx.NewApp(cfg)
			app.Flags = flags
			app.ApplyFlags()

			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return nil
		},
	}

	cmd.Flags().SetInterspersed(true)
	cmd.PersistentFlags().SetInterspersed(true)

	// Accept underscore spellings (--ids_only) alongside the dashed ones.
	cmd.PersistentFlags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	// Output format flags
	cmd.PersistentFlags().BoolVarP(&flags.JSON, "json", "j", false, "Output as JSON")
	cmd.PersistentFlags().BoolVar(&flags.YAML, "yaml", false, "Output as YAML")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Output data only, no envelope")
	cmd.PersistentFlags().BoolVar(&flags.IDsOnly, "ids-only", false, "Output only IDs")
	cmd.PersistentFlags().BoolVar(&flags.Count, "count", false, "Output only count")
	cmd.PersistentFlags().StringVar(&flags.JQ, "jq", "", "Filter output through a jq expression")

	// Environment flags
	cmd.PersistentFlags().StringVar(&flags.EnvName, "env", "", "Cloud environment name")
	cmd.PersistentFlags().BoolVar(&flags.Dev, "dev", false, "Use the local development server")
	cmd.PersistentFlags().StringVar(&flags.DataDir, "data-dir", "", "Settings directory")

	// Behavior flags
	cmd.PersistentFlags().CountVarP(&flags.Verbose, "verbose", "v", "Verbose output (request tracing)")

	return cmd
}

// Execute runs the root command.
func Execute() {
	cmd := NewRootCmd()

	cmd.AddCommand(commands.NewAuthCmd())
	cmd.AddCommand(commands.NewWidgetsCmd())
	cmd.AddCommand(commands.NewCategoriesCmd())
	cmd.AddCommand(commands.NewConfigCmd())
	cmd.AddCommand(commands.NewVersionCmd())

	executedCmd, err := cmd.ExecuteC()
	if err != nil {
		err = transformCobraError(err)
		apiErr := output.AsError(err)

		if app := appctx.FromContext(executedCmd.Context()); app != nil {
			_ = app.Output.Err(err)
			os.Exit(apiErr.ExitCode())
		}

		// App not available (setup failure); fall back to a plain writer.
		writer := output.New(output.Options{Writer: os.Stdout})
		_ = writer.Err(err)
		os.Exit(apiErr.ExitCode())
	}
}

// transformCobraError maps cobra's parse errors onto usage errors so they
// carry the right exit code.
func transformCobraError(err error) error {
	msg := err.Error()

	if strings.HasPrefix(msg, "flag needs an argument: ") {
		flag := strings.TrimPrefix(msg, "flag needs an argument: ")
		return output.ErrUsage(flag + " requires a value")
	}

	if strings.HasPrefix(msg, "unknown flag: ") {
		flag := strings.TrimPrefix(msg, "unknown flag: ")
		return output.ErrUsage("Unknown option: " + flag)
	}

	if strings.Contains(msg, "arg(s), received") || strings.Contains(msg, "requires at least") {
		return output.ErrUsage(msg)
	}

	return err
}
