package commands

import (
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/widgetstore/wsq/internal/output"
	"github.com/widgetstore/wsq/internal/session"
)

// configKeys maps user-facing setting names to getters/setters on the
// durable settings blob. Keys use the same names as the stored JSON.
var configKeys = map[string]struct {
	get func(*session.Settings) string
	set func(*session.Settings, string) error
}{
	"defaultInsertFormat": {
		get: func(s *session.Settings) string { return s.DefaultInsertFormat },
		set: func(s *session.Settings, v string) error {
			switch v {
			case "widgetstore", "iframe":
				s.DefaultInsertFormat = v
				return nil
			}
			return output.ErrUsageHint("Invalid insert format: "+v, "Valid values: widgetstore, iframe")
		},
	},
	"widgetWidth": {
		get: func(s *session.Settings) string { return s.WidgetWidth },
		set: func(s *session.Settings, v string) error {
			s.WidgetWidth = v
			return nil
		},
	},
	"widgetHeight": {
		get: func(s *session.Settings) string { return s.WidgetHeight },
		set: func(s *session.Settings, v string) error {
			s.WidgetHeight = v
			return nil
		},
	},
	"devMode": {
		get: func(s *session.Settings) string { return strconv.FormatBool(s.DevMode) },
		set: func(s *session.Settings, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return output.ErrUsageHint("Invalid devMode value: "+v, "Valid values: true, false")
			}
			s.DevMode = b
			return nil
		},
	},
	"envName": {
		get: func(s *session.Settings) string { return s.EnvName },
		set: func(s *session.Settings, v string) error {
			s.EnvName = v
			return nil
		},
	},
}

func knownConfigKeys() string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get and set persistent settings",
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show all settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromCmd(cmd)
			if err != nil {
				return err
			}

			settings, err := app.Session.Load()
			if err != nil {
				return err
			}

			values := make(map[string]string, len(configKeys))
			for name, key := range configKeys {
				values[name] = key.get(settings)
			}
			return app.OK(values)
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Show one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromCmd(cmd)
			if err != nil {
				return err
			}

			key, ok := configKeys[args[0]]
			if !ok {
				return output.ErrUsageHint("Unknown setting: "+args[0], "Known settings: "+knownConfigKeys())
			}

			settings, err := app.Session.Load()
			if err != nil {
				return err
			}
			return app.OK(map[string]string{args[0]: key.get(settings)})
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromCmd(cmd)
			if err != nil {
				return err
			}

			key, ok := configKeys[args[0]]
			if !ok {
				return output.ErrUsageHint("Unknown setting: "+args[0], "Known settings: "+knownConfigKeys())
			}

			if err := app.Session.Update(func(s *session.Settings) error {
				return key.set(s, args[1])
			}); err != nil {
				return err
			}

			return app.OK(map[string]string{
				args[0]: args[1],
			}, output.WithSummary("Set "+args[0]))
		},
	}
}
