// Package config implements the config command.
package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/imageclassifier/internal/app"
	"github.com/tphakala/imageclassifier/internal/conf"
)

// Command creates the config command printing the effective configuration.
// skipInit is the annotation key that disables configuration loading for
// the init subcommand.
func Command(ctx *app.Context, skipInit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := ctx.Settings.RedactedYAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:         "init [path]",
		Short:       "Write the default configuration file",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipInit: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := initPath(args)
			if err != nil {
				return err
			}
			if err := conf.WriteDefaultConfig(path); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return err
		},
	})

	return cmd
}

func initPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	return conf.UserConfigPath()
}
