package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/imageclassifier/cmd/classify"
	"github.com/tphakala/imageclassifier/cmd/config"
	"github.com/tphakala/imageclassifier/cmd/history"
	"github.com/tphakala/imageclassifier/cmd/models"
	"github.com/tphakala/imageclassifier/cmd/serve"
	"github.com/tphakala/imageclassifier/internal/app"
)

// skipInitAnnotation marks commands that run without loading configuration.
const skipInitAnnotation = "skip-init"

// RootCommand creates and returns the root command
func RootCommand(ctx *app.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "imageclassifier",
		Short:         "Image classification with MobileNetV2 and ResNet50",
		Version:       ctx.Build.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	setupFlags(rootCmd, ctx)

	rootCmd.AddCommand(
		classify.Command(ctx),
		models.Command(ctx),
		history.Command(ctx),
		serve.Command(ctx),
		config.Command(ctx, skipInitAnnotation),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipInitAnnotation] == "true" {
			return nil
		}
		return ctx.Initialize()
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, ctx *app.Context) {
	rootCmd.PersistentFlags().BoolVarP(&ctx.Debug, "debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVarP(&ctx.ConfigFile, "config", "c", "", "Path to config file (default: search ., ~/.config/imageclassifier, /etc/imageclassifier)")
	rootCmd.PersistentFlags().BoolVarP(&ctx.Quiet, "quiet", "q", false, "Suppress the AI bias notice")
}
