// Package models implements the models command.
package models

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tphakala/imageclassifier/internal/app"
	"github.com/tphakala/imageclassifier/internal/classifier"
)

// Command creates the models command listing the supported models.
func Command(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List supported models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := classifier.ParseModelType(ctx.Settings.Classifier.DefaultModel)
			if err != nil {
				return err
			}
			return List(cmd.OutOrStdout(), def)
		},
	}
}

// List prints the model identifiers in declaration order, marking the default.
func List(out io.Writer, def classifier.ModelType) error {
	for _, m := range classifier.AllModelTypes() {
		line := m.String()
		if m == def {
			line += " (default)"
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}
