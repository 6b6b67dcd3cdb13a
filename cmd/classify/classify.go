// Package classify implements the classify command.
package classify

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tphakala/imageclassifier/internal/app"
	"github.com/tphakala/imageclassifier/internal/classifier"
	"github.com/tphakala/imageclassifier/internal/errors"
)

// Command creates the classify command for classifying a single image.
func Command(ctx *app.Context) *cobra.Command {
	var (
		modelName string
		compare   bool
	)

	cmd := &cobra.Command{
		Use:   "classify [image]",
		Short: "Classify an image",
		Long:  `Classify a JPEG or PNG image with the selected model, or with every model when --compare is set.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := selectModel(ctx, modelName)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("compare") {
				compare = ctx.Settings.Classifier.Compare
			}
			return Run(cmd.Context(), ctx, cmd.OutOrStdout(), args[0], current, compare)
		},
	}

	cmd.Flags().StringVarP(&modelName, "model", "m", "", "Model to use: MobileNetV2 or ResNet50 (default from config)")
	cmd.Flags().BoolVar(&compare, "compare", false, "Run every model and print all results")

	return cmd
}

func selectModel(ctx *app.Context, name string) (classifier.ModelType, error) {
	if name == "" {
		name = ctx.Settings.Classifier.DefaultModel
	}
	return classifier.ParseModelType(name)
}

// Run loads the models, classifies the image at path and prints one line per
// model in declaration order, followed by the bias notice unless quiet.
func Run(runCtx context.Context, ctx *app.Context, out io.Writer, path string, current classifier.ModelType, compare bool) error {
	d, cleanup, err := ctx.NewDispatcher()
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}
	defer cleanup()

	img, err := decodeFile(path)
	if err != nil {
		return err
	}

	gen := d.Classify(img, current, compare)
	state, err := d.Wait(runCtx, gen)
	if err != nil {
		return fmt.Errorf("classification aborted: %w", err)
	}

	return Print(out, state, compare, ctx.Quiet)
}

// Print writes the rendered results and, unless quiet, the bias notice.
func Print(out io.Writer, state classifier.State, compare, quiet bool) error {
	for _, line := range classifier.RenderResults(state, compare) {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	if quiet {
		return nil
	}
	_, err := fmt.Fprintf(out, "\n%s: %s\n", classifier.BiasNoticeTitle, classifier.BiasNotice)
	return err
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer func() { _ = f.Close() }()
	return classifier.DecodeImage(f)
}
