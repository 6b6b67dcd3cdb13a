// Package history implements the history command.
package history

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tphakala/imageclassifier/internal/app"
	"github.com/tphakala/imageclassifier/internal/conf"
	"github.com/tphakala/imageclassifier/internal/datastore"
	"github.com/tphakala/imageclassifier/internal/errors"
)

const timeLayout = "2006-01-02 15:04:05"

// Command creates the history command listing stored classifications.
func Command(ctx *app.Context) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent classifications from the history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !ctx.Settings.History.Enabled {
				return errors.Newf("classification history is disabled, set history.enabled in the config").
					Component("history").
					Category(errors.CategoryConfiguration).
					Build()
			}
			if limit <= 0 {
				limit = ctx.Settings.History.Limit
			}

			store := datastore.New(ctx.Settings)
			if err := store.Open(); err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return Print(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, fmt.Sprintf("Number of classifications to show (default from config, %d)", conf.DefaultHistoryLimit))

	return cmd
}

// Print writes one line per classification, newest first.
func Print(out io.Writer, records []datastore.Classification) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "No classifications recorded")
		return err
	}
	for i := range records {
		r := &records[i]
		parts := make([]string, 0, len(r.Results))
		for _, res := range r.Results {
			parts = append(parts, res.Model+": "+res.Text)
		}
		if _, err := fmt.Fprintf(out, "%s  %s  %s\n",
			r.CreatedAt.Local().Format(timeLayout), r.RequestID, strings.Join(parts, "; ")); err != nil {
			return err
		}
	}
	return nil
}
