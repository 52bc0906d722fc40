package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/postshelf/internal/render"
)

type renderOptions struct {
	asJSON      bool
	includeHTML bool
}

func newRenderCmd() *cobra.Command {
	opts := renderOptions{}
	cmd := &cobra.Command{
		Use:   "render [record-id...]",
		Short: "Render stored records and report each outcome",
		Long: `Runs the render pipeline for the given records, or for every record
when no ids are given, and prints the final state of each attempt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.Warmup(cmd.Context()); err != nil {
				appInstance.Logger().Warn("headless warmup failed", zap.Error(err))
			}
			results, err := appInstance.RenderRecords(cmd.Context(), args)
			if err != nil {
				return fmt.Errorf("render records: %w", err)
			}
			return writeResults(cmd.OutOrStdout(), results, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print results as JSON")
	cmd.Flags().BoolVar(&opts.includeHTML, "html", false, "include rendered markup in JSON output")
	return cmd
}

func writeResults(w io.Writer, results []render.Result, opts renderOptions) error {
	if opts.asJSON {
		if !opts.includeHTML {
			for i := range results {
				results[i].HTML = ""
			}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Record", "Mode", "State", "Strategy", "Note"})
	for _, res := range results {
		tw.AppendRow(table.Row{res.RecordID, res.Mode, res.State, dash(res.Strategy), dash(res.Note)})
	}
	tw.Render()
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
