package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gyeh/billcheck/internal/document"
	"github.com/gyeh/billcheck/internal/output"
	"github.com/gyeh/billcheck/internal/worker"
)

func newExtractCmd(a *app) *cobra.Command {
	var (
		outputFile    string
		allowFallback bool
	)

	cmd := &cobra.Command{
		Use:   "extract <document>",
		Short: "Extract line items from a bill (layout JSON, MinerU zip/content list, or text)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			p, cleanup, err := a.pipeline(ctx, false)
			if err != nil {
				return err
			}
			defer cleanup()
			if cmd.Flags().Changed("allow-fallback") {
				p.Extractor.AllowFallback = allowFallback
			}

			name, data, err := worker.Fetch(ctx, args[0], 0, nil)
			if err != nil {
				return err
			}
			doc, err := document.Parse(name, data)
			if err != nil {
				return err
			}
			res, err := p.Analyze(doc)
			if err != nil {
				return fmt.Errorf("extracting %s: %w", name, err)
			}

			return output.WriteJSON(outputFile, map[string]any{
				"line_items":        res.Extraction.Items,
				"source":            res.Extraction.Source,
				"detected_hospital": res.Detected,
				"stats":             res.Extraction.Stats,
			})
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "-", "Output file path (use '-' for stdout)")
	cmd.Flags().BoolVar(&allowFallback, "allow-fallback", true, "Substitute example items when nothing is found")
	return cmd
}
