package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/gyeh/billcheck/internal/billing"
	"github.com/gyeh/billcheck/internal/output"
	"github.com/gyeh/billcheck/internal/report"
)

func newCompareCmd(a *app) *cobra.Command {
	var (
		itemsFile  string
		hospitalID string
		noCMS      bool
		outputFile string
		summary    bool
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare a list of line items against reference and hospital prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readItems(itemsFile)
			if err != nil {
				return fmt.Errorf("reading items: %w", err)
			}
			if len(items) == 0 {
				return fmt.Errorf("no line items in %s", itemsFile)
			}

			ctx, cancel := signalContext()
			defer cancel()
			p, cleanup, err := a.pipeline(ctx, !noCMS)
			if err != nil {
				return err
			}
			defer cleanup()

			rep, err := p.Comparer.Compare(ctx, report.Request{
				Items:        items,
				HospitalID:   hospitalID,
				UseReference: !noCMS,
			})
			if err != nil {
				return err
			}
			if summary {
				if err := output.Summary(os.Stderr, itemsFile, rep, language.AmericanEnglish); err != nil {
					return err
				}
			}
			return output.WriteJSON(outputFile, rep)
		},
	}

	cmd.Flags().StringVar(&itemsFile, "items", "", "JSON file with line items (an array or {\"line_items\": [...]})")
	cmd.Flags().StringVar(&hospitalID, "hospital", "", "Hospital id for fallback prices (see 'hospitals list')")
	cmd.Flags().BoolVar(&noCMS, "no-cms", false, "Skip Medicare reference lookups")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "-", "Output file path (use '-' for stdout)")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print a readable summary to stderr")
	cmd.MarkFlagRequired("items")
	return cmd
}

// readItems accepts either a bare array of line items or an extract result.
func readItems(path string) ([]billing.LineItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	var items []billing.LineItem
	if len(data) > 0 && data[0] == '[' {
		err = json.Unmarshal(data, &items)
	} else {
		var wrapped struct {
			Items []billing.LineItem `json:"line_items"`
		}
		err = json.Unmarshal(data, &wrapped)
		items = wrapped.Items
	}
	return items, err
}
