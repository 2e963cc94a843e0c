package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyeh/billcheck/internal/report"
)

func newLookupCmd(a *app) *cobra.Command {
	var (
		description string
		apc         bool
	)

	cmd := &cobra.Command{
		Use:   "lookup <code>",
		Short: "Resolve Medicare reference pricing for one billing code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			r, cleanup, err := a.resolver(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			code := strings.ToUpper(strings.TrimSpace(args[0]))
			if apc {
				fee := r.FacilityFee(ctx, code)
				if fee == nil {
					return fmt.Errorf("no outpatient data for APC %s", code)
				}
				return printJSON(fee)
			}

			c := r.Combined(ctx, code, description)
			return printJSON(map[string]any{
				"pricing": c,
				"summary": report.Summarize(c),
			})
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Bill description to validate the reference data against")
	cmd.Flags().BoolVar(&apc, "apc", false, "Treat the code as an outpatient APC code")
	return cmd
}
