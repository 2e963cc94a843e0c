package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyeh/billcheck/internal/cms"
	"github.com/gyeh/billcheck/internal/pricing"
)

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Build or inspect offline copies of the CMS reference datasets",
	}
	cmd.AddCommand(newSnapshotExportCmd(a), newSnapshotInspectCmd(a))
	return cmd
}

func newSnapshotExportCmd(a *app) *cobra.Command {
	var (
		codes      string
		apcCodes   string
		drgCodes   string
		outputFile string
		pageSize   int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download records for the given codes into a snapshot file",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := cms.ExportRequest{Codes: map[string][]string{}, PageSize: pageSize}
			for _, c := range splitCodes(codes) {
				if pricing.IsDrugCode(c) {
					req.Codes[cms.PartBDrugs.Name] = append(req.Codes[cms.PartBDrugs.Name], c)
					if alt, ok := pricing.Crosswalk[c]; ok {
						req.Codes[cms.PartBDrugs.Name] = append(req.Codes[cms.PartBDrugs.Name], alt)
					}
					continue
				}
				req.Codes[cms.PhysicianServices.Name] = append(req.Codes[cms.PhysicianServices.Name], c)
			}
			if apc := splitCodes(apcCodes); len(apc) > 0 {
				req.Codes[cms.OutpatientServices.Name] = apc
			}
			if drg := splitCodes(drgCodes); len(drg) > 0 {
				req.Codes[cms.InpatientServices.Name] = drg
			}
			if len(req.Codes) == 0 {
				return fmt.Errorf("no codes given")
			}

			ctx, cancel := signalContext()
			defer cancel()

			f, err := os.Create(outputFile)
			if err != nil {
				return err
			}
			gz := strings.HasSuffix(strings.ToLower(outputFile), ".gz")
			total := 0
			err = cms.Export(ctx, a.apiClient(), req, f, gz, func(dataset string, n int) {
				total += n
				a.log.Info().Str("dataset", dataset).Int("records", n).Msg("exported")
			})
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				os.Remove(outputFile)
				return fmt.Errorf("exporting snapshot: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Wrote %d records to %s\n", total, outputFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&codes, "codes", "", "Comma-separated HCPCS/CPT codes (drug codes go to the Part B dataset)")
	cmd.Flags().StringVar(&apcCodes, "apc", "", "Comma-separated outpatient APC codes")
	cmd.Flags().StringVar(&drgCodes, "drg", "", "Comma-separated inpatient DRG codes")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "snapshot.json.gz", "Snapshot path (.gz compresses)")
	cmd.Flags().IntVar(&pageSize, "page-size", cms.MaxPageSize, "Records per API request")
	return cmd
}

func newSnapshotInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <snapshot>",
		Short: "List datasets and record counts in a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.MkdirTemp("", "billcheck-inspect-*")
			if err != nil {
				return err
			}
			defer os.RemoveAll(dir)

			snap, err := cms.OpenSnapshot(args[0], dir, a.log)
			if err != nil {
				return err
			}
			counts := map[string]int{}
			for _, name := range snap.Datasets() {
				n, err := snap.Count(name)
				if err != nil {
					return fmt.Errorf("counting %s: %w", name, err)
				}
				counts[name] = n
			}
			return printJSON(counts)
		},
	}
}
