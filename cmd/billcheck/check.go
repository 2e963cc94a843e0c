package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/gyeh/billcheck/internal/cloud"
	"github.com/gyeh/billcheck/internal/output"
	"github.com/gyeh/billcheck/internal/progress"
	"github.com/gyeh/billcheck/internal/worker"
)

// batchOutput is the report written by check.
type batchOutput struct {
	RunID           string          `json:"run_id"`
	Documents       int             `json:"documents"`
	Failed          int             `json:"failed"`
	Flagged         int             `json:"flagged"`
	DurationSeconds float64         `json:"duration_seconds"`
	Results         []worker.Result `json:"results"`
}

func newCheckCmd(a *app) *cobra.Command {
	var (
		sourcesFile string
		outputFile  string
		workers     int
		hospitalID  string
		noCMS       bool
		noProgress  bool
		summary     bool
		s3Bucket    string
		s3Prefix    string
	)

	cmd := &cobra.Command{
		Use:   "check [document|url]...",
		Short: "Extract and compare many bills concurrently",
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := append([]string(nil), args...)
			if sourcesFile != "" {
				more, err := readLines(sourcesFile)
				if err != nil {
					return fmt.Errorf("reading sources: %w", err)
				}
				sources = append(sources, more...)
			}
			if len(sources) == 0 {
				return fmt.Errorf("no documents given")
			}
			if workers <= 0 {
				workers = a.cfg.Worker.Count
			}

			ctx, cancel := signalContext()
			defer cancel()

			p, cleanup, err := a.pipeline(ctx, !noCMS)
			if err != nil {
				return err
			}
			defer cleanup()
			p.HospitalID = hospitalID

			var mgr progress.Manager
			switch {
			case noProgress || outputFile == "-":
				mgr = &progress.NoopManager{}
			case stderrIsTerminal():
				mgr = progress.NewMPBManager()
			default:
				mgr = progress.NewLogManager()
			}

			start := time.Now()
			pool := &worker.Pool{Workers: workers, Pipeline: p, Progress: mgr}
			results := pool.Run(ctx, sources)
			mgr.Wait()

			out := batchOutput{
				RunID:     uuid.NewString(),
				Documents: len(sources),
				Results:   results,
			}
			for _, r := range results {
				if r.Err != nil {
					out.Failed++
					fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", r.Source, r.Err)
					continue
				}
				if r.Flagged() {
					out.Flagged++
				}
				if summary {
					fmt.Fprintln(os.Stderr)
					if err := output.Summary(os.Stderr, r.Source, r.Report, language.AmericanEnglish); err != nil {
						return err
					}
				}
			}
			out.DurationSeconds = time.Since(start).Seconds()

			if err := output.WriteJSON(outputFile, out); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
			if s3Bucket != "" {
				s3c, err := cloud.NewS3Client(ctx, s3Bucket, a.cfg.AWS.Region)
				if err != nil {
					return err
				}
				key := cloud.ReportKey(s3Prefix, out.RunID)
				if err := s3c.UploadJSON(ctx, key, out); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "Report uploaded to s3://%s/%s\n", s3Bucket, key)
			}

			fmt.Fprintf(os.Stderr, "\nCheck complete: %d documents, %d failed, %d flagged in %.1fs\n",
				out.Documents, out.Failed, out.Flagged, out.DurationSeconds)
			if outputFile != "-" {
				fmt.Fprintf(os.Stderr, "Report written to %s\n", outputFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sourcesFile, "sources-file", "", "File listing documents or URLs (one per line)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "report.json", "Output file path (use '-' for stdout)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of concurrent documents (default: worker.count)")
	cmd.Flags().StringVar(&hospitalID, "hospital", "", "Hospital id for every document (default: detect per document)")
	cmd.Flags().BoolVar(&noCMS, "no-cms", false, "Skip Medicare reference lookups")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable progress output")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print a readable summary per document to stderr")
	cmd.Flags().StringVar(&s3Bucket, "s3-bucket", "", "Also upload the report to this S3 bucket")
	cmd.Flags().StringVar(&s3Prefix, "s3-key-prefix", "billcheck/reports", "Key prefix for uploaded reports")
	return cmd
}
