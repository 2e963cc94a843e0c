package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gyeh/billcheck/internal/assess"
	"github.com/gyeh/billcheck/internal/document"
	"github.com/gyeh/billcheck/internal/extract"
	"github.com/gyeh/billcheck/internal/hospital"
	"github.com/gyeh/billcheck/internal/progress"
	"github.com/gyeh/billcheck/internal/report"
)

// detectPages is how many leading pages are searched for the provider name.
const detectPages = 2

// Result holds the outcome of checking one document.
type Result struct {
	Source     string              `json:"source"`
	Extraction *extract.Result     `json:"extraction,omitempty"`
	Detected   *hospital.Detection `json:"detected_hospital,omitempty"`
	Report     *report.Report      `json:"report,omitempty"`
	Err        error               `json:"-"`
	Error      string              `json:"error,omitempty"`
}

// Flagged reports whether the bill looks moderately or significantly
// overcharged.
func (r *Result) Flagged() bool {
	if r.Report == nil {
		return false
	}
	v := r.Report.Verdict
	return v == assess.SignificantlyOvercharged || v == assess.ModeratelyOvercharged
}

func (r *Result) fail(err error) *Result {
	r.Err = err
	r.Error = err.Error()
	return r
}

// Pipeline checks a single document: fetch → parse → extract → detect
// provider → compare.
type Pipeline struct {
	Extractor *extract.Extractor
	Comparer  *report.Comparer
	// HospitalID overrides provider detection when set.
	HospitalID   string
	UseReference bool
	MaxBytes     int64
	Logger       zerolog.Logger
}

// Analysis is what extraction yields for a parsed document.
type Analysis struct {
	Extraction *extract.Result
	Detected   *hospital.Detection
}

// Analyze extracts line items and guesses the issuing provider.
func (p *Pipeline) Analyze(doc *document.Document) (*Analysis, error) {
	res, err := p.Extractor.Extract(doc)
	if err != nil {
		return nil, err
	}
	a := &Analysis{Extraction: res}
	if p.Comparer != nil && p.Comparer.Hospitals != nil {
		a.Detected = p.Comparer.Hospitals.Detect(doc.Text(detectPages))
	}
	return a, nil
}

// Run processes one source, reporting stages to tracker.
func (p *Pipeline) Run(ctx context.Context, source string, tracker progress.Tracker) *Result {
	result := &Result{Source: source}
	log := p.Logger.With().Str("source", source).Logger()

	tracker.SetStage("Fetching")
	name, data, err := Fetch(ctx, source, p.MaxBytes, tracker.SetProgress)
	if err != nil {
		return result.fail(fmt.Errorf("fetch: %w", err))
	}

	tracker.SetStage("Extracting")
	doc, err := document.Parse(name, data)
	if err != nil {
		return result.fail(fmt.Errorf("parse: %w", err))
	}
	a, err := p.Analyze(doc)
	if err != nil {
		if errors.Is(err, extract.ErrNoItems) {
			log.Warn().Msg("no line items found")
		}
		return result.fail(fmt.Errorf("extract: %w", err))
	}
	result.Extraction = a.Extraction
	result.Detected = a.Detected

	items := a.Extraction.Items
	var coded int64
	for _, it := range items {
		if it.Code != "" {
			coded++
		}
	}
	tracker.SetCounter("items", int64(len(items)))
	tracker.SetCounter("codes", coded)
	if !a.Extraction.Confident() {
		log.Warn().Msg("using example line items")
	}

	if err := ctx.Err(); err != nil {
		return result.fail(err)
	}

	tracker.SetStage("Comparing")
	rep, err := p.Comparer.Compare(ctx, report.Request{
		Items:        items,
		HospitalID:   p.hospitalFor(a.Detected),
		UseReference: p.UseReference,
	})
	if err != nil {
		return result.fail(fmt.Errorf("compare: %w", err))
	}
	result.Report = rep

	tracker.SetStage(fmt.Sprintf("Done (%d items, %s)", len(items), rep.Verdict))
	log.Debug().Int("items", len(items)).Str("verdict", string(rep.Verdict)).Msg("document checked")
	return result
}

func (p *Pipeline) hospitalFor(d *hospital.Detection) string {
	if p.HospitalID != "" {
		return p.HospitalID
	}
	if d != nil {
		return d.HospitalID
	}
	return ""
}
