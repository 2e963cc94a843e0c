package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gyeh/billcheck/internal/assess"
	"github.com/gyeh/billcheck/internal/document"
	"github.com/gyeh/billcheck/internal/extract"
	"github.com/gyeh/billcheck/internal/hospital"
	"github.com/gyeh/billcheck/internal/progress"
	"github.com/gyeh/billcheck/internal/report"
)

const dukeBill = `Duke University Hospital
Itemized statement
99213 Office visit 600.00
85025 Complete blood count 52.00
`

func init() {
	retryUnit = time.Millisecond
}

func newPipeline() *Pipeline {
	return &Pipeline{
		Extractor: &extract.Extractor{},
		Comparer:  &report.Comparer{Hospitals: hospital.Default()},
	}
}

func writeBill(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func findItem(rep *report.Report, code string) *report.ItemComparison {
	for i := range rep.LineItems {
		if rep.LineItems[i].Code == code {
			return &rep.LineItems[i]
		}
	}
	return nil
}

func TestPipelineLocalFile(t *testing.T) {
	path := writeBill(t, "bill.txt", dukeBill)

	result := newPipeline().Run(context.Background(), path, noop(0, 1, "bill.txt"))
	if result.Err != nil {
		t.Fatalf("Run failed: %v", result.Err)
	}
	if result.Detected == nil || result.Detected.HospitalID != "duke_main" {
		t.Fatalf("expected duke_main detection, got %+v", result.Detected)
	}
	rep := result.Report
	if rep.HospitalName != "Duke University Hospital" {
		t.Errorf("hospital name = %q", rep.HospitalName)
	}

	visit := findItem(rep, "99213")
	if visit == nil {
		t.Fatalf("99213 missing from report: %+v", rep.LineItems)
	}
	if visit.Basis != report.BasisHospital || visit.Status != assess.VeryHigh {
		t.Errorf("99213: basis %q status %q", visit.Basis, visit.Status)
	}
	if *visit.PotentialSavings != 408 {
		t.Errorf("99213 savings = %v, want 408", *visit.PotentialSavings)
	}

	cbc := findItem(rep, "85025")
	if cbc == nil || cbc.Status != assess.Low {
		t.Errorf("85025 should be low: %+v", cbc)
	}

	if rep.Verdict != assess.SignificantlyOvercharged {
		t.Errorf("verdict = %s", rep.Verdict)
	}
	if !result.Flagged() {
		t.Error("expected result to be flagged")
	}
}

func TestPipelineHospitalOverride(t *testing.T) {
	path := writeBill(t, "bill.txt", dukeBill)
	p := newPipeline()
	p.HospitalID = "unc_rex"

	result := p.Run(context.Background(), path, noop(0, 1, "bill.txt"))
	if result.Err != nil {
		t.Fatalf("Run failed: %v", result.Err)
	}
	if result.Report.HospitalID != "unc_rex" {
		t.Errorf("hospital = %q, want override", result.Report.HospitalID)
	}
	if visit := findItem(result.Report, "99213"); visit == nil || *visit.FairPrice != 155 {
		t.Errorf("expected UNC Rex negotiated rate, got %+v", visit)
	}
}

func TestPipelineUnknownHospital(t *testing.T) {
	path := writeBill(t, "bill.txt", dukeBill)
	p := newPipeline()
	p.HospitalID = "nowhere"

	result := p.Run(context.Background(), path, noop(0, 1, "bill.txt"))
	if !errors.Is(result.Err, hospital.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", result.Err)
	}
	if result.Error == "" {
		t.Error("expected Error string to be set")
	}
	if result.Extraction == nil {
		t.Error("extraction should survive a compare failure")
	}
}

func TestPipelineUnsupportedFormat(t *testing.T) {
	path := writeBill(t, "bill.pdf", "%PDF-1.4")
	result := newPipeline().Run(context.Background(), path, noop(0, 1, "bill.pdf"))
	if !errors.Is(result.Err, document.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", result.Err)
	}
}

func TestPipelineNoItemsWithoutFallback(t *testing.T) {
	path := writeBill(t, "empty.txt", "Thank you for your payment\n")
	result := newPipeline().Run(context.Background(), path, noop(0, 1, "empty.txt"))
	if !errors.Is(result.Err, extract.ErrNoItems) {
		t.Fatalf("expected ErrNoItems, got %v", result.Err)
	}
}

func TestPipelineOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bills/bill.txt" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(dukeBill))
	}))
	defer srv.Close()

	var lastRead, lastTotal int64
	tracker := &recordingTracker{onProgress: func(c, t int64) { lastRead, lastTotal = c, t }}
	result := newPipeline().Run(context.Background(), srv.URL+"/bills/bill.txt?sig=abc", tracker)
	if result.Err != nil {
		t.Fatalf("Run failed: %v", result.Err)
	}
	if result.Report.Verdict != assess.SignificantlyOvercharged {
		t.Errorf("verdict = %s", result.Report.Verdict)
	}
	if lastRead != int64(len(dukeBill)) || lastTotal != int64(len(dukeBill)) {
		t.Errorf("progress = %d/%d, want %d", lastRead, lastTotal, len(dukeBill))
	}
	want := []string{"Fetching", "Extracting", "Comparing"}
	for i, s := range want {
		if i >= len(tracker.stages) || tracker.stages[i] != s {
			t.Fatalf("stages = %v", tracker.stages)
		}
	}
	if tracker.counters["items"] < 2 || tracker.counters["codes"] < 2 {
		t.Errorf("counters = %v", tracker.counters)
	}
}

type recordingTracker struct {
	stages     []string
	counters   map[string]int64
	onProgress func(current, total int64)
}

func (r *recordingTracker) SetStage(s string) { r.stages = append(r.stages, s) }
func (r *recordingTracker) SetProgress(c, t int64) {
	if r.onProgress != nil {
		r.onProgress(c, t)
	}
}
func (r *recordingTracker) SetCounter(name string, v int64) {
	if r.counters == nil {
		r.counters = map[string]int64{}
	}
	r.counters[name] = v
}
func (r *recordingTracker) Done() {}

func TestDownloadRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := DownloadHTTP(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("DownloadHTTP failed: %v", err)
	}
	resp.Body.Close()
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDownloadDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := DownloadHTTP(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestFetchEnforcesLimit(t *testing.T) {
	path := writeBill(t, "big.txt", strings.Repeat("x", 100))
	if _, _, err := Fetch(context.Background(), path, 10, nil); err == nil {
		t.Error("expected size error for local file")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()
	if _, _, err := Fetch(context.Background(), srv.URL+"/big.txt", 10, nil); err == nil {
		t.Error("expected size error for download")
	}
}

func TestFileNameFromURL(t *testing.T) {
	cases := map[string]string{
		"https://example.com/bills/march.json.gz?X-Amz-Signature=abc": "march.json.gz",
		"http://example.com/a/b/bill.txt":                              "bill.txt",
	}
	for in, want := range cases {
		if got := FileNameFromURL(in); got != want {
			t.Errorf("FileNameFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPoolKeepsInputOrder(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	if err := os.WriteFile(good, []byte(dukeBill), 0o644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "missing.txt")

	mgr := &progress.NoopManager{}
	pool := &Pool{Workers: 2, Pipeline: newPipeline(), Progress: mgr}
	results := pool.Run(context.Background(), []string{good, missing, good})

	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	for _, i := range []int{0, 2} {
		if results[i].Source != good || results[i].Err != nil {
			t.Errorf("result %d: %+v", i, results[i])
		}
	}
	if results[1].Source != missing || !errors.Is(results[1].Err, os.ErrNotExist) {
		t.Errorf("result 1 should be a missing-file error: %v", results[1].Err)
	}
	if mgr.DocsComplete != 3 || mgr.DocsFlagged != 2 {
		t.Errorf("overall stats: complete %d flagged %d", mgr.DocsComplete, mgr.DocsFlagged)
	}
	if mgr.TotalItems < 4 {
		t.Errorf("total items = %d", mgr.TotalItems)
	}
}

func TestPoolCancelled(t *testing.T) {
	path := writeBill(t, "bill.txt", dukeBill)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := &Pool{Workers: 1, Pipeline: newPipeline(), Progress: &progress.NoopManager{}}
	for i, r := range pool.Run(ctx, []string{path, path}) {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("result %d: expected context.Canceled, got %v", i, r.Err)
		}
	}
}

func noop(index, total int, name string) progress.Tracker {
	return (&progress.NoopManager{}).NewTracker(index, total, name)
}
