package cms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestClient(url string) *Client {
	c := NewClient(url, 5*time.Second, zerolog.Nop())
	c.Backoff = time.Millisecond
	return c
}

func TestQueryURL(t *testing.T) {
	c := newTestClient("https://example.test/dataset/")
	got := c.QueryURL(Query{
		Dataset: PhysicianServices,
		Filters: map[string]string{FieldHCPCSCode: "99213"},
		Size:    10,
	})
	want := "https://example.test/dataset/" + PhysicianServices.ID + "/data?filter%5BHCPCS_Cd%5D=99213&offset=0&size=10"
	if got != want {
		t.Errorf("QueryURL = %q, want %q", got, want)
	}
}

func TestQueryURLClampsSize(t *testing.T) {
	c := newTestClient("https://example.test")
	got := c.QueryURL(Query{Dataset: PartBDrugs, Size: 1_000_000})
	if !strings.Contains(got, "size=5000") {
		t.Errorf("QueryURL = %q, want size clamped to 5000", got)
	}
}

func TestQueryDecodesRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("filter[HCPCS_Cd]"); got != "99213" {
			t.Errorf("filter = %q, want 99213", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"HCPCS_Cd":"99213","HCPCS_Desc":"Office visit","Avg_Mdcr_Pymt_Amt":"75.5","Rndrng_NPI":"123"},
			{"HCPCS_Cd":"99213","HCPCS_Desc":"Office visit","Avg_Mdcr_Pymt_Amt":80.25}
		]`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	records, err := c.Query(context.Background(), Query{
		Dataset: PhysicianServices,
		Filters: map[string]string{FieldHCPCSCode: "99213"},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if v, ok := records[0].Float(FieldAvgPayment); !ok || v != 75.5 {
		t.Errorf("records[0] payment = %v, %v; want 75.5", v, ok)
	}
	if v, ok := records[1].Float(FieldAvgPayment); !ok || v != 80.25 {
		t.Errorf("records[1] payment = %v, %v; want 80.25", v, ok)
	}
	if _, ok := records[0]["Rndrng_NPI"]; ok {
		t.Error("unrequested field should be dropped")
	}
}

func TestQueryRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	records, err := newTestClient(srv.URL).Query(context.Background(), Query{Dataset: PhysicianServices})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestQueryDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Query(context.Background(), Query{Dataset: PhysicianServices})
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestQueryRejectsNonArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"nope"}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Query(context.Background(), Query{Dataset: PhysicianServices}); err == nil {
		t.Error("expected error for object body")
	}
}

func TestRecordFloat(t *testing.T) {
	r := Record{"a": "1,234.50", "b": "", "c": "n/a"}
	if v, ok := r.Float("a"); !ok || v != 1234.5 {
		t.Errorf("Float(a) = %v, %v", v, ok)
	}
	for _, f := range []string{"b", "c", "missing"} {
		if _, ok := r.Float(f); ok {
			t.Errorf("Float(%s) should report false", f)
		}
	}
}
