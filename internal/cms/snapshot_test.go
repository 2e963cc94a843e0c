package cms

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

// memQuerier serves fixed records and honors offset/size.
type memQuerier struct {
	records map[string][]Record
	calls   int
}

func (m *memQuerier) Query(_ context.Context, q Query) ([]Record, error) {
	m.calls++
	var matched []Record
	for _, r := range m.records[q.Dataset.Name] {
		if q.matches(r) {
			matched = append(matched, r)
		}
	}
	if q.Offset >= len(matched) {
		return nil, nil
	}
	end := min(q.Offset+pageSize(q.Size), len(matched))
	return matched[q.Offset:end], nil
}

func testSource() *memQuerier {
	return &memQuerier{records: map[string][]Record{
		PhysicianServices.Name: {
			{FieldHCPCSCode: "99213", FieldHCPCSDesc: "Office visit", FieldAvgPayment: "75"},
			{FieldHCPCSCode: "99213", FieldHCPCSDesc: "Office visit", FieldAvgPayment: "85"},
			{FieldHCPCSCode: "99213", FieldHCPCSDesc: "Office visit", FieldAvgPayment: "95"},
			{FieldHCPCSCode: "71046", FieldHCPCSDesc: "Chest x-ray", FieldAvgPayment: "30"},
		},
		PartBDrugs.Name: {
			{FieldHCPCSCode: "J2001", FieldBrandName: "Xylocaine", FieldASPPrice: "1.2"},
		},
	}}
}

func writeSnapshot(t *testing.T, gzipped bool) string {
	t.Helper()
	name := "snapshot.json"
	if gzipped {
		name += ".gz"
	}
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	src := testSource()
	req := ExportRequest{
		Codes: map[string][]string{
			PhysicianServices.Name: {"99213", "71046"},
			PartBDrugs.Name:        {"J2001"},
		},
		PageSize: 2,
	}
	if err := Export(context.Background(), src, req, f, gzipped, nil); err != nil {
		t.Fatalf("Export: %v", err)
	}
	return path
}

func TestExportPages(t *testing.T) {
	src := testSource()
	counts := map[string]int{}
	req := ExportRequest{Codes: map[string][]string{PhysicianServices.Name: {"99213"}}, PageSize: 2}
	err := Export(context.Background(), src, req, &discard{}, false, func(ds string, n int) {
		counts[ds] += n
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if counts[PhysicianServices.Name] != 3 {
		t.Errorf("exported %d records, want 3", counts[PhysicianServices.Name])
	}
	if src.calls != 2 {
		t.Errorf("calls = %d, want 2 pages", src.calls)
	}
}

func TestExportUnknownDataset(t *testing.T) {
	req := ExportRequest{Codes: map[string][]string{"nope": {"1"}}}
	if err := Export(context.Background(), testSource(), req, &discard{}, false, nil); err == nil {
		t.Error("expected error for unknown dataset")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	for _, gz := range []bool{false, true} {
		path := writeSnapshot(t, gz)
		snap, err := OpenSnapshot(path, t.TempDir(), zerolog.Nop())
		if err != nil {
			t.Fatalf("OpenSnapshot(gz=%v): %v", gz, err)
		}

		records, err := snap.Query(context.Background(), Query{
			Dataset: PhysicianServices,
			Filters: map[string]string{FieldHCPCSCode: "99213"},
		})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("gz=%v: got %d records, want 3", gz, len(records))
		}
		if v, _ := records[2].Float(FieldAvgPayment); v != 95 {
			t.Errorf("records[2] payment = %v, want 95", v)
		}

		n, err := snap.Count(PartBDrugs.Name)
		if err != nil || n != 1 {
			t.Errorf("Count(part_b_drugs) = %d, %v; want 1", n, err)
		}
	}
}

func TestSnapshotOffsetAndSize(t *testing.T) {
	snap, err := OpenSnapshot(writeSnapshot(t, false), t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	records, err := snap.Query(context.Background(), Query{
		Dataset: PhysicianServices,
		Filters: map[string]string{FieldHCPCSCode: "99213"},
		Size:    1,
		Offset:  1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if v, _ := records[0].Float(FieldAvgPayment); v != 85 {
		t.Errorf("payment = %v, want 85", v)
	}
}

func TestSnapshotMissingDataset(t *testing.T) {
	snap, err := OpenSnapshot(writeSnapshot(t, false), t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	records, err := snap.Query(context.Background(), Query{Dataset: InpatientServices})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestVerifyJSONBrackets(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"valid", `{"a":[]}`, false},
		{"whitespace", "  {\"a\":[]}\n", false},
		{"truncated", `{"a":[{"b":1}`, true},
		{"array", `[1,2]`, true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := filepath.Join(dir, tt.name+".json")
			if err := os.WriteFile(p, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			err := verifyJSONBrackets(p)
			if (err != nil) != tt.wantErr {
				t.Errorf("verifyJSONBrackets() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
