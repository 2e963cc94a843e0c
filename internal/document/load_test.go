package document

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"
)

const layoutJSON = `{"pages":[
  {"text":"Duke University Hospital\nStatement","tables":[[["99213","Office visit","$150.00"]]]},
  {"text":"Page 2"}
]}`

const contentList = `[
  {"type":"text","text":"WakeMed Cary Hospital","page_idx":0},
  {"type":"table","table_body":"<table><tr><td>Code</td><td>Description</td><td>Charge</td></tr><tr><td>85025</td><td>CBC</td><td>$45.00</td></tr></table>","page_idx":0},
  {"type":"text","text":"Total due 45.00","page_idx":1}
]`

func gz(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := pgzip.NewWriter(&buf)
	if _, err := w.Write([]byte(data)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestParseLayoutJSON(t *testing.T) {
	doc, err := Parse("bill.json", []byte(layoutJSON))
	if err != nil {
		t.Fatal(err)
	}
	if doc.NumPages() != 2 {
		t.Fatalf("pages = %d, want 2", doc.NumPages())
	}
	tables := doc.PageTables(0)
	if len(tables) != 1 || tables[0][0][2] != "$150.00" {
		t.Errorf("tables = %v", tables)
	}
	if doc.PageText(5) != "" || doc.PageTables(-1) != nil {
		t.Error("out of range pages should be empty")
	}
	if got := doc.Text(1); got != "Duke University Hospital\nStatement" {
		t.Errorf("Text(1) = %q", got)
	}
	if doc.Name != "bill.json" {
		t.Errorf("Name = %q", doc.Name)
	}
}

func TestParseContentList(t *testing.T) {
	doc, err := Parse("bill.json.gz", gz(t, contentList))
	if err != nil {
		t.Fatal(err)
	}
	if doc.NumPages() != 2 {
		t.Fatalf("pages = %d, want 2", doc.NumPages())
	}
	if doc.PageText(0) != "WakeMed Cary Hospital" {
		t.Errorf("page 0 text = %q", doc.PageText(0))
	}
	tables := doc.PageTables(0)
	if len(tables) != 1 || len(tables[0]) != 2 || tables[0][1][0] != "85025" {
		t.Errorf("tables = %v", tables)
	}
}

func TestParseContentListSparsePages(t *testing.T) {
	data := `[
  {"type":"text","text":"first","page_idx":3},
  {"type":"text","text":"huge","page_idx":9000000000000000000},
  {"type":"text","text":"skipped","page_idx":-2}
]`
	doc, err := Parse("content_list.json", []byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if doc.NumPages() != 2 {
		t.Fatalf("pages = %d, want 2", doc.NumPages())
	}
	if doc.PageText(0) != "first" || doc.PageText(1) != "huge" {
		t.Errorf("pages = %+v", doc.Pages)
	}
}

func TestParseDecompressLimit(t *testing.T) {
	old := decompressLimit
	decompressLimit = 64
	defer func() { decompressLimit = old }()

	_, err := Parse("bill.txt.gz", gz(t, strings.Repeat("x", 65)))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range []struct{ name, body string }{
		{"out/bill_content_list.json", contentList},
		{"out/notes.txt", "small"},
	} {
		w, err := zw.Create(f.name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(f.body))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	doc, err := Parse("result.zip", buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if doc.PageText(0) != "small" {
		t.Errorf("page 0 = %q, want oversized entry skipped", doc.PageText(0))
	}
}

func TestParseText(t *testing.T) {
	doc, err := Parse("bill.txt", []byte("page one\fpage two\fpage three"))
	if err != nil {
		t.Fatal(err)
	}
	if doc.NumPages() != 3 || doc.PageText(1) != "page two" {
		t.Errorf("doc = %+v", doc)
	}
	doc, err = Parse("bill.TXT.GZ", gz(t, "compressed"))
	if err != nil {
		t.Fatal(err)
	}
	if doc.PageText(0) != "compressed" {
		t.Errorf("page 0 = %q", doc.PageText(0))
	}
}

func TestParseZipPrefersContentList(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string]string{
		"out/notes.txt":              "ignored",
		"out/layout.json":            `{"pages":[{"text":"layout"}]}`,
		"out/bill_content_list.json": contentList,
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(body))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	doc, err := Parse("result.zip", buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if doc.PageText(0) != "WakeMed Cary Hospital" {
		t.Errorf("page 0 = %q, want content list text", doc.PageText(0))
	}
}

func TestParseUnsupported(t *testing.T) {
	for _, name := range []string{"bill.pdf", "bill.docx", "bill.gz"} {
		if _, err := Parse(name, []byte("x")); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Parse(%s) err = %v, want ErrUnsupportedFormat", name, err)
		}
	}
	if _, err := Parse("bill.json", []byte(`{"other":1}`)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("object without pages err = %v", err)
	}
	if _, err := Parse("bill.json", []byte(`{"pages":`)); err == nil {
		t.Error("expected error for truncated JSON")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bill.json")
	if err := os.WriteFile(path, []byte(layoutJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.NumPages() != 2 {
		t.Errorf("pages = %d", doc.NumPages())
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
