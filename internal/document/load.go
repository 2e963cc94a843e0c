package document

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/pgzip"
)

// Supported file extensions, longest first so ".json.gz" wins over ".gz".
var extensions = []string{".json.gz", ".txt.gz", ".json", ".txt", ".zip"}

// Extension returns the supported extension of name, or "" if none.
func Extension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return ext
		}
	}
	return ""
}

// Load reads a document from disk.
func Load(path string) (*Document, error) {
	if Extension(path) == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	return Parse(filepath.Base(path), data)
}

// Parse decodes data according to the extension of name.
func Parse(name string, data []byte) (*Document, error) {
	var (
		doc *Document
		err error
	)
	switch Extension(name) {
	case ".json":
		doc, err = parseJSON(data)
	case ".json.gz":
		if data, err = gunzip(data); err == nil {
			doc, err = parseJSON(data)
		}
	case ".txt":
		doc = parseText(data)
	case ".txt.gz":
		if data, err = gunzip(data); err == nil {
			doc = parseText(data)
		}
	case ".zip":
		doc, err = parseZip(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	if err != nil {
		return nil, err
	}
	doc.Name = name
	return doc, nil
}

func gunzip(data []byte) ([]byte, error) {
	gz, err := pgzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close()
	out, err := readLimited(gz)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return out, nil
}

var decompressLimit int64 = MaxDecompressedBytes

// readLimited reads r fully unless it expands past decompressLimit.
func readLimited(r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, decompressLimit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > decompressLimit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, decompressLimit)
	}
	return out, nil
}

// parseText splits plain text into pages at form feeds.
func parseText(data []byte) *Document {
	parts := strings.Split(string(data), "\f")
	doc := &Document{Pages: make([]Page, 0, len(parts))}
	for _, p := range parts {
		doc.Pages = append(doc.Pages, Page{Text: p})
	}
	return doc
}

// parseJSON accepts either a layout object {"pages": [...]} or a MinerU
// content list (a top-level array of blocks).
func parseJSON(data []byte) (*Document, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty JSON", ErrUnsupportedFormat)
	}
	if trimmed[0] == '[' {
		return parseContentList(trimmed)
	}
	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("parsing layout JSON: %w", err)
	}
	if doc.Pages == nil {
		return nil, fmt.Errorf("%w: layout JSON has no pages", ErrUnsupportedFormat)
	}
	return &doc, nil
}

type contentBlock struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	TableBody string `json:"table_body"`
	PageIdx   int    `json:"page_idx"`
}

// parseContentList groups MinerU blocks by page. Text-like blocks become
// page text lines; table blocks carry HTML that is expanded into cell grids.
func parseContentList(data []byte) (*Document, error) {
	var blocks []contentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("parsing content list: %w", err)
	}

	type pageAcc struct {
		lines  []string
		tables [][][]string
	}
	pages := map[int]*pageAcc{}
	var order []int
	for _, b := range blocks {
		if b.PageIdx < 0 {
			continue
		}
		acc := pages[b.PageIdx]
		if acc == nil {
			acc = &pageAcc{}
			pages[b.PageIdx] = acc
			order = append(order, b.PageIdx)
		}
		switch b.Type {
		case "table":
			if b.TableBody != "" {
				acc.tables = append(acc.tables, ParseHTMLTables(b.TableBody)...)
			}
		default:
			if t := strings.TrimSpace(b.Text); t != "" {
				acc.lines = append(acc.lines, t)
			}
		}
	}

	// Pages keep their relative order; gaps in page_idx are dropped.
	sort.Ints(order)
	doc := &Document{Pages: make([]Page, 0, len(order))}
	for _, idx := range order {
		acc := pages[idx]
		doc.Pages = append(doc.Pages, Page{Text: strings.Join(acc.lines, "\n"), Tables: acc.tables})
	}
	return doc, nil
}

// parseZip reads a layout result archive. A content list is preferred,
// then any other JSON file, then plain text.
func parseZip(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening zip: %w", err)
	}

	files := append([]*zip.File(nil), zr.File...)
	sort.SliceStable(files, func(i, j int) bool { return zipRank(files[i].Name) < zipRank(files[j].Name) })

	for _, f := range files {
		rank := zipRank(f.Name)
		if rank > 2 {
			break
		}
		content, err := readZipFile(f)
		if err != nil {
			continue
		}
		if rank == 2 {
			return parseText(content), nil
		}
		doc, err := parseJSON(content)
		if err != nil {
			continue
		}
		return doc, nil
	}
	return nil, fmt.Errorf("%w: no layout file found in zip", ErrUnsupportedFormat)
}

func zipRank(name string) int {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, "content_list.json"):
		return 0
	case strings.HasSuffix(lower, ".json"):
		return 1
	case strings.HasSuffix(lower, ".txt"):
		return 2
	}
	return 3
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return readLimited(rc)
}
