// Package document loads page-structured bill documents from the layout
// formats the extractor understands, and stores uploaded originals.
package document

import (
	"errors"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for files with no known loader.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrNotFound is returned for unknown upload ids.
	ErrNotFound = errors.New("document not found")
	// ErrTooLarge is returned when decompressed content exceeds MaxDecompressedBytes.
	ErrTooLarge = errors.New("document too large")
)

// MaxDecompressedBytes bounds what a gzip stream or a single zip entry may
// expand to.
const MaxDecompressedBytes = 128 << 20

// Page is one page of layout output.
type Page struct {
	Text   string       `json:"text"`
	Tables [][][]string `json:"tables,omitempty"`
}

// Document is an ordered list of pages.
type Document struct {
	Name  string `json:"name,omitempty"`
	Pages []Page `json:"pages"`
}

func (d *Document) NumPages() int { return len(d.Pages) }

func (d *Document) PageTables(page int) [][][]string {
	if page < 0 || page >= len(d.Pages) {
		return nil
	}
	return d.Pages[page].Tables
}

func (d *Document) PageText(page int) string {
	if page < 0 || page >= len(d.Pages) {
		return ""
	}
	return d.Pages[page].Text
}

// Text joins the text of the first n pages (all pages when n <= 0).
func (d *Document) Text(n int) string {
	pages := d.Pages
	if n > 0 && n < len(pages) {
		pages = pages[:n]
	}
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	return strings.Join(texts, "\n")
}
