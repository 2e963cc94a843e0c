package extract

import (
	"errors"
	"sort"
	"strings"

	"github.com/gyeh/billcheck/internal/billing"
	"github.com/rs/zerolog"
)

// ErrNoItems is returned when no strategy produced an item and the
// exemplar fallback is disabled.
var ErrNoItems = errors.New("no line items extracted")

// aggressiveThreshold gates the aggressive text pass: it only runs while
// fewer items than this have been collected.
const aggressiveThreshold = 10

// Document is the page-structured input the extractor walks. Tables are
// rows of cells; text is the page's plain-text rendering.
type Document interface {
	NumPages() int
	PageTables(page int) [][][]string
	PageText(page int) string
}

// Source tags where a Result's items came from.
type Source string

const (
	SourceExtracted Source = "extracted"
	SourceFallback  Source = "fallback_example"
)

// Stats records what each strategy saw and produced.
type Stats struct {
	Pages          int `json:"pages"`
	Tables         int `json:"tables_found"`
	TableRows      int `json:"table_rows"`
	TextLines      int `json:"text_lines"`
	FromTables     int `json:"items_from_tables"`
	FromSplits     int `json:"items_from_split_cells"`
	FromText       int `json:"items_from_text"`
	FromAggressive int `json:"items_from_aggressive"`
}

// Result is the extractor output.
type Result struct {
	Items  []billing.LineItem `json:"line_items"`
	Source Source             `json:"source"`
	Stats  Stats              `json:"stats"`
}

// Confident reports whether the items were read from the document rather
// than substituted from the exemplar list.
func (r *Result) Confident() bool {
	return r.Source == SourceExtracted
}

// Extractor runs the table, targeted-text and aggressive-text strategies
// over a document and merges their candidates.
type Extractor struct {
	// AllowFallback substitutes ExampleItems when nothing is found.
	// When false, Extract returns ErrNoItems instead.
	AllowFallback bool
	Logger        zerolog.Logger
}

// Extract returns line items sorted by descending amount.
func (e *Extractor) Extract(doc Document) (*Result, error) {
	res := &Result{Source: SourceExtracted}
	stats := &res.Stats
	stats.Pages = doc.NumPages()

	var texts []string
	for p := 0; p < stats.Pages; p++ {
		if t := doc.PageText(p); t != "" {
			texts = append(texts, t)
		}
	}
	fullText := strings.Join(texts, "\n")
	if fullText != "" {
		stats.TextLines = len(strings.Split(fullText, "\n"))
	}

	var items []billing.LineItem
	for p := 0; p < stats.Pages; p++ {
		tables := doc.PageTables(p)
		stats.Tables += len(tables)
		for _, table := range tables {
			for _, row := range table {
				stats.TableRows++
				cells := nonEmptyCells(row)
				if len(cells) < 2 {
					continue
				}
				if split, triggered := splitMergedRow(cells); triggered {
					items = append(items, split...)
					stats.FromSplits += len(split)
					continue
				}
				if item, ok := parseTableRow(cells); ok {
					items = append(items, item)
					stats.FromTables++
				}
			}
		}
	}
	e.Logger.Debug().Int("items", stats.FromTables+stats.FromSplits).Int("tables", stats.Tables).Msg("table strategy")

	seen := make(map[int64]struct{}, len(items))
	for _, it := range items {
		seen[billing.CentsKey(it.Amount)] = struct{}{}
	}

	for _, it := range extractTargeted(fullText) {
		key := billing.CentsKey(it.Amount)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, it)
		stats.FromText++
	}
	e.Logger.Debug().Int("items", stats.FromText).Msg("targeted text strategy")

	if len(items) < aggressiveThreshold {
		for _, it := range extractAggressive(fullText, seen) {
			items = append(items, it)
			stats.FromAggressive++
		}
		e.Logger.Debug().Int("items", stats.FromAggressive).Msg("aggressive text strategy")
	}

	if len(items) == 0 {
		if !e.AllowFallback {
			return nil, ErrNoItems
		}
		e.Logger.Warn().Int("pages", stats.Pages).Msg("no line items found, returning example items")
		res.Items = ExampleItems()
		res.Source = SourceFallback
		return res, nil
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Amount > items[j].Amount
	})
	res.Items = items
	return res, nil
}

func nonEmptyCells(row []string) []string {
	cells := make([]string, 0, len(row))
	for _, c := range row {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	return cells
}
