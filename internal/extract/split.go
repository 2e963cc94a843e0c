package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gyeh/billcheck/internal/billing"
)

// RowMarkers are tokens that start a new billed line when a layout engine
// glues several rows into one cell.
var RowMarkers = []string{"CPT", "HCPCS", "REV", "SVC", "ITEM", "LINE"}

// minSplitCellLen is the shortest cell examined for embedded code boundaries.
const minSplitCellLen = 20

var (
	currencyRe = regexp.MustCompile(`\$?\s?((?:\d{1,3}(?:,\d{3})+|\d+)\.\d{2})\b`)
	markerRe   = regexp.MustCompile(`\b(?:` + strings.Join(RowMarkers, "|") + `)\b\s*[:#]?`)
)

// splitMergedRow detects a row whose cells carry several line items and
// decomposes it. triggered is false when no cell shows a split signal, in
// which case the row should be parsed as a single item. A triggered row
// that yields no valid pairing returns no items.
func splitMergedRow(cells []string) (items []billing.LineItem, triggered bool) {
	for i, cell := range cells {
		switch {
		case len(currencyRe.FindAllStringIndex(cell, -1)) >= 2:
			return splitByCurrency(cell), true
		case len(markerRe.FindAllStringIndex(cell, -1)) >= 2:
			return splitAtMarkers(cells), true
		case utf8.RuneCountInString(cell) > minSplitCellLen && len(boundaryCodes(cell)) >= 2:
			return splitAtCodes(cells, i), true
		}
	}
	return nil, false
}

// splitByCurrency pairs each currency figure with the text preceding it.
func splitByCurrency(cell string) []billing.LineItem {
	var items []billing.LineItem
	prev := 0
	for _, loc := range currencyRe.FindAllStringSubmatchIndex(cell, -1) {
		fragment := cell[prev:loc[0]]
		prev = loc[1]
		amount, ok := parseAmount(cell[loc[2]:loc[3]])
		if !ok {
			continue
		}
		if item, ok := segmentItem(fragment, "", amount); ok {
			items = append(items, item)
		}
	}
	return items
}

type segment struct {
	text string
	code string
}

// splitAtMarkers splits the row's longest text cell at every marker token.
func splitAtMarkers(cells []string) []billing.LineItem {
	idx := longestTextCell(cells)
	if idx < 0 {
		return nil
	}
	cell := cells[idx]
	locs := markerRe.FindAllStringIndex(cell, -1)
	segs := make([]segment, 0, len(locs))
	for k, loc := range locs {
		end := len(cell)
		if k+1 < len(locs) {
			end = locs[k+1][0]
		}
		text := cell[loc[1]:end]
		if k == 0 {
			text = cell[:loc[0]] + " " + text
		}
		segs = append(segs, segment{text: text})
	}
	return pairSegments(segs, otherAmounts(cells, idx))
}

// splitAtCodes splits cells[idx] at each embedded billing code. The code at
// a boundary belongs to the text that follows it; any leading fragment is
// prepended to the first segment.
func splitAtCodes(cells []string, idx int) []billing.LineItem {
	cell := cells[idx]
	cands := boundaryCodes(cell)
	segs := make([]segment, 0, len(cands))
	for k, c := range cands {
		end := len(cell)
		if k+1 < len(cands) {
			end = cands[k+1].Offset
		}
		text := cell[c.Offset+len(c.Code) : end]
		if k == 0 {
			text = cell[:c.Offset] + " " + text
		}
		segs = append(segs, segment{text: text, code: c.Code})
	}
	return pairSegments(segs, otherAmounts(cells, idx))
}

// pairSegments gives each segment an amount: its own trailing currency
// figure, or, when no segment has one, the row's remaining amounts zipped
// in order if the counts agree.
func pairSegments(segs []segment, rowAmounts []float64) []billing.LineItem {
	own := make([]float64, len(segs))
	withAmount := 0
	for k := range segs {
		locs := currencyRe.FindAllStringSubmatchIndex(segs[k].text, -1)
		if len(locs) == 0 {
			continue
		}
		last := locs[len(locs)-1]
		if v, ok := parseAmount(segs[k].text[last[2]:last[3]]); ok {
			own[k] = v
			segs[k].text = segs[k].text[:last[0]] + segs[k].text[last[1]:]
			withAmount++
		}
	}
	if withAmount == 0 && len(rowAmounts) == len(segs) {
		copy(own, rowAmounts)
	}

	var items []billing.LineItem
	for k, s := range segs {
		if own[k] == 0 {
			continue
		}
		if item, ok := segmentItem(s.text, s.code, own[k]); ok {
			items = append(items, item)
		}
	}
	return items
}

// segmentItem builds an item from a fragment of a split cell.
func segmentItem(text, code string, amount float64) (billing.LineItem, bool) {
	if amount <= minAmount || amount >= maxAmount {
		return billing.LineItem{}, false
	}
	text = markerRe.ReplaceAllString(text, " ")
	kind := billing.ClassifyCode(code)
	if code == "" {
		if c, ok := billing.PickCodeInText(text); ok {
			code, kind = c.Code, c.Kind
		}
	}
	if code != "" {
		text = removeToken(text, code)
	}
	if kind >= billing.KindProcedure {
		text = billing.StripCodeEcho(text)
	}
	text = strings.Trim(strings.TrimSpace(text), "-:;,|")
	if !usableDescription(text) {
		return billing.LineItem{}, false
	}
	return billing.LineItem{
		Code:        code,
		Description: billing.CleanDescription(text),
		Quantity:    1,
		Amount:      amount,
	}, true
}

// boundaryCodes returns the non-parenthetical code candidates in a cell.
func boundaryCodes(cell string) []billing.Candidate {
	var out []billing.Candidate
	for _, c := range billing.FindCandidates([]string{cell}) {
		if !c.Parenthetical {
			out = append(out, c)
		}
	}
	return out
}

func otherAmounts(cells []string, skip int) []float64 {
	var out []float64
	for i, cell := range cells {
		if i == skip {
			continue
		}
		for _, m := range currencyRe.FindAllStringSubmatch(cell, -1) {
			if v, ok := parseAmount(m[1]); ok {
				out = append(out, v)
			}
		}
	}
	return out
}

func longestTextCell(cells []string) int {
	idx := -1
	for i, c := range cells {
		if numericOnlyRe.MatchString(c) {
			continue
		}
		if idx < 0 || len(c) > len(cells[idx]) {
			idx = i
		}
	}
	return idx
}

// removeToken deletes the first whole-word occurrence of tok.
func removeToken(s, tok string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		if f == tok {
			return strings.Join(append(fields[:i:i], fields[i+1:]...), " ")
		}
	}
	return s
}
