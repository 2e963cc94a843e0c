package billing

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// CodeKind is the priority tier of a billing code. Higher values win.
type CodeKind int

const (
	KindNone CodeKind = iota
	// KindRevenue is a 4-digit revenue code with a leading zero.
	KindRevenue
	// KindProcedure is a 5-digit CPT procedure code.
	KindProcedure
	// KindHCPCS is a letter followed by four digits (HCPCS Level II, drugs and supplies).
	KindHCPCS
)

func (k CodeKind) String() string {
	switch k {
	case KindRevenue:
		return "revenue"
	case KindProcedure:
		return "procedure"
	case KindHCPCS:
		return "hcpcs"
	}
	return "none"
}

var (
	codeTokenRe = regexp.MustCompile(`\b(?:[A-Z]\d{4}|\d{5}|0\d{3})\b`)
	dateRe      = regexp.MustCompile(`\b\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}\b|\b\d{4}-\d{2}-\d{2}\b`)
	echoRe      = regexp.MustCompile(`\(\s*([A-Za-z0-9]{4,5})\s*\)`)
)

// ClassifyCode returns the tier of a bare code string.
func ClassifyCode(code string) CodeKind {
	code = strings.TrimSpace(code)
	switch {
	case len(code) == 5 && isUpperLetter(code[0]) && allDigits(code[1:]):
		return KindHCPCS
	case len(code) == 5 && allDigits(code):
		return KindProcedure
	case len(code) == 4 && code[0] == '0' && allDigits(code):
		return KindRevenue
	}
	return KindNone
}

// IsRevenueCode reports whether code is a 4-digit revenue code.
func IsRevenueCode(code string) bool {
	return ClassifyCode(code) == KindRevenue
}

// Candidate is one code-shaped token found in a row.
type Candidate struct {
	Code          string
	Kind          CodeKind
	Column        int
	Offset        int
	Parenthetical bool
}

// FindCandidates returns every code-shaped token in cells, in column then
// offset order. Tokens inside date-shaped runs and tokens that are part of a
// currency figure are excluded.
func FindCandidates(cells []string) []Candidate {
	var out []Candidate
	for col, cell := range cells {
		masked := MaskDates(cell)
		for _, loc := range codeTokenRe.FindAllStringIndex(masked, -1) {
			start, end := loc[0], loc[1]
			if partOfNumber(masked, start, end) {
				continue
			}
			code := masked[start:end]
			out = append(out, Candidate{
				Code:          code,
				Kind:          ClassifyCode(code),
				Column:        col,
				Offset:        start,
				Parenthetical: insideParens(masked, start),
			})
		}
	}
	return out
}

// PickCode chooses the single best code among the candidates in cells.
//
// HCPCS codes outrank procedure codes, which outrank revenue codes. Within
// a tier a candidate outside parentheses wins, then the later column, then
// the earlier position in its cell.
func PickCode(cells []string) (Candidate, bool) {
	cands := FindCandidates(cells)
	if len(cands) == 0 {
		return Candidate{}, false
	}
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Kind != b.Kind {
			return a.Kind > b.Kind
		}
		if a.Parenthetical != b.Parenthetical {
			return !a.Parenthetical
		}
		if a.Column != b.Column {
			return a.Column > b.Column
		}
		return a.Offset < b.Offset
	})
	return cands[0], true
}

// PickCodeInText is PickCode for a single line of free text.
func PickCodeInText(text string) (Candidate, bool) {
	return PickCode([]string{text})
}

// StripCodeEcho removes parenthetical echoes of 4–5 character code-like
// tokens, e.g. "Lidocaine inj (J2001)" → "Lidocaine inj". Tokens without a
// digit, such as "(LEFT)", are kept.
func StripCodeEcho(desc string) string {
	out := echoRe.ReplaceAllStringFunc(desc, func(m string) string {
		sub := echoRe.FindStringSubmatch(m)
		if len(sub) < 2 || !strings.ContainsFunc(sub[1], unicode.IsDigit) {
			return m
		}
		return " "
	})
	return strings.Join(strings.Fields(out), " ")
}

// IsDateLike reports whether s contains a date-shaped token.
func IsDateLike(s string) bool {
	return dateRe.MatchString(s)
}

// MaskDates replaces date-shaped tokens with spaces, preserving offsets.
func MaskDates(s string) string {
	return dateRe.ReplaceAllStringFunc(s, func(m string) string {
		return strings.Repeat(" ", len(m))
	})
}

func partOfNumber(s string, start, end int) bool {
	if start > 0 {
		prev := s[start-1]
		if prev == '$' {
			return true
		}
		if (prev == '.' || prev == ',') && start > 1 && isDigit(s[start-2]) {
			return true
		}
	}
	if end+1 < len(s) {
		next := s[end]
		if (next == '.' || next == ',') && isDigit(s[end+1]) {
			return true
		}
	}
	return false
}

func insideParens(s string, pos int) bool {
	depth := 0
	for i := 0; i < pos; i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		}
	}
	return depth > 0
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func isDigit(b byte) bool       { return b >= '0' && b <= '9' }
func isUpperLetter(b byte) bool { return b >= 'A' && b <= 'Z' }
