package billing

import (
	"strings"
	"unicode/utf8"
)

// MaxDescriptionLen bounds the description carried on a LineItem.
const MaxDescriptionLen = 100

// LineItem is a single normalized charge from an itemized bill.
type LineItem struct {
	Code        string  `json:"code,omitempty"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	Amount      float64 `json:"amount"`
}

// Total returns amount × quantity.
func (li LineItem) Total() float64 {
	q := li.Quantity
	if q < 1 {
		q = 1
	}
	return li.Amount * float64(q)
}

// Valid reports whether the item satisfies the positivity constraints
// every produced item must meet.
func (li LineItem) Valid() bool {
	return li.Amount > 0 && li.Quantity >= 1 && li.Description != ""
}

// CleanDescription collapses runs of whitespace and truncates the result
// to MaxDescriptionLen runes.
func CleanDescription(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= MaxDescriptionLen {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:MaxDescriptionLen]))
}

// CentsKey converts a currency amount to integer cents for exact comparison.
func CentsKey(amount float64) int64 {
	if amount < 0 {
		return int64(amount*100 - 0.5)
	}
	return int64(amount*100 + 0.5)
}
