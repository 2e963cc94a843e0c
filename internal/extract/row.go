package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gyeh/billcheck/internal/billing"
)

const (
	minAmount = 1.0
	maxAmount = 1_000_000.0
)

var (
	cellAmountRe  = regexp.MustCompile(`\$?\s*(\d+\.?\d{0,2})`)
	numericOnlyRe = regexp.MustCompile(`^[\d$.,\s]+$`)
)

// findAmount scans cells right to left and returns the first plausible
// charge. Dates are masked first and cells holding nothing but a billing
// code are skipped.
func findAmount(cells []string) (float64, int, bool) {
	for i := len(cells) - 1; i >= 0; i-- {
		cell := strings.TrimSpace(cells[i])
		if billing.ClassifyCode(cell) != billing.KindNone {
			continue
		}
		masked := billing.MaskDates(strings.ReplaceAll(cell, ",", ""))
		m := cellAmountRe.FindStringSubmatch(masked)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if v > minAmount && v < maxAmount {
			return v, i, true
		}
	}
	return 0, -1, false
}

// usableDescription rejects short fragments, pure numbers and bare codes.
func usableDescription(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) <= 3 || numericOnlyRe.MatchString(s) {
		return false
	}
	if billing.ClassifyCode(s) != billing.KindNone {
		return false
	}
	return strings.TrimSpace(billing.MaskDates(s)) != ""
}

// parseTableRow turns one unsplit row into a line item.
func parseTableRow(cells []string) (billing.LineItem, bool) {
	amount, amountIdx, ok := findAmount(cells)
	if !ok {
		return billing.LineItem{}, false
	}

	desc := ""
	for i, cell := range cells {
		if i == amountIdx || len(cell) <= len(desc) {
			continue
		}
		if usableDescription(cell) {
			desc = cell
		}
	}
	if desc == "" {
		return billing.LineItem{}, false
	}

	item := billing.LineItem{Quantity: 1, Amount: amount}
	if c, ok := billing.PickCode(cells); ok {
		item.Code = c.Code
		if c.Kind >= billing.KindProcedure {
			desc = billing.StripCodeEcho(desc)
		}
	}
	item.Description = billing.CleanDescription(desc)
	if item.Description == "" {
		return billing.LineItem{}, false
	}
	return item, true
}

func parseAmount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(s), "$"), ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
