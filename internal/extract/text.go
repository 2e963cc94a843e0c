package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gyeh/billcheck/internal/billing"
)

const maxAggressiveAmount = 100_000.0

// Lines containing any of these are headers, footers or summary rows.
var (
	skipWords = []string{
		"total", "subtotal", "balance", "payment", "date", "page",
		"account", "patient", "insurance", "amount due", "paid",
	}
	aggressiveSkipWords = append(append([]string{}, skipWords...),
		"statement", "billing", "address", "phone", "fax")
)

var (
	trailingAmountRe = regexp.MustCompile(`^(.+?)\s+\$?([\d,]+\.\d{2})\s*$`)
	inlineAmountRe   = regexp.MustCompile(`^(?:(\d{5}|[A-Z]\d{4})\s+)?(.+?)\s+\$?([\d,]+\.\d{2})\s+(.*)$`)
	anyAmountRe      = regexp.MustCompile(`\$?\s*([\d,]+\.\d{2})`)
)

func containsAny(line string, words []string) bool {
	lower := strings.ToLower(line)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// extractTargeted applies the two line patterns to free text: a description
// followed by a trailing amount, and an optional leading code, description,
// amount and optional quantity. Both patterns are tried on every line. When
// the second one reads a unit price and quantity whose product is the
// trailing amount, the line is one charge and only the second item is kept.
// Items are deduplicated by the first 50 characters of their description.
func extractTargeted(text string) []billing.LineItem {
	var items []billing.LineItem
	seenDesc := map[string]struct{}{}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 5 || containsAny(line, skipWords) {
			continue
		}

		trailing, hasTrailing := targetedItem(line, trailingAmountRe, 1, 2, -1)
		inline, hasInline := targetedItem(line, inlineAmountRe, 2, 3, 4)
		if hasTrailing && hasInline && billing.CentsKey(inline.Total()) == billing.CentsKey(trailing.Amount) {
			hasTrailing = false
		}

		for _, c := range []struct {
			item billing.LineItem
			ok   bool
		}{{trailing, hasTrailing}, {inline, hasInline}} {
			if !c.ok {
				continue
			}
			key := descKey(c.item.Description)
			if _, dup := seenDesc[key]; dup {
				continue
			}
			seenDesc[key] = struct{}{}
			items = append(items, c.item)
		}
	}
	return items
}

// targetedItem matches re against line and builds an item from the given
// submatch groups. qtyGroup < 0 means the pattern carries no quantity.
func targetedItem(line string, re *regexp.Regexp, descGroup, amountGroup, qtyGroup int) (billing.LineItem, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return billing.LineItem{}, false
	}
	desc := strings.TrimSpace(m[descGroup])
	amount, ok := parseAmount(m[amountGroup])
	if !ok || amount <= minAmount || amount >= maxAmount || len(desc) <= 3 {
		return billing.LineItem{}, false
	}
	quantity := 1
	if qtyGroup >= 0 {
		quantity = leadingQuantity(m[qtyGroup])
	}
	return textItem(line, desc, amount, quantity)
}

// extractAggressive takes the last currency figure on every remaining line.
// seen holds the cent values already collected and is updated in place.
func extractAggressive(text string, seen map[int64]struct{}) []billing.LineItem {
	var items []billing.LineItem
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 10 || containsAny(line, aggressiveSkipWords) {
			continue
		}
		matches := anyAmountRe.FindAllStringSubmatch(line, -1)
		if len(matches) == 0 {
			continue
		}
		amount, ok := parseAmount(matches[len(matches)-1][1])
		if !ok || amount <= minAmount || amount >= maxAggressiveAmount {
			continue
		}
		key := billing.CentsKey(amount)
		if _, dup := seen[key]; dup {
			continue
		}
		desc := strings.Join(strings.Fields(anyAmountRe.ReplaceAllString(line, "")), " ")
		if len(desc) <= 5 {
			continue
		}
		item, ok := textItem(line, desc, amount, 1)
		if !ok {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, item)
	}
	return items
}

func textItem(line, desc string, amount float64, quantity int) (billing.LineItem, bool) {
	item := billing.LineItem{Quantity: quantity, Amount: amount}
	if c, ok := billing.PickCodeInText(line); ok {
		item.Code = c.Code
		desc = strings.TrimPrefix(strings.TrimSpace(desc), c.Code+" ")
		if c.Kind >= billing.KindProcedure {
			desc = billing.StripCodeEcho(desc)
		}
	}
	item.Description = billing.CleanDescription(desc)
	return item, item.Description != ""
}

// leadingQuantity reads a small positive count at the start of rest.
func leadingQuantity(rest string) int {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 1
	}
	q, err := strconv.Atoi(fields[0])
	if err != nil || q < 1 || q > 999 {
		return 1
	}
	return q
}

func descKey(desc string) string {
	r := []rune(strings.ToLower(desc))
	if len(r) > 50 {
		r = r[:50]
	}
	return string(r)
}
