package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gyeh/billcheck/internal/report"
)

// maxSummaryDesc truncates descriptions in the item table.
const maxSummaryDesc = 40

// Summary prints a human-readable account of a report. Amounts are
// formatted for lang.
func Summary(w io.Writer, title string, rep *report.Report, lang language.Tag) error {
	p := message.NewPrinter(lang)
	money := func(v float64) string { return p.Sprintf("$%.2f", v) }

	var b strings.Builder
	if title != "" {
		fmt.Fprintln(&b, title)
	}
	if rep.HospitalName != "" {
		fmt.Fprintf(&b, "Provider: %s\n", rep.HospitalName)
	}
	fmt.Fprintf(&b, "Verdict: %s\n", strings.ReplaceAll(string(rep.Verdict), "_", " "))
	fmt.Fprintf(&b, "Billed: %s", money(rep.TotalBilled))
	if rep.TotalFairValue != nil {
		fmt.Fprintf(&b, "  Assessed: %s  Fair value: %s", money(rep.AssessedBilled), money(*rep.TotalFairValue))
	}
	if rep.TotalPotentialSavings != nil {
		fmt.Fprintf(&b, "  Potential savings: %s", money(*rep.TotalPotentialSavings))
	}
	fmt.Fprintf(&b, "\nItems assessed: %d of %d\n", rep.ItemsAssessed, len(rep.LineItems))
	fmt.Fprintf(&b, "Sources: %s\n\n", strings.Join(rep.DataSources, ", "))
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tDESCRIPTION\tBILLED\tFAIR\tSTATUS\tVARIANCE")
	for _, it := range rep.LineItems {
		fair, variance := "-", "-"
		if it.FairPrice != nil {
			fair = money(*it.FairPrice)
		}
		if it.VariancePercent != nil {
			variance = fmt.Sprintf("%+.1f%%", *it.VariancePercent)
		}
		code := it.Code
		if code == "" {
			code = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			code, shorten(it.Description, maxSummaryDesc), money(it.BilledAmount), fair, it.Status, variance)
	}
	return tw.Flush()
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
