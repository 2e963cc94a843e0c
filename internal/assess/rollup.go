package assess

// Verdict is the bill-level classification.
type Verdict string

const (
	InsufficientData         Verdict = "insufficient_data"
	SignificantlyOvercharged Verdict = "significantly_overcharged"
	ModeratelyOvercharged    Verdict = "moderately_overcharged"
	SlightlyOvercharged      Verdict = "slightly_overcharged"
	FairBill                 Verdict = "fair"
)

const (
	significantShare = 0.30
	moderateShare    = 0.15
)

// Line is one assessed item as seen by the rollup.
type Line struct {
	Amount     float64
	Quantity   int
	Assessment Assessment
}

// Summary holds bill-level totals. TotalBilled covers every line; the
// assessed totals cover only lines that had a fair price.
type Summary struct {
	TotalBilled           float64  `json:"total_billed"`
	AssessedBilled        float64  `json:"assessed_billed"`
	TotalFairValue        *float64 `json:"total_fair_value"`
	TotalPotentialSavings *float64 `json:"total_potential_savings"`
	ItemsAssessed         int      `json:"items_assessed"`
	Verdict               Verdict  `json:"overall_assessment"`
}

// Summarize rolls line assessments up into a verdict. Savings are compared
// against the billed total of assessed lines.
func Summarize(lines []Line) Summary {
	var s Summary
	var fairTotal, savingsTotal float64
	for _, l := range lines {
		qty := float64(max(l.Quantity, 1))
		billed := l.Amount * qty
		s.TotalBilled += billed
		a := l.Assessment
		if !a.Assessed() {
			continue
		}
		s.ItemsAssessed++
		s.AssessedBilled += billed
		fairTotal += *a.FairPrice * qty
		if a.PotentialSavings != nil {
			savingsTotal += *a.PotentialSavings * qty
		}
	}

	s.TotalBilled = round(s.TotalBilled, 2)
	s.AssessedBilled = round(s.AssessedBilled, 2)
	if s.ItemsAssessed > 0 {
		v := round(fairTotal, 2)
		s.TotalFairValue = &v
	}
	if savingsTotal > 0 {
		v := round(savingsTotal, 2)
		s.TotalPotentialSavings = &v
	}
	s.Verdict = verdict(s.ItemsAssessed, s.AssessedBilled, savingsTotal)
	return s
}

func verdict(assessed int, billed, savings float64) Verdict {
	switch {
	case assessed == 0:
		return InsufficientData
	case savings > billed*significantShare:
		return SignificantlyOvercharged
	case savings > billed*moderateShare:
		return ModeratelyOvercharged
	case savings > 0:
		return SlightlyOvercharged
	}
	return FairBill
}
