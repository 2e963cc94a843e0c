// Package assess turns a billed amount and a reference price into a
// fairness tier, and rolls item tiers up into a bill-level verdict.
package assess

import (
	"math"

	"github.com/gyeh/billcheck/internal/pricing"
)

// Status is a per-item fairness tier.
type Status string

const (
	Low      Status = "low"
	Fair     Status = "fair"
	High     Status = "high"
	VeryHigh Status = "very_high"
	Unknown  Status = "unknown"
)

// Rank orders tiers from cheapest to most overcharged. Unknown ranks below
// every assessed tier.
func (s Status) Rank() int {
	switch s {
	case Low:
		return 1
	case Fair:
		return 2
	case High:
		return 3
	case VeryHigh:
		return 4
	}
	return 0
}

// Bands are the multiples of the fair price at which the fair and high
// tiers end.
type Bands struct {
	FairMax float64
	HighMax float64
}

var (
	// Authoritative applies to Medicare reference prices.
	Authoritative = Bands{FairMax: 1.5, HighMax: 2.0}
	// Fallback applies to the lower-confidence hospital price list.
	Fallback = Bands{FairMax: 1.2, HighMax: 1.5}
)

// Assessment is the verdict for one billed amount.
type Assessment struct {
	Status           Status   `json:"status"`
	VariancePercent  *float64 `json:"variance_percent"`
	PotentialSavings *float64 `json:"potential_savings"`
	FairPrice        *float64 `json:"fair_price"`
}

// Assessed reports whether a fair price backed the verdict.
func (a Assessment) Assessed() bool { return a.FairPrice != nil }

// UnknownAssessment carries no variance, savings or fair price.
func UnknownAssessment() Assessment {
	return Assessment{Status: Unknown}
}

// Assess tiers billed against fair. A non-positive fair price cannot be
// assessed.
func Assess(billed, fair float64, b Bands) Assessment {
	if fair <= 0 || math.IsNaN(fair) || math.IsInf(fair, 0) {
		return UnknownAssessment()
	}
	variance := round(((billed-fair)/fair)*100, 1)
	savings := 0.0
	var status Status
	switch {
	case billed <= fair:
		status = Low
	case billed <= fair*b.FairMax:
		status = Fair
	case billed <= fair*b.HighMax:
		status = High
		savings = round(billed-fair, 2)
	default:
		status = VeryHigh
		savings = round(billed-fair, 2)
	}
	return Assessment{
		Status:           status,
		VariancePercent:  &variance,
		PotentialSavings: &savings,
		FairPrice:        &fair,
	}
}

// FairPrice picks the reference figure for a resolved code: drug per-unit
// spending, then drug ASP, then facility average, then physician average.
func FairPrice(c *pricing.CombinedPricing) (float64, bool) {
	if c == nil {
		return 0, false
	}
	for _, ref := range c.References() {
		switch r := ref.(type) {
		case *pricing.DrugPricing:
			if r.AvgSpendingPerUnit != nil && *r.AvgSpendingPerUnit > 0 {
				return *r.AvgSpendingPerUnit, true
			}
			if r.ASPPrice != nil && *r.ASPPrice > 0 {
				return *r.ASPPrice, true
			}
		case *pricing.FacilityFee:
			if r.FacilityPayment.Average > 0 {
				return r.FacilityPayment.Average, true
			}
		case *pricing.PhysicianFee:
			if r.MedicarePayment.Average > 0 {
				return r.MedicarePayment.Average, true
			}
		}
	}
	return 0, false
}

// AssessReference assesses billed against a resolved code. Data that failed
// description validation is never used.
func AssessReference(billed float64, c *pricing.CombinedPricing) Assessment {
	if c == nil || !c.HasReliableData {
		return UnknownAssessment()
	}
	fair, ok := FairPrice(c)
	if !ok {
		return UnknownAssessment()
	}
	return Assess(billed, fair, Authoritative)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
