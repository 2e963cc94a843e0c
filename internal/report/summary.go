package report

import (
	"strings"

	"github.com/gyeh/billcheck/internal/pricing"
)

const defaultMatchWarning = "Description may not match billed service"

// ReferenceSummary flattens resolved reference data for display.
type ReferenceSummary struct {
	MedicareAvgPayment *float64 `json:"medicare_avg_payment"`
	MedicareMinPayment *float64 `json:"medicare_min_payment"`
	MedicareMaxPayment *float64 `json:"medicare_max_payment"`
	AvgSubmittedCharge *float64 `json:"avg_submitted_charge"`
	FacilityAvgPayment *float64 `json:"facility_avg_payment"`
	DataSource         string   `json:"data_source,omitempty"`
	Description        string   `json:"description,omitempty"`
	MatchWarning       string   `json:"match_warning,omitempty"`
}

// Summarize returns nil when the code resolved to no usable figure.
// Unreliable data is still summarized, with a match warning.
func Summarize(c *pricing.CombinedPricing) *ReferenceSummary {
	if c == nil || !c.HasData {
		return nil
	}
	s := &ReferenceSummary{}
	var sources []string

	if c.DescriptionMatch != nil && !c.HasReliableData {
		s.MatchWarning = c.DescriptionMatch.Reason
		if s.MatchWarning == "" {
			s.MatchWarning = defaultMatchWarning
		}
	}

	if d := c.Drug; d != nil {
		s.MedicareAvgPayment = d.AvgSpendingPerUnit
		if s.MedicareAvgPayment == nil {
			s.MedicareAvgPayment = d.ASPPrice
		}
		s.MedicareMinPayment = d.ASPPrice
		s.Description = d.Description
		if d.BrandName != "" {
			s.Description = strings.TrimSpace(s.Description + " (" + d.BrandName + ")")
		}
		sources = append(sources, "Medicare Part B Drug Spending (ASP)")
	}

	if p := c.Physician; p != nil {
		mp := p.MedicarePayment
		if s.MedicareAvgPayment == nil {
			s.MedicareAvgPayment = ptr(mp.Average)
		}
		if s.MedicareMinPayment == nil {
			s.MedicareMinPayment = ptr(mp.Min)
		}
		if s.MedicareMaxPayment == nil {
			s.MedicareMaxPayment = ptr(mp.Max)
		}
		if p.SubmittedCharges != nil {
			s.AvgSubmittedCharge = ptr(p.SubmittedCharges.Average)
		}
		if s.Description == "" {
			s.Description = p.Description
		}
		sources = append(sources, "Medicare Physician Fee Schedule")
	}

	if f := c.Facility; f != nil {
		s.FacilityAvgPayment = ptr(f.FacilityPayment.Average)
		if s.Description == "" {
			s.Description = f.Description
		}
		sources = append(sources, "Medicare Outpatient Hospital Data")
	}

	if s.MedicareAvgPayment == nil && s.FacilityAvgPayment == nil {
		return nil
	}
	s.DataSource = strings.Join(sources, ", ")
	return s
}

func ptr(v float64) *float64 { return &v }
