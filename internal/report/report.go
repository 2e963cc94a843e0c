// Package report compares billed line items against reference prices and
// produces the per-item and bill-level results handed to callers.
package report

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"github.com/gyeh/billcheck/internal/assess"
	"github.com/gyeh/billcheck/internal/billing"
	"github.com/gyeh/billcheck/internal/hospital"
	"github.com/gyeh/billcheck/internal/pricing"
)

// Data source labels listed on a report.
const (
	SourcePhysician     = "CMS Medicare Physician Data"
	SourceOutpatient    = "CMS Medicare Outpatient Data"
	SourceDrug          = "CMS Medicare Part B Drug Spending"
	SourceHospitalPrice = "Hospital Published Prices"
	NoDataSource        = "No matching data found"
)

// Fair-price provenance for an assessed item.
const (
	BasisReference = "medicare"
	BasisHospital  = "hospital"
)

// Request is one bill to compare.
type Request struct {
	Items      []billing.LineItem `json:"line_items"`
	HospitalID string             `json:"hospital_id"`
	// UseReference enables Medicare reference lookups. Without it only the
	// hospital price list is consulted.
	UseReference bool `json:"use_cms_data"`
}

// PriceComparison is another hospital's price for the same code.
type PriceComparison struct {
	HospitalName   string  `json:"hospital_name"`
	GrossCharge    float64 `json:"gross_charge"`
	NegotiatedRate float64 `json:"negotiated_rate"`
}

// ItemComparison is the result for one line item.
type ItemComparison struct {
	Code         string  `json:"code,omitempty"`
	Description  string  `json:"description"`
	BilledAmount float64 `json:"billed_amount"`
	Quantity     int     `json:"quantity"`

	Reference *ReferenceSummary `json:"cms_data"`

	HospitalDescription    string                  `json:"hospital_description,omitempty"`
	HospitalGrossCharge    *float64                `json:"hospital_gross_charge"`
	HospitalNegotiatedRate *float64                `json:"hospital_negotiated_rate"`
	RegionalStats          *hospital.RegionalStats `json:"regional_stats"`

	assess.Assessment
	Basis string `json:"basis,omitempty"`

	OtherHospitals []PriceComparison `json:"other_hospitals"`
}

// Report is the full comparison for one bill.
type Report struct {
	HospitalID   string `json:"hospital_id,omitempty"`
	HospitalName string `json:"hospital_name,omitempty"`
	assess.Summary
	LineItems   []ItemComparison `json:"line_items"`
	DataSources []string         `json:"data_sources"`
}

// Comparer runs comparisons. Resolver may be nil, in which case reference
// lookups are skipped.
type Comparer struct {
	Resolver  *pricing.Resolver
	Hospitals *hospital.Directory
	Logger    zerolog.Logger
}

// Compare assesses every item. Items are resolved in order, one at a time.
// The only error is hospital.ErrNotFound for an unknown, non-empty hospital
// id; an empty id skips the hospital price list.
func (c *Comparer) Compare(ctx context.Context, req Request) (*Report, error) {
	rep := &Report{HospitalID: req.HospitalID}
	if req.HospitalID != "" {
		if c.Hospitals == nil {
			return nil, hospital.ErrNotFound
		}
		h, err := c.Hospitals.Get(req.HospitalID)
		if err != nil {
			return nil, err
		}
		rep.HospitalName = h.Name
	}

	refs := c.resolve(ctx, req)
	sources := map[string]bool{}
	for code, ref := range refs {
		if ref.HasReliableData {
			for _, s := range referenceSources(ref) {
				sources[s] = true
			}
		} else if ref.HasData {
			reason := "unknown"
			if ref.DescriptionMatch != nil {
				reason = ref.DescriptionMatch.Reason
			}
			c.Logger.Info().Str("code", code).Str("reason", reason).Msg("skipped reference data due to description mismatch")
		}
	}

	lines := make([]assess.Line, 0, len(req.Items))
	for _, item := range req.Items {
		cmp := c.compareItem(item, req.HospitalID, refs)
		if cmp.Basis == BasisHospital {
			sources[SourceHospitalPrice] = true
		}
		rep.LineItems = append(rep.LineItems, cmp)
		lines = append(lines, assess.Line{Amount: item.Amount, Quantity: item.Quantity, Assessment: cmp.Assessment})
	}

	rep.Summary = assess.Summarize(lines)
	rep.DataSources = sortedKeys(sources)
	if len(rep.DataSources) == 0 {
		rep.DataSources = []string{NoDataSource}
	}
	return rep, nil
}

func (c *Comparer) resolve(ctx context.Context, req Request) map[string]*pricing.CombinedPricing {
	if !req.UseReference || c.Resolver == nil {
		return nil
	}
	var pairs []pricing.CodeDescription
	for _, item := range req.Items {
		if pricing.NormalizeCode(item.Code) != "" {
			pairs = append(pairs, pricing.CodeDescription{Code: item.Code, Description: item.Description})
		}
	}
	if len(pairs) == 0 {
		return nil
	}
	refs := c.Resolver.PricingForCodes(ctx, pairs)
	c.Logger.Info().Int("codes", len(refs)).Msg("fetched reference data")
	return refs
}

func (c *Comparer) compareItem(item billing.LineItem, hospitalID string, refs map[string]*pricing.CombinedPricing) ItemComparison {
	qty := max(item.Quantity, 1)
	cmp := ItemComparison{
		Code:           item.Code,
		Description:    item.Description,
		BilledAmount:   item.Amount,
		Quantity:       qty,
		Assessment:     assess.UnknownAssessment(),
		OtherHospitals: []PriceComparison{},
	}
	code := pricing.NormalizeCode(item.Code)
	if code == "" {
		return cmp
	}

	ref := refs[code]
	cmp.Reference = Summarize(ref)

	var hp *hospital.Price
	if c.Hospitals != nil {
		if p, ok := c.Hospitals.PriceFor(hospitalID, code); ok {
			hp = &p
			cmp.HospitalDescription = p.Description
			cmp.HospitalGrossCharge = &p.GrossCharge
			cmp.HospitalNegotiatedRate = &p.NegotiatedRate
		}
		cmp.RegionalStats = c.Hospitals.RegionalStats(code)
		for _, other := range c.Hospitals.PricesForCode(code) {
			if other.Hospital.ID == hospitalID {
				continue
			}
			cmp.OtherHospitals = append(cmp.OtherHospitals, PriceComparison{
				HospitalName:   other.Hospital.Name,
				GrossCharge:    other.Price.GrossCharge,
				NegotiatedRate: other.Price.NegotiatedRate,
			})
		}
	}

	switch {
	case ref != nil && ref.HasReliableData:
		cmp.Assessment = assess.AssessReference(item.Amount, ref)
		if cmp.Assessment.Assessed() {
			cmp.Basis = BasisReference
		}
	case hp != nil:
		cmp.Assessment = assess.Assess(item.Amount, hp.NegotiatedRate, assess.Fallback)
		cmp.Basis = BasisHospital
	}
	return cmp
}

func referenceSources(ref *pricing.CombinedPricing) []string {
	var out []string
	for _, r := range ref.References() {
		switch r.(type) {
		case *pricing.PhysicianFee:
			out = append(out, SourcePhysician)
		case *pricing.FacilityFee:
			out = append(out, SourceOutpatient)
		case *pricing.DrugPricing:
			out = append(out, SourceDrug)
		}
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IsNotFound reports whether err is an unknown-hospital error.
func IsNotFound(err error) bool {
	return errors.Is(err, hospital.ErrNotFound)
}
