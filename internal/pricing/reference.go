// Package pricing resolves billing codes to Medicare reference prices.
package pricing

import (
	"sort"
	"time"

	"github.com/gyeh/billcheck/internal/match"
)

// Kind names the dataset family a reference price came from.
type Kind string

const (
	KindPhysician Kind = "physician"
	KindFacility  Kind = "facility"
	KindDrug      Kind = "drug"
)

// Data source labels reported alongside each reference.
const (
	SourcePhysician = "CMS Medicare Physician & Other Practitioners"
	SourceFacility  = "CMS Medicare Outpatient Hospitals"
	SourceDrug      = "CMS Medicare Part B Drug Spending"
)

// PaymentStats summarizes observed payments for one code.
type PaymentStats struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Median  float64 `json:"median"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// newPaymentStats returns nil for an empty sample. The median is the upper
// middle element for even counts.
func newPaymentStats(values []float64) *PaymentStats {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return &PaymentStats{
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		Median:  sorted[len(sorted)/2],
		Average: sum / float64(len(sorted)),
		Count:   len(sorted),
	}
}

// Reference is a resolved reference price. It is implemented only by
// *PhysicianFee, *FacilityFee and *DrugPricing.
type Reference interface {
	Kind() Kind
	RefDescription() string
	reference()
}

// PhysicianFee aggregates the professional-fee dataset for one code.
type PhysicianFee struct {
	Code             string        `json:"hcpcs_code"`
	Description      string        `json:"description"`
	MedicarePayment  PaymentStats  `json:"medicare_payment"`
	SubmittedCharges *PaymentStats `json:"submitted_charges"`
	DataSource       string        `json:"data_source"`
	CachedAt         time.Time     `json:"cached_at"`
}

// FacilityFee aggregates the outpatient dataset for one APC code.
type FacilityFee struct {
	Code            string        `json:"code"`
	Description     string        `json:"description"`
	FacilityPayment PaymentStats  `json:"facility_payment"`
	FacilityCharges *PaymentStats `json:"facility_charges"`
	DataSource      string        `json:"data_source"`
	CachedAt        time.Time     `json:"cached_at"`
}

// DrugPricing is the Part B drug spending row for one code. Drugs carry a
// single per-unit figure rather than a distribution.
type DrugPricing struct {
	Code               string    `json:"hcpcs_code"`
	OriginalCode       string    `json:"original_code"`
	Description        string    `json:"description"`
	BrandName          string    `json:"brand_name,omitempty"`
	GenericName        string    `json:"generic_name,omitempty"`
	ASPPrice           *float64  `json:"asp_price"`
	AvgSpendingPerUnit *float64  `json:"avg_spending_per_unit"`
	TotalClaims        *float64  `json:"total_claims_2023"`
	TotalBeneficiaries *float64  `json:"total_beneficiaries_2023"`
	DataSource         string    `json:"data_source"`
	CachedAt           time.Time `json:"cached_at"`
}

func (*PhysicianFee) Kind() Kind { return KindPhysician }
func (*FacilityFee) Kind() Kind  { return KindFacility }
func (*DrugPricing) Kind() Kind  { return KindDrug }

func (p *PhysicianFee) RefDescription() string { return p.Description }
func (f *FacilityFee) RefDescription() string  { return f.Description }
func (d *DrugPricing) RefDescription() string  { return d.Description }

func (*PhysicianFee) reference() {}
func (*FacilityFee) reference()  {}
func (*DrugPricing) reference()  {}

// CombinedPricing is everything known about one billed code.
type CombinedPricing struct {
	Code             string        `json:"hcpcs_code"`
	Physician        *PhysicianFee `json:"physician_fee"`
	Facility         *FacilityFee  `json:"facility_fee"`
	Drug             *DrugPricing  `json:"drug_pricing"`
	HasData          bool          `json:"has_data"`
	HasReliableData  bool          `json:"has_reliable_data"`
	DescriptionMatch *match.Result `json:"description_match"`
	Note             string        `json:"note,omitempty"`
	CachedAt         time.Time     `json:"cached_at"`
}

// References returns the non-nil references in fair-price order.
func (c *CombinedPricing) References() []Reference {
	var refs []Reference
	if c.Drug != nil {
		refs = append(refs, c.Drug)
	}
	if c.Facility != nil {
		refs = append(refs, c.Facility)
	}
	if c.Physician != nil {
		refs = append(refs, c.Physician)
	}
	return refs
}

// validationDescription is the reference text a bill description is
// checked against: physician first, then drug.
func (c *CombinedPricing) validationDescription() string {
	switch {
	case c.Physician != nil:
		return c.Physician.Description
	case c.Drug != nil:
		return c.Drug.Description
	}
	return ""
}
