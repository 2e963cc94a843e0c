// Package cms reads Medicare reference datasets, either from the CMS Data
// API or from an offline snapshot of it.
package cms

import (
	"context"
	"strconv"
	"strings"
)

// DefaultBaseURL is the CMS Data API dataset endpoint.
const DefaultBaseURL = "https://data.cms.gov/data-api/v1/dataset"

// MaxPageSize is the largest page the API serves.
const MaxPageSize = 5000

// Dataset identifies one CMS dataset and the fields the resolver reads.
type Dataset struct {
	Name   string
	ID     string
	Label  string
	Fields []string
}

// Field names used across the datasets.
const (
	FieldHCPCSCode          = "HCPCS_Cd"
	FieldHCPCSDesc          = "HCPCS_Desc"
	FieldAvgPayment         = "Avg_Mdcr_Pymt_Amt"
	FieldAvgSubmittedCharge = "Avg_Sbmtd_Chrg"

	FieldAPCCode           = "APC_Cd"
	FieldAPCDesc           = "APC_Desc"
	FieldAvgTotalSubmitted = "Avg_Tot_Sbmtd_Chrgs"

	FieldASPPrice           = "Avg_DY23_ASP_Price"
	FieldSpendingPerUnit    = "Avg_Spndng_Per_Dsg_Unt_2023"
	FieldBrandName          = "Brnd_Name"
	FieldGenericName        = "Gnrc_Name"
	FieldTotalClaims        = "Tot_Clms_2023"
	FieldTotalBeneficiaries = "Tot_Benes_2023"

	FieldDRGCode = "DRG_Cd"
	FieldDRGDesc = "DRG_Desc"
)

var (
	PhysicianServices = Dataset{
		Name:   "physician_services",
		ID:     "92396110-2aed-4d63-a6a2-5d6207d46a29",
		Label:  "CMS Medicare Physician & Other Practitioners",
		Fields: []string{FieldHCPCSCode, FieldHCPCSDesc, FieldAvgPayment, FieldAvgSubmittedCharge},
	}
	OutpatientServices = Dataset{
		Name:   "outpatient_services",
		ID:     "ccbc9a44-40d4-46b4-a709-5caa59212e50",
		Label:  "CMS Medicare Outpatient Hospitals",
		Fields: []string{FieldAPCCode, FieldAPCDesc, FieldAvgPayment, FieldAvgTotalSubmitted},
	}
	InpatientServices = Dataset{
		Name:   "inpatient_services",
		ID:     "690ddc6c-2767-4618-b277-420ffb2bf27c",
		Label:  "CMS Medicare Inpatient Hospitals",
		Fields: []string{FieldDRGCode, FieldDRGDesc, FieldAvgPayment},
	}
	PartBDrugs = Dataset{
		Name:  "part_b_drugs",
		ID:    "76a714ad-3a2c-43ac-b76d-9dadf8f7d890",
		Label: "CMS Medicare Part B Drug Spending",
		Fields: []string{
			FieldHCPCSCode, FieldHCPCSDesc, FieldBrandName, FieldGenericName,
			FieldASPPrice, FieldSpendingPerUnit, FieldTotalClaims, FieldTotalBeneficiaries,
		},
	}
)

// Datasets lists every known dataset.
var Datasets = []Dataset{PhysicianServices, OutpatientServices, InpatientServices, PartBDrugs}

// DatasetByName looks up a dataset by its short name.
func DatasetByName(name string) (Dataset, bool) {
	for _, d := range Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return Dataset{}, false
}

// Query selects records whose fields equal every filter value.
type Query struct {
	Dataset Dataset
	Filters map[string]string
	Size    int
	Offset  int
}

// Querier returns flat field→value records for a query.
type Querier interface {
	Query(ctx context.Context, q Query) ([]Record, error)
}

// Record is one provider-level row.
type Record map[string]string

// Float parses a numeric field. Missing, empty and unparseable values
// report false.
func (r Record) Float(field string) (float64, bool) {
	s := strings.TrimSpace(r[field])
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (q Query) matches(r Record) bool {
	for f, v := range q.Filters {
		if r[f] != v {
			return false
		}
	}
	return true
}

func pageSize(n int) int {
	if n <= 0 || n > MaxPageSize {
		return MaxPageSize
	}
	return n
}
