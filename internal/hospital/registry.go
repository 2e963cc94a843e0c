package hospital

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultRegistryURL is the NPPES NPI Registry API.
const DefaultRegistryURL = "https://npiregistry.cms.hhs.gov/api/"

const registryLimit = 20

// Provider holds the key details returned by the NPPES NPI Registry.
type Provider struct {
	NPI             int64  `json:"npi"`
	Name            string `json:"name"`
	Type            string `json:"type"` // "Individual" or "Organization"
	PrimaryTaxonomy string `json:"primary_taxonomy,omitempty"`
	TaxonomyCode    string `json:"taxonomy_code,omitempty"`
	Address         string `json:"address,omitempty"` // city, state zip
	Phone           string `json:"phone,omitempty"`
	Status          string `json:"status,omitempty"` // "A" = active
}

// Registry queries NPPES for billing providers.
type Registry struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewRegistry returns a Registry with a 10 second request timeout.
func NewRegistry() *Registry {
	return &Registry{
		BaseURL:    DefaultRegistryURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type apiResponse struct {
	ResultCount int         `json:"result_count"`
	Results     []apiResult `json:"results"`
}

type apiResult struct {
	Number          string        `json:"number"`
	EnumerationType string        `json:"enumeration_type"`
	Basic           apiBasic      `json:"basic"`
	Addresses       []apiAddress  `json:"addresses"`
	Taxonomies      []apiTaxonomy `json:"taxonomies"`
}

type apiBasic struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	OrganizationName string `json:"organization_name"`
	Status           string `json:"status"`
}

type apiAddress struct {
	City           string `json:"city"`
	State          string `json:"state"`
	PostalCode     string `json:"postal_code"`
	AddressPurpose string `json:"address_purpose"` // "LOCATION" or "MAILING"
	Phone          string `json:"telephone_number"`
}

type apiTaxonomy struct {
	Code    string `json:"code"`
	Desc    string `json:"desc"`
	Primary bool   `json:"primary"`
}

// SearchOrganizations finds organization NPIs whose name matches. NPPES
// treats a trailing '*' as a wildcard; one is appended when absent. An
// optional two-letter state narrows results.
func (r *Registry) SearchOrganizations(ctx context.Context, name, state string) ([]Provider, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("organization name is required")
	}
	if !strings.HasSuffix(name, "*") {
		name += "*"
	}
	params := url.Values{}
	params.Set("enumeration_type", "NPI-2")
	params.Set("organization_name", name)
	if state != "" {
		params.Set("state", strings.ToUpper(state))
	}
	return r.query(ctx, params)
}

// Lookup returns the provider for an NPI number, or nil if it is unknown.
func (r *Registry) Lookup(ctx context.Context, number int64) (*Provider, error) {
	params := url.Values{}
	params.Set("number", strconv.FormatInt(number, 10))
	results, err := r.query(ctx, params)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return &results[0], nil
}

func (r *Registry) query(ctx context.Context, params url.Values) ([]Provider, error) {
	params.Set("version", "2.1")
	params.Set("limit", strconv.Itoa(registryLimit))
	base := r.BaseURL
	if base == "" {
		base = DefaultRegistryURL
	}
	hc := r.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying NPI registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NPI registry returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parsing NPI registry response: %w", err)
	}

	out := make([]Provider, 0, len(apiResp.Results))
	for _, res := range apiResp.Results {
		out = append(out, toProvider(res))
	}
	return out, nil
}

func toProvider(r apiResult) Provider {
	n, _ := strconv.ParseInt(r.Number, 10, 64)
	p := Provider{NPI: n, Status: r.Basic.Status}

	if r.EnumerationType == "NPI-1" {
		p.Type = "Individual"
		p.Name = strings.TrimSpace(cleanField(r.Basic.LastName) + ", " + cleanField(r.Basic.FirstName))
	} else {
		p.Type = "Organization"
		p.Name = cleanField(r.Basic.OrganizationName)
	}

	for _, t := range r.Taxonomies {
		if t.Primary {
			p.PrimaryTaxonomy, p.TaxonomyCode = t.Desc, t.Code
			break
		}
	}
	if p.PrimaryTaxonomy == "" && len(r.Taxonomies) > 0 {
		p.PrimaryTaxonomy, p.TaxonomyCode = r.Taxonomies[0].Desc, r.Taxonomies[0].Code
	}

	for _, a := range r.Addresses {
		if a.AddressPurpose == "LOCATION" {
			p.Address, p.Phone = formatAddress(a), formatPhone(a.Phone)
			break
		}
	}
	if p.Address == "" && len(r.Addresses) > 0 {
		p.Address, p.Phone = formatAddress(r.Addresses[0]), formatPhone(r.Addresses[0].Phone)
	}
	return p
}

func formatAddress(a apiAddress) string {
	var parts []string
	if a.City != "" {
		parts = append(parts, a.City)
	}
	if a.State != "" {
		parts = append(parts, a.State)
	}
	loc := strings.Join(parts, ", ")
	if a.PostalCode != "" {
		zip := a.PostalCode
		if len(zip) > 5 {
			zip = zip[:5]
		}
		loc += " " + zip
	}
	return loc
}

func formatPhone(phone string) string {
	p := strings.TrimSpace(strings.ReplaceAll(phone, "-", ""))
	if len(p) == 10 {
		return fmt.Sprintf("(%s) %s-%s", p[:3], p[3:6], p[6:])
	}
	return phone
}

func cleanField(s string) string {
	s = strings.TrimSpace(s)
	if s == "--" {
		return ""
	}
	return s
}
