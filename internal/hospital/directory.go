// Package hospital holds the local hospital directory with its published
// price list, detects the billing provider in document text, and looks
// providers up in the NPPES registry.
package hospital

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned for an unknown hospital id.
var ErrNotFound = errors.New("hospital not found")

//go:embed data/hospitals.yaml
var embeddedData []byte

// Hospital is one facility in the directory.
type Hospital struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Address string `yaml:"address" json:"address"`
	City    string `yaml:"city" json:"city"`
	State   string `yaml:"state" json:"state"`
	Zip     string `yaml:"zip" json:"zip"`
	Type    string `yaml:"type" json:"type"`

	Prices map[string]Price `yaml:"prices" json:"-"`
}

// Price is a hospital's published figures for one procedure code.
type Price struct {
	Description    string  `yaml:"-" json:"description"`
	GrossCharge    float64 `yaml:"gross_charge" json:"gross_charge"`
	NegotiatedRate float64 `yaml:"negotiated_rate" json:"negotiated_rate"`
}

// HospitalPrice pairs a hospital with its price for some code.
type HospitalPrice struct {
	Hospital Hospital `json:"hospital"`
	Price    Price    `json:"price"`
}

// RegionalStats summarizes gross charges for a code across the directory.
type RegionalStats struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Median  float64 `json:"median"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

type detectionRule struct {
	Pattern  string `yaml:"pattern"`
	Hospital string `yaml:"hospital"`
	re       *regexp.Regexp
}

type directoryFile struct {
	Procedures map[string]string `yaml:"procedures"`
	Detection  []detectionRule   `yaml:"detection"`
	Hospitals  []Hospital        `yaml:"hospitals"`
}

// Directory is a read-only set of hospitals, safe for concurrent use.
type Directory struct {
	hospitals []Hospital
	byID      map[string]int
	rules     []detectionRule
}

// Default loads the directory compiled into the binary.
func Default() *Directory {
	d, err := Parse(embeddedData)
	if err != nil {
		panic(fmt.Sprintf("embedded hospital directory: %v", err))
	}
	return d
}

// Parse reads a directory from YAML.
func Parse(data []byte) (*Directory, error) {
	var f directoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing hospital directory: %w", err)
	}

	d := &Directory{byID: make(map[string]int, len(f.Hospitals))}
	for _, h := range f.Hospitals {
		if h.ID == "" {
			return nil, fmt.Errorf("hospital %q has no id", h.Name)
		}
		if _, dup := d.byID[h.ID]; dup {
			return nil, fmt.Errorf("duplicate hospital id %q", h.ID)
		}
		for code, p := range h.Prices {
			p.Description = f.Procedures[code]
			h.Prices[code] = p
		}
		d.byID[h.ID] = len(d.hospitals)
		d.hospitals = append(d.hospitals, h)
	}

	for _, r := range f.Detection {
		if _, ok := d.byID[r.Hospital]; !ok {
			return nil, fmt.Errorf("detection rule %q names unknown hospital %q", r.Pattern, r.Hospital)
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("detection rule %q: %w", r.Pattern, err)
		}
		r.re = re
		d.rules = append(d.rules, r)
	}
	return d, nil
}

// All returns every hospital in directory order.
func (d *Directory) All() []Hospital {
	return append([]Hospital(nil), d.hospitals...)
}

// Search returns hospitals whose name, city or address contains query,
// ignoring case. An empty query returns everything.
func (d *Directory) Search(query string) []Hospital {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return d.All()
	}
	var out []Hospital
	for _, h := range d.hospitals {
		if strings.Contains(strings.ToLower(h.Name), q) ||
			strings.Contains(strings.ToLower(h.City), q) ||
			strings.Contains(strings.ToLower(h.Address), q) {
			out = append(out, h)
		}
	}
	return out
}

// Get returns the hospital with the given id.
func (d *Directory) Get(id string) (Hospital, error) {
	i, ok := d.byID[id]
	if !ok {
		return Hospital{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d.hospitals[i], nil
}

// Prices returns a hospital's full price list.
func (d *Directory) Prices(id string) map[string]Price {
	h, err := d.Get(id)
	if err != nil {
		return nil
	}
	return h.Prices
}

// PriceFor returns a hospital's price for a code.
func (d *Directory) PriceFor(id, code string) (Price, bool) {
	h, err := d.Get(id)
	if err != nil {
		return Price{}, false
	}
	p, ok := h.Prices[code]
	return p, ok
}

// PricesForCode returns the code's price at every hospital that lists it.
func (d *Directory) PricesForCode(code string) []HospitalPrice {
	var out []HospitalPrice
	for _, h := range d.hospitals {
		if p, ok := h.Prices[code]; ok {
			out = append(out, HospitalPrice{Hospital: h, Price: p})
		}
	}
	return out
}

// RegionalStats summarizes gross charges for code. It returns nil when no
// hospital lists the code.
func (d *Directory) RegionalStats(code string) *RegionalStats {
	var charges []float64
	for _, h := range d.hospitals {
		if p, ok := h.Prices[code]; ok {
			charges = append(charges, p.GrossCharge)
		}
	}
	if len(charges) == 0 {
		return nil
	}
	sort.Float64s(charges)
	var sum float64
	for _, c := range charges {
		sum += c
	}
	return &RegionalStats{
		Min:     charges[0],
		Max:     charges[len(charges)-1],
		Median:  charges[len(charges)/2],
		Average: sum / float64(len(charges)),
		Count:   len(charges),
	}
}
