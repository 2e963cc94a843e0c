package hospital

import (
	"strings"
	"unicode/utf8"
)

// Confidence levels for a detected provider.
const (
	ConfidenceHigh = "high"
	ConfidenceLow  = "low"
)

const (
	headerLines     = 20
	maxDetectedName = 100
)

var providerTerms = []string{"hospital", "medical center", "health system", "clinic"}

// Detection is a guess at which provider issued a bill.
type Detection struct {
	HospitalID     string `json:"hospital_id,omitempty"`
	HospitalName   string `json:"hospital_name,omitempty"`
	Confidence     string `json:"confidence"`
	DetectedName   string `json:"detected_name,omitempty"`
	MatchedPattern string `json:"matched_pattern,omitempty"`
}

// Detect looks for a known facility in text, then for a header line that
// reads like a provider name. It returns nil when neither is found.
func (d *Directory) Detect(text string) *Detection {
	for _, r := range d.rules {
		if r.re.MatchString(text) {
			h := d.hospitals[d.byID[r.Hospital]]
			return &Detection{
				HospitalID:     h.ID,
				HospitalName:   h.Name,
				Confidence:     ConfidenceHigh,
				MatchedPattern: r.Pattern,
			}
		}
	}

	lines := strings.SplitN(text, "\n", headerLines+1)
	if len(lines) > headerLines {
		lines = lines[:headerLines]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		for _, term := range providerTerms {
			if strings.Contains(lower, term) {
				return &Detection{Confidence: ConfidenceLow, DetectedName: truncate(line, maxDetectedName)}
			}
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
