// Package match decides whether a reference dataset's description plausibly
// names the same service as a billed description.
package match

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Type classifies a description comparison.
type Type string

const (
	Good             Type = "good"
	Partial          Type = "partial"
	Mismatch         Type = "mismatch"
	CategoryMismatch Type = "category_mismatch"
	Unknown          Type = "unknown"
)

// Reliable reports whether a comparison of this type may back a price
// assessment.
func (t Type) Reliable() bool {
	switch t {
	case Good, Partial, Unknown:
		return true
	}
	return false
}

const (
	categoryMismatchScore = 10
	bodyPartMismatchScore = 15
	unknownScore          = 50
	goodThreshold         = 40
	relevanceThreshold    = 15
)

// Result is the outcome of comparing two descriptions.
type Result struct {
	Score  int    `json:"score"`
	Type   Type   `json:"match_type"`
	Reason string `json:"reason"`
}

var wordRe = regexp.MustCompile(`[a-z]+`)

// Words lowercases s, folds diacritics and returns its alphabetic words.
func Words(s string) map[string]struct{} {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	out := map[string]struct{}{}
	for _, w := range wordRe.FindAllString(strings.ToLower(folded), -1) {
		out[w] = struct{}{}
	}
	return out
}

// Compare scores how well refDesc describes the same service as billDesc.
func Compare(billDesc, refDesc string) Result {
	if strings.TrimSpace(billDesc) == "" || strings.TrimSpace(refDesc) == "" {
		return Result{Score: unknownScore, Type: Unknown, Reason: "Missing description"}
	}
	bill, ref := set(Words(billDesc)), set(Words(refDesc))
	if len(bill) == 0 || len(ref) == 0 {
		return Result{Score: unknownScore, Type: Unknown, Reason: "Empty description after normalization"}
	}

	billDrug, refDrug := bill.intersects(DrugTerms), ref.intersects(DrugTerms)
	billSurgery, refSurgery := bill.intersects(SurgicalTerms), ref.intersects(SurgicalTerms)
	if billDrug && refSurgery && !refDrug {
		return Result{
			Score:  categoryMismatchScore,
			Type:   CategoryMismatch,
			Reason: "Bill describes a drug/medication but the reference code is for surgery",
		}
	}
	if billSurgery && refDrug && !billDrug {
		return Result{
			Score:  categoryMismatchScore,
			Type:   CategoryMismatch,
			Reason: "Bill describes surgery but the reference code is for a drug",
		}
	}

	billParts, refParts := bill.intersect(BodyPartTerms), ref.intersect(BodyPartTerms)
	if len(billParts) > 0 && len(refParts) > 0 && !billParts.intersects(refParts) {
		return Result{
			Score: bodyPartMismatchScore,
			Type:  CategoryMismatch,
			Reason: fmt.Sprintf("Body part mismatch: bill mentions %s, reference mentions %s",
				sortedWords(billParts), sortedWords(refParts)),
		}
	}

	billMeaningful, refMeaningful := bill.minus(Stopwords), ref.minus(Stopwords)
	if len(billMeaningful) == 0 || len(refMeaningful) == 0 {
		return Result{Score: unknownScore, Type: Unknown, Reason: "No meaningful words to compare"}
	}
	common := billMeaningful.intersect(refMeaningful)
	union := billMeaningful.union(refMeaningful)
	score := len(common) * 100 / len(union)

	switch {
	case len(common) == 0 && score < relevanceThreshold:
		return Result{Score: score, Type: Mismatch, Reason: "No common terms found between descriptions"}
	case score >= goodThreshold:
		return Result{Score: score, Type: Good, Reason: fmt.Sprintf("Good word overlap (%d common terms)", len(common))}
	default:
		return Result{Score: score, Type: Partial, Reason: fmt.Sprintf("Partial match (%d common terms)", len(common))}
	}
}

func sortedWords(s set) string {
	words := make([]string, 0, len(s))
	for w := range s {
		words = append(words, w)
	}
	sort.Strings(words)
	return strings.Join(words, ", ")
}
