package match

import (
	"sort"
	"strings"
	"testing"
)

func TestCompare_SelfMatchIsGood(t *testing.T) {
	for _, d := range []string{
		"Office/outpatient visit, established patient",
		"Lidocaine HCl injection, 10 mg",
		"Excision of breast lesion",
	} {
		r := Compare(d, d)
		if r.Type != Good || r.Score != 100 {
			t.Errorf("Compare(%q, itself) = %+v, want good/100", d, r)
		}
	}
}

func TestCompare_DrugVersusSurgery(t *testing.T) {
	r := Compare("Ketamine injection 10 mg", "Excision of scrotal lesion")
	if r.Type != CategoryMismatch || r.Score != 10 {
		t.Errorf("expected category_mismatch/10, got %+v", r)
	}

	r = Compare("Excision repair", "Lidocaine injection per 10 mg")
	if r.Type != CategoryMismatch || r.Score != 10 {
		t.Errorf("expected symmetric category_mismatch/10, got %+v", r)
	}
}

// Any bill built purely from drug terms against a reference built purely
// from surgical terms is a category mismatch, whatever the overlap.
func TestCompare_VocabularyCategoryMismatch(t *testing.T) {
	drugs := keys(DrugTerms)
	surgery := keys(SurgicalTerms)
	for i := 0; i+2 < len(drugs); i += 3 {
		bill := strings.Join(drugs[i:i+3], " ")
		for j := 0; j+2 < len(surgery); j += 2 {
			ref := strings.Join(surgery[j:j+3], " ")
			if r := Compare(bill, ref); r.Type != CategoryMismatch {
				t.Errorf("Compare(%q, %q) = %+v, want category_mismatch", bill, ref, r)
			}
		}
	}
}

func TestCompare_BodyPartMismatch(t *testing.T) {
	r := Compare("MRI of knee", "MRI of shoulder")
	if r.Type != CategoryMismatch || r.Score != 15 {
		t.Errorf("expected body part mismatch, got %+v", r)
	}
	if !strings.Contains(r.Reason, "knee") || !strings.Contains(r.Reason, "shoulder") {
		t.Errorf("reason should name both body parts: %q", r.Reason)
	}
}

func TestCompare_PartialAndMismatch(t *testing.T) {
	r := Compare("Office visit level 3", "Office/outpatient visit established patient moderate complexity")
	if r.Type != Partial {
		t.Errorf("expected partial, got %+v", r)
	}

	r = Compare("Room and board", "Comprehensive metabolic panel")
	if r.Type != Mismatch {
		t.Errorf("expected mismatch, got %+v", r)
	}
	if r.Type.Reliable() {
		t.Error("mismatch must not be reliable")
	}
}

func TestCompare_Unknown(t *testing.T) {
	cases := [][2]string{
		{"", "Office visit"},
		{"Office visit", "   "},
		{"12345 $$", "Office visit"},
		{"the of and", "Office visit"},
	}
	for _, c := range cases {
		r := Compare(c[0], c[1])
		if r.Type != Unknown || r.Score != 50 {
			t.Errorf("Compare(%q, %q) = %+v, want unknown/50", c[0], c[1], r)
		}
		if !r.Type.Reliable() {
			t.Error("unknown must be treated as reliable")
		}
	}
}

func TestWords_FoldsDiacritics(t *testing.T) {
	w := Words("Café-Résumé 10mg")
	for _, want := range []string{"cafe", "resume", "mg"} {
		if _, ok := w[want]; !ok {
			t.Errorf("expected word %q in %v", want, w)
		}
	}
}

func keys(s set) []string {
	out := make([]string, 0, len(s))
	for w := range s {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
