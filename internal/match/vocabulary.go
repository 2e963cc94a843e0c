package match

// VocabularyVersion identifies the keyword tables below. Bump it whenever a
// table changes so cached verdicts computed under older tables can be told
// apart.
const VocabularyVersion = 1

// DrugTerms mark a description as a drug or medication.
var DrugTerms = wordSet(
	"injection", "infusion", "vaccine", "medication", "drug", "dose",
	"mg", "ml", "mcg", "units", "per", "vial", "tablet", "capsule",
	"ketamine", "lidocaine", "morphine", "fentanyl", "propofol", "antibiotic",
	"steroid", "anesthetic", "sedation", "analgesic", "saline", "dextrose",
)

// SurgicalTerms mark a description as a surgical or procedural action.
var SurgicalTerms = wordSet(
	"incision", "excision", "resection", "repair", "removal", "insertion",
	"implant", "graft", "transplant", "amputation", "biopsy", "drainage",
	"reconstruction", "revision", "exploration", "dissection", "suture",
)

// BodyPartTerms name anatomical sites.
var BodyPartTerms = wordSet(
	"scrotum", "scrotal", "testis", "testicle", "penis", "penile", "prostate",
	"uterus", "uterine", "ovary", "ovarian", "vaginal", "cervix", "cervical",
	"breast", "mammary", "heart", "cardiac", "lung", "pulmonary", "liver",
	"hepatic", "kidney", "renal", "brain", "cerebral", "spine", "spinal",
	"knee", "hip", "shoulder", "elbow", "wrist", "ankle", "foot", "hand",
)

// Stopwords are ignored when measuring word overlap.
var Stopwords = wordSet(
	"the", "a", "an", "of", "for", "to", "in", "on", "with", "and", "or", "per",
)

type set map[string]struct{}

func wordSet(words ...string) set {
	s := make(set, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

func (s set) has(w string) bool {
	_, ok := s[w]
	return ok
}

func (s set) intersects(o set) bool {
	for w := range s {
		if o.has(w) {
			return true
		}
	}
	return false
}

func (s set) intersect(o set) set {
	out := set{}
	for w := range s {
		if o.has(w) {
			out[w] = struct{}{}
		}
	}
	return out
}

func (s set) minus(o set) set {
	out := set{}
	for w := range s {
		if !o.has(w) {
			out[w] = struct{}{}
		}
	}
	return out
}

func (s set) union(o set) set {
	out := make(set, len(s)+len(o))
	for w := range s {
		out[w] = struct{}{}
	}
	for w := range o {
		out[w] = struct{}{}
	}
	return out
}
