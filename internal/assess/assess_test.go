package assess

import (
	"testing"

	"github.com/gyeh/billcheck/internal/pricing"
)

func f(v float64) *float64 { return &v }

func TestScenarios(t *testing.T) {
	tests := []struct {
		name     string
		billed   float64
		status   Status
		variance float64
		savings  float64
	}{
		{"A at fair price", 100, Low, 0, 0},
		{"B within high band", 160, High, 60, 60},
		{"C very high", 250, VeryHigh, 150, 150},
		{"upper fair edge", 150, Fair, 50, 0},
		{"upper high edge", 200, High, 100, 100},
		{"below fair", 80, Low, -20, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Assess(tt.billed, 100, Authoritative)
			if a.Status != tt.status {
				t.Errorf("status = %s, want %s", a.Status, tt.status)
			}
			if a.VariancePercent == nil || *a.VariancePercent != tt.variance {
				t.Errorf("variance = %v, want %v", a.VariancePercent, tt.variance)
			}
			if a.PotentialSavings == nil || *a.PotentialSavings != tt.savings {
				t.Errorf("savings = %v, want %v", a.PotentialSavings, tt.savings)
			}
		})
	}
}

func TestScenarioDNoCode(t *testing.T) {
	a := AssessReference(120, nil)
	if a.Status != Unknown || a.VariancePercent != nil || a.PotentialSavings != nil || a.FairPrice != nil {
		t.Errorf("got %+v, want bare unknown", a)
	}
}

func TestFallbackBands(t *testing.T) {
	cases := map[float64]Status{100: Low, 120: Fair, 121: High, 150: High, 151: VeryHigh}
	for billed, want := range cases {
		if got := Assess(billed, 100, Fallback).Status; got != want {
			t.Errorf("Assess(%v, fallback) = %s, want %s", billed, got, want)
		}
	}
}

func TestMonotonic(t *testing.T) {
	for _, bands := range []Bands{Authoritative, Fallback} {
		prev := 0
		for billed := 1.0; billed <= 400; billed += 0.5 {
			rank := Assess(billed, 97.3, bands).Status.Rank()
			if rank < prev {
				t.Fatalf("tier decreased at billed=%v (%+v)", billed, bands)
			}
			prev = rank
		}
	}
}

func TestVarianceRounding(t *testing.T) {
	a := Assess(133.33, 100, Authoritative)
	if *a.VariancePercent != 33.3 {
		t.Errorf("variance = %v, want 33.3", *a.VariancePercent)
	}
	a = Assess(310.456, 100, Authoritative)
	if *a.PotentialSavings != 210.46 {
		t.Errorf("savings = %v, want 210.46", *a.PotentialSavings)
	}
}

func TestZeroFairIsUnknown(t *testing.T) {
	if a := Assess(10, 0, Authoritative); a.Status != Unknown {
		t.Errorf("status = %s, want unknown", a.Status)
	}
}

func TestFairPriceOrder(t *testing.T) {
	c := &pricing.CombinedPricing{
		HasData:         true,
		HasReliableData: true,
		Physician:       &pricing.PhysicianFee{MedicarePayment: pricing.PaymentStats{Average: 80}},
	}
	if v, _ := FairPrice(c); v != 80 {
		t.Errorf("physician fair = %v, want 80", v)
	}
	c.Facility = &pricing.FacilityFee{FacilityPayment: pricing.PaymentStats{Average: 60}}
	if v, _ := FairPrice(c); v != 60 {
		t.Errorf("facility fair = %v, want 60", v)
	}
	c.Drug = &pricing.DrugPricing{ASPPrice: f(3)}
	if v, _ := FairPrice(c); v != 3 {
		t.Errorf("asp fair = %v, want 3", v)
	}
	c.Drug.AvgSpendingPerUnit = f(4)
	if v, _ := FairPrice(c); v != 4 {
		t.Errorf("per-unit fair = %v, want 4", v)
	}
	if _, ok := FairPrice(&pricing.CombinedPricing{}); ok {
		t.Error("empty pricing should have no fair price")
	}
}

func TestUnreliableDataNotAssessed(t *testing.T) {
	c := &pricing.CombinedPricing{
		HasData:   true,
		Physician: &pricing.PhysicianFee{MedicarePayment: pricing.PaymentStats{Average: 80}},
	}
	if a := AssessReference(500, c); a.Status != Unknown {
		t.Errorf("status = %s, want unknown for unreliable data", a.Status)
	}
}

func TestSummarize(t *testing.T) {
	line := func(amount float64, qty int, fair float64) Line {
		if fair == 0 {
			return Line{Amount: amount, Quantity: qty, Assessment: UnknownAssessment()}
		}
		return Line{Amount: amount, Quantity: qty, Assessment: Assess(amount, fair, Authoritative)}
	}

	tests := []struct {
		name  string
		lines []Line
		want  Verdict
	}{
		{"empty", nil, InsufficientData},
		{"all unknown", []Line{line(100, 1, 0)}, InsufficientData},
		{"fair", []Line{line(100, 1, 90), line(50, 2, 45)}, FairBill},
		{"significant", []Line{line(300, 1, 100)}, SignificantlyOvercharged},
		{"moderate", []Line{line(180, 1, 100), line(100, 1, 95)}, ModeratelyOvercharged},
		{"slight", []Line{line(180, 1, 100), line(1000, 1, 990)}, SlightlyOvercharged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summarize(tt.lines).Verdict; got != tt.want {
				t.Errorf("verdict = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSummarizeTotals(t *testing.T) {
	s := Summarize([]Line{
		{Amount: 250, Quantity: 2, Assessment: Assess(250, 100, Authoritative)},
		{Amount: 40, Quantity: 1, Assessment: UnknownAssessment()},
	})
	if s.TotalBilled != 540 {
		t.Errorf("TotalBilled = %v, want 540", s.TotalBilled)
	}
	if s.AssessedBilled != 500 {
		t.Errorf("AssessedBilled = %v, want 500", s.AssessedBilled)
	}
	if s.TotalFairValue == nil || *s.TotalFairValue != 200 {
		t.Errorf("TotalFairValue = %v, want 200", s.TotalFairValue)
	}
	if s.TotalPotentialSavings == nil || *s.TotalPotentialSavings != 300 {
		t.Errorf("TotalPotentialSavings = %v, want 300", s.TotalPotentialSavings)
	}
	if s.ItemsAssessed != 1 {
		t.Errorf("ItemsAssessed = %d, want 1", s.ItemsAssessed)
	}
}
