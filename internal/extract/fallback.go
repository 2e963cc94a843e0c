package extract

import "github.com/gyeh/billcheck/internal/billing"

// ExampleItems is the fixed demonstration bill returned when nothing could
// be extracted and fallback is allowed.
func ExampleItems() []billing.LineItem {
	return []billing.LineItem{
		{Code: "71046", Description: "Chest X-ray, 2 views", Quantity: 1, Amount: 250.00},
		{Code: "99213", Description: "Office/outpatient visit, established patient", Quantity: 1, Amount: 150.00},
		{Code: "80053", Description: "Comprehensive metabolic panel", Quantity: 1, Amount: 75.00},
		{Code: "85025", Description: "Complete blood count (CBC)", Quantity: 1, Amount: 45.00},
		{Code: "36415", Description: "Venipuncture for blood draw", Quantity: 1, Amount: 25.00},
	}
}
