package document

import (
	"reflect"
	"testing"
)

func TestParseHTMLTablesSpans(t *testing.T) {
	src := `<table>
<thead><tr><th>Date</th><th colspan="2">Service</th><th>Charge</th></tr></thead>
<tbody>
<tr><td rowspan="2">01/02/2025</td><td>99213</td><td>Office <b>visit</b></td><td>$150.00</td></tr>
<tr><td>36415</td><td>Venipuncture<br>draw</td><td>$25.00</td></tr>
</tbody></table>`

	tables := ParseHTMLTables(src)
	if len(tables) != 1 {
		t.Fatalf("got %d tables, want 1", len(tables))
	}
	want := [][]string{
		{"Date", "Service", "Service", "Charge"},
		{"01/02/2025", "99213", "Office visit", "$150.00"},
		{"01/02/2025", "36415", "Venipuncture draw", "$25.00"},
	}
	if !reflect.DeepEqual(tables[0], want) {
		t.Errorf("grid = %q\nwant %q", tables[0], want)
	}
}

func TestParseHTMLTablesMultiple(t *testing.T) {
	src := `<table><tr><td>a</td></tr></table><p>x</p><table><tr><td>b</td><td>c</td></tr></table>`
	tables := ParseHTMLTables(src)
	if len(tables) != 2 || tables[1][0][1] != "c" {
		t.Errorf("tables = %q", tables)
	}
}

func TestSpanAttrBounds(t *testing.T) {
	src := `<table><tr><td colspan="0">a</td><td colspan="x">b</td></tr></table>`
	tables := ParseHTMLTables(src)
	if len(tables) != 1 || len(tables[0][0]) != 2 {
		t.Errorf("tables = %q", tables)
	}
}
