package modem

import (
	"reflect"
	"testing"
)

func TestParseATResponse2DEmpty(t *testing.T) {
	if got := parseATResponse2D(""); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestParseATResponse2DTrimsOKAndCRLF(t *testing.T) {
	got := parseATResponse2D("1,2,3\r\nOK\r\n")
	want := [][]string{{"1", "2", "3"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseATResponse2DRowSplit(t *testing.T) {
	// A bare '-' splits rows.
	got := parseATResponse2D("1,2-3,4")
	want := [][]string{{"1", "2"}, {"3", "4"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseATResponse2DSignAfterComma(t *testing.T) {
	// ",-" keeps the minus as a numeric sign.
	got := parseATResponse2D("1,-9000,2")
	want := [][]string{{"1", "-9000", "2"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseATResponse2DDoubleMinusLiteral(t *testing.T) {
	// "--" collapses to a literal '-' starting the next row.
	got := parseATResponse2D("1,2--3,4")
	want := [][]string{{"1", "2"}, {"-3", "4"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParsePrimaryCellNR(t *testing.T) {
	rows := make([][]string, 16)
	for i := range rows {
		rows[i] = []string{"0"}
	}
	rows[0] = []string{"78"}
	rows[1] = []string{"633984"}
	rows[2] = []string{"101"}
	rows[3] = []string{"-9530"}
	rows[4] = []string{"-1080"}
	rows[15] = []string{"1250"}

	cell := parsePrimaryCell("nr", rows)
	if !cell.IsServing {
		t.Fatal("serving flag not set")
	}
	if cell.Band != "n78" {
		t.Errorf("band = %q, want n78", cell.Band)
	}
	if cell.ARFCN != "633984" || cell.PCI != "101" {
		t.Errorf("arfcn/pci = %q/%q", cell.ARFCN, cell.PCI)
	}
	if cell.RSRP != "-9530" || cell.RSRQ != "-1080" || cell.SINR != "1250" {
		t.Errorf("signal fields = %q/%q/%q", cell.RSRP, cell.RSRQ, cell.SINR)
	}
}

func TestParsePrimaryCellLTESinrIndex(t *testing.T) {
	rows := make([][]string, 34)
	for i := range rows {
		rows[i] = []string{"0"}
	}
	rows[0] = []string{"3"}
	rows[1] = []string{"1300"}
	rows[2] = []string{"220"}
	rows[3] = []string{"-8800"}
	rows[4] = []string{"-900"}
	rows[33] = []string{"1700"}

	cell := parsePrimaryCell("lte", rows)
	if cell.Band != "B3" {
		t.Errorf("band = %q, want B3", cell.Band)
	}
	if cell.SINR != "1700" {
		t.Errorf("sinr = %q, want 1700", cell.SINR)
	}
}

func TestParsePrimaryCellTooShort(t *testing.T) {
	cell := parsePrimaryCell("nr", [][]string{{"78"}})
	if cell.Tech != "" {
		t.Errorf("expected empty cell for short data, got %+v", cell)
	}
}

func TestParseNeighborCellsNRStopsAtZeroPair(t *testing.T) {
	rows := [][]string{
		{"0", "0", "0"},                   // band column: derive from arfcn
		{"504990", "627264", "0"},         // arfcn
		{"28", "512", "0"},                // pci
		{"-10100", "-11900", "0"},         // rsrp
		{"-1200", "-1500", "0"},           // rsrq
		{"900", "300", "0"},               // sinr
	}

	cells := parseNeighborCells("nr", rows)
	if len(cells) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(cells))
	}
	if cells[0].Band != "n41" {
		t.Errorf("band[0] = %q, want n41 (derived from 504990)", cells[0].Band)
	}
	if cells[1].Band != "n78" {
		t.Errorf("band[1] = %q, want n78 (derived from 627264)", cells[1].Band)
	}
	if cells[0].SINR != "900" {
		t.Errorf("sinr[0] = %q", cells[0].SINR)
	}
}

func TestParseNeighborCellsLTE(t *testing.T) {
	rows := [][]string{
		{"1300", "77", "-9900", "-1100"},
		{"38950", "210", "-10400", "-1300", "0", "0", "0", "0", "0", "0", "0", "0", "40"},
		{"0", "0", "0", "0"},
		{"9999", "1", "-1", "-1"}, // after the zero pair, never reached
	}

	cells := parseNeighborCells("lte", rows)
	if len(cells) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(cells))
	}
	if cells[0].Band != "B3" {
		t.Errorf("band[0] = %q, want B3 (derived from 1300)", cells[0].Band)
	}
	if cells[1].Band != "40" {
		t.Errorf("band[1] = %q, want 40 (from column 12)", cells[1].Band)
	}
	if cells[0].SINR != "-" {
		t.Errorf("lte neighbor sinr = %q, want -", cells[0].SINR)
	}
}

func TestParseNeighborCellsSparseRowsSkipped(t *testing.T) {
	rows := [][]string{
		{"1300", "77"}, // too short, skipped
		{"2500", "12", "-9000", "-1000"},
	}
	cells := parseNeighborCells("lte", rows)
	if len(cells) != 1 || cells[0].ARFCN != "2500" {
		t.Fatalf("unexpected cells: %+v", cells)
	}
}

func TestArfcnBandDerivation(t *testing.T) {
	cases := []struct {
		arfcn uint32
		want  string
	}{
		{430000, "n1"},
		{152000, "n28"},
		{500000, "n41"},
		{650000, "n78"},
		{700000, "n79"},
		{1, ""},
	}
	for _, tc := range cases {
		if got := arfcnToNrBand(tc.arfcn); got != tc.want {
			t.Errorf("arfcnToNrBand(%d) = %q, want %q", tc.arfcn, got, tc.want)
		}
	}
}

func TestEarfcnBandDerivation(t *testing.T) {
	cases := []struct {
		earfcn uint32
		want   string
	}{
		{100, "B1"},
		{1500, "B3"},
		{6300, "B20"},
		{9400, "B28"},
		{38000, "B38"},
		{40000, "B41"},
		{50000, ""},
	}
	for _, tc := range cases {
		if got := earfcnToLteBand(tc.earfcn); got != tc.want {
			t.Errorf("earfcnToLteBand(%d) = %q, want %q", tc.earfcn, got, tc.want)
		}
	}
}
