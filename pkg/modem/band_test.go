package modem

import (
	"reflect"
	"testing"
)

func TestLteBandMaskRoundTrip(t *testing.T) {
	cases := []struct {
		bands []uint8
		base  uint8
	}{
		{[]uint8{1, 3, 8}, lteFddBase},
		{[]uint8{38, 40, 41}, lteTddBase},
		{[]uint8{}, lteFddBase},
		{[]uint8{1, 16}, lteFddBase},
		{[]uint8{33, 48}, lteTddBase},
	}
	for _, tc := range cases {
		mask := lteBandsToMask(tc.bands, tc.base)
		got := lteMaskToBands(mask, tc.base)
		want := tc.bands
		if len(want) == 0 {
			want = []uint8{}
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("round trip %v (base %d): mask 0x%04x -> %v", tc.bands, tc.base, mask, got)
		}
	}
}

func TestLteBandsOutOfRangeDropped(t *testing.T) {
	if mask := lteBandsToMask([]uint8{17}, lteFddBase); mask != 0 {
		t.Errorf("band 17 in FDD regime: mask = 0x%04x, want 0", mask)
	}
	if mask := lteBandsToMask([]uint8{32, 49}, lteTddBase); mask != 0 {
		t.Errorf("bands 32,49 in TDD regime: mask = 0x%04x, want 0", mask)
	}
}

func TestLteMaskFullRange(t *testing.T) {
	got := lteMaskToBands(0xFFFF, lteFddBase)
	if len(got) != 16 || got[0] != 1 || got[15] != 16 {
		t.Fatalf("0xFFFF -> %v, want B1..B16", got)
	}
}

func TestNrBandMaskRoundTrip(t *testing.T) {
	cases := []struct {
		bands []uint8
		table map[uint8]uint16
		mask  uint16
	}{
		{[]uint8{1, 28}, nrFddBandBits, 0x201},
		{[]uint8{77, 78}, nrTddBandBits, 0x180},
		{[]uint8{41, 79}, nrTddBandBits, 0x210},
		{[]uint8{34, 38, 39, 40, 41, 77, 78, 79}, nrTddBandBits, 0x39f},
	}
	for _, tc := range cases {
		mask := nrBandsToMask(tc.bands, tc.table)
		if mask != tc.mask {
			t.Errorf("nrBandsToMask(%v) = 0x%04x, want 0x%04x", tc.bands, mask, tc.mask)
		}
		if got := nrMaskToBands(mask, tc.table); !reflect.DeepEqual(got, tc.bands) {
			t.Errorf("nrMaskToBands(0x%04x) = %v, want %v", mask, got, tc.bands)
		}
	}
}

func TestNrUnknownBandsDropped(t *testing.T) {
	if mask := nrBandsToMask([]uint8{4, 66}, nrFddBandBits); mask != 0 {
		t.Errorf("unknown NR bands: mask = 0x%04x, want 0", mask)
	}
}

func TestBuildLockCommands(t *testing.T) {
	// NR TDD n77+n78 = 0x180 = 384, everything else empty.
	lte := buildLteLockCommand(0, 0)
	if lte != "AT+SPLBAND=1,0,0,0,0,0" {
		t.Errorf("lte command = %q", lte)
	}
	nr := buildNrLockCommand(0, nrBandsToMask([]uint8{77, 78}, nrTddBandBits))
	if nr != "AT+SPLBAND=2,0,0,384,0" {
		t.Errorf("nr command = %q", nr)
	}
}

func TestParseLteBandMasks(t *testing.T) {
	fdd, tdd, ok := parseLteBandMasks("+SPLBAND: 0,1024,0,133,0\r\nOK")
	if !ok || fdd != 133 || tdd != 1024 {
		t.Fatalf("parse = (%d, %d, %v), want (133, 1024, true)", fdd, tdd, ok)
	}
}

func TestParseNrBandMasks(t *testing.T) {
	fdd, tdd, ok := parseNrBandMasks("+SPLBAND: 0,0,384,0")
	if !ok || fdd != 0 || tdd != 384 {
		t.Fatalf("parse = (%d, %d, %v), want (0, 384, true)", fdd, tdd, ok)
	}
	if got := nrMaskToBands(tdd, nrTddBandBits); !reflect.DeepEqual(got, []uint8{77, 78}) {
		t.Errorf("decoded bands = %v, want [77 78]", got)
	}
}

func TestParseBandMasksGarbage(t *testing.T) {
	if _, _, ok := parseLteBandMasks("ERROR"); ok {
		t.Error("expected parse failure on garbage")
	}
	if _, _, ok := parseNrBandMasks(""); ok {
		t.Error("expected parse failure on empty response")
	}
}
