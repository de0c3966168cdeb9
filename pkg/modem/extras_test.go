package modem

import "testing"

func TestParseQosResponse(t *testing.T) {
	qos := parseQosResponse("+CGEQOSRDP: 11,5,0,0,0,0,30000,30000\r\nOK")
	if qos.QCI != 5 {
		t.Errorf("qci = %d, want 5", qos.QCI)
	}
	// GBR and MBR are zero, so AMBR wins.
	if qos.DlSpeed != 30000 || qos.UlSpeed != 30000 {
		t.Errorf("speeds = %d/%d, want 30000/30000", qos.DlSpeed, qos.UlSpeed)
	}
	if qos.RawResponse != "" {
		t.Errorf("raw response should be empty on successful parse")
	}
}

func TestParseQosResponseGbrWins(t *testing.T) {
	qos := parseQosResponse("+CGEQOSRDP: 11,1,5000,2000,9000,9000,30000,30000")
	if qos.DlSpeed != 5000 || qos.UlSpeed != 2000 {
		t.Errorf("speeds = %d/%d, want GBR 5000/2000", qos.DlSpeed, qos.UlSpeed)
	}
}

func TestParseQosResponseInvalid(t *testing.T) {
	qos := parseQosResponse("ERROR")
	if qos.QCI != 0 || qos.RawResponse != "ERROR" {
		t.Errorf("invalid input should return defaults with raw response, got %+v", qos)
	}
}

func TestParseCclkResponse(t *testing.T) {
	nitz := parseCclkResponse("+CCLK: \"24/06/01,12:30:45+32\"\r\nOK")
	if !nitz.Available {
		t.Fatal("expected available")
	}
	if nitz.Time != "24/06/01,12:30:45" {
		t.Errorf("time = %q", nitz.Time)
	}
	if nitz.Timezone != "+32" {
		t.Errorf("timezone = %q", nitz.Timezone)
	}
}

func TestParseCclkResponseUnavailable(t *testing.T) {
	nitz := parseCclkResponse("ERROR")
	if nitz.Available {
		t.Error("expected unavailable on garbage")
	}
}

func TestParseImeisvResponse(t *testing.T) {
	info := parseImeisvResponse("8614071234567890\r\nOK")
	if !info.Available || info.IMEISV != "8614071234567890" {
		t.Fatalf("parse = %+v", info)
	}
}

func TestParseImeisvResponsePrefixed(t *testing.T) {
	info := parseImeisvResponse("+CGSN: \"8614071234567890\"\r\nOK")
	if !info.Available || info.IMEISV != "8614071234567890" {
		t.Fatalf("parse = %+v", info)
	}
}

func TestParseImeisvResponseInvalid(t *testing.T) {
	info := parseImeisvResponse("ERROR")
	if info.Available {
		t.Error("expected unavailable")
	}
}

func TestParseSimSlotResponse(t *testing.T) {
	info := parseSimSlotResponse("+SPCONFIGSIMSLOT: 66051\r\nOK")
	if info.ActiveSlot != 1 {
		t.Errorf("slot = %d, want 1", info.ActiveSlot)
	}
	info = parseSimSlotResponse("66306")
	if info.ActiveSlot != 2 {
		t.Errorf("slot = %d, want 2", info.ActiveSlot)
	}
	info = parseSimSlotResponse("12345")
	if info.ActiveSlot != 0 || info.RawValue != "12345" {
		t.Errorf("unknown value: %+v", info)
	}
}

func TestRadioModeMapping(t *testing.T) {
	cases := []struct {
		ofono string
		mode  RadioMode
	}{
		{"NR 5G/LTE auto", RadioAuto},
		{"LTE/GSM/WCDMA auto", RadioAuto},
		{"NR 5G/LTE/GSM/WCDMA auto", RadioAuto},
		{"LTE only", RadioLteOnly},
		{"NR 5G only", RadioNrOnly},
	}
	for _, tc := range cases {
		got, ok := radioModeFromOfono(tc.ofono)
		if !ok || got != tc.mode {
			t.Errorf("radioModeFromOfono(%q) = (%q, %v), want %q", tc.ofono, got, ok, tc.mode)
		}
	}
	if _, ok := radioModeFromOfono("GSM only"); ok {
		t.Error("unexpected mapping for unsupported preference")
	}

	if v, err := RadioAuto.ofonoValue(); err != nil || v != "NR 5G/LTE auto" {
		t.Errorf("RadioAuto -> %q, %v", v, err)
	}
	if _, err := RadioMode("wimax").ofonoValue(); err == nil {
		t.Error("expected error for invalid mode")
	}
}
