package usbgadget

import "testing"

func TestModeConfigTable(t *testing.T) {
	cases := []struct {
		mode     Mode
		pid      string
		config   string
		protocol string
		function string
		share    bool
	}{
		{ModeNCM, "0x4040", "ncm", "NCM", "ncm.gs0", false},
		{ModeECM, "0x4039", "ecm", "", "ecm.gs0", false},
		{ModeRNDIS, "0x4038", "rndis", "RNDIS", "rndis.gs4", true},
	}
	for _, tc := range cases {
		cfg, ok := modeConfigFor(tc.mode)
		if !ok {
			t.Fatalf("mode %d not found", tc.mode)
		}
		if cfg.vid != "0x1782" {
			t.Errorf("mode %d vid = %s", tc.mode, cfg.vid)
		}
		if cfg.pid != tc.pid || cfg.configuration != tc.config ||
			cfg.pamu3Protocol != tc.protocol || cfg.function != tc.function ||
			cfg.usbShareEnable != tc.share {
			t.Errorf("mode %d config = %+v", tc.mode, cfg)
		}
		if cfg.bcdDevice != "0x0404" {
			t.Errorf("mode %d bcdDevice = %s", tc.mode, cfg.bcdDevice)
		}
	}

	if _, ok := modeConfigFor(Mode(9)); ok {
		t.Error("mode 9 should not exist")
	}
}

func TestModeFromVidPid(t *testing.T) {
	cases := []struct {
		vid, pid string
		mode     Mode
		ok       bool
	}{
		{"0x1782", "0x4040", ModeNCM, true},
		{"0x1782", "0x4039", ModeECM, true},
		{"0x1782", "0x4038", ModeRNDIS, true},
		{"0x1782", "0x4107", ModeNCM, true},
		{"0x1782", "0x4105", ModeNCM, true},
		{"0x1782", "0x4103", ModeNCM, true},
		{"0x1782", "0x4101", ModeNCM, true},
		{"0x1782", "0x4106", ModeECM, true},
		{"0x1782", "0x4104", ModeECM, true},
		{"0x1782", "0x4102", ModeECM, true},
		{"0x1782", "0x4100", ModeECM, true},
		{"0x3426", "0x2999", ModeNCM, true},
		{"0x1782", "0xffff", 0, false},
		{"0xdead", "0x4040", 0, false},
	}
	for _, tc := range cases {
		mode, ok := modeFromVidPid(tc.vid, tc.pid)
		if ok != tc.ok || mode != tc.mode {
			t.Errorf("modeFromVidPid(%s, %s) = (%d, %v), want (%d, %v)",
				tc.vid, tc.pid, mode, ok, tc.mode, tc.ok)
		}
	}
}

func TestHostAddrFromDevAddr(t *testing.T) {
	got := hostAddrFromDevAddr("CC:E8:AC:C0:00:00")
	if got != "cc:e8:ac:c0:00:01" {
		t.Errorf("host addr = %q, want cc:e8:ac:c0:00:01", got)
	}
}

func TestProductName(t *testing.T) {
	got := productName("UDX0011223344551", "UDX710")
	if got != "unisoc-5g-modem-UDX710004551" {
		t.Errorf("product = %q, want unisoc-5g-modem-UDX710004551", got)
	}

	// Short serial gets zero-padded.
	if got := productName("AB", "UDX7"); got != "unisoc-5g-modem-UDX700AB00" {
		t.Errorf("short-serial product = %q", got)
	}
}

func TestModeName(t *testing.T) {
	if ModeNCM.Name() != "NCM" || ModeECM.Name() != "ECM" || ModeRNDIS.Name() != "RNDIS" {
		t.Error("mode names wrong")
	}
	if Mode(0).Name() != "unknown" {
		t.Error("zero mode should be unknown")
	}
}

func TestFunctionLinkOrder(t *testing.T) {
	// f1 primary, then the fixed serial/debug fan-out through f9.
	want := []string{"", "gser.gs2", "gser.gs0", "vser.gs0", "gser.gs3",
		"ffs.adb", "gser.gs4", "gser.gs5", "gser.gs6"}
	if len(functionLinks) != len(want) {
		t.Fatalf("link count = %d, want %d", len(functionLinks), len(want))
	}
	for i, fn := range want {
		if functionLinks[i] != fn {
			t.Errorf("functionLinks[%d] = %q, want %q", i, functionLinks[i], fn)
		}
	}
}
