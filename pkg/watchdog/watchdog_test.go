package watchdog

import "testing"

func TestRecommendedAPN(t *testing.T) {
	cases := []struct {
		mcc, mnc string
		apn      string
		found    bool
	}{
		{"460", "00", "cmnet", true},
		{"460", "02", "cmnet", true},
		{"460", "07", "cmnet", true},
		{"460", "08", "cmnet", true},
		{"460", "01", "3gnet", true},
		{"460", "06", "3gnet", true},
		{"460", "09", "3gnet", true},
		{"460", "03", "ctnet", true},
		{"460", "05", "ctnet", true},
		{"460", "11", "ctnet", true},
		{"460", "15", "cbnet", true},
		{"460", "99", "", false},
		{"310", "410", "", false},
	}
	for _, tc := range cases {
		profile, ok := recommendedAPN(tc.mcc, tc.mnc)
		if ok != tc.found {
			t.Errorf("recommendedAPN(%s, %s) found = %v, want %v", tc.mcc, tc.mnc, ok, tc.found)
			continue
		}
		if ok && profile.apn != tc.apn {
			t.Errorf("recommendedAPN(%s, %s) = %q, want %q", tc.mcc, tc.mnc, profile.apn, tc.apn)
		}
		if ok && profile.protocol != "dual" {
			t.Errorf("recommendedAPN(%s, %s) protocol = %q, want dual", tc.mcc, tc.mnc, profile.protocol)
		}
	}
}
