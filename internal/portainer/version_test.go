package portainer

import "testing"

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		name   string
		a, b   string
		expect int
	}{
		{"equal", "2.19.0", "2.19.0", 0},
		{"less", "2.18.4", "2.19.0", -1},
		{"greater", "2.20.1", "2.19.0", 1},
		{"partial equal", "2.19", "2.19.0", 0},
		{"partial less", "2.19", "2.19.4", -1},
		{"major", "3.0.0", "2.19.0", 1},
		{"non-numeric suffix", "2.19.0-rc1", "2.19.0", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CompareVersions(tc.a, tc.b); got != tc.expect {
				t.Errorf("CompareVersions(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.expect)
			}
		})
	}
}

func TestVersionAtLeast(t *testing.T) {
	tests := []struct {
		name    string
		version string
		min     string
		expect  bool
	}{
		{"at threshold", "2.19.0", "2.19.0", true},
		{"above", "2.21.3", "2.19.0", true},
		{"below", "2.18.4", "2.19.0", false},
		{"unknown version treated as current", "", "2.19.0", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := VersionAtLeast(tc.version, tc.min); got != tc.expect {
				t.Errorf("VersionAtLeast(%q, %q) = %v, want %v", tc.version, tc.min, got, tc.expect)
			}
		})
	}
}
