package persistence

import "testing"

func TestParseVersion(t *testing.T) {
	cases := []struct {
		filename string
		want     string
		wantErr  bool
	}{
		{"000001_event_log.up.sql", "000001", false},
		{"000002_projections.down.sql", "000002", false},
		{"42_short.up.sql", "42", false},
		{"no_numeric_prefix.up.sql", "", true},
		{"missingunderscore.up.sql", "", true},
		{"_leading.up.sql", "", true},
	}

	for _, tc := range cases {
		got, err := parseVersion(tc.filename)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseVersion(%q) = %q, want error", tc.filename, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseVersion(%q): %v", tc.filename, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseVersion(%q) = %q, want %q", tc.filename, got, tc.want)
		}
	}
}
