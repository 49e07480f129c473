package config

import (
	"testing"
	"time"
)

func TestParseDurationShorthand(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"24h", 24 * time.Hour},
		{"10m", 10 * time.Minute},
		{"7d", 7 * 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := parseDurationShorthand(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}

	if _, err := parseDurationShorthand("soon"); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestValidSchoolYear(t *testing.T) {
	valid := []string{"2025-2026", " 2024-2025 "}
	invalid := []string{"", "2025", "2025-2027", "25-26", "abcd-efgh"}
	for _, s := range valid {
		if !ValidSchoolYear(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range invalid {
		if ValidSchoolYear(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestLocationFallback(t *testing.T) {
	var nilCfg *Config
	if nilCfg.Location() != time.Local {
		t.Fatalf("nil config should fall back to time.Local")
	}
	cfg := &Config{SchoolTimezone: "Not/AZone"}
	if cfg.Location() != time.Local {
		t.Fatalf("invalid zone should fall back to time.Local")
	}
	cfg.SchoolTimezone = "UTC"
	if cfg.Location().String() != "UTC" {
		t.Fatalf("expected UTC, got %s", cfg.Location())
	}
}
