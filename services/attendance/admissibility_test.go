package attendance_test

import (
	"testing"

	"remedial_go/services/attendance"
)

func TestIsAdmissible(t *testing.T) {
	months := attendance.NewMonthSet(9, 10)
	mondays := attendance.NewWeekdaySet("Monday")

	tests := []struct {
		name     string
		date     string
		weekdays attendance.WeekdaySet
		want     bool
	}{
		{"monday in september", "2025-09-08", mondays, true},
		{"tuesday in september", "2025-09-09", mondays, false},
		{"monday in november", "2025-11-03", mondays, false},
		{"monday in october", "2025-10-06", mondays, true},
		{"case insensitive weekday", "2025-09-08", attendance.NewWeekdaySet("  monDAY "), true},
		{"empty weekday set", "2025-09-08", attendance.NewWeekdaySet(), false},
		{"blank weekday names only", "2025-09-08", attendance.NewWeekdaySet("", "  "), false},
		{"not a calendar date", "2025-09-31", mondays, false},
		{"single digit month", "2025-9-08", mondays, false},
		{"trailing time", "2025-09-08T00:00:00Z", mondays, false},
		{"empty", "", mondays, false},
		{"slashes", "2025/09/08", mondays, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := attendance.IsAdmissible(tc.date, months, tc.weekdays); got != tc.want {
				t.Fatalf("IsAdmissible(%q) = %v, want %v", tc.date, got, tc.want)
			}
		})
	}
}

func TestWindowAdmits(t *testing.T) {
	w := attendance.Window{AllowedMonths: []int{1, 2}, AllowedWeekdays: []string{"Wednesday", "Friday"}}

	if !w.Admits("2026-01-07") {
		t.Fatalf("expected Wednesday 2026-01-07 to be admitted")
	}
	if !w.Admits("2026-02-27") {
		t.Fatalf("expected Friday 2026-02-27 to be admitted")
	}
	if w.Admits("2026-01-08") {
		t.Fatalf("Thursday should not be admitted")
	}
	if w.Admits("2026-03-04") {
		t.Fatalf("March should not be admitted")
	}
}

func TestParseDate(t *testing.T) {
	if _, err := attendance.ParseDate("2024-02-29"); err != nil {
		t.Fatalf("leap day should parse: %v", err)
	}
	if _, err := attendance.ParseDate("2025-02-29"); err != attendance.ErrInvalidDate {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestCanonicalWeekday(t *testing.T) {
	if got, ok := attendance.CanonicalWeekday("  wednesday "); !ok || got != "Wednesday" {
		t.Errorf("CanonicalWeekday(wednesday) = %q, %v", got, ok)
	}
	if _, ok := attendance.CanonicalWeekday("Wed"); ok {
		t.Error("CanonicalWeekday(Wed) should not match")
	}
}
