package attendance

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"remedial_go/models"
)

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// weekdayNames is indexed by time.Weekday, Sunday first.
var weekdayNames = [...]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

func weekdayIndex(name string) int {
	for i, n := range weekdayNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return i
		}
	}
	return len(weekdayNames)
}

// CanonicalWeekday maps "monday", " MONDAY " and the like onto "Monday".
func CanonicalWeekday(name string) (string, bool) {
	i := weekdayIndex(name)
	if i == len(weekdayNames) {
		return "", false
	}
	return weekdayNames[i], true
}

// MonthSet holds calendar months 1..12.
type MonthSet map[int]struct{}

func NewMonthSet(months ...int) MonthSet {
	s := make(MonthSet, len(months))
	for _, m := range months {
		s[m] = struct{}{}
	}
	return s
}

func (s MonthSet) Has(m int) bool {
	_, ok := s[m]
	return ok
}

func (s MonthSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	sort.Ints(out)
	return out
}

// WeekdaySet holds weekday names compared case-insensitively.
type WeekdaySet map[string]struct{}

func NewWeekdaySet(names ...string) WeekdaySet {
	s := make(WeekdaySet, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			s[strings.ToLower(n)] = struct{}{}
		}
	}
	return s
}

func (s WeekdaySet) Has(name string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// ParseDate validates a strict YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	if !isoDate.MatchString(s) {
		return time.Time{}, ErrInvalidDate
	}
	t, err := time.ParseInLocation(models.DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// IsAdmissible reports whether date is a remedial session date: its month is
// in months and its weekday is in weekdays. An empty weekday set admits nothing.
func IsAdmissible(date string, months MonthSet, weekdays WeekdaySet) bool {
	t, err := ParseDate(date)
	if err != nil {
		return false
	}
	if !months.Has(int(t.Month())) {
		return false
	}
	if len(weekdays) == 0 {
		return false
	}
	return weekdays.Has(weekdayNames[t.Weekday()])
}
