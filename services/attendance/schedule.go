package attendance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Canonical subject labels
const (
	SubjectMath     = "Math"
	SubjectEnglish  = "English"
	SubjectFilipino = "Filipino"
)

var subjectAliases = map[string]string{
	"math":        SubjectMath,
	"mathematics": SubjectMath,
	"english":     SubjectEnglish,
	"filipino":    SubjectFilipino,
}

// NormalizeSubject maps a user supplied label onto one of the canonical subjects.
func NormalizeSubject(label string) (string, bool) {
	s, ok := subjectAliases[strings.ToLower(strings.TrimSpace(label))]
	return s, ok
}

// Subjects returns the canonical subject labels in display order.
func Subjects() []string {
	return []string{SubjectMath, SubjectEnglish, SubjectFilipino}
}

// SchoolYearFor returns the school year containing t. School years start in June.
func SchoolYearFor(t time.Time) string {
	y := t.Year()
	if t.Month() >= time.June {
		return fmt.Sprintf("%d-%d", y, y+1)
	}
	return fmt.Sprintf("%d-%d", y-1, y)
}

// Clock supplies the current time to anything that needs "today".
type Clock func() time.Time

// MonthRange is one configured remedial quarter, inclusive on both ends.
type MonthRange struct {
	Start int
	End   int
}

func (r MonthRange) valid() bool {
	return r.Start >= 1 && r.End <= 12 && r.End >= 1 && r.Start <= 12 && r.Start <= r.End
}

// ConfigSource reads the remedial configuration tables.
type ConfigSource interface {
	SubjectIDByName(ctx context.Context, name string) (uint, bool, error)
	QuarterRanges(ctx context.Context, schoolYear string) ([]MonthRange, error)
	WeekdaysForSubject(ctx context.Context, subjectID uint) ([]string, error)
}

// Window is the set of dates on which a subject's remedial class may meet
// during one school year.
type Window struct {
	Subject         string   `json:"subject"`
	SubjectID       uint     `json:"subjectId"`
	SchoolYear      string   `json:"schoolYear"`
	AllowedMonths   []int    `json:"allowedMonths"`
	AllowedWeekdays []string `json:"allowedWeekdays"`
	Configured      bool     `json:"configured"`
	Reason          string   `json:"reason,omitempty"`
}

// Sets returns the lookup sets used by IsAdmissible.
func (w Window) Sets() (MonthSet, WeekdaySet) {
	return NewMonthSet(w.AllowedMonths...), NewWeekdaySet(w.AllowedWeekdays...)
}

// Admits reports whether date is a remedial session date inside this window.
func (w Window) Admits(date string) bool {
	months, weekdays := w.Sets()
	return IsAdmissible(date, months, weekdays)
}

// Resolver computes Windows from stored configuration.
type Resolver struct {
	src   ConfigSource
	cache WindowCache
	now   Clock

	// SchoolYearOverride pins the current school year instead of deriving it from the clock.
	SchoolYearOverride string
}

// NewResolver builds a Resolver. cache may be nil; now defaults to time.Now.
func NewResolver(src ConfigSource, cache WindowCache, now Clock) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{src: src, cache: cache, now: now}
}

// CurrentSchoolYear returns the override when set, else the school year of today.
func (r *Resolver) CurrentSchoolYear() string {
	if r.SchoolYearOverride != "" {
		return r.SchoolYearOverride
	}
	return SchoolYearFor(r.now())
}

// Resolve returns the current school year's window for a canonical subject label.
// Missing configuration is reported through Window.Reason; only storage
// failures are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, subject string) (Window, error) {
	schoolYear := r.CurrentSchoolYear()

	if r.cache != nil {
		w, ok, err := r.cache.Get(ctx, subject, schoolYear)
		if err != nil {
			logrus.WithError(err).WithField("subject", subject).Warn("window cache read failed")
		} else if ok {
			return w, nil
		}
	}

	w, err := r.compute(ctx, subject, schoolYear)
	if err != nil {
		return Window{}, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, w); err != nil {
			logrus.WithError(err).WithField("subject", subject).Warn("window cache write failed")
		}
	}
	return w, nil
}

// Invalidate drops cached windows after configuration changes.
func (r *Resolver) Invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx); err != nil {
		logrus.WithError(err).Warn("window cache invalidation failed")
	}
}

func (r *Resolver) compute(ctx context.Context, subject, schoolYear string) (Window, error) {
	w := Window{Subject: subject, SchoolYear: schoolYear, AllowedMonths: []int{}, AllowedWeekdays: []string{}}

	id, found, err := r.src.SubjectIDByName(ctx, subject)
	if err != nil {
		return Window{}, fmt.Errorf("lookup subject %q: %w", subject, err)
	}
	if !found {
		w.Reason = ReasonSubjectNotFound
		return w, nil
	}
	w.SubjectID = id

	ranges, err := r.src.QuarterRanges(ctx, schoolYear)
	if err != nil {
		return Window{}, fmt.Errorf("load remedial quarters for %s: %w", schoolYear, err)
	}
	months := make(MonthSet)
	for _, rg := range ranges {
		if !rg.valid() {
			logrus.WithFields(logrus.Fields{
				"school_year": schoolYear,
				"start_month": rg.Start,
				"end_month":   rg.End,
			}).Warn("ignoring invalid remedial quarter")
			continue
		}
		for m := rg.Start; m <= rg.End; m++ {
			months[m] = struct{}{}
		}
	}
	w.AllowedMonths = months.Sorted()

	days, err := r.src.WeekdaysForSubject(ctx, id)
	if err != nil {
		return Window{}, fmt.Errorf("load weekly schedule for subject %d: %w", id, err)
	}
	seen := make(map[string]bool)
	for _, d := range days {
		d = strings.TrimSpace(d)
		if d == "" || seen[strings.ToLower(d)] {
			continue
		}
		seen[strings.ToLower(d)] = true
		w.AllowedWeekdays = append(w.AllowedWeekdays, d)
	}
	sort.SliceStable(w.AllowedWeekdays, func(i, j int) bool {
		return weekdayIndex(w.AllowedWeekdays[i]) < weekdayIndex(w.AllowedWeekdays[j])
	})

	switch {
	case len(w.AllowedMonths) == 0:
		w.Reason = ReasonNoRemedialQuarter
	case len(w.AllowedWeekdays) == 0:
		w.Reason = ReasonNoWeeklySchedule
	default:
		w.Configured = true
	}

	logrus.WithFields(logrus.Fields{
		"subject":     subject,
		"school_year": schoolYear,
		"months":      w.AllowedMonths,
		"weekdays":    w.AllowedWeekdays,
		"reason":      w.Reason,
	}).Debug("resolved remedial window")
	return w, nil
}
