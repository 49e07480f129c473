package attendance_test

import (
	"context"
	"testing"
	"time"

	"remedial_go/services/attendance"
	"remedial_go/services/attendance/attendancetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(y int, m time.Month, d int) attendance.Clock {
	return func() time.Time { return time.Date(y, m, d, 9, 0, 0, 0, time.Local) }
}

func TestNormalizeSubject(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"math", attendance.SubjectMath, true},
		{"  MATHEMATICS ", attendance.SubjectMath, true},
		{"English", attendance.SubjectEnglish, true},
		{"filipino", attendance.SubjectFilipino, true},
		{"science", "", false},
		{"", "", false},
		{"maths", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := attendance.NormalizeSubject(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSchoolYearForBoundary(t *testing.T) {
	for _, y := range []int{2019, 2024, 2025, 2030} {
		may31 := time.Date(y, time.May, 31, 23, 59, 0, 0, time.Local)
		june1 := time.Date(y, time.June, 1, 0, 0, 0, 0, time.Local)

		assert.Equal(t, itoa(y-1)+"-"+itoa(y), attendance.SchoolYearFor(may31))
		assert.Equal(t, itoa(y)+"-"+itoa(y+1), attendance.SchoolYearFor(june1))
	}
	assert.Equal(t, "2024-2025", attendance.SchoolYearFor(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-2026", attendance.SchoolYearFor(time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)))
}

func itoa(n int) string {
	return time.Date(n, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006")
}

func TestResolveConfigured(t *testing.T) {
	store := attendancetest.NewMemoryStore()
	math := store.AddSubject("Math")
	store.AddQuarter("2025-2026", 9, 10)
	store.AddQuarter("2025-2026", 1, 2)
	store.AddQuarter("2025-2026", 11, 3) // start after end
	store.AddQuarter("2025-2026", 0, 4)   // out of range
	store.AddQuarter("2024-2025", 6, 7)   // other year
	store.AddWeekday(math, " Wednesday ")
	store.AddWeekday(math, "Monday")
	store.AddWeekday(math, "")
	store.AddWeekday(math, "monday")

	r := attendance.NewResolver(store, nil, fixedClock(2025, time.September, 10))
	w, err := r.Resolve(context.Background(), attendance.SubjectMath)
	require.NoError(t, err)

	assert.True(t, w.Configured)
	assert.Empty(t, w.Reason)
	assert.Equal(t, math, w.SubjectID)
	assert.Equal(t, "2025-2026", w.SchoolYear)
	assert.Equal(t, []int{1, 2, 9, 10}, w.AllowedMonths)
	assert.Equal(t, []string{"Monday", "Wednesday"}, w.AllowedWeekdays)
}

func TestResolveUnconfigured(t *testing.T) {
	ctx := context.Background()
	clock := fixedClock(2025, time.September, 10)

	t.Run("subject missing", func(t *testing.T) {
		store := attendancetest.NewMemoryStore()
		w, err := attendance.NewResolver(store, nil, clock).Resolve(ctx, attendance.SubjectEnglish)
		require.NoError(t, err)
		assert.False(t, w.Configured)
		assert.Equal(t, attendance.ReasonSubjectNotFound, w.Reason)
	})

	t.Run("no quarter for school year", func(t *testing.T) {
		store := attendancetest.NewMemoryStore()
		id := store.AddSubject("english")
		store.AddWeekday(id, "Tuesday")
		store.AddQuarter("2024-2025", 9, 10)
		w, err := attendance.NewResolver(store, nil, clock).Resolve(ctx, attendance.SubjectEnglish)
		require.NoError(t, err)
		assert.False(t, w.Configured)
		assert.Equal(t, attendance.ReasonNoRemedialQuarter, w.Reason)
	})

	t.Run("no weekly schedule", func(t *testing.T) {
		store := attendancetest.NewMemoryStore()
		store.AddSubject("English")
		store.AddQuarter("2025-2026", 9, 10)
		w, err := attendance.NewResolver(store, nil, clock).Resolve(ctx, attendance.SubjectEnglish)
		require.NoError(t, err)
		assert.False(t, w.Configured)
		assert.Equal(t, attendance.ReasonNoWeeklySchedule, w.Reason)
		assert.Equal(t, []int{9, 10}, w.AllowedMonths)
	})
}

func TestResolverSchoolYearOverride(t *testing.T) {
	store := attendancetest.NewMemoryStore()
	id := store.AddSubject("Filipino")
	store.AddQuarter("2026-2027", 7, 8)
	store.AddWeekday(id, "Thursday")

	r := attendance.NewResolver(store, nil, fixedClock(2025, time.September, 10))
	r.SchoolYearOverride = "2026-2027"

	w, err := r.Resolve(context.Background(), attendance.SubjectFilipino)
	require.NoError(t, err)
	assert.Equal(t, "2026-2027", w.SchoolYear)
	assert.Equal(t, []int{7, 8}, w.AllowedMonths)
}

type mapCache struct {
	windows     map[string]attendance.Window
	gets, sets  int
	invalidated int
}

func (c *mapCache) Get(_ context.Context, subject, schoolYear string) (attendance.Window, bool, error) {
	c.gets++
	w, ok := c.windows[subject+"|"+schoolYear]
	return w, ok, nil
}

func (c *mapCache) Set(_ context.Context, w attendance.Window) error {
	c.sets++
	c.windows[w.Subject+"|"+w.SchoolYear] = w
	return nil
}

func (c *mapCache) Invalidate(context.Context) error {
	c.invalidated++
	c.windows = map[string]attendance.Window{}
	return nil
}

func TestResolverUsesCache(t *testing.T) {
	ctx := context.Background()
	store := attendancetest.NewMemoryStore()
	id := store.AddSubject("Math")
	store.AddQuarter("2025-2026", 9, 10)
	store.AddWeekday(id, "Monday")

	cache := &mapCache{windows: map[string]attendance.Window{}}
	r := attendance.NewResolver(store, cache, fixedClock(2025, time.September, 10))

	first, err := r.Resolve(ctx, attendance.SubjectMath)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	store.AddWeekday(id, "Friday")
	second, err := r.Resolve(ctx, attendance.SubjectMath)
	require.NoError(t, err)
	assert.Equal(t, first, second, "cached window should be served until invalidated")
	assert.Equal(t, 1, cache.sets)

	r.Invalidate(ctx)
	third, err := r.Resolve(ctx, attendance.SubjectMath)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidated)
	assert.Equal(t, []string{"Monday", "Friday"}, third.AllowedWeekdays)
}
