package attendance_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"remedial_go/services/attendance"
	"remedial_go/services/attendance/attendancetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	absences []attendance.Absence
	err      error
}

func (n *recordingNotifier) NotifyAbsences(_ context.Context, absences []attendance.Absence) error {
	n.absences = append(n.absences, absences...)
	return n.err
}

func uintPtr(v uint) *uint { return &v }

// newService seeds Math with Mondays in September and October 2025 and
// students 101-103 in grade 3, 201 in grade 2 and 301 without a grade.
func newService(t *testing.T) (*attendance.Service, *attendancetest.MemoryStore, *recordingNotifier) {
	t.Helper()
	store := attendancetest.NewMemoryStore()
	math := store.AddSubject("Math")
	store.AddSubject("English")
	store.AddQuarter("2025-2026", 9, 10)
	store.AddWeekday(math, "Monday")
	for _, id := range []uint{101, 102, 103} {
		store.AddStudent(id, uintPtr(3))
	}
	store.AddStudent(201, uintPtr(2))
	store.AddStudent(301, nil)

	clock := fixedClock(2025, time.September, 10)
	notifier := &recordingNotifier{}
	svc := attendance.NewService(attendance.NewResolver(store, nil, clock), store, store, notifier, clock)
	return svc, store, notifier
}

func TestSubmitInfersGradeFromStudents(t *testing.T) {
	svc, store, notifier := newService(t)

	res, err := svc.Submit(context.Background(), attendance.SubmitRequest{
		Subject:   "mathematics",
		CreatedBy: "2",
		Entries: []attendance.Entry{
			{StudentID: 101, Date: "2025-09-08", Present: yes()},
			{StudentID: 102, Date: "2025-09-08", Present: no()},
			{StudentID: 103, Date: "2025-09-09", Present: no()},
		},
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, uint(3), res.GradeID)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 1, res.SkippedNotAllowed)
	assert.Equal(t, 1, res.SessionsCreated)

	require.Len(t, store.Sessions(), 1)
	assert.Equal(t, uint(3), store.Sessions()[0].Key.GradeID)

	require.Len(t, notifier.absences, 1)
	assert.Equal(t, uint(102), notifier.absences[0].StudentID)
	assert.Equal(t, attendance.SubjectMath, notifier.absences[0].Subject)
}

func TestSubmitExplicitGradeWins(t *testing.T) {
	svc, store, _ := newService(t)

	res, err := svc.Submit(context.Background(), attendance.SubmitRequest{
		Subject: "Math",
		GradeID: uintPtr(9),
		Entries: []attendance.Entry{
			{StudentID: 101, Date: "2025-09-08", Present: yes()},
			{StudentID: 201, Date: "2025-09-08", Present: yes()},
		},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, uint(9), res.GradeID)
	assert.Equal(t, uint(9), store.Sessions()[0].Key.GradeID)
}

func TestSubmitConfigurationAbsent(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		entries []attendance.Entry
		reason  string
	}{
		{
			name:    "no weekly schedule",
			subject: "english",
			entries: []attendance.Entry{{StudentID: 101, Date: "2025-09-08", Present: yes()}},
			reason:  attendance.ReasonNoWeeklySchedule,
		},
		{
			name:    "subject row missing",
			subject: "Filipino",
			entries: []attendance.Entry{{StudentID: 101, Date: "2025-09-08", Present: yes()}},
			reason:  attendance.ReasonSubjectNotFound,
		},
		{
			name:    "grade unresolved",
			subject: "math",
			entries: []attendance.Entry{{StudentID: 301, Date: "2025-09-08", Present: yes()}},
			reason:  attendance.ReasonGradeUnresolved,
		},
		{
			name:    "grade ambiguous",
			subject: "math",
			entries: []attendance.Entry{
				{StudentID: 101, Date: "2025-09-08", Present: yes()},
				{StudentID: 201, Date: "2025-09-08", Present: yes()},
			},
			reason: attendance.ReasonGradeAmbiguous,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, _ := newService(t)
			res, err := svc.Submit(context.Background(), attendance.SubmitRequest{Subject: tc.subject, Entries: tc.entries})
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tc.reason, res.Reason)
			assert.Empty(t, store.Sessions())
		})
	}
}

func TestSubmitValidation(t *testing.T) {
	svc, store, _ := newService(t)
	bad := "Maybe"

	_, err := svc.Submit(context.Background(), attendance.SubmitRequest{Subject: "science", Entries: []attendance.Entry{{StudentID: 1, Date: "2025-09-08"}}})
	assert.ErrorIs(t, err, attendance.ErrInvalidSubject)

	_, err = svc.Submit(context.Background(), attendance.SubmitRequest{Subject: "math"})
	assert.ErrorIs(t, err, attendance.ErrInvalidBody)

	_, err = svc.Submit(context.Background(), attendance.SubmitRequest{Subject: "math", Entries: []attendance.Entry{{Date: "2025-09-08"}}})
	assert.ErrorIs(t, err, attendance.ErrInvalidBody)

	_, err = svc.Submit(context.Background(), attendance.SubmitRequest{Subject: "math", Entries: []attendance.Entry{{StudentID: 101, Date: "2025-09-08", Present: &bad}}})
	assert.ErrorIs(t, err, attendance.ErrInvalidBody)

	assert.Empty(t, store.Sessions(), "validation failures must not open a transaction")
}

func TestSubmitStorageFailure(t *testing.T) {
	svc, store, notifier := newService(t)
	store.FailOn = attendancetest.FailNth("UpsertParentNotification", 1, errors.New("deadlock"))

	_, err := svc.Submit(context.Background(), attendance.SubmitRequest{
		Subject: "math",
		Entries: []attendance.Entry{
			{StudentID: 101, Date: "2025-09-08", Present: yes()},
			{StudentID: 102, Date: "2025-09-08", Present: no()},
		},
	})
	require.Error(t, err)
	assert.Empty(t, store.Records())
	assert.Empty(t, notifier.absences, "nothing is delivered when the batch rolls back")
}

func TestSubmitDeliveryFailureIsNotFatal(t *testing.T) {
	svc, store, notifier := newService(t)
	notifier.err = errors.New("line push rejected")

	res, err := svc.Submit(context.Background(), attendance.SubmitRequest{
		Subject: "math",
		Entries: []attendance.Entry{{StudentID: 101, Date: "2025-09-08", Present: no()}},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, store.Notices(), 1)
}

func TestFetch(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, attendance.SubmitRequest{
		Subject: "math",
		Entries: []attendance.Entry{
			{StudentID: 102, Date: "2025-09-15", Present: no()},
			{StudentID: 101, Date: "2025-09-08", Present: yes()},
			{StudentID: 102, Date: "2025-09-08", Present: no()},
			{StudentID: 103, Date: "2025-10-06", Present: yes()},
		},
	})
	require.NoError(t, err)

	records, err := svc.Fetch(ctx, attendance.FetchQuery{Subject: "Math", Start: "2025-09-01", End: "2025-09-30"})
	require.NoError(t, err)
	assert.Equal(t, []attendance.RecordView{
		{StudentID: 101, Date: "2025-09-08", Present: "Yes"},
		{StudentID: 102, Date: "2025-09-08", Present: "No"},
		{StudentID: 102, Date: "2025-09-15", Present: "No"},
	}, records)

	records, err = svc.Fetch(ctx, attendance.FetchQuery{Subject: "math", Start: "2025-09-01", End: "2025-10-31", StudentIDs: []uint{103}})
	require.NoError(t, err)
	assert.Equal(t, []attendance.RecordView{{StudentID: 103, Date: "2025-10-06", Present: "Yes"}}, records)

	records, err = svc.Fetch(ctx, attendance.FetchQuery{Subject: "english", Start: "2025-09-01", End: "2025-09-30"})
	require.NoError(t, err)
	assert.Empty(t, records, "unconfigured subject returns no records")
	assert.NotNil(t, records)
}

func TestFetchValidation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Fetch(ctx, attendance.FetchQuery{Subject: "art", Start: "2025-09-01", End: "2025-09-30"})
	assert.ErrorIs(t, err, attendance.ErrInvalidSubject)

	_, err = svc.Fetch(ctx, attendance.FetchQuery{Subject: "math", Start: "2025-9-1", End: "2025-09-30"})
	assert.ErrorIs(t, err, attendance.ErrInvalidDate)

	_, err = svc.Fetch(ctx, attendance.FetchQuery{Subject: "math", Start: "2025-09-30", End: "2025-09-01"})
	assert.ErrorIs(t, err, attendance.ErrInvalidDate)
}
