package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"remedial_go/models"

	"github.com/sirupsen/logrus"
)

// Present values accepted on an Entry. A nil Present clears the mark.
const (
	PresentYes = "Yes"
	PresentNo  = "No"
)

// Entry is one student's mark for one date.
type Entry struct {
	StudentID uint
	Date      string
	Present   *string
	Remarks   *string
}

// Batch is a submission for one subject and grade.
type Batch struct {
	Subject   string
	SubjectID uint
	GradeID   uint
	CreatedBy string
	Entries   []Entry
}

type OutcomeKind int

const (
	Applied OutcomeKind = iota + 1
	SkippedNotAllowed
	SkippedNoSession
)

func (k OutcomeKind) String() string {
	switch k {
	case Applied:
		return "applied"
	case SkippedNotAllowed:
		return "skipped_not_allowed"
	case SkippedNoSession:
		return "skipped_no_session"
	default:
		return "unknown"
	}
}

// Outcome records what happened to a single entry.
type Outcome struct {
	Kind      OutcomeKind
	Entry     Entry
	SessionID uint
	// Status is Present or Absent for applied writes, empty for a cleared mark.
	Status string
}

// Absence is an applied Absent mark, handed to parent delivery after commit.
type Absence struct {
	StudentID uint        `json:"studentId"`
	Subject   string      `json:"subject"`
	Date      models.Date `json:"date"`
	SessionID uint        `json:"sessionId"`
	Message   string      `json:"message"`
}

// Result summarizes a reconciled batch.
type Result struct {
	Updated           int       `json:"updated"`
	SkippedNotAllowed int       `json:"skippedNotAllowed"`
	SkippedNoSession  int       `json:"skippedNoSession"`
	SessionsCreated   int       `json:"sessionsCreated"`
	SessionsExisting  int       `json:"sessionsExisting"`
	GradeID           uint      `json:"gradeId"`
	Absences          []Absence `json:"-"`
}

// StatusFor maps a Present value onto a record status. ok is false for
// anything other than Yes or No.
func StatusFor(present string) (string, bool) {
	switch {
	case strings.EqualFold(strings.TrimSpace(present), PresentYes):
		return models.StatusPresent, true
	case strings.EqualFold(strings.TrimSpace(present), PresentNo):
		return models.StatusAbsent, true
	default:
		return "", false
	}
}

// dateSession caches the session resolved for one date of a batch.
// ok=false marks a date for which no session could be obtained.
type dateSession struct {
	id      uint
	ok      bool
	created bool
}

// Reconciler applies attendance batches against a Store.
type Reconciler struct {
	store Store
	now   Clock
}

func NewReconciler(store Store, now Clock) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{store: store, now: now}
}

// Reconcile applies batch inside one transaction. Entries on dates outside w
// are skipped. Any store error rolls the whole batch back.
func (r *Reconciler) Reconcile(ctx context.Context, batch Batch, w Window) (Result, error) {
	started := time.Now()
	months, weekdays := w.Sets()

	var (
		outcomes []Outcome
		sessions map[models.Date]*dateSession
	)
	err := r.store.WithinTx(ctx, func(tx TxStore) error {
		outcomes = make([]Outcome, 0, len(batch.Entries))
		sessions = make(map[models.Date]*dateSession)
		recordedAt := r.now()

		for i, e := range batch.Entries {
			o, err := r.apply(ctx, tx, batch, e, months, weekdays, sessions, recordedAt)
			if err != nil {
				return fmt.Errorf("entry %d (student %d, %s): %w", i, e.StudentID, e.Date, err)
			}
			outcomes = append(outcomes, o)
		}
		return nil
	})
	if err != nil {
		observeBatch(batch.Subject, "error", time.Since(started))
		logrus.WithError(err).WithFields(logrus.Fields{
			"subject":  batch.Subject,
			"grade_id": batch.GradeID,
			"entries":  len(batch.Entries),
		}).Error("attendance batch rolled back")
		return Result{}, err
	}

	res := tally(batch, outcomes, sessions)
	observeBatch(batch.Subject, "ok", time.Since(started))
	observeResult(batch.Subject, res)

	logrus.WithFields(logrus.Fields{
		"subject":             batch.Subject,
		"grade_id":            batch.GradeID,
		"updated":             res.Updated,
		"skipped_not_allowed": res.SkippedNotAllowed,
		"skipped_no_session":  res.SkippedNoSession,
		"sessions_created":    res.SessionsCreated,
		"sessions_existing":   res.SessionsExisting,
	}).Info("attendance batch applied")
	return res, nil
}

func (r *Reconciler) apply(
	ctx context.Context,
	tx TxStore,
	batch Batch,
	e Entry,
	months MonthSet,
	weekdays WeekdaySet,
	sessions map[models.Date]*dateSession,
	recordedAt time.Time,
) (Outcome, error) {
	if !IsAdmissible(e.Date, months, weekdays) {
		return Outcome{Kind: SkippedNotAllowed, Entry: e}, nil
	}

	key := SessionKey{Date: models.Date(e.Date), SubjectID: batch.SubjectID, GradeID: batch.GradeID}
	ds, err := r.sessionFor(ctx, tx, key, batch.CreatedBy, sessions)
	if err != nil {
		return Outcome{}, err
	}
	if !ds.ok {
		return Outcome{Kind: SkippedNoSession, Entry: e}, nil
	}

	if e.Present == nil {
		if err := tx.DeleteRecord(ctx, ds.id, e.StudentID); err != nil {
			return Outcome{}, fmt.Errorf("delete record: %w", err)
		}
		return Outcome{Kind: Applied, Entry: e, SessionID: ds.id}, nil
	}

	status, ok := StatusFor(*e.Present)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: present must be Yes, No or null", ErrInvalidBody)
	}
	err = tx.UpsertRecord(ctx, RecordWrite{
		SessionID:  ds.id,
		StudentID:  e.StudentID,
		Status:     status,
		Remarks:    e.Remarks,
		RecordedAt: recordedAt,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("upsert record: %w", err)
	}

	if status == models.StatusAbsent {
		if err := tx.UpsertParentNotification(ctx, absenceNotice(batch.Subject, e.StudentID, key.Date)); err != nil {
			return Outcome{}, fmt.Errorf("upsert parent notification: %w", err)
		}
	}
	return Outcome{Kind: Applied, Entry: e, SessionID: ds.id, Status: status}, nil
}

// sessionFor finds or creates the session for key, at most once per date per batch.
func (r *Reconciler) sessionFor(
	ctx context.Context,
	tx TxStore,
	key SessionKey,
	createdBy string,
	sessions map[models.Date]*dateSession,
) (*dateSession, error) {
	if ds, ok := sessions[key.Date]; ok {
		return ds, nil
	}

	ds := &dateSession{}
	id, found, err := tx.FindSession(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}

	if found {
		ds.id, ds.ok = id, id != 0
	} else {
		id, err = tx.CreateSession(ctx, NewSession{Key: key, CreatedBy: createdBy})
		switch {
		case errors.Is(err, ErrDuplicateSession):
			sessionRacesTotal.Inc()
			logrus.WithFields(logrus.Fields{
				"date":       key.Date,
				"subject_id": key.SubjectID,
				"grade_id":   key.GradeID,
			}).Warn("session created concurrently, re-fetching")
			id, found, err = tx.FindSessionLocked(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("re-fetch session: %w", err)
			}
			ds.id, ds.ok = id, found && id != 0
		case err != nil:
			return nil, fmt.Errorf("create session: %w", err)
		default:
			ds.id, ds.ok, ds.created = id, id != 0, id != 0
		}
	}

	if !ds.ok {
		logrus.WithField("date", key.Date).Warn("no session id obtained, skipping date")
	}
	sessions[key.Date] = ds
	return ds, nil
}

// tally folds per-entry outcomes and per-date sessions into a Result.
func tally(batch Batch, outcomes []Outcome, sessions map[models.Date]*dateSession) Result {
	res := Result{GradeID: batch.GradeID}
	for _, o := range outcomes {
		switch o.Kind {
		case Applied:
			res.Updated++
			if o.Status == models.StatusAbsent {
				date := models.Date(o.Entry.Date)
				res.Absences = append(res.Absences, Absence{
					StudentID: o.Entry.StudentID,
					Subject:   batch.Subject,
					Date:      date,
					SessionID: o.SessionID,
					Message:   AbsenceMessage(batch.Subject, date),
				})
			}
		case SkippedNotAllowed:
			res.SkippedNotAllowed++
		case SkippedNoSession:
			res.SkippedNoSession++
		}
	}
	for _, ds := range sessions {
		switch {
		case ds.created:
			res.SessionsCreated++
		case ds.ok:
			res.SessionsExisting++
		}
	}
	return res
}
