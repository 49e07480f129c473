package attendance

import (
	"context"
	"fmt"
	"sort"

	"remedial_go/models"
)

// Service is the attendance API behind GET and PUT /api/attendance.
type Service struct {
	resolver   *Resolver
	reconciler *Reconciler
	reader     Reader
	notifier   AbsenceNotifier
}

// NewService wires the resolver, store and reader. notifier may be nil.
func NewService(resolver *Resolver, store Store, reader Reader, notifier AbsenceNotifier, now Clock) *Service {
	return &Service{
		resolver:   resolver,
		reconciler: NewReconciler(store, now),
		reader:     reader,
		notifier:   notifier,
	}
}

func (s *Service) Resolver() *Resolver { return s.resolver }

// Window resolves the current window for a user supplied subject label.
func (s *Service) Window(ctx context.Context, subject string) (Window, error) {
	canonical, ok := NormalizeSubject(subject)
	if !ok {
		return Window{}, ErrInvalidSubject
	}
	return s.resolver.Resolve(ctx, canonical)
}

type FetchQuery struct {
	Subject    string
	Start      string
	End        string
	StudentIDs []uint
}

// RecordView is the wire shape of a stored mark.
type RecordView struct {
	StudentID uint   `json:"studentId"`
	Date      string `json:"date"`
	Present   string `json:"present"`
}

// Fetch returns the marks recorded on admissible dates between Start and End inclusive.
// An unconfigured subject yields no records.
func (s *Service) Fetch(ctx context.Context, q FetchQuery) ([]RecordView, error) {
	w, err := s.Window(ctx, q.Subject)
	if err != nil {
		return nil, err
	}
	start, err := ParseDate(q.Start)
	if err != nil {
		return nil, fmt.Errorf("%w: start", ErrInvalidDate)
	}
	end, err := ParseDate(q.End)
	if err != nil {
		return nil, fmt.Errorf("%w: end", ErrInvalidDate)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end before start", ErrInvalidDate)
	}
	if !w.Configured {
		return []RecordView{}, nil
	}

	rows, err := s.reader.RecordsInRange(ctx, w.SubjectID, models.Date(q.Start), models.Date(q.End), q.StudentIDs)
	if err != nil {
		return nil, fmt.Errorf("load attendance records: %w", err)
	}

	months, weekdays := w.Sets()
	type key struct {
		student uint
		date    models.Date
	}
	latest := make(map[key]StoredRecord, len(rows))
	for _, r := range rows {
		if !IsAdmissible(r.Date.String(), months, weekdays) {
			continue
		}
		k := key{r.StudentID, r.Date}
		if prev, ok := latest[k]; ok && prev.RecordedAt.After(r.RecordedAt) {
			continue
		}
		latest[k] = r
	}

	out := make([]RecordView, 0, len(latest))
	for _, r := range latest {
		present := PresentYes
		if r.Status == models.StatusAbsent {
			present = PresentNo
		}
		out = append(out, RecordView{StudentID: r.StudentID, Date: r.Date.String(), Present: present})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out, nil
}

type SubmitRequest struct {
	Subject   string
	GradeID   *uint
	CreatedBy string
	Entries   []Entry
}

// SubmitResult is the PUT response. Success is false with a Reason when the
// school has not configured the subject, its schedule or the grade yet.
type SubmitResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	Result
}

// Submit validates and reconciles a batch, then delivers recorded absences.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	subject, ok := NormalizeSubject(req.Subject)
	if !ok {
		return SubmitResult{}, ErrInvalidSubject
	}
	if err := validateEntries(req.Entries); err != nil {
		return SubmitResult{}, err
	}

	w, err := s.resolver.Resolve(ctx, subject)
	if err != nil {
		return SubmitResult{}, err
	}
	if !w.Configured {
		return SubmitResult{Reason: w.Reason}, nil
	}

	gradeID, reason, err := s.resolveGrade(ctx, req)
	if err != nil {
		return SubmitResult{}, err
	}
	if reason != "" {
		return SubmitResult{Reason: reason}, nil
	}

	res, err := s.reconciler.Reconcile(ctx, Batch{
		Subject:   subject,
		SubjectID: w.SubjectID,
		GradeID:   gradeID,
		CreatedBy: req.CreatedBy,
		Entries:   req.Entries,
	}, w)
	if err != nil {
		return SubmitResult{}, err
	}

	deliverAbsences(ctx, s.notifier, res.Absences)
	return SubmitResult{Success: true, Result: res}, nil
}

func validateEntries(entries []Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: entries must not be empty", ErrInvalidBody)
	}
	for i, e := range entries {
		if e.StudentID == 0 {
			return fmt.Errorf("%w: entries[%d].studentId is required", ErrInvalidBody, i)
		}
		if e.Present != nil {
			if _, ok := StatusFor(*e.Present); !ok {
				return fmt.Errorf("%w: entries[%d].present must be Yes, No or null", ErrInvalidBody, i)
			}
		}
	}
	return nil
}

// resolveGrade picks the grade for a batch: the explicit id, else the single
// grade shared by the submitted students.
func (s *Service) resolveGrade(ctx context.Context, req SubmitRequest) (uint, string, error) {
	if req.GradeID != nil && *req.GradeID != 0 {
		return *req.GradeID, "", nil
	}

	seen := make(map[uint]bool, len(req.Entries))
	ids := make([]uint, 0, len(req.Entries))
	for _, e := range req.Entries {
		if !seen[e.StudentID] {
			seen[e.StudentID] = true
			ids = append(ids, e.StudentID)
		}
	}

	grades, err := s.reader.GradesForStudents(ctx, ids)
	if err != nil {
		return 0, "", fmt.Errorf("resolve grade: %w", err)
	}
	switch len(grades) {
	case 0:
		return 0, ReasonGradeUnresolved, nil
	case 1:
		return grades[0], "", nil
	default:
		return 0, ReasonGradeAmbiguous, nil
	}
}
