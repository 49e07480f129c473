// Package attendancetest provides an in-memory attendance store for tests.
package attendancetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"remedial_go/models"
	"remedial_go/services/attendance"
)

type recordKey struct {
	sessionID uint
	studentID uint
}

type noticeKey struct {
	studentID uint
	subject   string
	date      models.Date
}

// Session is a stored attendance session.
type Session struct {
	ID        uint
	Key       attendance.SessionKey
	CreatedBy string
}

// Record is a stored attendance record.
type Record struct {
	SessionID  uint
	StudentID  uint
	Status     string
	Remarks    *string
	RecordedAt time.Time
}

// Notice is a stored parent notification.
type Notice struct {
	StudentID uint
	Subject   string
	Date      models.Date
	Message   string
	Status    string
}

type state struct {
	sessions map[attendance.SessionKey]Session
	records  map[recordKey]Record
	notices  map[noticeKey]Notice
}

func newState() *state {
	return &state{
		sessions: make(map[attendance.SessionKey]Session),
		records:  make(map[recordKey]Record),
		notices:  make(map[noticeKey]Notice),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.records {
		c.records[k] = v
	}
	for k, v := range s.notices {
		c.notices[k] = v
	}
	return c
}

// MemoryStore implements attendance.Store, attendance.Reader and
// attendance.ConfigSource. Transactions run one at a time against a private
// copy that replaces the committed state on success.
type MemoryStore struct {
	txMu sync.Mutex

	mu        sync.Mutex
	committed *state
	nextID    uint

	subjects map[string]uint
	quarters map[string][]attendance.MonthRange
	weekdays map[uint][]string
	grades   map[uint]*uint

	// FailOn, when set, is consulted before every transactional operation.
	// A non-nil return fails that operation.
	FailOn func(op string) error
	// BeforeCreateSession runs inside CreateSession before the key is checked.
	BeforeCreateSession func(key attendance.SessionKey)
	// CreateReturnsZero makes CreateSession succeed without yielding an id.
	CreateReturnsZero bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		committed: newState(),
		subjects:  make(map[string]uint),
		quarters:  make(map[string][]attendance.MonthRange),
		weekdays:  make(map[uint][]string),
		grades:    make(map[uint]*uint),
	}
}

func (m *MemoryStore) id() uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return m.nextID
}

// AddSubject registers a subject and returns its id.
func (m *MemoryStore) AddSubject(name string) uint {
	id := m.id()
	m.subjects[strings.ToLower(strings.TrimSpace(name))] = id
	return id
}

func (m *MemoryStore) AddQuarter(schoolYear string, start, end int) {
	m.quarters[schoolYear] = append(m.quarters[schoolYear], attendance.MonthRange{Start: start, End: end})
}

func (m *MemoryStore) AddWeekday(subjectID uint, day string) {
	m.weekdays[subjectID] = append(m.weekdays[subjectID], day)
}

// AddStudent registers a student with an optional grade.
func (m *MemoryStore) AddStudent(studentID uint, gradeID *uint) {
	m.grades[studentID] = gradeID
}

// CommitSession inserts a session as if another transaction had committed it.
func (m *MemoryStore) CommitSession(key attendance.SessionKey, createdBy string) uint {
	id := m.id()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed.sessions[key] = Session{ID: id, Key: key, CreatedBy: createdBy}
	return id
}

// SetNoticeStatus overwrites a committed notification's status.
func (m *MemoryStore) SetNoticeStatus(studentID uint, subject string, date models.Date, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := noticeKey{studentID, subject, date}
	if n, ok := m.committed.notices[k]; ok {
		n.Status = status
		m.committed.notices[k] = n
	}
}

func (m *MemoryStore) Sessions() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0, len(m.committed.sessions))
	for _, s := range m.committed.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemoryStore) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.committed.records))
	for _, r := range m.committed.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SessionID != out[j].SessionID {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out
}

func (m *MemoryStore) Notices() []Notice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notice, 0, len(m.committed.notices))
	for _, n := range m.committed.notices {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(tx attendance.TxStore) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	work := m.committed.clone()
	m.mu.Unlock()

	if err := fn(&memTx{store: m, work: work}); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Sessions committed concurrently stay visible after this commit.
	for k, v := range m.committed.sessions {
		if _, ok := work.sessions[k]; !ok {
			work.sessions[k] = v
		}
	}
	m.committed = work
	return nil
}

func (m *MemoryStore) SubjectIDByName(_ context.Context, name string) (uint, bool, error) {
	id, ok := m.subjects[strings.ToLower(strings.TrimSpace(name))]
	return id, ok, nil
}

func (m *MemoryStore) QuarterRanges(_ context.Context, schoolYear string) ([]attendance.MonthRange, error) {
	return append([]attendance.MonthRange(nil), m.quarters[schoolYear]...), nil
}

func (m *MemoryStore) WeekdaysForSubject(_ context.Context, subjectID uint) ([]string, error) {
	return append([]string(nil), m.weekdays[subjectID]...), nil
}

func (m *MemoryStore) GradesForStudents(_ context.Context, studentIDs []uint) ([]uint, error) {
	seen := make(map[uint]bool)
	var out []uint
	for _, id := range studentIDs {
		g := m.grades[id]
		if g == nil || seen[*g] {
			continue
		}
		seen[*g] = true
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *MemoryStore) RecordsInRange(_ context.Context, subjectID uint, start, end models.Date, studentIDs []uint) ([]attendance.StoredRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filter := make(map[uint]bool, len(studentIDs))
	for _, id := range studentIDs {
		filter[id] = true
	}
	dates := make(map[uint]models.Date)
	for _, s := range m.committed.sessions {
		if s.Key.SubjectID == subjectID && s.Key.Date >= start && s.Key.Date <= end {
			dates[s.ID] = s.Key.Date
		}
	}

	var out []attendance.StoredRecord
	for _, r := range m.committed.records {
		d, ok := dates[r.SessionID]
		if !ok || (len(filter) > 0 && !filter[r.StudentID]) {
			continue
		}
		out = append(out, attendance.StoredRecord{StudentID: r.StudentID, Date: d, Status: r.Status, RecordedAt: r.RecordedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out, nil
}

type memTx struct {
	store *MemoryStore
	work  *state
}

func (t *memTx) fail(op string) error {
	if t.store.FailOn == nil {
		return nil
	}
	return t.store.FailOn(op)
}

func (t *memTx) FindSession(_ context.Context, key attendance.SessionKey) (uint, bool, error) {
	if err := t.fail("FindSession"); err != nil {
		return 0, false, err
	}
	s, ok := t.work.sessions[key]
	return s.ID, ok, nil
}

func (t *memTx) FindSessionLocked(_ context.Context, key attendance.SessionKey) (uint, bool, error) {
	if err := t.fail("FindSessionLocked"); err != nil {
		return 0, false, err
	}
	if s, ok := t.work.sessions[key]; ok {
		return s.ID, true, nil
	}
	t.store.mu.Lock()
	s, ok := t.store.committed.sessions[key]
	t.store.mu.Unlock()
	if ok {
		t.work.sessions[key] = s
	}
	return s.ID, ok, nil
}

func (t *memTx) CreateSession(_ context.Context, ns attendance.NewSession) (uint, error) {
	if err := t.fail("CreateSession"); err != nil {
		return 0, err
	}
	if t.store.BeforeCreateSession != nil {
		t.store.BeforeCreateSession(ns.Key)
	}
	if _, ok := t.work.sessions[ns.Key]; ok {
		return 0, attendance.ErrDuplicateSession
	}
	t.store.mu.Lock()
	_, taken := t.store.committed.sessions[ns.Key]
	t.store.mu.Unlock()
	if taken {
		return 0, attendance.ErrDuplicateSession
	}
	if t.store.CreateReturnsZero {
		return 0, nil
	}
	id := t.store.id()
	t.work.sessions[ns.Key] = Session{ID: id, Key: ns.Key, CreatedBy: ns.CreatedBy}
	return id, nil
}

func (t *memTx) DeleteRecord(_ context.Context, sessionID, studentID uint) error {
	if err := t.fail("DeleteRecord"); err != nil {
		return err
	}
	delete(t.work.records, recordKey{sessionID, studentID})
	return nil
}

func (t *memTx) UpsertRecord(_ context.Context, r attendance.RecordWrite) error {
	if err := t.fail("UpsertRecord"); err != nil {
		return err
	}
	t.work.records[recordKey{r.SessionID, r.StudentID}] = Record{
		SessionID:  r.SessionID,
		StudentID:  r.StudentID,
		Status:     r.Status,
		Remarks:    r.Remarks,
		RecordedAt: r.RecordedAt,
	}
	return nil
}

func (t *memTx) UpsertParentNotification(_ context.Context, n attendance.ParentNotice) error {
	if err := t.fail("UpsertParentNotification"); err != nil {
		return err
	}
	t.work.notices[noticeKey{n.StudentID, n.Subject, n.Date}] = Notice{
		StudentID: n.StudentID,
		Subject:   n.Subject,
		Date:      n.Date,
		Message:   n.Message,
		Status:    models.NotificationUnread,
	}
	return nil
}

// FailNth returns a FailOn hook that fails the nth call (1-based) of op with err.
func FailNth(op string, n int, err error) func(string) error {
	var mu sync.Mutex
	calls := 0
	return func(got string) error {
		if got != op {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == n {
			return err
		}
		return nil
	}
}
