package attendance

import (
	"context"
	"time"

	"remedial_go/models"
)

// SessionKey identifies the single session allowed per date, subject and grade.
type SessionKey struct {
	Date      models.Date
	SubjectID uint
	GradeID   uint
}

type NewSession struct {
	Key       SessionKey
	CreatedBy string
}

type RecordWrite struct {
	SessionID  uint
	StudentID  uint
	Status     string
	Remarks    *string
	RecordedAt time.Time
}

type ParentNotice struct {
	StudentID uint
	Subject   string
	Date      models.Date
	Message   string
}

// TxStore is the set of writes the reconciler performs inside one transaction.
type TxStore interface {
	FindSession(ctx context.Context, key SessionKey) (uint, bool, error)
	// FindSessionLocked re-reads the key with a locking read so rows
	// committed by concurrent transactions are visible.
	FindSessionLocked(ctx context.Context, key SessionKey) (uint, bool, error)
	// CreateSession returns ErrDuplicateSession when the key already exists.
	// The transaction stays usable after that error.
	CreateSession(ctx context.Context, s NewSession) (uint, error)
	DeleteRecord(ctx context.Context, sessionID, studentID uint) error
	UpsertRecord(ctx context.Context, r RecordWrite) error
	UpsertParentNotification(ctx context.Context, n ParentNotice) error
}

// Store runs fn in a transaction, committing when fn returns nil and rolling
// back otherwise.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx TxStore) error) error
}

// StoredRecord is an attendance mark joined with its session date.
type StoredRecord struct {
	StudentID  uint
	Date       models.Date
	Status     string
	RecordedAt time.Time
}

// Reader serves the read side of the attendance API.
type Reader interface {
	GradesForStudents(ctx context.Context, studentIDs []uint) ([]uint, error)
	RecordsInRange(ctx context.Context, subjectID uint, start, end models.Date, studentIDs []uint) ([]StoredRecord, error)
}
