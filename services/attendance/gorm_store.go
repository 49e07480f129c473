package attendance

import (
	"context"
	"errors"
	"strings"

	"remedial_go/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store, Reader and ConfigSource on top of GORM.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) WithinTx(ctx context.Context, fn func(tx TxStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

func (s *GormStore) SubjectIDByName(ctx context.Context, name string) (uint, bool, error) {
	var ids []uint
	err := s.db.WithContext(ctx).
		Model(&models.Subject{}).
		Where("LOWER(TRIM(name)) = ?", strings.ToLower(strings.TrimSpace(name))).
		Order("id").
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, false, err
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

func (s *GormStore) QuarterRanges(ctx context.Context, schoolYear string) ([]MonthRange, error) {
	var quarters []models.RemedialQuarter
	if err := s.db.WithContext(ctx).Where("school_year = ?", schoolYear).Find(&quarters).Error; err != nil {
		return nil, err
	}
	out := make([]MonthRange, 0, len(quarters))
	for _, q := range quarters {
		out = append(out, MonthRange{Start: q.StartMonth, End: q.EndMonth})
	}
	return out, nil
}

func (s *GormStore) WeekdaysForSubject(ctx context.Context, subjectID uint) ([]string, error) {
	var days []string
	err := s.db.WithContext(ctx).
		Model(&models.WeeklySubjectSchedule{}).
		Where("subject_id = ?", subjectID).
		Order("id").
		Pluck("day_of_week", &days).Error
	return days, err
}

func (s *GormStore) GradesForStudents(ctx context.Context, studentIDs []uint) ([]uint, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	var grades []uint
	err := s.db.WithContext(ctx).
		Model(&models.Student{}).
		Where("id IN ? AND grade_id IS NOT NULL", studentIDs).
		Distinct().
		Order("grade_id").
		Pluck("grade_id", &grades).Error
	return grades, err
}

func (s *GormStore) RecordsInRange(ctx context.Context, subjectID uint, start, end models.Date, studentIDs []uint) ([]StoredRecord, error) {
	q := s.db.WithContext(ctx).
		Table("attendance_records AS r").
		Select("r.student_id, s.session_date AS date, r.status, r.recorded_at").
		Joins("JOIN attendance_sessions s ON s.id = r.session_id").
		Where("s.subject_id = ? AND s.session_date BETWEEN ? AND ?", subjectID, start, end)
	if len(studentIDs) > 0 {
		q = q.Where("r.student_id IN ?", studentIDs)
	}

	var rows []StoredRecord
	err := q.Order("s.session_date, r.student_id, r.recorded_at").Scan(&rows).Error
	return rows, err
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) sessionQuery(ctx context.Context, key SessionKey) *gorm.DB {
	return t.db.WithContext(ctx).
		Model(&models.AttendanceSession{}).
		Where("session_date = ? AND subject_id = ? AND grade_id = ?", key.Date, key.SubjectID, key.GradeID)
}

func (t *gormTx) FindSession(ctx context.Context, key SessionKey) (uint, bool, error) {
	var ids []uint
	if err := t.sessionQuery(ctx, key).Limit(1).Pluck("id", &ids).Error; err != nil {
		return 0, false, err
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

func (t *gormTx) FindSessionLocked(ctx context.Context, key SessionKey) (uint, bool, error) {
	var ids []uint
	err := t.sessionQuery(ctx, key).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, false, err
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

const sessionInsertSavepoint = "attendance_session_insert"

func (t *gormTx) CreateSession(ctx context.Context, s NewSession) (uint, error) {
	db := t.db.WithContext(ctx)
	if err := db.SavePoint(sessionInsertSavepoint).Error; err != nil {
		return 0, err
	}

	row := models.AttendanceSession{
		SessionDate:     s.Key.Date,
		SubjectID:       s.Key.SubjectID,
		GradeID:         s.Key.GradeID,
		CreatedByUserID: s.CreatedBy,
	}
	if err := db.Create(&row).Error; err != nil {
		if !isDuplicateKey(err) {
			return 0, err
		}
		if rbErr := db.RollbackTo(sessionInsertSavepoint).Error; rbErr != nil {
			return 0, rbErr
		}
		return 0, ErrDuplicateSession
	}
	return row.ID, nil
}

func (t *gormTx) DeleteRecord(ctx context.Context, sessionID, studentID uint) error {
	return t.db.WithContext(ctx).
		Where("session_id = ? AND student_id = ?", sessionID, studentID).
		Delete(&models.AttendanceRecord{}).Error
}

func (t *gormTx) UpsertRecord(ctx context.Context, r RecordWrite) error {
	row := models.AttendanceRecord{
		SessionID:  r.SessionID,
		StudentID:  r.StudentID,
		Status:     r.Status,
		Remarks:    r.Remarks,
		RecordedAt: r.RecordedAt,
	}
	return t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "remarks", "recorded_at", "updated_at"}),
	}).Create(&row).Error
}

func (t *gormTx) UpsertParentNotification(ctx context.Context, n ParentNotice) error {
	row := models.ParentNotification{
		StudentID: n.StudentID,
		Subject:   n.Subject,
		Date:      n.Date,
		Message:   n.Message,
		Status:    models.NotificationUnread,
	}
	return t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "subject"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"message", "status", "read_at", "updated_at"}),
	}).Create(&row).Error
}

// isDuplicateKey recognizes unique violations with or without TranslateError.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key")
}
