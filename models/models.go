package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// Timestamps is BaseModel without soft delete, for rows guarded by unique keys.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JSON field type for GORM
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = append((*j)[0:0], v...)
	}
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// DateLayout is the only calendar-date format accepted on the wire and in storage.
const DateLayout = "2006-01-02"

// Date is a calendar date stored as DATE and carried as "YYYY-MM-DD".
type Date string

func (d Date) String() string { return string(d) }

func (d Date) Value() (driver.Value, error) {
	if d == "" {
		return nil, nil
	}
	return string(d), nil
}

func (d *Date) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*d = ""
	case time.Time:
		*d = Date(v.Format(DateLayout))
	case []byte:
		*d = Date(trimDate(string(v)))
	case string:
		*d = Date(trimDate(v))
	default:
		return fmt.Errorf("models.Date: unsupported scan type %T", value)
	}
	return nil
}

func (Date) GormDataType() string { return "date" }

// trimDate drops any time component a driver attaches to a DATE column.
func trimDate(s string) string {
	if len(s) > len(DateLayout) {
		return s[:len(DateLayout)]
	}
	return s
}

// Roles
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleParent  = "parent"
)

// Attendance statuses
const (
	StatusPresent = "Present"
	StatusAbsent  = "Absent"
)

// Parent notification statuses
const (
	NotificationUnread = "unread"
	NotificationRead   = "read"
)

// User model
type User struct {
	BaseModel
	Username    string `json:"username" gorm:"size:100;not null;uniqueIndex"`
	Password    string `json:"-" gorm:"size:255;not null"`
	Email       string `json:"email" gorm:"size:255"`
	DisplayName string `json:"display_name" gorm:"size:200"`
	Role        string `json:"role" gorm:"size:20;not null;default:'teacher'"` // admin, teacher, parent
	Status      string `json:"status" gorm:"size:20;not null;default:'active'"`
	LineUserID  string `json:"line_user_id" gorm:"size:100;index"`

	// Relationships
	Children []Student `json:"children,omitempty" gorm:"foreignKey:ParentUserID"`
}

// Grade model
type Grade struct {
	BaseModel
	Name  string `json:"name" gorm:"size:50;not null;uniqueIndex"`
	Level int    `json:"level"`
}

// Subject model. Names are matched case-insensitively by the schedule resolver.
type Subject struct {
	BaseModel
	Name string `json:"name" gorm:"size:100;not null;uniqueIndex"`
}

// Student model
type Student struct {
	BaseModel
	Code         string `json:"code" gorm:"size:50;not null;uniqueIndex"`
	FirstName    string `json:"first_name" gorm:"size:100"`
	LastName     string `json:"last_name" gorm:"size:100"`
	GradeID      *uint  `json:"grade_id" gorm:"index"`
	ParentUserID *uint  `json:"parent_user_id" gorm:"index"`

	// Relationships
	Grade  *Grade `json:"grade,omitempty" gorm:"foreignKey:GradeID"`
	Parent *User  `json:"parent,omitempty" gorm:"foreignKey:ParentUserID"`
}

func (s Student) FullName() string {
	switch {
	case s.FirstName == "" && s.LastName == "":
		return s.Code
	case s.LastName == "":
		return s.FirstName
	default:
		return s.FirstName + " " + s.LastName
	}
}

// RemedialQuarter is an inclusive month range during which remedial classes run.
type RemedialQuarter struct {
	BaseModel
	SchoolYear string `json:"school_year" gorm:"size:9;not null;index"` // e.g. 2025-2026
	Label      string `json:"label" gorm:"size:50"`
	StartMonth int    `json:"start_month" gorm:"not null"`
	EndMonth   int    `json:"end_month" gorm:"not null"`
}

// WeeklySubjectSchedule lists the weekdays a subject's remedial class meets.
type WeeklySubjectSchedule struct {
	BaseModel
	SubjectID uint   `json:"subject_id" gorm:"not null;index"`
	DayOfWeek string `json:"day_of_week" gorm:"size:20;not null"` // Monday ... Sunday

	// Relationships
	Subject Subject `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
}

// AttendanceSession is one remedial class meeting for a subject and grade on a date.
type AttendanceSession struct {
	ID                 uint   `json:"id" gorm:"primaryKey"`
	SessionDate        Date   `json:"session_date" gorm:"not null;uniqueIndex:idx_session_date_subject_grade,priority:1"`
	SubjectID          uint   `json:"subject_id" gorm:"not null;uniqueIndex:idx_session_date_subject_grade,priority:2"`
	GradeID            uint   `json:"grade_id" gorm:"not null;uniqueIndex:idx_session_date_subject_grade,priority:3"`
	WeekID             *uint  `json:"week_id"`
	ActivityID         *uint  `json:"activity_id"`
	ApprovedScheduleID *uint  `json:"approved_schedule_id"`
	CreatedByUserID    string `json:"created_by_user_id" gorm:"size:64"`
	Timestamps
}

// AttendanceRecord is a student's mark for one session.
type AttendanceRecord struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	SessionID  uint      `json:"session_id" gorm:"not null;uniqueIndex:idx_record_session_student,priority:1"`
	StudentID  uint      `json:"student_id" gorm:"not null;uniqueIndex:idx_record_session_student,priority:2;index"`
	Status     string    `json:"status" gorm:"size:10;not null"` // Present, Absent
	Remarks    *string   `json:"remarks" gorm:"type:text"`
	RecordedAt time.Time `json:"recorded_at" gorm:"not null"`
	Timestamps

	// Relationships
	Session AttendanceSession `json:"-" gorm:"foreignKey:SessionID"`
}

// ParentNotification is the absence notice parents read, one per student, subject and date.
type ParentNotification struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	StudentID uint       `json:"student_id" gorm:"not null;uniqueIndex:idx_parent_notif_key,priority:1"`
	Subject   string     `json:"subject" gorm:"size:20;not null;uniqueIndex:idx_parent_notif_key,priority:2"`
	Date      Date       `json:"date" gorm:"not null;uniqueIndex:idx_parent_notif_key,priority:3"`
	Message   string     `json:"message" gorm:"type:text;not null"`
	Status    string     `json:"status" gorm:"size:10;not null;default:'unread'"` // unread, read
	ReadAt    *time.Time `json:"read_at"`
	Timestamps

	// Relationships
	Student Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

// Log model for activity tracking
type ActivityLog struct {
	BaseModel
	UserID     uint   `json:"user_id"`
	Action     string `json:"action" gorm:"size:100;not null"`
	Resource   string `json:"resource" gorm:"size:100;not null"`
	ResourceID uint   `json:"resource_id"`
	Details    JSON   `json:"details" gorm:"type:json"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`
	UserAgent  string `json:"user_agent" gorm:"size:500"`
}

const (
	ArchiveAttendance   = "attendance"
	ArchiveActivityLogs = "activity_logs"
)

// Notification model (in-app inbox for staff and parents)
type Notification struct {
	BaseModel
	UserID   uint       `json:"user_id" gorm:"not null;index"`
	Title    string     `json:"title" gorm:"size:255;not null"`
	Message  string     `json:"message" gorm:"type:text;not null"`
	Type     string     `json:"type" gorm:"size:50;not null"` // info, warning, error, success
	Channels JSON       `json:"channels" gorm:"type:json"`
	Data     JSON       `json:"data" gorm:"type:json"`
	Read     bool       `json:"read" gorm:"default:false"`
	ReadAt   *time.Time `json:"read_at"`
}

// ExportArchive tracks files uploaded to S3: attendance workbooks and activity log archives
type ExportArchive struct {
	BaseModel
	Kind            string `json:"kind" gorm:"size:30;not null;index"` // attendance, activity_logs
	FileName        string `json:"file_name" gorm:"size:255;not null"`
	S3Key           string `json:"s3_key" gorm:"size:500;not null"`
	Subject         string `json:"subject" gorm:"size:20"`
	StartDate       Date   `json:"start_date" gorm:"not null"`
	EndDate         Date   `json:"end_date" gorm:"not null"`
	RecordCount     int    `json:"record_count" gorm:"not null"`
	FileSize        int64  `json:"file_size" gorm:"not null"`
	Status          string `json:"status" gorm:"size:50;not null;default:'pending'"` // pending, completed, failed
	Error           string `json:"error" gorm:"type:text"`
	CreatedByUserID uint   `json:"created_by_user_id"`
}
