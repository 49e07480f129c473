package attendance

import "errors"

var (
	ErrInvalidSubject = errors.New("invalid subject")
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidBody    = errors.New("invalid request body")

	// ErrDuplicateSession is returned by TxStore.CreateSession when another
	// transaction already holds the (date, subject, grade) key.
	ErrDuplicateSession = errors.New("attendance session already exists")
)

// Reasons reported when a request cannot be applied because the school has
// not finished configuring remedial classes.
const (
	ReasonSubjectNotFound   = "subject_not_found"
	ReasonNoRemedialQuarter = "no_remedial_quarter"
	ReasonNoWeeklySchedule  = "no_weekly_schedule"
	ReasonGradeUnresolved   = "grade_unresolved"
	ReasonGradeAmbiguous    = "grade_ambiguous"
)
