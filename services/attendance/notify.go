package attendance

import (
	"context"
	"fmt"

	"remedial_go/models"

	"github.com/sirupsen/logrus"
)

// AbsenceMessage is the text parents receive for an absence.
func AbsenceMessage(subject string, date models.Date) string {
	return fmt.Sprintf("Your child was marked absent from %s remedial class on %s.", subject, date)
}

func absenceNotice(subject string, studentID uint, date models.Date) ParentNotice {
	return ParentNotice{
		StudentID: studentID,
		Subject:   subject,
		Date:      date,
		Message:   AbsenceMessage(subject, date),
	}
}

// AbsenceNotifier delivers committed absences to parents over push channels.
type AbsenceNotifier interface {
	NotifyAbsences(ctx context.Context, absences []Absence) error
}

// deliverAbsences hands committed absences to the notifier. Failures are
// logged only; the parent_notifications rows are already durable.
func deliverAbsences(ctx context.Context, n AbsenceNotifier, absences []Absence) {
	if n == nil || len(absences) == 0 {
		return
	}
	if err := n.NotifyAbsences(ctx, absences); err != nil {
		logrus.WithError(err).WithField("absences", len(absences)).Warn("parent absence delivery failed")
	}
}
