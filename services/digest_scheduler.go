package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"remedial_go/models"
	"remedial_go/services/attendance"
	"remedial_go/services/notifications"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SubjectDigest counts the marks recorded for one subject on one date
type SubjectDigest struct {
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Marked  int64  `json:"marked"`
	Absent  int64  `json:"absent"`
}

// DigestScheduler sends staff an end-of-day summary of remedial absences
type DigestScheduler struct {
	db       *gorm.DB
	svc      *attendance.Service
	notifier *notifications.Service
	loc      *time.Location
	now      func() time.Time
}

func NewDigestScheduler(db *gorm.DB, svc *attendance.Service, notifier *notifications.Service, loc *time.Location) *DigestScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &DigestScheduler{db: db, svc: svc, notifier: notifier, loc: loc, now: time.Now}
}

// BuildDigest reports every subject whose window admits date
func (d *DigestScheduler) BuildDigest(ctx context.Context, date string) ([]SubjectDigest, error) {
	if _, err := attendance.ParseDate(date); err != nil {
		return nil, err
	}

	var out []SubjectDigest
	for _, subject := range attendance.Subjects() {
		w, err := d.svc.Window(ctx, subject)
		if err != nil {
			return nil, err
		}
		if !w.Configured || !w.Admits(date) {
			continue
		}

		var counts []struct {
			Status string
			N      int64
		}
		err = d.db.WithContext(ctx).Table("attendance_records AS r").
			Select("r.status AS status, COUNT(*) AS n").
			Joins("JOIN attendance_sessions AS s ON s.id = r.session_id").
			Where("s.session_date = ? AND s.subject_id = ?", models.Date(date), w.SubjectID).
			Group("r.status").
			Scan(&counts).Error
		if err != nil {
			return nil, fmt.Errorf("count %s marks: %w", subject, err)
		}

		dg := SubjectDigest{Subject: subject, Date: date}
		for _, c := range counts {
			dg.Marked += c.N
			if c.Status == models.StatusAbsent {
				dg.Absent += c.N
			}
		}
		out = append(out, dg)
	}
	return out, nil
}

// SendDailyDigest notifies admins and teachers about today's marks.
// Returns the number of subjects reported.
func (d *DigestScheduler) SendDailyDigest(ctx context.Context) (int, error) {
	today := d.now().In(d.loc).Format(models.DateLayout)
	digests, err := d.BuildDigest(ctx, today)
	if err != nil {
		return 0, err
	}

	var marked []SubjectDigest
	for _, dg := range digests {
		if dg.Marked > 0 {
			marked = append(marked, dg)
		}
	}
	if len(marked) == 0 {
		logrus.WithField("date", today).Info("no remedial marks recorded; digest skipped")
		return 0, nil
	}

	payload := notifications.QueuedWithData(
		"Remedial attendance digest "+today,
		digestMessage(marked),
		"info",
		map[string]any{"kind": "remedial_digest", "date": today, "subjects": marked},
		"normal",
	)
	if err := d.notifier.NotifyRoles(ctx, []string{models.RoleAdmin, models.RoleTeacher}, payload); err != nil {
		return 0, fmt.Errorf("send digest: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"date":     today,
		"subjects": len(marked),
	}).Info("remedial digest sent")
	return len(marked), nil
}

func digestMessage(digests []SubjectDigest) string {
	lines := make([]string, 0, len(digests))
	for _, dg := range digests {
		lines = append(lines, fmt.Sprintf("%s: %d absent of %d marked", dg.Subject, dg.Absent, dg.Marked))
	}
	return strings.Join(lines, "\n")
}
