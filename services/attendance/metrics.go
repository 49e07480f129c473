package attendance

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remedial_attendance_entries_total",
		Help: "Attendance entries processed, by subject and outcome",
	}, []string{"subject", "outcome"})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remedial_attendance_sessions_total",
		Help: "Sessions resolved by batches, by subject and whether they were created or reused",
	}, []string{"subject", "kind"})

	sessionRacesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remedial_attendance_session_races_total",
		Help: "Session inserts that lost a race to a concurrent submission",
	})

	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "remedial_attendance_batch_duration_seconds",
		Help:    "Duration of attendance batch transactions",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"subject", "result"})
)

func observeBatch(subject, result string, d time.Duration) {
	batchDuration.WithLabelValues(subject, result).Observe(d.Seconds())
}

func observeResult(subject string, res Result) {
	entriesTotal.WithLabelValues(subject, Applied.String()).Add(float64(res.Updated))
	entriesTotal.WithLabelValues(subject, SkippedNotAllowed.String()).Add(float64(res.SkippedNotAllowed))
	entriesTotal.WithLabelValues(subject, SkippedNoSession.String()).Add(float64(res.SkippedNoSession))
	sessionsTotal.WithLabelValues(subject, "created").Add(float64(res.SessionsCreated))
	sessionsTotal.WithLabelValues(subject, "existing").Add(float64(res.SessionsExisting))
}
