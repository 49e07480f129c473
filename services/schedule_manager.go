package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	logFlushSpec   = "@every 1h"
	logArchiveSpec = "30 2 * * 0"
	logArchiveDays = 30
	jobTimeout     = 4 * time.Minute
)

// ScheduleManager runs the periodic jobs: staff digest and activity log maintenance
type ScheduleManager struct {
	cron       *cron.Cron
	digest     *DigestScheduler
	logs       *LogArchiveService
	digestSpec string
}

// NewScheduleManager builds the cron runner. logs may be nil.
func NewScheduleManager(digest *DigestScheduler, logs *LogArchiveService, digestSpec string, loc *time.Location) *ScheduleManager {
	if loc == nil {
		loc = time.Local
	}
	return &ScheduleManager{
		cron:       cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		digest:     digest,
		logs:       logs,
		digestSpec: digestSpec,
	}
}

// Start registers all jobs and starts the scheduler
func (sm *ScheduleManager) Start() error {
	if _, err := sm.cron.AddFunc(sm.digestSpec, sm.runDigest); err != nil {
		return err
	}

	if sm.logs != nil {
		if _, err := sm.cron.AddFunc(logFlushSpec, sm.flushLogs); err != nil {
			return err
		}
		if _, err := sm.cron.AddFunc(logArchiveSpec, sm.archiveLogs); err != nil {
			return err
		}
	}

	sm.cron.Start()
	logrus.WithFields(logrus.Fields{
		"digest_cron": sm.digestSpec,
		"jobs":        len(sm.cron.Entries()),
	}).Info("schedule manager started")
	return nil
}

// Stop waits for running jobs to finish
func (sm *ScheduleManager) Stop() {
	<-sm.cron.Stop().Done()
}

func (sm *ScheduleManager) runDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := sm.digest.SendDailyDigest(ctx); err != nil {
		logrus.WithError(err).WithField("job", "digest").Error("scheduled job failed")
	}
}

func (sm *ScheduleManager) flushLogs() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := sm.logs.FlushCachedLogsToDatabase(ctx); err != nil {
		logrus.WithError(err).WithField("job", "log_flush").Error("scheduled job failed")
	}
}

func (sm *ScheduleManager) archiveLogs() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := sm.logs.ArchiveOldLogs(ctx, logArchiveDays); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"job":  "log_archive",
			"days": logArchiveDays,
		}).Error("scheduled job failed")
	}
}
