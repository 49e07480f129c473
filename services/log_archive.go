package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"remedial_go/models"
	"remedial_go/storage"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ActivityLogQueueKey is shared with middleware.LogActivity
const ActivityLogQueueKey = "logs:queue"

const MinArchiveAgeDays = 7

// LogArchiveService flushes cached activity logs and archives old ones to object storage
type LogArchiveService struct {
	db          *gorm.DB
	redisClient *redis.Client
	store       storage.ObjectStore
}

// ArchivedLog is the exported representation stored inside archives
type ArchivedLog struct {
	ID         uint           `json:"id"`
	UserID     uint           `json:"user_id"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID uint           `json:"resource_id"`
	Details    map[string]any `json:"details"`
	IPAddress  string         `json:"ip_address"`
	UserAgent  string         `json:"user_agent"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewLogArchiveService creates a new service instance. redisClient and store may be nil.
func NewLogArchiveService(db *gorm.DB, redisClient *redis.Client, store storage.ObjectStore) *LogArchiveService {
	return &LogArchiveService{db: db, redisClient: redisClient, store: store}
}

// FlushCachedLogsToDatabase moves every queued log from Redis into the database
func (las *LogArchiveService) FlushCachedLogsToDatabase(ctx context.Context) (int, error) {
	if las.redisClient == nil {
		return 0, fmt.Errorf("redis client not available")
	}

	keys, err := las.redisClient.ZRangeByScore(ctx, ActivityLogQueueKey, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(time.Now().Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queued logs: %v", err)
	}

	var processedCount, errorCount int
	for _, logKey := range keys {
		logData, err := las.redisClient.Get(ctx, logKey).Result()
		if err == redis.Nil {
			// expired before we got to it
			las.redisClient.ZRem(ctx, ActivityLogQueueKey, logKey)
			continue
		}
		if err != nil {
			logrus.WithError(err).Errorf("Failed to get log data for key: %s", logKey)
			errorCount++
			continue
		}

		var activityLog models.ActivityLog
		if err := json.Unmarshal([]byte(logData), &activityLog); err != nil {
			logrus.WithError(err).Errorf("Failed to unmarshal log data for key: %s", logKey)
			errorCount++
			continue
		}
		activityLog.ID = 0

		if err := las.db.WithContext(ctx).Create(&activityLog).Error; err != nil {
			logrus.WithError(err).Errorf("Failed to save log %s to database", logKey)
			errorCount++
			continue
		}

		pipeline := las.redisClient.Pipeline()
		pipeline.Del(ctx, logKey)
		pipeline.ZRem(ctx, ActivityLogQueueKey, logKey)
		if _, err = pipeline.Exec(ctx); err != nil {
			logrus.WithError(err).Errorf("Failed to remove log from cache: %s", logKey)
		}
		processedCount++
	}

	if len(keys) > 0 {
		logrus.Infof("Flushed %d logs to database, %d errors", processedCount, errorCount)
	}
	return processedCount, nil
}

// ArchiveOldLogs zips logs older than daysOld, uploads the archive and deletes the rows
func (las *LogArchiveService) ArchiveOldLogs(ctx context.Context, daysOld int) (*models.ExportArchive, error) {
	if daysOld < MinArchiveAgeDays {
		return nil, fmt.Errorf("minimum archive age is %d days for safety", MinArchiveAgeDays)
	}
	if las.store == nil {
		return nil, storage.ErrNotConfigured
	}

	cutoffDate := time.Now().AddDate(0, 0, -daysOld)

	var logs []models.ActivityLog
	if err := las.db.WithContext(ctx).
		Where("created_at < ?", cutoffDate).
		Order("created_at").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch logs for archiving: %v", err)
	}
	if len(logs) == 0 {
		logrus.Info("No logs to archive")
		return nil, nil
	}

	archived := make([]ArchivedLog, 0, len(logs))
	ids := make([]uint, 0, len(logs))
	for _, l := range logs {
		a := ArchivedLog{
			ID:         l.ID,
			UserID:     l.UserID,
			Action:     l.Action,
			Resource:   l.Resource,
			ResourceID: l.ResourceID,
			IPAddress:  l.IPAddress,
			UserAgent:  l.UserAgent,
			CreatedAt:  l.CreatedAt,
		}
		if len(l.Details) > 0 {
			var details map[string]any
			if err := json.Unmarshal(l.Details, &details); err == nil {
				a.Details = details
			}
		}
		archived = append(archived, a)
		ids = append(ids, l.ID)
	}

	archiveFileName := fmt.Sprintf("activity_logs_%s.zip", cutoffDate.Format(models.DateLayout))
	zipBuffer, err := createZipArchive(archived, archiveFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create ZIP archive: %v", err)
	}

	row := models.ExportArchive{
		Kind:        models.ArchiveActivityLogs,
		FileName:    archiveFileName,
		S3Key:       storage.ObjectKey("logs/archived", archiveFileName, cutoffDate),
		StartDate:   models.Date(archived[0].CreatedAt.Format(models.DateLayout)),
		EndDate:     models.Date(archived[len(archived)-1].CreatedAt.Format(models.DateLayout)),
		RecordCount: len(archived),
		FileSize:    int64(zipBuffer.Len()),
		Status:      "completed",
	}
	if err := las.store.Put(ctx, row.S3Key, "application/zip", zipBuffer.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to upload archive: %v", err)
	}
	logrus.Infof("Uploaded log archive: %s", row.S3Key)

	err = las.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("id IN ?", ids).Delete(&models.ActivityLog{}).Error; err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to finalize log archive: %v", err)
	}
	logrus.Infof("Archived and deleted %d activity logs", len(ids))
	return &row, nil
}

// createZipArchive writes the logs as JSON and CSV into one ZIP
func createZipArchive(logs []ArchivedLog, fileName string) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	zipWriter := zip.NewWriter(buf)

	logsFile, err := zipWriter.Create("activity_logs.json")
	if err != nil {
		return nil, fmt.Errorf("failed to create logs file in ZIP: %v", err)
	}
	encoder := json.NewEncoder(logsFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(map[string]any{
		"file_name":      fileName,
		"export_date":    time.Now().UTC(),
		"record_count":   len(logs),
		"format_version": "1.0",
		"logs":           logs,
	}); err != nil {
		return nil, fmt.Errorf("failed to encode logs to JSON: %v", err)
	}

	csvFile, err := zipWriter.Create("activity_logs.csv")
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file in ZIP: %v", err)
	}
	w := csv.NewWriter(csvFile)
	_ = w.Write([]string{"ID", "User ID", "Action", "Resource", "Resource ID", "IP Address", "User Agent", "Created At", "Details"})
	for _, l := range logs {
		details := ""
		if l.Details != nil {
			if b, err := json.Marshal(l.Details); err == nil {
				details = string(b)
			}
		}
		_ = w.Write([]string{
			strconv.FormatUint(uint64(l.ID), 10),
			strconv.FormatUint(uint64(l.UserID), 10),
			l.Action,
			l.Resource,
			strconv.FormatUint(uint64(l.ResourceID), 10),
			l.IPAddress,
			l.UserAgent,
			l.CreatedAt.Format("2006-01-02 15:04:05"),
			details,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close ZIP writer: %v", err)
	}
	return buf, nil
}
