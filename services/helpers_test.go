package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"remedial_go/database"
	"remedial_go/database/seeders"
	"remedial_go/services/attendance"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSeededDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	require.NoError(t, seeders.Seed(db, "2025-2026"))
	return db
}

func clockAt(y int, m time.Month, d int) attendance.Clock {
	return func() time.Time { return time.Date(y, m, d, 17, 0, 0, 0, time.Local) }
}

func newAttendanceService(db *gorm.DB, now attendance.Clock) *attendance.Service {
	store := attendance.NewGormStore(db)
	return attendance.NewService(attendance.NewResolver(store, nil, now), store, store, nil, now)
}

func mark(v string) *string { return &v }

// submitMath records Math marks for grade 3 students S-0001 (id 1) and S-0002 (id 2).
func submitMath(t *testing.T, svc *attendance.Service, entries ...attendance.Entry) {
	t.Helper()
	res, err := svc.Submit(context.Background(), attendance.SubmitRequest{Subject: "Math", CreatedBy: "2", Entries: entries})
	require.NoError(t, err)
	require.True(t, res.Success, res.Reason)
}
