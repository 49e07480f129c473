package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"

	"remedial_go/database"
	"remedial_go/models"
	"remedial_go/services/attendance"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeHub struct {
	mu    sync.Mutex
	users []uint
}

func (h *fakeHub) BroadcastToUser(userID uint, _ interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.users = append(h.users, userID)
}

type fakeLine struct {
	to   []string
	msgs []string
	err  error
}

func (l *fakeLine) PushText(to, message string) error {
	l.to = append(l.to, to)
	l.msgs = append(l.msgs, message)
	return l.err
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func TestNotifyAbsences(t *testing.T) {
	db := openDB(t)
	linked := models.User{Username: "p1", Password: "x", Role: models.RoleParent, Status: "active", LineUserID: "U123"}
	unlinked := models.User{Username: "p2", Password: "x", Role: models.RoleParent, Status: "active"}
	require.NoError(t, db.Create(&linked).Error)
	require.NoError(t, db.Create(&unlinked).Error)

	students := []models.Student{
		{Code: "S-1", FirstName: "Juan", LastName: "Cruz", ParentUserID: &linked.ID},
		{Code: "S-2", FirstName: "Maria", ParentUserID: &unlinked.ID},
		{Code: "S-3", FirstName: "Orphan"},
	}
	require.NoError(t, db.Create(&students).Error)

	hub := &fakeHub{}
	line := &fakeLine{}
	svc := NewServiceWithDB(db, hub, line)

	msg := attendance.AbsenceMessage("Math", "2025-09-08")
	err := svc.NotifyAbsences(context.Background(), []attendance.Absence{
		{StudentID: students[0].ID, Subject: "Math", Date: "2025-09-08", Message: msg},
		{StudentID: students[1].ID, Subject: "Math", Date: "2025-09-08", Message: msg},
		{StudentID: students[2].ID, Subject: "Math", Date: "2025-09-08", Message: msg},
	})
	require.NoError(t, err)

	var notifs []models.Notification
	require.NoError(t, db.Order("user_id").Find(&notifs).Error)
	require.Len(t, notifs, 2)
	assert.Equal(t, linked.ID, notifs[0].UserID)
	assert.Equal(t, "Math absence: Juan Cruz", notifs[0].Title)
	assert.Equal(t, msg, notifs[0].Message)
	assert.JSONEq(t, `["normal","popup","line"]`, string(notifs[0].Channels))
	assert.JSONEq(t, `["normal","popup"]`, string(notifs[1].Channels))

	assert.ElementsMatch(t, []uint{linked.ID, unlinked.ID}, hub.users)
	assert.Equal(t, []string{"U123"}, line.to)
	assert.Equal(t, []string{"Juan Cruz: " + msg}, line.msgs)
}

func TestNotifyAbsencesReportsLineFailure(t *testing.T) {
	db := openDB(t)
	parent := models.User{Username: "p1", Password: "x", Role: models.RoleParent, Status: "active", LineUserID: "U9"}
	require.NoError(t, db.Create(&parent).Error)
	student := models.Student{Code: "S-1", FirstName: "Ana", ParentUserID: &parent.ID}
	require.NoError(t, db.Create(&student).Error)

	line := &fakeLine{err: errors.New("quota exceeded")}
	svc := NewServiceWithDB(db, nil, line)

	err := svc.NotifyAbsences(context.Background(), []attendance.Absence{{StudentID: student.ID, Subject: "English", Date: "2025-09-09"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")

	var count int64
	db.Model(&models.Notification{}).Count(&count)
	assert.Equal(t, int64(1), count, "in-app notification is still stored")
}

func TestNotifyRoles(t *testing.T) {
	db := openDB(t)
	users := []models.User{
		{Username: "admin", Password: "x", Role: models.RoleAdmin, Status: "active"},
		{Username: "t1", Password: "x", Role: models.RoleTeacher, Status: "active"},
		{Username: "t2", Password: "x", Role: models.RoleTeacher, Status: "inactive"},
		{Username: "p1", Password: "x", Role: models.RoleParent, Status: "active"},
	}
	require.NoError(t, db.Create(&users).Error)

	svc := NewServiceWithDB(db, nil, nil)
	err := svc.NotifyRoles(context.Background(), []string{models.RoleAdmin, models.RoleTeacher},
		QueuedWithData("Daily digest", "3 absences", "info", nil, "bogus"))
	require.NoError(t, err)

	var notifs []models.Notification
	require.NoError(t, db.Order("user_id").Find(&notifs).Error)
	require.Len(t, notifs, 2)
	assert.Equal(t, users[0].ID, notifs[0].UserID)
	assert.Equal(t, users[1].ID, notifs[1].UserID)
	assert.JSONEq(t, `["normal"]`, string(notifs[0].Channels))
}

func TestNormalizeChannels(t *testing.T) {
	assert.Equal(t, []string{"normal"}, normalizeChannels(nil))
	assert.Equal(t, []string{"popup", "line"}, normalizeChannels([]string{"popup", "sms", "line", "popup"}))
	assert.Equal(t, []string{"normal"}, normalizeChannels([]string{"sms"}))
}
