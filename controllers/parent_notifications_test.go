package controllers

import (
	"net/http"
	"testing"

	"remedial_go/models"
	"remedial_go/services/attendance"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParentSeesAbsenceNotices(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.token(t, "teacher_reyes")
	parent := env.token(t, "parent_cruz")

	status, _ := env.do(t, http.MethodPut, "/api/attendance", teacher, map[string]interface{}{
		"subject": "Math",
		"entries": []map[string]interface{}{
			{"studentId": 1, "date": "2025-09-10", "present": "No"},
			{"studentId": 2, "date": "2025-09-10", "present": "No"},
		},
	})
	require.Equal(t, http.StatusOK, status)

	status, body := env.do(t, http.MethodGet, "/api/parent/notifications", parent, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["unread_count"])
	notices := body["notifications"].([]interface{})
	require.Len(t, notices, 1, "only the parent's own child")
	notice := notices[0].(map[string]interface{})
	assert.Equal(t, "Juan Cruz", notice["student_name"])
	assert.Equal(t, "2025-09-10", notice["date"])
	assert.Equal(t, attendance.AbsenceMessage("Math", "2025-09-10"), notice["message"])

	// the in-app inbox got the pushed copy
	status, body = env.do(t, http.MethodGet, "/api/notifications", parent, nil)
	require.Equal(t, http.StatusOK, status)
	inbox := body["notifications"].([]interface{})
	require.Len(t, inbox, 1)
	assert.Equal(t, "Math absence: Juan Cruz", inbox[0].(map[string]interface{})["title"])

	status, body = env.do(t, http.MethodPatch, "/api/parent/notifications/"+jsonID(notice["id"])+"/read", parent, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.NotificationRead, body["notification"].(map[string]interface{})["status"])

	status, body = env.do(t, http.MethodGet, "/api/parent/notifications?status=unread", parent, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["notifications"])
}

func TestParentCannotReadOtherChildrenNotices(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.token(t, "teacher_reyes")

	status, _ := env.do(t, http.MethodPut, "/api/attendance", teacher, map[string]interface{}{
		"subject": "Math",
		"entries": []map[string]interface{}{{"studentId": 2, "date": "2025-09-10", "present": "No"}},
	})
	require.Equal(t, http.StatusOK, status)

	var n models.ParentNotification
	require.NoError(t, env.db.Where("student_id = ?", 2).First(&n).Error)

	status, _ = env.do(t, http.MethodPatch, "/api/parent/notifications/"+jsonID(float64(n.ID))+"/read", env.token(t, "parent_cruz"), nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodGet, "/api/parent/notifications", teacher, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodGet, "/api/parent/notifications?status=archived", env.token(t, "parent_cruz"), nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdminBroadcastNotification(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "admin")

	status, body := env.do(t, http.MethodPost, "/api/notifications", admin, map[string]interface{}{
		"role": "teacher", "title": "Grades due", "message": "Submit remedial marks by Friday", "type": "info",
	})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = env.do(t, http.MethodGet, "/api/notifications/unread-count", env.token(t, "teacher_reyes"), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["unread_count"])

	status, body = env.do(t, http.MethodPost, "/api/notifications", admin, map[string]interface{}{
		"title": "x", "message": "y", "type": "urgent",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, map[string]interface{}{"user_ids": "required_without", "type": "oneof"}, body["fields"])
}

func TestParentLineLinkToken(t *testing.T) {
	env := newTestEnv(t)
	parent := env.token(t, "parent_cruz")

	status, body := env.do(t, http.MethodPost, "/api/parent/line-link", parent, nil)
	require.Equal(t, http.StatusCreated, status)
	token := body["token"].(string)
	assert.NotEmpty(t, token)
	assert.Equal(t, "LINK "+token, body["command"])
	assert.Equal(t, float64(15*60), body["expires_in"])

	status, _ = env.do(t, http.MethodPost, "/api/parent/line-link", env.token(t, "teacher_reyes"), nil)
	assert.Equal(t, http.StatusForbidden, status)

	require.NoError(t, env.db.Model(&models.User{}).Where("username = ?", "parent_cruz").Update("line_user_id", "U-cruz").Error)
	status, _ = env.do(t, http.MethodDelete, "/api/parent/line-link", parent, nil)
	require.Equal(t, http.StatusOK, status)

	var u models.User
	require.NoError(t, env.db.Where("username = ?", "parent_cruz").First(&u).Error)
	assert.Empty(t, u.LineUserID)
}
