package controllers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"remedial_go/models"
	"remedial_go/services"
	"remedial_go/services/attendance"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAttendanceRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "teacher_reyes")

	tests := []struct {
		name string
		path string
	}{
		{"unknown subject", "/api/attendance?subject=science&start=2025-09-01&end=2025-09-30"},
		{"bad start", "/api/attendance?subject=math&start=09/01/2025&end=2025-09-30"},
		{"bad student ids", "/api/attendance?subject=math&start=2025-09-01&end=2025-09-30&studentIds=1,x"},
	}
	for _, tt := range tests {
		status, body := env.do(t, http.MethodGet, tt.path, tok, nil)
		assert.Equal(t, http.StatusBadRequest, status, tt.name)
		assert.Equal(t, false, body["success"], tt.name)
		assert.NotEmpty(t, body["error"], tt.name)
	}
}

func TestAttendanceRequiresStaff(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodGet, "/api/attendance?subject=math&start=2025-09-01&end=2025-09-30", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, http.MethodGet, "/api/attendance?subject=math&start=2025-09-01&end=2025-09-30", env.token(t, "parent_cruz"), nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestPutThenGetAttendance(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "teacher_reyes")

	status, body := env.do(t, http.MethodPut, "/api/attendance", tok, map[string]interface{}{
		"subject": "Mathematics",
		"entries": []map[string]interface{}{
			{"studentId": 1, "date": "2025-09-08", "present": "Yes"},
			{"studentId": 2, "date": "2025-09-08", "present": "no"},
			{"studentId": 1, "date": "2025-09-09", "present": "Yes"},
		},
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["updated"])
	assert.Equal(t, float64(1), body["sessionsCreated"])
	assert.Equal(t, float64(0), body["sessionsExisting"])
	assert.Equal(t, float64(1), body["skippedNotAllowed"])
	assert.Equal(t, float64(0), body["skippedNoSession"])

	var session models.AttendanceSession
	require.NoError(t, env.db.First(&session).Error)
	assert.Equal(t, "2", session.CreatedByUserID, "creator comes from the JWT")

	status, body = env.do(t, http.MethodGet, "/api/attendance?subject=math&start=2025-09-01&end=2025-09-30&studentIds=1,2", tok, nil)
	require.Equal(t, http.StatusOK, status)
	records, ok := body["records"].([]interface{})
	require.True(t, ok)
	require.Len(t, records, 2)
	assert.Equal(t, map[string]interface{}{"studentId": float64(1), "date": "2025-09-08", "present": "Yes"}, records[0])
	assert.Equal(t, map[string]interface{}{"studentId": float64(2), "date": "2025-09-08", "present": "No"}, records[1])
}

func TestPutAttendanceValidation(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "teacher_reyes")

	status, body := env.do(t, http.MethodPut, "/api/attendance", tok, map[string]interface{}{
		"subject": "Math",
		"entries": []map[string]interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, map[string]interface{}{"entries": "min"}, body["fields"])

	status, body = env.do(t, http.MethodPut, "/api/attendance", tok, map[string]interface{}{
		"subject": "Math",
		"entries": []map[string]interface{}{{"studentId": 1, "present": "Yes"}},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, map[string]interface{}{"entries[0].date": "required"}, body["fields"])

	status, body = env.do(t, http.MethodPut, "/api/attendance", tok, map[string]interface{}{
		"subject": "Math",
		"entries": []map[string]interface{}{{"studentId": 1, "date": "2025-09-08", "present": "maybe"}},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])

	status, body = env.do(t, http.MethodPut, "/api/attendance", tok, map[string]interface{}{
		"subject": "Science",
		"entries": []map[string]interface{}{{"studentId": 1, "date": "2025-09-08", "present": "Yes"}},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])

	req := httptest.NewRequest(http.MethodPut, "/api/attendance", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	status, body = env.send(t, req)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid request body", body["error"])
}

func TestPutAttendanceSubjectWithoutRow(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.db.Where("name = ?", "Filipino").Delete(&models.Subject{}).Error)

	status, body := env.do(t, http.MethodPut, "/api/attendance", env.token(t, "teacher_reyes"), map[string]interface{}{
		"subject": "filipino",
		"entries": []map[string]interface{}{{"studentId": 1, "date": "2025-09-11", "present": "Yes"}},
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, attendance.ReasonSubjectNotFound, body["reason"])

	var count int64
	env.db.Model(&models.AttendanceSession{}).Count(&count)
	assert.Zero(t, count)
}

func TestExportAndArchiveAttendance(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.token(t, "teacher_reyes")
	admin := env.token(t, "admin")

	status, _ := env.do(t, http.MethodPut, "/api/attendance", teacher, map[string]interface{}{
		"subject": "Math",
		"entries": []map[string]interface{}{{"studentId": 1, "date": "2025-09-08", "present": "Yes"}},
	})
	require.Equal(t, http.StatusOK, status)

	req := httptest.NewRequest(http.MethodGet, "/api/attendance/export?subject=math&start=2025-09-01&end=2025-09-14", nil)
	req.Header.Set("Authorization", "Bearer "+teacher)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, services.XLSXContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "remedial_Math_2025-09-01_2025-09-14.xlsx")
	exported, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, exported)

	status, body := env.do(t, http.MethodPost, "/api/attendance/export/archive", teacher, map[string]interface{}{
		"subject": "Math", "start": "2025-09-01", "end": "2025-09-14",
	})
	require.Equal(t, http.StatusCreated, status, body)
	archive := body["archive"].(map[string]interface{})
	assert.Equal(t, "completed", archive["status"])
	assert.Len(t, env.store.Keys(), 1)

	req = httptest.NewRequest(http.MethodGet, "/api/archives/"+jsonID(archive["id"])+"/download", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	resp, err = env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, services.XLSXContentType, resp.Header.Get("Content-Type"))

	status, body = env.do(t, http.MethodPost, "/api/attendance/export/archive", teacher, map[string]interface{}{
		"subject": "Science", "start": "2025-09-01", "end": "2025-09-14",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, map[string]interface{}{"subject": "subject"}, body["fields"])
}
