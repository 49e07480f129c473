package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"remedial_go/config"
	"remedial_go/database"
	"remedial_go/database/seeders"
	"remedial_go/middleware"
	"remedial_go/models"
	"remedial_go/services"
	"remedial_go/services/attendance"
	"remedial_go/services/notifications"
	"remedial_go/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	app   *fiber.App
	db    *gorm.DB
	store *storage.MemoryStore
}

// newTestEnv seeds an in-memory database and mounts the controllers the way
// routes.SetupRoutes does, with the clock fixed on Friday 2025-09-12.
func newTestEnv(t *testing.T) *testEnv {
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
	require.NoError(t, database.Migrate(db))
	require.NoError(t, seeders.Seed(db, "2025-2026"))

	prevDB, prevCfg := database.DB, config.AppConfig
	database.DB = db
	config.AppConfig = &config.Config{JWTSecret: "controller-test-secret", JWTExpiresIn: time.Hour}
	t.Cleanup(func() {
		database.DB, config.AppConfig = prevDB, prevCfg
		_ = sqlDB.Close()
	})

	clock := func() time.Time { return time.Date(2025, time.September, 12, 16, 0, 0, 0, time.Local) }
	gormStore := attendance.NewGormStore(db)
	notif := notifications.NewServiceWithDB(db, nil, nil)
	svc := attendance.NewService(attendance.NewResolver(gormStore, nil, clock), gormStore, gormStore, notif, clock)
	objects := storage.NewMemoryStore()

	auth := &AuthController{}
	ac := NewAttendanceController(svc, services.NewAttendanceExporter(db, svc, objects))
	rc := NewRemedialController(db, svc)
	pc := &ParentNotificationController{}
	llc := NewLineLinkController(services.NewMemoryLineLinkTokens(services.LineLinkTokenTTL))
	nc := NewNotificationController(notif)
	arc := NewArchiveController(objects)

	app := fiber.New()
	api := app.Group("/api")
	api.Post("/auth/login", auth.Login)
	protected := api.Group("/", middleware.JWTMiddleware())
	protected.Get("/profile", auth.GetProfile)
	protected.Put("/profile/password", auth.ChangePassword)

	att := protected.Group("/attendance", middleware.RequireStaff())
	att.Get("/", ac.GetAttendance)
	att.Put("/", ac.UpdateAttendance)
	att.Get("/export", ac.ExportAttendance)
	att.Post("/export/archive", ac.ArchiveExport)

	remedial := protected.Group("/remedial")
	remedial.Get("/window", middleware.RequireStaff(), rc.GetWindow)
	remedial.Get("/quarters", middleware.RequireStaff(), rc.GetQuarters)
	remedial.Post("/quarters", middleware.RequireAdmin(), rc.CreateQuarter)
	remedial.Delete("/quarters/:id", middleware.RequireAdmin(), rc.DeleteQuarter)
	remedial.Post("/weekly-schedules", middleware.RequireAdmin(), rc.CreateWeeklySchedule)
	remedial.Post("/import", middleware.RequireAdmin(), rc.Import)

	parent := protected.Group("/parent", middleware.RequireParent())
	parent.Get("/notifications", pc.GetParentNotifications)
	parent.Patch("/notifications/:id/read", pc.MarkParentNotificationRead)
	parent.Post("/line-link", llc.CreateLinkToken)
	parent.Delete("/line-link", llc.Unlink)

	protected.Get("/notifications", nc.GetNotifications)
	protected.Get("/notifications/unread-count", nc.GetUnreadCount)
	protected.Post("/notifications", middleware.RequireAdmin(), nc.CreateNotification)

	protected.Get("/archives/:id/download", middleware.RequireAdmin(), arc.DownloadArchive)

	return &testEnv{app: app, db: db, store: objects}
}

// token signs a JWT for a seeded user: admin, teacher_reyes or parent_cruz
func (e *testEnv) token(t *testing.T, username string) string {
	t.Helper()
	var u models.User
	require.NoError(t, e.db.Where("username = ?", username).First(&u).Error)
	tok, err := middleware.GenerateToken(&u)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

// jsonID renders a decoded JSON number as a path segment
func jsonID(v interface{}) string {
	return fmt.Sprintf("%.0f", v.(float64))
}
