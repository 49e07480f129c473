package routes

import (
	"remedial_go/controllers"
	"remedial_go/middleware"
	"remedial_go/services"
	"remedial_go/services/attendance"
	"remedial_go/services/notifications"
	"remedial_go/services/websocket"
	"remedial_go/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Dependencies are the services built in main and shared by the controllers
type Dependencies struct {
	DB            *gorm.DB
	Attendance    *attendance.Service
	Exporter      *services.AttendanceExporter
	Notifications *notifications.Service
	LogArchive    *services.LogArchiveService
	Health        *services.HealthService
	Store         storage.ObjectStore
	Hub           *websocket.Hub
	LineLinks     services.LineLinkTokens
}

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, deps Dependencies) {
	authController := &controllers.AuthController{}
	attendanceController := controllers.NewAttendanceController(deps.Attendance, deps.Exporter)
	remedialController := controllers.NewRemedialController(deps.DB, deps.Attendance)
	parentController := &controllers.ParentNotificationController{}
	lineLinkController := controllers.NewLineLinkController(deps.LineLinks)
	notificationController := controllers.NewNotificationController(deps.Notifications)
	logController := controllers.NewLogController(deps.LogArchive)
	archiveController := controllers.NewArchiveController(deps.Store)
	healthController := controllers.NewHealthController(deps.Health)
	wsController := controllers.NewWebSocketController(deps.Hub)

	app.Get("/health", healthController.GetHealthStatus)
	app.Get("/health/live", healthController.GetLiveness)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// Authentication routes (no middleware)
	auth := api.Group("/auth")
	auth.Post("/login", authController.Login)
	auth.Get("/profile", middleware.JWTMiddleware(), authController.GetProfile)

	// Protected routes (require authentication)
	protected := api.Group("/", middleware.JWTMiddleware())

	protected.Get("/profile", authController.GetProfile)
	protected.Put("/profile/password", authController.ChangePassword)
	protected.Post("/auth/logout", authController.Logout)

	// Remedial attendance
	att := protected.Group("/attendance", middleware.RequireStaff())
	att.Get("/", attendanceController.GetAttendance)
	att.Put("/", attendanceController.UpdateAttendance)
	att.Get("/export", attendanceController.ExportAttendance)
	att.Post("/export/archive", attendanceController.ArchiveExport)

	// Remedial calendar
	remedial := protected.Group("/remedial")
	remedial.Get("/window", middleware.RequireStaff(), remedialController.GetWindow)
	remedial.Get("/quarters", middleware.RequireStaff(), remedialController.GetQuarters)
	remedial.Post("/quarters", middleware.RequireAdmin(), remedialController.CreateQuarter)
	remedial.Delete("/quarters/:id", middleware.RequireAdmin(), remedialController.DeleteQuarter)
	remedial.Get("/weekly-schedules", middleware.RequireStaff(), remedialController.GetWeeklySchedules)
	remedial.Post("/weekly-schedules", middleware.RequireAdmin(), remedialController.CreateWeeklySchedule)
	remedial.Delete("/weekly-schedules/:id", middleware.RequireAdmin(), remedialController.DeleteWeeklySchedule)
	remedial.Post("/import", middleware.RequireAdmin(), remedialController.Import)

	// Parent absence notices
	parent := protected.Group("/parent", middleware.RequireParent())
	parent.Get("/notifications", parentController.GetParentNotifications)
	parent.Patch("/notifications/:id/read", parentController.MarkParentNotificationRead)
	parent.Post("/line-link", lineLinkController.CreateLinkToken)
	parent.Delete("/line-link", lineLinkController.Unlink)

	// In-app notifications
	notifs := protected.Group("/notifications")
	notifs.Get("/", notificationController.GetNotifications)
	notifs.Get("/unread-count", notificationController.GetUnreadCount)
	notifs.Patch("/read-all", notificationController.MarkAllAsRead)
	notifs.Patch("/:id/read", notificationController.MarkAsRead)
	notifs.Post("/", middleware.RequireAdmin(), notificationController.CreateNotification)

	// Activity logs (admin only)
	logs := protected.Group("/logs", middleware.RequireAdmin())
	logs.Get("/", logController.GetLogs)
	logs.Get("/:id", logController.GetLog)
	logs.Post("/flush-cache", logController.FlushCachedLogs)
	logs.Post("/archive", logController.ArchiveLogs)

	archives := protected.Group("/archives", middleware.RequireAdmin())
	archives.Get("/", archiveController.GetArchives)
	archives.Get("/:id/download", archiveController.DownloadArchive)

	// WebSocket routes
	ws := protected.Group("/ws")
	ws.Get("/stats", middleware.RequireAdmin(), wsController.GetWebSocketStats)

	app.Use("/ws", wsController.RequireUpgrade)
	app.Get("/ws", wsController.WebSocketHandler())
}
