package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"remedial_go/config"
	"remedial_go/database"
	"remedial_go/handlers"
	"remedial_go/middleware"
	"remedial_go/routes"
	"remedial_go/services"
	"remedial_go/services/attendance"
	"remedial_go/services/notifications"
	"remedial_go/services/websocket"
	"remedial_go/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

func init() {
	// Load configuration
	config.LoadConfig()

	// Initialize logging
	setupLogging()

	// Connect to database
	database.Connect()
}

func main() {
	loc := config.AppConfig.Location()
	clock := func() time.Time { return time.Now().In(loc) }

	wsHub := websocket.NewHub()
	go wsHub.Run()

	lineService := services.NewLineMessagingService()

	// Notifications: websocket always, LINE when credentials are configured
	notifications.SetDefaultWSHub(wsHub)
	notifService := notifications.NewService()
	if lineService.Enabled() {
		notifService.SetLinePusher(lineService)
	}
	stopNotif := make(chan struct{})
	notifService.StartWorker(stopNotif)

	// Remedial attendance
	var windowCache attendance.WindowCache
	if rc := database.GetRedisClient(); rc != nil {
		windowCache = attendance.NewRedisWindowCache(rc, config.AppConfig.ScheduleCacheTTL)
	}
	store := attendance.NewGormStore(database.DB)
	resolver := attendance.NewResolver(store, windowCache, clock)
	resolver.SchoolYearOverride = config.AppConfig.SchoolYearOverride
	attendanceService := attendance.NewService(resolver, store, store, notifService, clock)
	log.Printf("Remedial school year: %s (timezone %s)", resolver.CurrentSchoolYear(), loc)

	// Object storage for exports and log archives
	var objectStore storage.ObjectStore
	if s3Store, err := storage.NewStorageService(context.Background()); err != nil {
		log.Printf("Export storage disabled: %v", err)
	} else {
		objectStore = s3Store
	}

	exporter := services.NewAttendanceExporter(database.DB, attendanceService, objectStore)
	logArchive := services.NewLogArchiveService(database.DB, database.GetRedisClient(), objectStore)

	digest := services.NewDigestScheduler(database.DB, attendanceService, notifService, loc)
	scheduleManager := services.NewScheduleManager(digest, logArchive, config.AppConfig.DigestCron, loc)
	if err := scheduleManager.Start(); err != nil {
		log.Fatal("Failed to start schedule manager:", err)
	}

	lineLinks := services.NewLineLinkTokens(database.GetRedisClient(), services.LineLinkTokenTTL)

	health := services.NewHealthService(database.DB, database.GetRedisClient(), "", "")
	health.SetResolver(resolver)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.LogActivityMiddleware())

	routes.SetupRoutes(app, routes.Dependencies{
		DB:            database.DB,
		Attendance:    attendanceService,
		Exporter:      exporter,
		Notifications: notifService,
		LogArchive:    logArchive,
		Health:        health,
		Store:         objectStore,
		Hub:           wsHub,
		LineLinks:     lineLinks,
	})

	// LINE webhook: parents link their LINE account with a one-time code
	lineHandler := handlers.NewLineWebhookHandler(database.DB, config.AppConfig.LineChannelSecret, lineService, lineLinks)
	app.Post("/line/webhook", lineHandler.Handle)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  "Route not found",
			"path":   c.Path(),
			"method": c.Method(),
		})
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down...")
		scheduleManager.Stop()
		close(stopNotif)
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 Server starting on port %s", config.AppConfig.Port)
	log.Printf("🌍 Environment: %s", config.AppConfig.AppEnv)

	if err := app.Listen(":" + config.AppConfig.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
	database.Close()
}

// setupLogging configures logrus from LOG_LEVEL and LOG_FILE
func setupLogging() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(config.AppConfig.LogLevel)
	if err != nil {
		log.Printf("Warning: invalid LOG_LEVEL %q, using info", config.AppConfig.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if config.AppConfig.AppEnv == "development" || config.AppConfig.LogFile == "" {
		logrus.SetOutput(os.Stdout)
		return
	}

	if err := os.MkdirAll(filepath.Dir(config.AppConfig.LogFile), 0755); err != nil {
		log.Printf("Warning: Could not create logs directory: %v", err)
	}
	file, err := os.OpenFile(config.AppConfig.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Printf("Warning: Could not open log file, logging to stdout: %v", err)
		logrus.SetOutput(os.Stdout)
		return
	}
	logrus.SetOutput(file)
}

// customErrorHandler handles application errors
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	logrus.WithFields(logrus.Fields{
		"error":  err.Error(),
		"path":   c.Path(),
		"method": c.Method(),
		"ip":     c.IP(),
		"status": code,
	}).Error("Request error")

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
