package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"av-sentinel/backend/handlers"
	"av-sentinel/backend/models"
	"av-sentinel/backend/services"
	"av-sentinel/backend/system"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// 0. Environment + Logger
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	if err := system.InitLogger(envOr("AVS_LOG_DIR", "./logs")); err != nil {
		log.Printf("Warning: Could not initialize file logger: %v", err)
	}
	defer system.Close()

	system.Info("AV Sentinel backend starting...")

	// 1. Setup Database
	dbPath := envOr("AVS_DB_PATH", "avsentinel.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		system.Error("Failed to connect to database: %v", err)
		log.Fatal("Failed to connect to database:", err)
	}
	system.Info("Database connected: %s", dbPath)

	// WAL mode avoids "database is locked" errors when the event log
	// writes while the aggregator reads.
	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		system.Warn("Failed to enable WAL mode: %v", err)
	}

	// Migrate
	if err := db.AutoMigrate(
		&models.ThreatEvent{},
		&models.Mission{},
		&models.Settings{},
	); err != nil {
		system.Error("Database migration failed: %v", err)
		log.Fatalf("CRITICAL: Database migration failed. Application cannot start: %v", err)
	}
	system.Info("Database migration completed successfully")

	// Seed default missions if empty
	var missionCount int64
	db.Model(&models.Mission{}).Count(&missionCount)
	if missionCount == 0 {
		for _, m := range models.SeedDefaultMissions() {
			if err := db.Create(&m).Error; err != nil {
				system.Warn("Failed to seed mission %s: %v", m.Title, err)
			}
		}
		system.Info("Seeded %d default missions", len(models.SeedDefaultMissions()))
	}

	// Load or create the settings row; env provides first-run defaults
	var settings models.Settings
	if err := db.First(&settings, 1).Error; err != nil {
		settings = models.Settings{
			ID:                1,
			SybilEndpoint:     envOr("AVS_SYBIL_ENDPOINT", "https://sybil-backend.onrender.com/predict"),
			SensorEndpoint:    envOr("AVS_SENSOR_ENDPOINT", "https://sybil-backend.onrender.com/predict-sensor-json"),
			GpsEndpoint:       envOr("AVS_GPS_ENDPOINT", ""),
			NarrativeEndpoint: envOr("AVS_NARRATIVE_ENDPOINT", ""),
			NarrativeAPIKey:   envOr("AVS_NARRATIVE_API_KEY", ""),
			AlertWebhookURL:   envOr("AVS_ALERT_WEBHOOK_URL", ""),
			AlertOnMalicious:  true,
		}
		db.Create(&settings)
	}

	// 2. Setup Services
	diagnostics := services.NewDiagnosticsBus()
	defer diagnostics.Close()

	eventLog := services.NewEventLog(db, diagnostics)

	inference := services.NewInferenceService()
	inference.SetEndpoint(models.DetectorSybil, settings.SybilEndpoint)
	inference.SetEndpoint(models.DetectorSensor, settings.SensorEndpoint)
	inference.SetEndpoint(models.DetectorGps, settings.GpsEndpoint)

	narrative := services.NewNarrativeService()
	narrative.SetEndpoint(settings.NarrativeEndpoint, settings.NarrativeAPIKey)

	alerts := services.NewAlertService()
	if settings.AlertOnMalicious {
		alerts.SetWebhookURL(settings.AlertWebhookURL)
	}
	if alerts.IsEnabled() {
		system.Info("Alert webhook configured")
	}

	aggregator := services.NewAggregator(eventLog)
	aggCtx, stopAggregator := context.WithCancel(context.Background())
	go aggregator.Run(aggCtx)
	system.Info("Live aggregator started")

	orchestrators := map[models.DetectorKind]*services.Orchestrator{
		models.DetectorSybil:  services.NewOrchestrator(models.DetectorSybil, inference, narrative, eventLog, alerts),
		models.DetectorSensor: services.NewOrchestrator(models.DetectorSensor, inference, narrative, eventLog, alerts),
		models.DetectorGps:    services.NewOrchestrator(models.DetectorGps, inference, narrative, eventLog, alerts),
	}

	// 3. Setup Handlers
	h := handlers.NewHandler(db, inference, narrative, eventLog, aggregator, diagnostics, alerts, orchestrators)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: false,
	})

	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		Output:     os.Stdout,
	}))

	app.Use(cors.New())

	api := app.Group("/api")

	// Detection
	api.Post("/detect/sybil", h.DetectSybil)
	api.Post("/detect/sybil/csv", h.DetectSybilCSV)
	api.Post("/detect/sensor", h.DetectSensor)
	api.Post("/detect/sensor/csv", h.DetectSensorCSV)
	api.Post("/detect/gps", h.DetectGps)
	api.Post("/detect/gps/csv", h.DetectGpsCSV)

	// Event History
	api.Get("/events", h.GetEvents)

	// Dashboard Stats
	api.Get("/stats/dashboard", h.GetDashboardStats)
	api.Post("/summary", h.GetThreatSummary)

	// Live Stats Feed
	api.Use("/live", handlers.LiveStatsUpgrade)
	api.Get("/live/stats", h.LiveStats())

	// Threat Advisor
	api.Post("/advisor/chat", h.AskAdvisor)

	// Missions
	api.Get("/missions", h.GetMissions)
	api.Post("/missions", h.CreateMission)
	api.Put("/missions/:id", h.UpdateMission)
	api.Delete("/missions/:id", h.DeleteMission)

	// Settings
	api.Get("/settings", h.GetSettings)
	api.Put("/settings", h.UpdateSettings)
	api.Post("/webhook/test", h.TestWebhook)

	// Diagnostics
	api.Get("/diagnostics", h.GetDiagnostics)

	// 4. Serve Static Files (Frontend)
	frontendPath := envOr("AVS_FRONTEND_DIR", "./frontend/dist")

	app.Static("/", frontendPath, fiber.Static{
		ByteRange: true,
		Browse:    false,
		MaxAge:    3600,
	})

	// SPA Fallback: serve index.html for all other routes
	app.Get("/*", func(c *fiber.Ctx) error {
		return c.SendFile(filepath.Join(frontendPath, "index.html"))
	})

	// Graceful Shutdown Handling
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		system.Info("Gracefully shutting down...")
		stopAggregator()
		_ = app.Shutdown()
	}()

	addr := ":" + envOr("PORT", "8080")
	system.Info("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatal(err)
	}
}
