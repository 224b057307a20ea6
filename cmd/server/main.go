package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"gopkg.in/yaml.v3"

	"github.com/codebuildervaibhav/textor-gateway/internal/audio"
	"github.com/codebuildervaibhav/textor-gateway/internal/cleanup"
	"github.com/codebuildervaibhav/textor-gateway/internal/handlers"
	"github.com/codebuildervaibhav/textor-gateway/internal/lifecycle"
	"github.com/codebuildervaibhav/textor-gateway/internal/provider"
	"github.com/codebuildervaibhav/textor-gateway/internal/storage"
	"github.com/codebuildervaibhav/textor-gateway/internal/store"
	"github.com/codebuildervaibhav/textor-gateway/internal/types"
)

// Config represents the gateway configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Provider struct {
		BaseURL   string `yaml:"base_url"`
		AuthToken string `yaml:"auth_token"`
	} `yaml:"provider"`

	Polling struct {
		IntervalSeconds int `yaml:"interval_seconds"`
		MaxAttempts     int `yaml:"max_attempts"`
	} `yaml:"polling"`

	Storage struct {
		StagingDir string `yaml:"staging_dir"`
		ExportDir  string `yaml:"export_dir"`
		Database   string `yaml:"database"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`
}

func main() {
	config, err := loadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Both are required for any network call to succeed.
	if config.Provider.BaseURL == "" || config.Provider.AuthToken == "" {
		log.Fatal("provider.base_url and provider.auth_token must be configured")
	}

	if err := cleanup.EnsureDir(config.Storage.StagingDir); err != nil {
		log.Fatalf("Failed to create staging directory: %v", err)
	}
	if err := os.MkdirAll(config.Storage.ExportDir, 0755); err != nil {
		log.Fatalf("Failed to create export directory: %v", err)
	}

	// Custom logger setup
	logBuffer := &LogBuffer{
		lines: make([]string, 0, 1000),
	}
	log.SetOutput(io.MultiWriter(os.Stdout, logBuffer))

	log.Println("Initializing components...")

	client, err := provider.New(config.Provider.BaseURL, config.Provider.AuthToken)
	if err != nil {
		log.Fatalf("Failed to initialize provider client: %v", err)
	}

	cache, err := storage.NewTranscriptDB(config.Storage.Database)
	if err != nil {
		log.Fatalf("Failed to initialize transcript cache: %v", err)
	}
	defer cache.Close()

	exportStore := storage.NewExportStore(config.Storage.ExportDir)

	// Google Drive export (optional - may fail if credentials not set up)
	var driveExporter *storage.DriveExporter
	if _, err := os.Stat(config.GoogleDrive.CredentialsFile); err == nil {
		driveExporter, err = storage.NewDriveExporter(
			config.GoogleDrive.CredentialsFile,
			config.GoogleDrive.TokenFile,
			config.GoogleDrive.FolderName,
		)
		if err != nil {
			log.Printf("WARNING: Google Drive export not available: %v", err)
			driveExporter = nil
		} else {
			log.Println("Google Drive export enabled")
		}
	} else {
		log.Println("Google Drive credentials not found - exporting locally only")
	}

	jobStore := store.New()
	events := lifecycle.NewEventBus(1000)
	manager := lifecycle.NewManager(
		client, client, jobStore, events,
		time.Duration(config.Polling.IntervalSeconds)*time.Second,
		config.Polling.MaxAttempts,
	)
	manager.SetCompletionHook(func(job types.Job) {
		if err := cache.Save(job); err != nil {
			log.Printf("Failed to cache transcript %s: %v", job.ID, err)
		}
		if path, err := exportStore.Export(job); err != nil {
			log.Printf("Failed to export transcript %s: %v", job.ID, err)
		} else {
			log.Printf("Transcript %s exported to %s", job.ID, path)
		}
		if driveExporter != nil {
			if url, err := driveExporter.Export(job); err != nil {
				log.Printf("Failed to export transcript %s to Drive: %v", job.ID, err)
			} else {
				log.Printf("Transcript %s exported to Drive: %s", job.ID, url)
			}
		}
	})

	normalizer := audio.NewNormalizer(config.Storage.StagingDir)

	cleanupScheduler := cleanup.NewScheduler(
		config.Storage.StagingDir,
		time.Duration(config.Cleanup.IntervalMinutes)*time.Minute,
		time.Duration(config.Cleanup.MaxAgeHours)*time.Hour,
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	app := fiber.New(fiber.Config{
		BodyLimit: audio.MaxPayloadBytes + 1024*1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	// Initialize handlers
	uploadHandler := handlers.NewUploadHandler(normalizer, manager)
	recordHandler := handlers.NewRecordHandler(manager)
	historyHandler := handlers.NewHistoryHandler(manager, jobStore, client, cache)
	authHandler := handlers.NewAuthHandler(client)
	eventsHandler := handlers.NewEventsHandler(events)

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	app.Post("/api/transcriptions", uploadHandler.Handle)
	app.Get("/api/transcriptions", historyHandler.Handle)
	app.Delete("/api/transcriptions/:id", historyHandler.HandleDelete)
	app.Get("/api/submission", historyHandler.HandleSubmission)
	app.Post("/api/submission/cancel", historyHandler.HandleCancel)
	app.Get("/api/transcripts/cached", historyHandler.HandleCached)
	app.Get("/api/languages", handlers.HandleLanguages)
	app.Post("/api/login", authHandler.Handle)

	// WebSocket routes
	app.Get("/ws/record", websocket.New(recordHandler.Handle))
	app.Get("/ws/events", websocket.New(eventsHandler.Handle))

	// Get gateway logs
	app.Get("/api/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logBuffer.GetLogs(),
		})
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	log.Printf("Gateway starting on %s", addr)
	log.Println("Endpoints:")
	log.Println("   POST   /api/transcriptions     - Upload audio file")
	log.Println("   GET    /api/transcriptions     - Job history by status")
	log.Println("   DELETE /api/transcriptions/:id - Delete a job")
	log.Println("   GET    /api/submission         - Active submission state")
	log.Println("   POST   /api/submission/cancel  - Cancel active submission")
	log.Println("   GET    /ws/record              - Microphone capture stream")
	log.Println("   GET    /ws/events              - Lifecycle event stream")
	log.Println("   POST   /api/login              - Credential exchange")

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down gracefully...")
		app.Shutdown()
	}()

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Gateway failed: %v", err)
	}
}

// LogBuffer captures logs in memory
type LogBuffer struct {
	lines []string
	mu    sync.Mutex
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, string(p))

	// Keep last 1000 lines
	if len(lb.lines) > 1000 {
		lb.lines = lb.lines[len(lb.lines)-1000:]
	}

	return len(p), nil
}

func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}

// loadConfig loads configuration from YAML file, applying defaults for
// optional sections.
func loadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	if config.Server.Port == 0 {
		config.Server.Port = 8090
	}
	if config.Polling.IntervalSeconds == 0 {
		config.Polling.IntervalSeconds = 2
	}
	if config.Polling.MaxAttempts == 0 {
		config.Polling.MaxAttempts = 90
	}
	if config.Cleanup.IntervalMinutes == 0 {
		config.Cleanup.IntervalMinutes = 30
	}
	if config.Cleanup.MaxAgeHours == 0 {
		config.Cleanup.MaxAgeHours = 12
	}
	if config.Storage.StagingDir == "" {
		config.Storage.StagingDir = "temp"
	}
	if config.Storage.ExportDir == "" {
		config.Storage.ExportDir = "exports"
	}
	if config.Storage.Database == "" {
		config.Storage.Database = "transcripts.db"
	}

	return &config, nil
}
