package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	_ "scan-service/docs"
	"scan-service/internal/config"
	"scan-service/internal/handlers"
	"scan-service/internal/metrics"
	"scan-service/internal/models"
	"scan-service/internal/quality"
	"scan-service/internal/repository"
	"scan-service/internal/services"
	"scan-service/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := InitConfig()
	db := ConnectDatabase(cfg)
	MigrateDatabase(db)
	minioClient := InitMinIOClient(cfg)

	scanRepo := repository.NewScanRepository(db)
	objectStore := storage.NewMinioStore(minioClient, cfg.MinioBucket)
	analyzer := quality.NewAnalyzer(cfg.BlurThreshold, cfg.LightThreshold)
	m := metrics.NewMetrics()

	scanService := services.NewScanService(scanRepo, objectStore)
	uploadService := services.NewUploadService(scanRepo, objectStore, cfg.PublicBaseURL, m)
	ingestService := services.NewIngestService(scanRepo, objectStore, analyzer, m)
	exportService := services.NewExportService(scanRepo, objectStore)

	app := fiber.New()

	// Register Prometheus metrics endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Set up routes for the scan ingestion pipeline
	h := handlers.NewScanHandler(scanService, uploadService, ingestService, exportService)
	api := app.Group("/api/scans")
	api.Post("/", h.CreateScan)
	api.Get("/", h.ListScans)
	api.Get("/:id", h.GetScan)
	api.Delete("/:id", h.DeleteScan)
	api.Post("/:id/upload-targets", h.IssueUploadTargets)
	api.Post("/:id/ingest", h.IngestScan)
	api.Get("/:id/bundle", h.DownloadBundle)
	api.Get("/:id/images/:angle/url", h.ImageDownloadURL)

	api.Get("/swagger/*", swagger.HandlerDefault)

	// Add Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	routes := app.GetRoutes()
	log.Println("Registered routes:")
	for _, r := range routes {
		log.Printf("  %s %s\n", r.Method, r.Path)
	}

	// Start the Fiber server
	port := cfg.AppPort
	if port == "" {
		port = "8080"
		log.Printf("Defaulting to port %s", port)
	}
	log.Printf("Server listening on port %s", port)
	log.Fatal(app.Listen(":" + port))
}

func InitConfig() *config.Config {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	return cfg
}

func ConnectDatabase(cfg *config.Config) *gorm.DB {
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	return db
}

func MigrateDatabase(db *gorm.DB) {
	err := db.AutoMigrate(&models.Scan{}, &models.ScanImage{})
	if err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}
}

func InitMinIOClient(cfg *config.Config) *minio.Client {
	minioClient, err := storage.NewMinioClient(cfg)
	if err != nil {
		log.Fatalf("MinIO client initialization failed: %v", err)
	}
	return minioClient
}
