package config

import (
	"fmt"
	"os"
	"strconv"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Default quality thresholds applied when the environment does not override
// them. Blur is the minimum variance-of-Laplacian for a sharp image, light the
// minimum mean grayscale intensity for acceptable illumination.
const (
	DefaultBlurThreshold  = 120.0
	DefaultLightThreshold = 55.0
)

// Config holds all configuration values from environment.
type Config struct {
	AppPort        string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioSSL       bool

	// PublicBaseURL prefixes stored object keys when building display URLs
	// handed back to review clients.
	PublicBaseURL string

	// Quality scoring settings
	BlurThreshold  float64 // Minimum sharpness score before an image is flagged blurry
	LightThreshold float64 // Minimum mean intensity before an image is flagged under-lit
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	minioSSL := false
	if sslEnv := os.Getenv("MINIO_SSL"); sslEnv != "" {
		val, err := strconv.ParseBool(sslEnv)
		if err != nil {
			return nil, fmt.Errorf("invalid MINIO_SSL value: %v", err)
		}
		minioSSL = val
	}
	blurThreshold := DefaultBlurThreshold
	if blurEnv := os.Getenv("BLUR_THRESHOLD"); blurEnv != "" {
		val, err := strconv.ParseFloat(blurEnv, 64)
		if err == nil {
			blurThreshold = val
		}
	}
	lightThreshold := DefaultLightThreshold
	if lightEnv := os.Getenv("LIGHT_THRESHOLD"); lightEnv != "" {
		val, err := strconv.ParseFloat(lightEnv, 64)
		if err == nil {
			lightThreshold = val
		}
	}
	cfg := &Config{
		AppPort:        os.Getenv("APP_PORT"),
		DBHost:         os.Getenv("DB_HOST"),
		DBPort:         os.Getenv("DB_PORT"),
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBName:         os.Getenv("DB_NAME"),
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    os.Getenv("MINIO_BUCKET"),
		MinioSSL:       minioSSL,
		PublicBaseURL:  os.Getenv("PUBLIC_BASE_URL"),

		BlurThreshold:  blurThreshold,
		LightThreshold: lightThreshold,
	}
	// Basic validation for required fields
	if cfg.DBHost == "" || cfg.DBUser == "" || cfg.DBName == "" {
		return nil, fmt.Errorf("database configuration is incomplete")
	}
	if cfg.MinioEndpoint == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "" {
		return nil, fmt.Errorf("minio configuration is incomplete")
	}
	return cfg, nil
}

// ConnectDatabase initializes a GORM database connection to PostgreSQL.
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return db, nil
}
