package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Render   RenderConfig
	OCR      OCRConfig
	Decision DecisionConfig
	Storage  StorageConfig
	Issuers  IssuersConfig
	Pipeline PipelineConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// RenderConfig holds rasterization and geometry settings
type RenderConfig struct {
	PdfinfoBin   string
	PdftoppmBin  string
	MaxWidthPx   int
	DefaultScale float64
	TolerancePx  int
	CropDPI      int
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine        string // "cli" | "gosseract"
	TesseractBin  string
	TesseractLang string
	PSM           int
	TessdataDir   string
}

// DecisionConfig holds confidence thresholds and lookup retry policy
type DecisionConfig struct {
	HighThreshold   float64
	MediumThreshold float64
	LookupAttempts  int
	LookupBackoff   time.Duration
}

// StorageConfig holds artifact storage settings
type StorageConfig struct {
	ArtifactDir string
}

// IssuersConfig points at the issuer profile configuration
type IssuersConfig struct {
	ProfilesPath string
}

// PipelineConfig holds batch and drop-folder settings
type PipelineConfig struct {
	Parallelism int
	WatchDir    string
	Debounce    time.Duration
}

// LoadDotEnv loads variables from the given .env files (default ".env") without
// overriding values already present in the environment. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		Render: RenderConfig{
			PdfinfoBin:   getEnv("PDFINFO_BIN", "pdfinfo"),
			PdftoppmBin:  getEnv("PDFTOPPM_BIN", "pdftoppm"),
			MaxWidthPx:   getEnvAsInt("RENDER_MAX_WIDTH", 1400),
			DefaultScale: getEnvAsFloat64("RENDER_DEFAULT_SCALE", 2.0),
			TolerancePx:  getEnvAsInt("RENDER_TOLERANCE_PX", 8),
			CropDPI:      getEnvAsInt("CROP_DPI", 300),
		},
		OCR: OCRConfig{
			Engine:        strings.ToLower(getEnv("OCR_ENGINE", "cli")),
			TesseractBin:  getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			PSM:           getEnvAsInt("TESSERACT_PSM", 7),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
		},
		Decision: DecisionConfig{
			HighThreshold:   getEnvAsFloat64("CONFIDENCE_HIGH", 0.85),
			MediumThreshold: getEnvAsFloat64("CONFIDENCE_MEDIUM", 0.60),
			LookupAttempts:  getEnvAsInt("LOOKUP_ATTEMPTS", 3),
			LookupBackoff:   getEnvAsDuration("LOOKUP_BACKOFF", 200*time.Millisecond),
		},
		Storage: StorageConfig{
			ArtifactDir: getEnv("ARTIFACT_DIR", "./tmp/artifacts"),
		},
		Issuers: IssuersConfig{
			ProfilesPath: getEnv("ISSUER_PROFILES", "./issuers.json"),
		},
		Pipeline: PipelineConfig{
			Parallelism: getEnvAsInt("PIPELINE_PARALLELISM", 4),
			WatchDir:    getEnv("WATCH_DIR", ""),
			Debounce:    getEnvAsDuration("WATCH_DEBOUNCE", 500*time.Millisecond),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Render.MaxWidthPx <= 0 || c.Render.DefaultScale <= 0 {
		return NewAppError("CONFIG_ERROR", "RENDER_MAX_WIDTH and RENDER_DEFAULT_SCALE must be positive", ErrInvalidInput)
	}
	if c.Render.CropDPI < 72 {
		return NewAppError("CONFIG_ERROR", "CROP_DPI must be at least 72", ErrInvalidInput)
	}
	if c.Decision.MediumThreshold <= 0 || c.Decision.MediumThreshold > c.Decision.HighThreshold || c.Decision.HighThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "confidence thresholds must satisfy 0 < CONFIDENCE_MEDIUM <= CONFIDENCE_HIGH <= 1", ErrInvalidInput)
	}
	if c.Pipeline.Parallelism < 0 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_PARALLELISM must not be negative", ErrInvalidInput)
	}
	switch c.OCR.Engine {
	case "cli", "gosseract":
	default:
		return NewAppError("CONFIG_ERROR", "OCR_ENGINE must be one of: cli | gosseract", ErrInvalidInput)
	}
	return nil
}
