package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         int
	Password     string // Empty disables the login page
	LogDirectory string
	LogLevel     string

	ModelPath           string
	ClassNamesPath      string
	FontPath            string
	FontSize            float64
	InputSize           int
	ConfidenceThreshold float64 // Default slider value
	IoUThreshold        float64
	ProcessingWorkers   int // One loaded network per worker
	QueueSize           int
	MaxUploadMB         int64
	MaxImageMegapixels  float64 // Decoded size limit, independent of the byte limit

	ImageDirectory           string
	DatabasePath             string
	ImageBufferLimit         int
	ImageBufferFlushInterval int // Seconds

	RoboflowAPIKey string
	RoboflowAPIURL string
	ExperimentsDir string
	TrainerBinary  string
}

// DefaultMaxImageMegapixels bounds decoded uploads.
const DefaultMaxImageMegapixels = 50

// Load reads .env files (if any) and then the process environment.
func Load(envFiles ...string) *Config {
	// Missing .env files are fine, the environment may already be populated.
	_ = godotenv.Load(envFiles...)

	experiments := getEnv("EXPERIMENTS_DIR", "experiments")

	return &Config{
		Port:         getEnvAsInt("PORT", 8080),
		Password:     getEnv("PASSWORD", ""),
		LogDirectory: getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		ModelPath:           getEnv("MODEL_PATH", filepath.Join(".", "data", "best_weights.onnx")),
		ClassNamesPath:      getEnv("CLASS_NAMES_PATH", filepath.Join(".", "data", "data.yaml")),
		FontPath:            getEnv("FONT_PATH", filepath.Join(".", "data", "base_font.ttf")),
		FontSize:            getEnvAsFloat("FONT_SIZE", 40),
		InputSize:           getEnvAsInt("INPUT_SIZE", 640),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.5),
		IoUThreshold:        getEnvAsFloat("IOU_THRESHOLD", 0.7),
		ProcessingWorkers:   getEnvAsInt("PROCESSING_WORKERS", 2),
		QueueSize:           getEnvAsInt("QUEUE_SIZE", 100),
		MaxUploadMB:         getEnvAsInt64("MAX_UPLOAD_MB", 20),
		MaxImageMegapixels:  getEnvAsFloat("MAX_IMAGE_MP", DefaultMaxImageMegapixels),

		ImageDirectory:           getEnv("IMAGE_DIR", filepath.Join(".", "images")),
		DatabasePath:             getEnv("DB_PATH", filepath.Join(".", "data", "runs.db")),
		ImageBufferLimit:         getEnvAsInt("BUFFER_LIMIT", 20),
		ImageBufferFlushInterval: getEnvAsInt("FLUSH_INTERVAL", 10),

		RoboflowAPIKey: getEnv("ROBOFLOW_API_KEY", ""),
		RoboflowAPIURL: getEnv("ROBOFLOW_API_URL", "https://api.roboflow.com"),
		ExperimentsDir: experiments,
		TrainerBinary:  getEnv("TRAINER_BIN", "yolo"),
	}
}

// MaxUploadBytes is the request body limit for image uploads.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// MaxImagePixels is the largest width*height accepted for an upload.
func (c *Config) MaxImagePixels() int64 {
	mp := c.MaxImageMegapixels
	if mp <= 0 {
		mp = DefaultMaxImageMegapixels
	}
	return int64(mp * 1e6)
}

// AuthEnabled reports whether the UI sits behind the login page.
func (c *Config) AuthEnabled() bool {
	return c.Password != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
