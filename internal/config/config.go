package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Storage   StorageConfig
	Embedding EmbeddingConfig
	Matching  MatchingConfig
	Camera    CameraConfig
	Admin     AdminConfig
	Database  DatabaseConfig
}

type StorageConfig struct {
	LedgerPath  string // CSV ledger, defaults to attendance_logs/attendance.csv
	DatasetDir  string // one enrollment image per person, defaults to dataset
	CapturedDir string // archive of captured frames, empty disables archiving
}

type EmbeddingConfig struct {
	URL     string        // defaults to http://localhost:8000
	Timeout time.Duration // per request, defaults to 30s
}

type MatchingConfig struct {
	Tolerance float64 // maximum euclidean distance for a match, defaults to 0.6
	Workers   int     // parallel encoder requests when building the gallery
}

type CameraConfig struct {
	URL      string        // snapshot URL (http/https) or path to a frame file
	Interval time.Duration // capture period in watch mode
}

type AdminConfig struct {
	CredentialsFile string // YAML file with bcrypt password hashes
	SessionSecret   string
	AllowedOrigins  []string // extra CORS origins besides localhost
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL, empty keeps the CSV ledger
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// envString reads an environment variable, falling back to defaultVal when unset or empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, returning defaultVal on absence or parse failure.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads a positive Go duration ("2s", "500ms").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

// envList splits a comma-separated variable, dropping empty items.
func envList(key string) []string {
	var items []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func Load() *Config {
	return &Config{
		Storage: StorageConfig{
			LedgerPath:  envString("ATTENDANCE_FILE", filepath.Join("attendance_logs", "attendance.csv")),
			DatasetDir:  envString("DATASET_DIR", "dataset"),
			CapturedDir: os.Getenv("CAPTURED_IMAGES_DIR"),
		},
		Embedding: EmbeddingConfig{
			URL:     os.Getenv("EMBEDDING_URL"),
			Timeout: envDuration("EMBEDDING_TIMEOUT", 30*time.Second),
		},
		Matching: MatchingConfig{
			Tolerance: envFloat("MATCH_TOLERANCE", 0.6),
			Workers:   envInt("GALLERY_WORKERS", 4),
		},
		Camera: CameraConfig{
			URL:      os.Getenv("CAMERA_URL"),
			Interval: envDuration("CAPTURE_INTERVAL", 2*time.Second),
		},
		Admin: AdminConfig{
			CredentialsFile: envString("ADMIN_CREDENTIALS_FILE", "admins.yaml"),
			SessionSecret:   os.Getenv("WEB_SESSION_SECRET"),
			AllowedOrigins:  envList("WEB_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
	}
}
