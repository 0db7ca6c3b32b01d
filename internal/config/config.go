package config

import (
	"errors"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Upload commit modes.
const (
	CommitAtomic  = "atomic"
	CommitPartial = "partial"
)

// Search modes.
const (
	SearchPerFile = "per_file"
	SearchPooled  = "pooled"
)

// DefaultMaxFileSize is the per-file upload limit when MAX_FILE_SIZE is unset (10 MiB).
const DefaultMaxFileSize = int64(10 * 1024 * 1024)

// DefaultMaxBatchSize caps a whole multipart upload request when MAX_BATCH_SIZE is unset (100 MiB).
const DefaultMaxBatchSize = int64(100 * 1024 * 1024)

var (
	// DefaultAllowedExtensions lists the accepted filename suffixes, lowercase and without the dot.
	DefaultAllowedExtensions = []string{"pdf", "docx", "txt", "doc", "md"}

	// DefaultAllowedMIMETypes lists the accepted sniffed content types.
	DefaultAllowedMIMETypes = []string{
		"application/pdf",
		"text/plain",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"text/markdown",
		"text/x-markdown",
	}
)

// DatabaseConfig holds PostgreSQL settings for the search history store.
// Leaving Host empty disables PostgreSQL and keeps history in memory.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// Enabled reports whether a database host was configured.
func (c DatabaseConfig) Enabled() bool { return c.Host != "" }

// MinIOConfig holds object storage settings for the raw upload archive.
// Leaving Endpoint empty disables archiving.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether an object storage endpoint was configured.
func (c MinIOConfig) Enabled() bool { return c.Endpoint != "" }

// GeminiConfig configures the remote file-search provider.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// UploadConfig holds the validation limits applied to every upload batch.
type UploadConfig struct {
	MaxFileSize int64
	// MaxBatchSize bounds the request body; larger requests are refused before validation.
	MaxBatchSize      int64
	AllowedExtensions []string
	AllowedMIMETypes  []string
	CommitMode        string
}

// SearchConfig controls how searches fan out across a project's files.
type SearchConfig struct {
	Mode        string
	Concurrency int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables once at startup and not mutated afterwards.
type AppConfig struct {
	AppHost          string
	Port             string
	LogLevel         string
	DefaultProjectID string
	Gemini           GeminiConfig
	Upload           UploadConfig
	Search           SearchConfig
	Database         DatabaseConfig
	MinIO            MinIOConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// Real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:  getEnv("APP_HOST", "localhost:8080"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		// Without an explicit id every process gets its own default project.
		DefaultProjectID: getEnv("DEFAULT_PROJECT_ID", uuid.NewString()),
		Gemini: GeminiConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			Model:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			BaseURL: getEnv("GEMINI_BASE_URL", ""),
			Timeout: getEnvDuration("PROVIDER_TIMEOUT", 60*time.Second),
		},
		Upload: UploadConfig{
			MaxFileSize:       getEnvInt64("MAX_FILE_SIZE", DefaultMaxFileSize),
			MaxBatchSize:      getEnvInt64("MAX_BATCH_SIZE", DefaultMaxBatchSize),
			AllowedExtensions: getEnvList("ALLOWED_EXTENSIONS", DefaultAllowedExtensions),
			AllowedMIMETypes:  getEnvList("ALLOWED_MIME_TYPES", DefaultAllowedMIMETypes),
			CommitMode:        getEnv("UPLOAD_COMMIT_MODE", CommitAtomic),
		},
		Search: SearchConfig{
			Mode:        getEnv("SEARCH_MODE", SearchPerFile),
			Concurrency: getEnvInt("SEARCH_CONCURRENCY", 4),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
	}
}

// Validate checks the settings the process cannot start without.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Gemini.APIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required"))
	}
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, errors.New("MAX_FILE_SIZE must be positive"))
	}
	if c.Upload.MaxBatchSize < c.Upload.MaxFileSize {
		errs = append(errs, errors.New("MAX_BATCH_SIZE must be at least MAX_FILE_SIZE"))
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		errs = append(errs, errors.New("ALLOWED_EXTENSIONS must not be empty"))
	}
	if len(c.Upload.AllowedMIMETypes) == 0 {
		errs = append(errs, errors.New("ALLOWED_MIME_TYPES must not be empty"))
	}
	switch c.Upload.CommitMode {
	case CommitAtomic, CommitPartial:
	default:
		errs = append(errs, errors.New("UPLOAD_COMMIT_MODE must be atomic or partial"))
	}
	switch c.Search.Mode {
	case SearchPerFile, SearchPooled:
	default:
		errs = append(errs, errors.New("SEARCH_MODE must be per_file or pooled"))
	}
	return errors.Join(errs...)
}

// BodyLimit is the HTTP request body cap derived from MaxBatchSize, clamped to the int range.
func (c UploadConfig) BodyLimit() int {
	if c.MaxBatchSize > math.MaxInt {
		return math.MaxInt
	}
	return int(c.MaxBatchSize)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

// getEnvList parses a comma separated list, lowercasing and trimming each entry.
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return append([]string(nil), def...)
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), def...)
	}
	return out
}
