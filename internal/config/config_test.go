package config

import (
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_MAX_OPEN_CONNS", "20")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("MAX_FILE_SIZE", "2048")
	t.Setenv("ALLOWED_EXTENSIONS", " PDF, txt ,")
	t.Setenv("PROVIDER_TIMEOUT", "5s")
	t.Setenv("DEFAULT_PROJECT_ID", "p-default")

	cfg := Load()

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.False(t, cfg.MinIO.Enabled())
	assert.Equal(t, "key", cfg.Gemini.APIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 5*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, int64(2048), cfg.Upload.MaxFileSize)
	assert.Equal(t, DefaultMaxBatchSize, cfg.Upload.MaxBatchSize)
	assert.Equal(t, []string{"pdf", "txt"}, cfg.Upload.AllowedExtensions)
	assert.Equal(t, DefaultAllowedMIMETypes, cfg.Upload.AllowedMIMETypes)
	assert.Equal(t, CommitAtomic, cfg.Upload.CommitMode)
	assert.Equal(t, SearchPerFile, cfg.Search.Mode)
	assert.Equal(t, "p-default", cfg.DefaultProjectID)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_DefaultProjectIDIsGenerated(t *testing.T) {
	os.Unsetenv("DEFAULT_PROJECT_ID")

	cfg := Load()

	assert.NotEmpty(t, cfg.DefaultProjectID)
	assert.Equal(t, DefaultMaxFileSize, cfg.Upload.MaxFileSize)
}

func TestValidate(t *testing.T) {
	cfg := &AppConfig{
		Upload: UploadConfig{CommitMode: "sometimes"},
		Search: SearchConfig{Mode: "random"},
	}

	err := cfg.Validate()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY is required")
	assert.Contains(t, err.Error(), "MAX_FILE_SIZE must be positive")
	assert.Contains(t, err.Error(), "ALLOWED_EXTENSIONS must not be empty")
	assert.Contains(t, err.Error(), "UPLOAD_COMMIT_MODE")
	assert.Contains(t, err.Error(), "SEARCH_MODE")
}

func TestValidate_BatchSmallerThanFile(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("MAX_FILE_SIZE", "4096")
	t.Setenv("MAX_BATCH_SIZE", "1024")

	err := Load().Validate()

	assert.ErrorContains(t, err, "MAX_BATCH_SIZE must be at least MAX_FILE_SIZE")
}

func TestUploadConfig_BodyLimit(t *testing.T) {
	assert.Equal(t, 1<<20, UploadConfig{MaxBatchSize: 1 << 20}.BodyLimit())
	assert.Equal(t, math.MaxInt, UploadConfig{MaxBatchSize: math.MaxInt64}.BodyLimit())
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	os.Setenv(key, "value")
	defer os.Unsetenv(key)

	assert.Equal(t, "value", getEnv(key, "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT", "default"))
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	os.Setenv(key, "true")
	assert.True(t, getEnvBool(key, false))

	os.Setenv(key, "false")
	assert.False(t, getEnvBool(key, true))

	os.Setenv(key, "invalid")
	assert.True(t, getEnvBool(key, true))

	os.Unsetenv(key)
	assert.True(t, getEnvBool(key, true))
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_INT_VAR"

	os.Setenv(key, "123")
	assert.Equal(t, 123, getEnvInt(key, 0))

	os.Setenv(key, "invalid")
	assert.Equal(t, 10, getEnvInt(key, 10))

	os.Unsetenv(key)
	assert.Equal(t, 10, getEnvInt(key, 10))
}

func TestGetEnvDuration(t *testing.T) {
	key := "TEST_DURATION_VAR"

	os.Setenv(key, "1500ms")
	assert.Equal(t, 1500*time.Millisecond, getEnvDuration(key, time.Second))

	os.Setenv(key, "soon")
	assert.Equal(t, time.Second, getEnvDuration(key, time.Second))

	os.Unsetenv(key)
}

func TestGetEnvList(t *testing.T) {
	key := "TEST_LIST_VAR"

	os.Setenv(key, "a, B ,c")
	assert.Equal(t, []string{"a", "b", "c"}, getEnvList(key, nil))

	os.Setenv(key, " , ")
	assert.Equal(t, []string{"x"}, getEnvList(key, []string{"x"}))

	os.Unsetenv(key)
	assert.Equal(t, []string{"x"}, getEnvList(key, []string{"x"}))
}
