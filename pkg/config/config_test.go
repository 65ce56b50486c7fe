package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/room-compactor/room-compactor/pkg/errors"
)

func TestLoad_DefaultValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
database:
  url: "postgres://localhost/synapse"
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, 500, cfg.Compressor.ChunkSize)
	assert.Equal(t, "100,50,25", cfg.Compressor.DefaultLevels)
	assert.Equal(t, 5, cfg.Scheduler.NumberOfRooms)
	assert.Equal(t, 0, cfg.Scheduler.WatchInterval)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_CustomValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
database:
  url: "postgres://db.example.com/synapse"
compressor:
  chunk_size: 1000
  default_levels: "200,100"
scheduler:
  number_of_rooms: 20
  watch_interval: 60
log:
  level: debug
metrics:
  addr: ":9100"
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, "postgres://db.example.com/synapse", cfg.Database.URL)
	assert.Equal(t, 1000, cfg.Compressor.ChunkSize)
	assert.Equal(t, "200,100", cfg.Compressor.DefaultLevels)
	assert.Equal(t, 20, cfg.Scheduler.NumberOfRooms)
	assert.Equal(t, 60, cfg.Scheduler.WatchInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestLoad_MissingDBURL(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
compressor:
  chunk_size: 10
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	_, err = Load(configFile)
	assert.Error(t, err)
	assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))
	assert.Contains(t, err.Error(), "db_url")
}

func TestLoad_InvalidDefaultLevels(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
database:
  url: "postgres://localhost/synapse"
compressor:
  default_levels: "100,abc"
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	_, err = Load(configFile)
	assert.Error(t, err)
	assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))
}

func TestValidate_EmptyDBURL(t *testing.T) {
	cfg := &Config{
		Compressor: CompressorConfig{ChunkSize: 1, DefaultLevels: "10"},
		Scheduler:  SchedulerConfig{NumberOfRooms: 1},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "db_url is required")
}

func TestValidate_NonPositiveChunkSize(t *testing.T) {
	cfg := &Config{
		Database:   DatabaseConfig{URL: "postgres://localhost/synapse"},
		Compressor: CompressorConfig{ChunkSize: 0, DefaultLevels: "10"},
		Scheduler:  SchedulerConfig{NumberOfRooms: 1},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_size must be positive")
}

func TestValidate_NonPositiveNumberOfRooms(t *testing.T) {
	cfg := &Config{
		Database:   DatabaseConfig{URL: "postgres://localhost/synapse"},
		Compressor: CompressorConfig{ChunkSize: 1, DefaultLevels: "10"},
		Scheduler:  SchedulerConfig{NumberOfRooms: 0},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "number_of_rooms must be positive")
}

func TestParseLevels(t *testing.T) {
	levels, err := ParseLevels("100, 50,25")
	require.NoError(t, err)
	assert.Equal(t, []int{100, 50, 25}, levels)

	_, err = ParseLevels("")
	assert.Error(t, err)

	_, err = ParseLevels("10,-5")
	assert.Error(t, err)

	_, err = ParseLevels("ten,5")
	assert.Error(t, err)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
	assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))
}

func TestLoadFromReader(t *testing.T) {
	content := []byte(`
database:
  url: "postgres://mysql.local/synapse"
compressor:
  chunk_size: 250
`)
	cfg, err := LoadFromReader("yaml", content)
	require.NoError(t, err)
	assert.Equal(t, "postgres://mysql.local/synapse", cfg.Database.URL)
	assert.Equal(t, 250, cfg.Compressor.ChunkSize)
}
