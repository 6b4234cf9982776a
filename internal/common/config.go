package common

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Engine  EngineConfig
	Worker  WorkerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	ListenAddr string
}

// StorageConfig holds the on-disk layout for uploads, results and snapshots
type StorageConfig struct {
	Root        string
	MaxFileSize int64
}

// UploadsDir is where submitted sheet images land, one directory per batch.
func (s StorageConfig) UploadsDir() string { return filepath.Join(s.Root, "uploads") }

// ResultsDir holds the master ledger, per-batch artifacts and exports.
func (s StorageConfig) ResultsDir() string { return filepath.Join(s.Root, "results") }

// BatchesDir holds one status snapshot file per batch.
func (s StorageConfig) BatchesDir() string { return filepath.Join(s.Root, "batches") }

// EngineConfig holds grading-engine invocation settings
type EngineConfig struct {
	Command       string
	TemplatePath  string
	AnswerKeyPath string
	Timeout       time.Duration
}

// WorkerConfig holds background worker settings
type WorkerConfig struct {
	// Count is the number of batch workers. Each worker claims whole
	// batches, never files, so intra-batch ordering is preserved at any
	// count. Cross-batch FIFO interleaving only holds at 1.
	Count int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: getEnv("LISTEN_ADDR", ":8000"),
		},
		Storage: StorageConfig{
			Root:        getEnv("STORAGE_DIR", "./storage"),
			MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 50<<20),
		},
		Engine: EngineConfig{
			Command:       getEnv("ENGINE_CMD", "omrcheck"),
			TemplatePath:  getEnv("TEMPLATE_PATH", "./storage/template/template.json"),
			AnswerKeyPath: getEnv("ANSWER_KEY_PATH", "./storage/template/evaluation.json"),
			Timeout:       getEnvAsDuration("ENGINE_TIMEOUT", 2*time.Minute),
		},
		Worker: WorkerConfig{
			Count: getEnvAsInt("WORKER_COUNT", 1),
		},
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return NewAppError("CONFIG_ERROR", "LISTEN_ADDR is required", ErrValidation)
	}
	if c.Storage.Root == "" {
		return NewAppError("CONFIG_ERROR", "STORAGE_DIR is required", ErrValidation)
	}
	if c.Engine.Command == "" {
		return NewAppError("CONFIG_ERROR", "ENGINE_CMD is required", ErrValidation)
	}
	if c.Worker.Count < 1 {
		return NewAppError("CONFIG_ERROR", "WORKER_COUNT must be at least 1", ErrValidation)
	}
	return nil
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
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
