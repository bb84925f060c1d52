package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/exam-grader/constants"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Classifier ClassifierConfig
	Grading    GradingConfig
	Storage    StorageConfig
	Log        LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr    string
	MetricsAddr string
}

// ClassifierConfig holds text classification related configuration
type ClassifierConfig struct {
	Endpoint     string
	APIKey       string
	Timeout      time.Duration
	MaxAttempts  int
	RetryDelay   time.Duration
	ModelURIs    map[int]string
	ModelMapFile string
}

// GradingConfig holds batch processing configuration
type GradingConfig struct {
	PacingDelay time.Duration
	Workers     int
	QueueSize   int
	RunTimeout  time.Duration
}

// StorageConfig holds filesystem locations
type StorageConfig struct {
	UploadDir     string
	ProcessedDir  string
	InboxDir      string
	InboxDebounce time.Duration
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string
}

// DefaultEndpoint is the Yandex Cloud text classification endpoint.
const DefaultEndpoint = "https://llm.api.cloud.yandex.net/foundationModels/v1/textClassification"

// LoadConfig loads configuration from environment variables. When
// MODEL_MAP_FILE is set, its entries override the MODEL_URI_Q<n> variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			GRPCAddr:    getEnv("GRPC_ADDR", ":8080"),
			MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		},
		Classifier: ClassifierConfig{
			Endpoint:     getEnv("CLASSIFIER_URL", DefaultEndpoint),
			APIKey:       getEnv("YANDEX_API_KEY", ""),
			Timeout:      getEnvAsDuration("CLASSIFIER_TIMEOUT", 30*time.Second),
			MaxAttempts:  getEnvAsInt("CLASSIFIER_MAX_ATTEMPTS", 3),
			RetryDelay:   getEnvAsDuration("CLASSIFIER_RETRY_DELAY", 2*time.Second),
			ModelURIs:    modelURIsFromEnv(),
			ModelMapFile: getEnv("MODEL_MAP_FILE", ""),
		},
		Grading: GradingConfig{
			PacingDelay: getEnvAsDuration("PACING_DELAY", 1100*time.Millisecond),
			Workers:     getEnvAsInt("GRADING_WORKERS", 2),
			QueueSize:   getEnvAsInt("GRADING_QUEUE_SIZE", 64),
			RunTimeout:  getEnvAsDuration("GRADING_RUN_TIMEOUT", 0),
		},
		Storage: StorageConfig{
			UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
			ProcessedDir:  getEnv("PROCESSED_DIR", "processed"),
			InboxDir:      getEnv("INBOX_DIR", ""),
			InboxDebounce: getEnvAsDuration("INBOX_DEBOUNCE", time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.Classifier.ModelMapFile != "" {
		models, err := LoadModelMap(cfg.Classifier.ModelMapFile)
		if err != nil {
			return nil, err
		}
		for q, uri := range models {
			cfg.Classifier.ModelURIs[q] = uri
		}
	}
	return cfg, nil
}

func modelURIsFromEnv() map[int]string {
	out := make(map[int]string)
	for _, q := range constants.ValidQuestions() {
		if v := strings.TrimSpace(os.Getenv(fmt.Sprintf("MODEL_URI_Q%d", q))); v != "" {
			out[q] = v
		}
	}
	return out
}

type modelMapFile struct {
	Models map[int]string `yaml:"models"`
}

// LoadModelMap reads a YAML document of the form
//
//	models:
//	  1: cls://folder/model-q1
//	  2: cls://folder/model-q2
//
// Environment variables in the file are expanded.
func LoadModelMap(path string) (map[int]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewAppError("CONFIG_ERROR", "read model map", err)
	}
	var f modelMapFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &f); err != nil {
		return nil, NewAppError("CONFIG_ERROR", "parse model map", err)
	}
	out := make(map[int]string, len(f.Models))
	for q, uri := range f.Models {
		if !constants.IsValidQuestion(q) {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("model map: unknown question %d", q), ErrInvalidInput)
		}
		if uri = strings.TrimSpace(uri); uri != "" {
			out[q] = uri
		}
	}
	return out, nil
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration. A missing API key or model URI
// is not fatal here: rows referencing them fail individually.
func (c *Config) Validate() error {
	v := NewValidator().
		Field("GRPC_ADDR", c.Server.GRPCAddr, Required).
		Field("UPLOAD_DIR", c.Storage.UploadDir, Required).
		Field("PROCESSED_DIR", c.Storage.ProcessedDir, Required).
		Field("CLASSIFIER_URL", c.Classifier.Endpoint, Required).
		Field("GRADING_WORKERS", c.Grading.Workers, Positive).
		Field("CLASSIFIER_MAX_ATTEMPTS", c.Classifier.MaxAttempts, Positive).
		Field("LOG_FORMAT", strings.ToLower(c.Log.Format), OneOf("json", "text", "console"))
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// ModelConfigured reports, per valid question, whether a model URI is set.
func (c *ClassifierConfig) ModelConfigured() map[int]bool {
	out := make(map[int]bool)
	for _, q := range constants.ValidQuestions() {
		out[q] = c.ModelURIs[q] != ""
	}
	return out
}
