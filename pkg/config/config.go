package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// NLP configuration
	NLP NLPConfig `mapstructure:"nlp"`

	// Pipeline configuration
	Pipeline PipelineConfig `mapstructure:"pipeline"`

	// Scheduler configuration
	Scheduler SchedulerConfig `mapstructure:"scheduler"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Alert configuration
	Alert AlertConfig `mapstructure:"alert"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// MetricsConfig holds prometheus configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test

	// MaxUploadBytes caps multipart uploads.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // memory, badger, neo4j, postgres, sqlite
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// NLPConfig holds configuration for the concept extraction model
type NLPConfig struct {
	Provider    string  `mapstructure:"provider"` // gemini, openai
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	MaxRetries  int     `mapstructure:"max_retries"`
}

// PipelineConfig holds configuration for document ingestion
type PipelineConfig struct {
	UploadDir string `mapstructure:"upload_dir"`

	// MatchThreshold is the minimum label similarity for reusing an existing concept.
	MatchThreshold float64 `mapstructure:"match_threshold"`

	// BatchDedupe also matches candidates against concepts created earlier in
	// the same batch.
	BatchDedupe bool `mapstructure:"batch_dedupe"`

	// ExtractionTimeout bounds one concept extraction call.
	ExtractionTimeout time.Duration `mapstructure:"extraction_timeout"`

	// MaxTextChars truncates document text before extraction. 0 disables truncation.
	MaxTextChars int `mapstructure:"max_text_chars"`

	// MaxFileBytes rejects larger documents during text extraction.
	MaxFileBytes int64 `mapstructure:"max_file_bytes"`

	// KeepUploads leaves processed files on disk.
	KeepUploads bool `mapstructure:"keep_uploads"`
}

// SchedulerConfig holds configuration for background batches
type SchedulerConfig struct {
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config)

	return config, nil
}

// Validate checks values that would otherwise fail later at runtime
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case "memory", "badger", "sqlite":
	case "neo4j", "postgres":
		if c.Database.URI == "" {
			return fmt.Errorf("database URI is required for %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Pipeline.MatchThreshold <= 0 || c.Pipeline.MatchThreshold > 1 {
		return fmt.Errorf("match threshold must be in (0, 1], got %v", c.Pipeline.MatchThreshold)
	}
	if c.Pipeline.ExtractionTimeout <= 0 {
		return fmt.Errorf("extraction timeout must be positive")
	}
	if c.Scheduler.MaxConcurrent < 0 {
		return fmt.Errorf("scheduler max_concurrent cannot be negative")
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 3003)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.max_upload_bytes", 32<<20)

	// Database defaults
	viper.SetDefault("database.driver", "badger")
	viper.SetDefault("database.uri", "./conceptgraph_db")
	viper.SetDefault("database.username", "")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.database", "")

	// NLP defaults
	viper.SetDefault("nlp.provider", "gemini")
	viper.SetDefault("nlp.model", "gemini-2.5-flash")
	viper.SetDefault("nlp.temperature", 0.2)
	viper.SetDefault("nlp.max_tokens", 8192)
	viper.SetDefault("nlp.max_retries", 3)

	// Pipeline defaults
	viper.SetDefault("pipeline.upload_dir", "uploads")
	viper.SetDefault("pipeline.match_threshold", 0.6)
	viper.SetDefault("pipeline.batch_dedupe", false)
	viper.SetDefault("pipeline.extraction_timeout", 90*time.Second)
	viper.SetDefault("pipeline.max_text_chars", 200000)
	viper.SetDefault("pipeline.max_file_bytes", 64<<20)
	viper.SetDefault("pipeline.keep_uploads", false)

	// Scheduler defaults
	viper.SetDefault("scheduler.max_concurrent", 4)
	viper.SetDefault("scheduler.lock_ttl", 10*time.Minute)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	// Telemetry defaults
	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("telemetry.parquet_path", filepath.Join(home, ".conceptgraph", "telemetry"))
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	// Model credentials
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" && config.NLP.Provider == "gemini" {
		config.NLP.APIKey = apiKey
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && config.NLP.Provider == "openai" {
		config.NLP.APIKey = apiKey
	}

	// Database credentials
	if uri := os.Getenv("NEO4J_URI"); uri != "" && config.Database.Driver == "neo4j" {
		config.Database.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}

	// Generic database settings
	if dbDriver := os.Getenv("DB_DRIVER"); dbDriver != "" {
		config.Database.Driver = dbDriver
	}
	if dbURI := os.Getenv("DB_URI"); dbURI != "" {
		config.Database.URI = dbURI
	}

	// Scheduler settings
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Scheduler.RedisAddr = addr
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		config.Scheduler.RedisPassword = pass
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	// Pipeline settings
	if dir := os.Getenv("UPLOAD_DIR"); dir != "" {
		config.Pipeline.UploadDir = dir
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}
