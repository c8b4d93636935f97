package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Jobs      JobsConfig      `mapstructure:"jobs" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Cache     CacheConfig     `mapstructure:"cache" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetime time.Duration `mapstructure:"token_lifetime" validate:"gt=0"`
}

// LLMConfig contains the AI provider settings. An empty API key selects the
// deterministic synthetic generator.
type LLMConfig struct {
	GeminiAPIKey string        `mapstructure:"gemini_api_key"`
	ModelName    string        `mapstructure:"model_name" validate:"required"`
	ImageModel   string        `mapstructure:"image_model" validate:"required"`
	MaxRetries   int           `mapstructure:"max_retries" validate:"gte=0,lte=5"`
	RetryDelay   time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
}

// StorageConfig points at the S3-compatible bucket holding images and
// generated assets. An empty endpoint keeps objects in memory.
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key" validate:"required_with=Endpoint"`
	SecretKey string `mapstructure:"secret_key" validate:"required_with=Endpoint"`
	Bucket    string `mapstructure:"bucket" validate:"required"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// JobsConfig tunes the job runner and dispatcher.
type JobsConfig struct {
	// Concurrency is the process-wide number of work functions allowed in flight.
	Concurrency int           `mapstructure:"concurrency" validate:"gte=1"`
	MaxRetries  int           `mapstructure:"max_retries" validate:"gte=1"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
}

// SchedulerConfig tunes the background maintenance scheduler.
type SchedulerConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	InitialDelay   time.Duration `mapstructure:"initial_delay" validate:"gte=0"`
	Interval       time.Duration `mapstructure:"interval" validate:"gt=0"`
	ExpectedAssets int           `mapstructure:"expected_assets" validate:"gte=1"`
	CandidateLimit int           `mapstructure:"candidate_limit" validate:"gte=1"`
}

// CacheConfig sets the lifetimes of both cache tiers.
type CacheConfig struct {
	PersistentTTL time.Duration `mapstructure:"persistent_ttl" validate:"gt=0"`
	CatalogTTL    time.Duration `mapstructure:"catalog_ttl" validate:"gt=0"`
	RecentJobsTTL time.Duration `mapstructure:"recent_jobs_ttl" validate:"gt=0"`
}
