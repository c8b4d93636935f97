package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "TOKENSMITH"

// setDefaults registers the default value of every optional setting.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.max_open_conns", 10)

	v.SetDefault("auth.token_lifetime", "24h")

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.image_model", "gemini-2.0-flash-preview-image-generation")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_delay", "1s")

	v.SetDefault("storage.bucket", "tokensmith")
	v.SetDefault("storage.use_ssl", false)

	v.SetDefault("jobs.concurrency", 3)
	v.SetDefault("jobs.max_retries", 3)
	v.SetDefault("jobs.timeout", "5m")
	v.SetDefault("jobs.retry_delay", "2s")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.initial_delay", "10s")
	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.expected_assets", 3)
	v.SetDefault("scheduler.candidate_limit", 50)

	v.SetDefault("cache.persistent_ttl", "720h")
	v.SetDefault("cache.catalog_ttl", "60s")
	v.SetDefault("cache.recent_jobs_ttl", "5s")
}

// keys lists every setting so that AutomaticEnv can resolve values that have
// neither a default nor a config file entry.
var keys = []string{
	"database.url",
	"auth.jwt_secret",
	"llm.gemini_api_key",
	"storage.endpoint",
	"storage.access_key",
	"storage.secret_key",
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom behaves like Load but reads the given config file instead of
// searching the working directory for config.yaml.
func LoadFrom(configPath string) (*Config, error) {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			if configPath != "" {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
			slog.Warn("error reading config file", "error", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
