package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix namespaces every environment variable, e.g. SCRY_SERVER_PORT.
const envPrefix = "SCRY"

// secretKeys have no default, so they must be bound to the environment
// explicitly for Unmarshal to see them.
var secretKeys = []string{
	"database.url",
	"auth.jwt_secret",
	"llm.gemini_api_key",
	"llm.prompt_template_path",
	"llm.base_url",
	"server.public_base_url",
	"redis.url",
	"redis.password",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("llm.model_name", "gemini-2.0-flash")

	v.SetDefault("jobs.worker_count", 4)
	v.SetDefault("jobs.queue_size", 100)
	v.SetDefault("jobs.store_timeout", 5*time.Second)
	v.SetDefault("jobs.generation_timeout", 60*time.Second)
	v.SetDefault("jobs.generation_max_retries", 3)
	v.SetDefault("jobs.generation_backoff", 500*time.Millisecond)
	v.SetDefault("jobs.generation_batch_size", 10)
	v.SetDefault("jobs.stuck_job_age", 30*time.Minute)
	v.SetDefault("jobs.stuck_job_check_interval", 5*time.Minute)

	v.SetDefault("webhook.timeout", 10*time.Second)
	v.SetDefault("webhook.concurrency", 8)
	v.SetDefault("webhook.queue_size", 256)

	v.SetDefault("practice.sync_timeout", 30*time.Second)

	v.SetDefault("redis.db", 0)

	v.SetDefault("rate_limit.requests_per_minute", 30)
	v.SetDefault("rate_limit.burst", 10)
}

// Load configuration from defaults, an optional config.yaml in the working
// directory and environment variables. Environment variables take precedence
// over values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom is Load with an explicit directory to search for config.yaml.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range secretKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
