package config

import "time"

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"`
	LLM       LLMConfig       `mapstructure:"llm" validate:"required"`
	Jobs      JobsConfig      `mapstructure:"jobs" validate:"required"`
	Webhook   WebhookConfig   `mapstructure:"webhook" validate:"required"`
	Practice  PracticeConfig  `mapstructure:"practice" validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port      int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel  string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"omitempty,oneof=json text"`
	// PublicBaseURL prefixes the status and websocket URLs returned to
	// clients. Relative URLs are returned when empty.
	PublicBaseURL   string        `mapstructure:"public_base_url" validate:"omitempty,url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"required,oneof=postgres memory"`
	URL             string        `mapstructure:"url" validate:"required_if=Driver postgres,omitempty,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// AuthConfig contains bearer token verification settings. Authentication
// is disabled when JWTSecret is empty.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
}

// Enabled reports whether requests must carry a valid bearer token.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName    string `mapstructure:"model_name" validate:"required"`
	// PromptTemplatePath overrides the embedded prompt template
	PromptTemplatePath string `mapstructure:"prompt_template_path" validate:"omitempty,file"`
	// BaseURL overrides the Gemini API endpoint
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

// JobsConfig tunes the dispatcher and the generation calls it makes.
type JobsConfig struct {
	WorkerCount           int           `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize             int           `mapstructure:"queue_size" validate:"required,gt=0"`
	StoreTimeout          time.Duration `mapstructure:"store_timeout" validate:"gt=0"`
	GenerationTimeout     time.Duration `mapstructure:"generation_timeout" validate:"gt=0"`
	GenerationMaxRetries  int           `mapstructure:"generation_max_retries" validate:"gte=0,lte=10"`
	GenerationBackoff     time.Duration `mapstructure:"generation_backoff" validate:"gt=0"`
	GenerationBatchSize   int           `mapstructure:"generation_batch_size" validate:"gt=0,lte=50"`
	StuckJobAge           time.Duration `mapstructure:"stuck_job_age" validate:"gt=0"`
	StuckJobCheckInterval time.Duration `mapstructure:"stuck_job_check_interval" validate:"gt=0"`
}

// WebhookConfig bounds outbound webhook delivery.
type WebhookConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Concurrency int64         `mapstructure:"concurrency" validate:"gt=0"`
	QueueSize   int           `mapstructure:"queue_size" validate:"gt=0"`
}

// PracticeConfig contains synchronous assignment settings.
type PracticeConfig struct {
	SyncTimeout time.Duration `mapstructure:"sync_timeout" validate:"gt=0"`
}

// RedisConfig locates the Redis instance shared by rate limiters. Limits are
// kept in process when URL is empty.
type RedisConfig struct {
	URL      string `mapstructure:"url" validate:"omitempty,url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// RateLimitConfig limits async practice submissions per principal.
// A zero RequestsPerMinute disables the limit.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute" validate:"gte=0"`
	Burst             int `mapstructure:"burst" validate:"gte=0"`
}
