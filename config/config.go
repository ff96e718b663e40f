package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
	Assistant  AssistantConfig  `yaml:"assistant"`
	Lock       LockConfig       `yaml:"lock"`
	Events     EventsConfig     `yaml:"events"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Sweeper    SweeperConfig    `yaml:"sweeper"`
	Sequences  SequencesConfig  `yaml:"sequences"`

	// Notices collects what Load adjusted or could not read. The logger does
	// not exist yet while loading, so the caller logs them.
	Notices []string `yaml:"-"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres, mysql or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
	EnableRangeIndexes     bool   `yaml:"enable_range_indexes"`
}

type LoggingConfig struct {
	Mode string `yaml:"mode"`
}

// AssistantConfig configures the language model used for request parsing and ranking.
type AssistantConfig struct {
	Enabled        bool          `yaml:"enabled"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	BaseURL        string        `yaml:"base_url"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
	MaxRetries     int           `yaml:"max_retries"`
	Timezone       string        `yaml:"timezone"`
}

// LockConfig selects the per-resource lock backend.
type LockConfig struct {
	Backend       string        `yaml:"backend"` // memory or redis
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTLSeconds    int           `yaml:"ttl_seconds"`
	TTL           time.Duration `yaml:"-"`
}

// EventsConfig configures domain event publishing.
type EventsConfig struct {
	Enabled     bool   `yaml:"enabled"`
	AMQPURL     string `yaml:"amqp_url"`
	QueuePrefix string `yaml:"queue_prefix"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// SweeperConfig controls the periodic asset sweep.
type SweeperConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
}

// SequencesConfig holds the code prefix per entity type.
type SequencesConfig struct {
	Asset       string `yaml:"asset"`
	Booking     string `yaml:"booking"`
	Maintenance string `yaml:"maintenance"`
}

// Load reads the configuration from the given path. Values from a .env file
// and the process environment override secrets in the file.
func Load(path string) (*Config, error) {
	var dotenvErr error
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		dotenvErr = err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	if dotenvErr != nil {
		cfg.notice("could not load .env: %v", dotenvErr)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func (c *Config) notice(format string, args ...any) {
	c.Notices = append(c.Notices, fmt.Sprintf(format, args...))
}

func applyEnv(cfg *Config) {
	setString(&cfg.Database.DSN, "DATABASE_DSN")
	setString(&cfg.Assistant.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Lock.RedisAddr, "REDIS_ADDR")
	setString(&cfg.Lock.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.Events.AMQPURL, "RABBITMQ_URL")
	setString(&cfg.Push.PublicKey, "VAPID_PUBLIC_KEY")
	setString(&cfg.Push.PrivateKey, "VAPID_PRIVATE_KEY")
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Assistant.Model == "" {
		cfg.Assistant.Model = "gemini-2.5-flash"
	}
	if cfg.Assistant.BaseURL == "" {
		cfg.Assistant.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Assistant.TimeoutSeconds <= 0 {
		cfg.Assistant.TimeoutSeconds = 30
	}
	cfg.Assistant.Timeout = time.Duration(cfg.Assistant.TimeoutSeconds) * time.Second
	if cfg.Assistant.MaxRetries < 0 {
		cfg.Assistant.MaxRetries = 0
	}
	if cfg.Assistant.Timezone == "" {
		cfg.Assistant.Timezone = "Asia/Bangkok"
	}
	if cfg.Assistant.Enabled && cfg.Assistant.APIKey == "" {
		cfg.notice("assistant.enabled is set but no API key is configured; natural-language features are disabled")
		cfg.Assistant.Enabled = false
	}

	if cfg.Lock.Backend == "" {
		cfg.Lock.Backend = "memory"
	}
	if cfg.Lock.TTLSeconds <= 0 {
		cfg.Lock.TTLSeconds = 15
	}
	cfg.Lock.TTL = time.Duration(cfg.Lock.TTLSeconds) * time.Second

	if cfg.Events.QueuePrefix == "" {
		cfg.Events.QueuePrefix = "meeting"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.notice("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Sweeper.IntervalSeconds <= 0 {
		cfg.Sweeper.IntervalSeconds = 3600
	}
	cfg.Sweeper.Interval = time.Duration(cfg.Sweeper.IntervalSeconds) * time.Second

	if cfg.Sequences.Asset == "" {
		cfg.Sequences.Asset = "AST"
	}
	if cfg.Sequences.Booking == "" {
		cfg.Sequences.Booking = "MB"
	}
	if cfg.Sequences.Maintenance == "" {
		cfg.Sequences.Maintenance = "MR"
	}
}
