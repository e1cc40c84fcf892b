package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	AuditBackendKafka      = "kafka"
	AuditBackendSQLite     = "sqlite"
	AuditBackendClickHouse = "clickhouse"
	AuditBackendRedis      = "redis"
	AuditBackendNone       = "none"
)

type AuditConfig struct {
	Backend    string `yaml:"backend"`
	Store      string `yaml:"store"`
	BufferSize int    `yaml:"buffer_size"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Logging struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		Output     string `yaml:"output"`
		TimeFormat string `yaml:"time_format"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Collector  struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic"`
			Interval       time.Duration `yaml:"interval"`
			CountThreshold int           `yaml:"count_threshold"`
		} `yaml:"collector"`
	} `yaml:"logging"`
	Dataset struct {
		CSVPath     string `yaml:"csv_path"`
		CatalogPath string `yaml:"catalog_path"`
	} `yaml:"dataset"`
	Models struct {
		Dir      string `yaml:"dir"`
		Lookback int    `yaml:"lookback"`
	} `yaml:"models"`
	Forecast struct {
		DefaultPrice float64       `yaml:"default_price"`
		Currency     string        `yaml:"currency"`
		Unit         string        `yaml:"unit"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"forecast"`
	Inference struct {
		Workers   int `yaml:"workers"`
		QueueSize int `yaml:"queue_size"`
	} `yaml:"inference"`
	Feed struct {
		Enabled  bool          `yaml:"enabled"`
		BaseURL  string        `yaml:"base_url"`
		APIKey   string        `yaml:"api_key"`
		Timeout  time.Duration `yaml:"timeout"`
		Retries  int           `yaml:"retries"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
		Limit    int           `yaml:"limit"`
	} `yaml:"feed"`
	Audit     AuditConfig `yaml:"audit"`
	RateLimit struct {
		Capacity     int     `yaml:"capacity"`
		RefillPerSec float64 `yaml:"refill_per_sec"`
	} `yaml:"ratelimit"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		Compress         bool          `yaml:"compress"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
		Queue    struct {
			Workers    int           `yaml:"workers"`
			RetryLimit int           `yaml:"retry_limit"`
			RetryDelay time.Duration `yaml:"retry_delay"`
		} `yaml:"queue"`
	} `yaml:"redis"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, fills defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.ApplyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from the environment. getenv is os.Getenv outside tests.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("CSV_PATH"); v != "" {
		c.Dataset.CSVPath = v
	}
	if v := getenv("CEDA_API_KEY"); v != "" {
		c.Feed.APIKey = v
		c.Feed.Enabled = true
	}
	if v := getenv("MODELS_DIR"); v != "" {
		c.Models.Dir = v
	}
	if v := strings.ToLower(getenv("AUDIT_BACKEND")); v != "" {
		c.Audit.Backend = v
		if v == AuditBackendSQLite || v == AuditBackendClickHouse {
			c.Audit.Store = v
		}
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("SQLITE_PATH"); v != "" {
		c.SQLite.Path = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Dataset.CSVPath == "" {
		c.Dataset.CSVPath = "data/india_commodity_data.csv"
	}
	if c.Models.Dir == "" {
		c.Models.Dir = "models"
	}
	if c.Models.Lookback == 0 {
		c.Models.Lookback = 30
	}
	if c.Forecast.DefaultPrice == 0 {
		c.Forecast.DefaultPrice = 2500
	}
	if c.Forecast.Currency == "" {
		c.Forecast.Currency = "INR"
	}
	if c.Forecast.Unit == "" {
		c.Forecast.Unit = "per quintal"
	}
	if c.Forecast.Timeout == 0 {
		c.Forecast.Timeout = 15 * time.Second
	}
	if c.Inference.Workers == 0 {
		c.Inference.Workers = 4
	}
	if c.Inference.QueueSize == 0 {
		c.Inference.QueueSize = 64
	}
	if c.Feed.BaseURL == "" {
		c.Feed.BaseURL = "https://api.ceda.ashoka.edu.in/v1"
	}
	if c.Feed.Timeout == 0 {
		c.Feed.Timeout = 10 * time.Second
	}
	if c.Feed.Limit == 0 {
		c.Feed.Limit = 1
	}
	if c.Audit.Backend == "" {
		c.Audit.Backend = AuditBackendSQLite
	}
	if c.Audit.Store == "" {
		c.Audit.Store = AuditBackendSQLite
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = 1024
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 20
	}
	if c.RateLimit.RefillPerSec == 0 {
		c.RateLimit.RefillPerSec = 2
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = "data/mandi_prices.db"
	}
	if c.Redis.Queue.Workers == 0 {
		c.Redis.Queue.Workers = 2
	}
	if c.Redis.Queue.RetryLimit == 0 {
		c.Redis.Queue.RetryLimit = 3
	}
	if c.Redis.Queue.RetryDelay == 0 {
		c.Redis.Queue.RetryDelay = 10 * time.Second
	}
}

// IsStore reports whether the audit backend writes straight to the store.
func (a AuditConfig) IsStore() bool {
	return a.Backend == AuditBackendSQLite || a.Backend == AuditBackendClickHouse
}

// IsBroker reports whether records travel through a broker before the store.
func (a AuditConfig) IsBroker() bool {
	return a.Backend == AuditBackendKafka || a.Backend == AuditBackendRedis
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Dataset.CSVPath == "" {
		return fmt.Errorf("dataset.csv_path is required")
	}
	if c.Models.Lookback < 1 {
		return fmt.Errorf("models.lookback must be positive, got %d", c.Models.Lookback)
	}
	if c.Forecast.DefaultPrice <= 0 {
		return fmt.Errorf("forecast.default_price must be positive")
	}
	if c.Inference.Workers < 1 {
		return fmt.Errorf("inference.workers must be at least 1")
	}

	switch c.Audit.Backend {
	case AuditBackendKafka, AuditBackendRedis, AuditBackendSQLite, AuditBackendClickHouse, AuditBackendNone:
	default:
		return fmt.Errorf("audit.backend must be one of kafka, redis, sqlite, clickhouse, none, got '%s'", c.Audit.Backend)
	}
	switch c.Audit.Store {
	case AuditBackendSQLite, AuditBackendClickHouse:
	default:
		return fmt.Errorf("audit.store must be 'sqlite' or 'clickhouse', got '%s'", c.Audit.Store)
	}
	if c.Audit.IsStore() && c.Audit.Backend != c.Audit.Store {
		return fmt.Errorf("audit.store '%s' does not match audit.backend '%s'", c.Audit.Store, c.Audit.Backend)
	}

	if c.Audit.Backend == AuditBackendKafka {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when audit.backend is kafka")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when audit.backend is kafka")
		}
	}
	if c.Audit.Backend == AuditBackendRedis && !c.Redis.Enabled {
		return fmt.Errorf("redis.enabled is required when audit.backend is redis")
	}
	if c.Feed.Enabled && c.Feed.APIKey == "" {
		return fmt.Errorf("feed.api_key is required when feed is enabled")
	}
	return nil
}
