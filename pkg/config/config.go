package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"dev" validate:"required,oneof=dev prod"`

	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`

	Server struct {
		Enabled         bool          `yaml:"enabled" default:"true"`
		Port            int           `yaml:"port" default:"8080"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"5s"`
	} `yaml:"server"`

	ClickHouse struct {
		Host         string        `yaml:"host" default:"localhost" validate:"required"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"macropull"`
		Table        string        `yaml:"table" default:"daily_indicators"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"clickhouse"`

	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"macro.daily_indicators"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		MaxAttempts  int      `yaml:"max_attempts" default:"3"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`

	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr" default:"localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl" default:"72h"`
	} `yaml:"redis"`

	FRED struct {
		BaseURL      string        `yaml:"base_url" default:"https://api.stlouisfed.org/fred"`
		APIKeys      []string      `yaml:"api_keys"`
		WindowLimit  int           `yaml:"window_limit" default:"100"`
		Window       time.Duration `yaml:"window" default:"1m"`
		MaxRetries   int           `yaml:"max_retries" default:"4"`
		RetryBase    time.Duration `yaml:"retry_base" default:"500ms"`
		RetryMax     time.Duration `yaml:"retry_max" default:"30s"`
		DefaultRetryAfter time.Duration `yaml:"default_retry_after" default:"20s"`
		Timeout      time.Duration `yaml:"timeout" default:"15s"`
	} `yaml:"fred"`

	Yahoo struct {
		BaseURL  string        `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
		BootURL  string        `yaml:"boot_url" default:"https://finance.yahoo.com/quote/%5EVIX"`
		CrumbTTL time.Duration `yaml:"crumb_ttl" default:"30m"`
		MaxRetries int         `yaml:"max_retries" default:"3"`
		Timeout  time.Duration `yaml:"timeout" default:"15s"`
	} `yaml:"yahoo"`

	AlphaVantage struct {
		BaseURL    string        `yaml:"base_url" default:"https://www.alphavantage.co"`
		APIKey     string        `yaml:"api_key"`
		DailyQuota int           `yaml:"daily_quota" default:"25"`
		Timeout    time.Duration `yaml:"timeout" default:"15s"`
	} `yaml:"alphavantage"`

	Ingestion struct {
		AnomalyThresholdPct float64       `yaml:"anomaly_threshold_pct" default:"50"`
		CrossCheckTolerance float64       `yaml:"cross_check_tolerance" default:"0.05"`
		PersistMaxAttempts  int           `yaml:"persist_max_attempts" default:"4"`
		PersistRetryBase    time.Duration `yaml:"persist_retry_base" default:"1s"`
		PersistRetryMax     time.Duration `yaml:"persist_retry_max" default:"15s"`
	} `yaml:"ingestion"`

	Backfill struct {
		RequestsPerKey int           `yaml:"requests_per_key" default:"100"`
		CyclePause     time.Duration `yaml:"cycle_pause" default:"10m"`
		PerDateDelay   time.Duration `yaml:"per_date_delay" default:"2s"`
		ProgressEvery  int           `yaml:"progress_every" default:"25"`
	} `yaml:"backfill"`
}

// Load reads and parses a YAML configuration file, applies defaults and
// validates it. Configuration errors fail fast, before any provider
// call is attempted.
func Load(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides credentials and
// endpoints from environment variables.
func LoadWithEnv(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if path != "" && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FRED_API_KEYS"); v != "" {
		keys := strings.Split(v, ",")
		c.FRED.APIKeys = c.FRED.APIKeys[:0]
		for _, k := range keys {
			if k = strings.TrimSpace(k); k != "" {
				c.FRED.APIKeys = append(c.FRED.APIKeys, k)
			}
		}
	}
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		c.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
}

// Validate checks the configuration. A missing mandatory credential is
// a startup failure, never discovered mid-run.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if len(c.FRED.APIKeys) == 0 {
		return fmt.Errorf("fred.api_keys is required (or set FRED_API_KEYS)")
	}
	for i, k := range c.FRED.APIKeys {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("fred.api_keys[%d] is empty", i)
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.Ingestion.AnomalyThresholdPct <= 0 {
		return fmt.Errorf("ingestion.anomaly_threshold_pct must be positive")
	}
	if c.Backfill.RequestsPerKey <= 0 {
		return fmt.Errorf("backfill.requests_per_key must be positive")
	}
	return nil
}
