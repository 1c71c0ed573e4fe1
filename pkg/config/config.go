package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"BrentCast/pkg/logger"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string        `yaml:"environment" default:"development"`
	Log         logger.Config `yaml:"log"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"5000"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors" default:"true"`
		// BarePayloads serves the unwrapped bodies older dashboard clients expect.
		BarePayloads bool `yaml:"bare_payloads"`
	} `yaml:"server"`
	Metrics struct {
		Enabled       bool          `yaml:"enabled" default:"true"`
		Path          string        `yaml:"path" default:"/metrics"`
		SlowThreshold time.Duration `yaml:"slow_threshold" default:"2s"`
	} `yaml:"metrics"`
	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		Endpoint    string  `yaml:"endpoint" default:"localhost:4317"`
		Insecure    bool    `yaml:"insecure" default:"true"`
		ServiceName string  `yaml:"service_name" default:"brentcast"`
		SampleRatio float64 `yaml:"sample_ratio" default:"1"`
	} `yaml:"tracing"`
	Artifacts struct {
		Dir    string `yaml:"dir" default:"models"`
		ARIMA  string `yaml:"arima" default:"arima.json"`
		GARCH  string `yaml:"garch" default:"garch.json"`
		VAR    string `yaml:"var" default:"var.json"`
		LSTM   string `yaml:"lstm" default:"lstm.json"`
		Scaler string `yaml:"scaler" default:"scaler.json"`
		// Remote inference for artifacts whose backend is "remote".
		RemoteTimeout time.Duration `yaml:"remote_timeout" default:"5s"`
	} `yaml:"artifacts"`
	History struct {
		Backend string `yaml:"backend" default:"csv"` // csv, clickhouse, sqlite
		Path    string `yaml:"path" default:"data/brent_data.csv"`
		Table   string `yaml:"table" default:"brent_prices"`
	} `yaml:"history"`
	Forecast struct {
		Timeout      time.Duration `yaml:"timeout" default:"10s"`
		DefaultSteps int           `yaml:"default_steps" default:"30"`
		MaxSteps     int           `yaml:"max_steps" default:"3650"`
		VARTarget    string        `yaml:"var_target"`
	} `yaml:"forecast"`
	Cache struct {
		Enabled    bool          `yaml:"enabled" default:"true"`
		Mode       string        `yaml:"mode" default:"memory"` // memory or layered
		TTL        time.Duration `yaml:"ttl" default:"10m"`
		MaxEntries int           `yaml:"max_entries" default:"1000"`
	} `yaml:"cache"`
	Redis struct {
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"brentcast"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"brentcast.forecasts"`
		LogTopic     string   `yaml:"log_topic" default:"brentcast.logs"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async" default:"true"`
		} `yaml:"producer"`
		LogFlush time.Duration `yaml:"log_flush" default:"30s"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"brentcast"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	RateLimit struct {
		Enabled bool    `yaml:"enabled" default:"true"`
		RPS     float64 `yaml:"rps" default:"20"`
		Burst   int     `yaml:"burst" default:"40"`
	} `yaml:"ratelimit"`
	// Report overrides entries of the static model quality report.
	Report map[string]map[string]any `yaml:"report"`
}

// Default returns a config populated only from struct defaults.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A missing file is tolerated so the service can run on defaults and env alone.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if _, statErr := os.Stat(path); statErr == nil {
		c, err = Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		c = Default()
	}

	applyEnv(c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("BRENTCAST_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("BRENTCAST_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("BRENTCAST_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("BRENTCAST_ARTIFACTS_DIR"); v != "" {
		c.Artifacts.Dir = v
	}
	if v := os.Getenv("BRENTCAST_HISTORY_BACKEND"); v != "" {
		c.History.Backend = v
	}
	if v := os.Getenv("BRENTCAST_HISTORY_PATH"); v != "" {
		c.History.Path = v
	}
	if v := os.Getenv("BRENTCAST_FORECAST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Forecast.Timeout = d
		}
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Tracing.Endpoint = v
		c.Tracing.Enabled = true
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.History.Backend {
	case "csv", "sqlite":
		if c.History.Path == "" {
			return fmt.Errorf("history.path is required for backend %q", c.History.Backend)
		}
	case "clickhouse":
		if c.History.Table == "" {
			return fmt.Errorf("history.table is required for backend clickhouse")
		}
	default:
		return fmt.Errorf("history.backend must be 'csv', 'sqlite' or 'clickhouse', got '%s'", c.History.Backend)
	}
	if c.Forecast.Timeout <= 0 {
		return fmt.Errorf("forecast.timeout must be positive")
	}
	if c.Forecast.DefaultSteps < 1 {
		return fmt.Errorf("forecast.default_steps must be >= 1")
	}
	if c.Forecast.MaxSteps < c.Forecast.DefaultSteps {
		return fmt.Errorf("forecast.max_steps (%d) below default_steps (%d)", c.Forecast.MaxSteps, c.Forecast.DefaultSteps)
	}
	if c.Cache.Mode != "memory" && c.Cache.Mode != "layered" {
		return fmt.Errorf("cache.mode must be 'memory' or 'layered', got '%s'", c.Cache.Mode)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("ratelimit.rps and ratelimit.burst must be positive")
	}
	return nil
}

// ArtifactPath joins the artifact directory with a configured file name.
func (c *Config) ArtifactPath(name string) string {
	if name == "" || strings.HasPrefix(name, "/") || c.Artifacts.Dir == "" {
		return name
	}
	return strings.TrimSuffix(c.Artifacts.Dir, "/") + "/" + name
}
