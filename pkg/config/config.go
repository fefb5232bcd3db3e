package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override, e.g. FINCAST_SERVER_PORT.
const EnvPrefix = "FINCAST"

// Market data sources.
const (
	SourceYahoo      = "yahoo"
	SourceClickHouse = "clickhouse"
)

// Market data cache backends.
const (
	CacheNone    = "none"
	CacheMemory  = "memory"
	CacheRedis   = "redis"
	CacheLayered = "layered"
)

type Config struct {
	Environment string `yaml:"environment" envconfig:"ENV"`
	Server      struct {
		Host            string        `yaml:"host" envconfig:"HOST"`
		Port            int           `yaml:"port" envconfig:"PORT"`
		ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
		WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
		RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" envconfig:"SLOW_THRESHOLD"`
		CORS            bool          `yaml:"cors" envconfig:"CORS"`
	} `yaml:"server" envconfig:"SERVER"`
	Logging struct {
		Level  string `yaml:"level" envconfig:"LEVEL"`
		Format string `yaml:"format" envconfig:"FORMAT"`
		Output string `yaml:"output" envconfig:"OUTPUT"`
	} `yaml:"logging" envconfig:"LOG"`
	Metrics struct {
		Enabled bool `yaml:"enabled" envconfig:"ENABLED"`
	} `yaml:"metrics" envconfig:"METRICS"`
	Registry struct {
		ModelDir     string   `yaml:"model_dir" envconfig:"MODEL_DIR"`
		ModelSuffix  string   `yaml:"model_suffix" envconfig:"MODEL_SUFFIX"`
		ScalerSuffix string   `yaml:"scaler_suffix" envconfig:"SCALER_SUFFIX"`
		Instruments  []string `yaml:"instruments" envconfig:"INSTRUMENTS"`
		Cache        struct {
			Enabled bool          `yaml:"enabled" envconfig:"ENABLED"`
			TTL     time.Duration `yaml:"ttl" envconfig:"TTL"`
			Watch   bool          `yaml:"watch" envconfig:"WATCH"`
		} `yaml:"cache" envconfig:"CACHE"`
	} `yaml:"registry" envconfig:"REGISTRY"`
	MarketData struct {
		Source       string        `yaml:"source" envconfig:"SOURCE"`
		Timeout      time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
		RetryMax     int           `yaml:"retry_max" envconfig:"RETRY_MAX"`
		RetryBackoff time.Duration `yaml:"retry_backoff" envconfig:"RETRY_BACKOFF"`
		Yahoo        struct {
			BaseURL   string `yaml:"base_url" envconfig:"BASE_URL"`
			UserAgent string `yaml:"user_agent" envconfig:"USER_AGENT"`
		} `yaml:"yahoo" envconfig:"YAHOO"`
		Cache struct {
			Backend    string        `yaml:"backend" envconfig:"BACKEND"`
			TTL        time.Duration `yaml:"ttl" envconfig:"TTL"`
			MaxEntries int           `yaml:"max_entries" envconfig:"MAX_ENTRIES"`
		} `yaml:"cache" envconfig:"CACHE"`
	} `yaml:"market_data" envconfig:"MARKET_DATA"`
	ClickHouse struct {
		Host             string        `yaml:"host" envconfig:"HOST"`
		Port             int           `yaml:"port" envconfig:"PORT"`
		Database         string        `yaml:"database" envconfig:"DATABASE"`
		User             string        `yaml:"user" envconfig:"USER"`
		Password         string        `yaml:"password" envconfig:"PASSWORD"`
		UseHTTP          bool          `yaml:"use_http" envconfig:"USE_HTTP"`
		DialTimeout      time.Duration `yaml:"dial_timeout" envconfig:"DIAL_TIMEOUT"`
		ReadTimeout      time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" envconfig:"MAX_EXECUTION_TIME"`
		InitSchema       bool          `yaml:"init_schema" envconfig:"INIT_SCHEMA"`
	} `yaml:"clickhouse" envconfig:"CLICKHOUSE"`
	Redis struct {
		Host     string `yaml:"host" envconfig:"HOST"`
		Port     int    `yaml:"port" envconfig:"PORT"`
		Password string `yaml:"password" envconfig:"PASSWORD"`
		DB       int    `yaml:"db" envconfig:"DB"`
		Prefix   string `yaml:"prefix" envconfig:"PREFIX"`
	} `yaml:"redis" envconfig:"REDIS"`
}

// Default returns the configuration used for any key the YAML file leaves out.
func Default() *Config {
	var c Config
	c.Environment = "development"

	c.Server.Host = "0.0.0.0"
	c.Server.Port = 8080
	c.Server.ReadTimeout = 10 * time.Second
	c.Server.WriteTimeout = 30 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Server.RequestTimeout = 20 * time.Second
	c.Server.SlowThreshold = 2 * time.Second
	c.Server.CORS = true

	c.Logging.Level = "info"
	c.Logging.Format = "json"
	c.Logging.Output = "stdout"

	c.Metrics.Enabled = true

	c.Registry.ModelDir = "models"
	c.Registry.ModelSuffix = "_model.json"
	c.Registry.ScalerSuffix = "_scaler.json"
	c.Registry.Cache.Enabled = true
	c.Registry.Cache.TTL = time.Hour
	c.Registry.Cache.Watch = true

	c.MarketData.Source = SourceYahoo
	c.MarketData.Timeout = 10 * time.Second
	c.MarketData.RetryMax = 2
	c.MarketData.RetryBackoff = 500 * time.Millisecond
	c.MarketData.Yahoo.BaseURL = "https://query1.finance.yahoo.com"
	c.MarketData.Yahoo.UserAgent = "Mozilla/5.0 (compatible; FinCast/1.0)"
	c.MarketData.Cache.Backend = CacheMemory
	c.MarketData.Cache.TTL = 15 * time.Minute
	c.MarketData.Cache.MaxEntries = 256

	c.ClickHouse.Port = 9000
	c.ClickHouse.Database = "default"
	c.ClickHouse.User = "default"
	c.ClickHouse.DialTimeout = 5 * time.Second
	c.ClickHouse.ReadTimeout = 10 * time.Second

	c.Redis.Host = "localhost"
	c.Redis.Port = 6379
	c.Redis.Prefix = "fincast"
	return &c
}

// Load reads and parses a YAML configuration file on top of Default.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with FINCAST_* environment
// variables. Each envFile that exists is loaded first without overriding
// variables already set in the process; ".env" is tried when none are given.
// An empty path skips the YAML file and starts from Default.
func LoadWithEnv(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}
	if c.Registry.ModelDir == "" {
		return fmt.Errorf("registry.model_dir is required")
	}
	if c.Registry.ModelSuffix == "" || c.Registry.ScalerSuffix == "" {
		return fmt.Errorf("registry.model_suffix and registry.scaler_suffix are required")
	}
	if c.Registry.ModelSuffix == c.Registry.ScalerSuffix {
		return fmt.Errorf("registry.model_suffix and registry.scaler_suffix must differ")
	}
	if c.Registry.Cache.Enabled && c.Registry.Cache.TTL <= 0 {
		return fmt.Errorf("registry.cache.ttl must be positive when the cache is enabled")
	}

	switch c.MarketData.Source {
	case SourceYahoo:
		if c.MarketData.Yahoo.BaseURL == "" {
			return fmt.Errorf("market_data.yahoo.base_url is required")
		}
	case SourceClickHouse:
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required when market_data.source is '%s'", SourceClickHouse)
		}
	default:
		return fmt.Errorf("market_data.source must be '%s' or '%s', got '%s'", SourceYahoo, SourceClickHouse, c.MarketData.Source)
	}
	if c.MarketData.Timeout <= 0 {
		return fmt.Errorf("market_data.timeout must be positive")
	}
	if c.MarketData.RetryMax < 0 {
		return fmt.Errorf("market_data.retry_max cannot be negative")
	}

	switch c.MarketData.Cache.Backend {
	case "", CacheNone, CacheMemory:
	case CacheRedis, CacheLayered:
		if c.Redis.Host == "" {
			return fmt.Errorf("redis.host is required for market_data.cache.backend '%s'", c.MarketData.Cache.Backend)
		}
	default:
		return fmt.Errorf("market_data.cache.backend must be one of none, memory, redis, layered, got '%s'", c.MarketData.Cache.Backend)
	}
	if c.MarketData.Cache.Backend != "" && c.MarketData.Cache.Backend != CacheNone && c.MarketData.Cache.TTL <= 0 {
		return fmt.Errorf("market_data.cache.ttl must be positive")
	}
	return nil
}
