package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	Feed struct {
		WebSocketURL   string        `yaml:"websocket_url"`
		Exchange       string        `yaml:"exchange" default:"okx"`
		Symbol         string        `yaml:"symbol" default:"BTC-USDT-SWAP"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"2s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"10s"`
	} `yaml:"feed"`
	Volatility struct {
		Window     int     `yaml:"window" default:"100"`
		MinSamples int     `yaml:"min_samples" default:"10"`
		Default    float64 `yaml:"default" default:"0.02"`
	} `yaml:"volatility"`
	Simulator struct {
		FillDelay        time.Duration `yaml:"fill_delay" default:"1s"`
		Workers          int           `yaml:"workers" default:"2"`
		PredictorTimeout time.Duration `yaml:"predictor_timeout" default:"500ms"`
	} `yaml:"simulator"`
	Impact struct {
		Steps   int     `yaml:"steps" default:"10"`
		Eta     float64 `yaml:"eta" default:"0.01"`
		Gamma   float64 `yaml:"gamma" default:"0.01"`
		Lambda  float64 `yaml:"lambda" default:"1e-6"`
		Horizon float64 `yaml:"horizon" default:"1"`
	} `yaml:"impact"`
	Audit struct {
		Backend string `yaml:"backend" default:"csv"`
		CSVPath string `yaml:"csv_path" default:"executed_trades.csv"`
	} `yaml:"audit"`
	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"executed_trades"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"costsim"`
		Table        string        `yaml:"table" default:"executed_trades"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"clickhouse"`
	Predictors struct {
		ServiceURL string        `yaml:"service_url"`
		Timeout    time.Duration `yaml:"timeout" default:"500ms"`
		FailClosed bool          `yaml:"fail_closed"`
		CacheTTL   time.Duration `yaml:"cache_ttl" default:"30s"`
		Redis      struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"predictors"`
}

// Load reads and parses a YAML configuration file, applying struct defaults
// before validation.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
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

	if v := os.Getenv("FEED_WS_URL"); v != "" {
		c.Feed.WebSocketURL = v
	}
	if v := os.Getenv("SYMBOL"); v != "" {
		c.Feed.Symbol = v
	}
	if v := os.Getenv("AUDIT_BACKEND"); v != "" {
		c.Audit.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("PREDICTOR_URL"); v != "" {
		c.Predictors.ServiceURL = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Feed.WebSocketURL == "" {
		return fmt.Errorf("feed.websocket_url is required")
	}
	if c.Feed.Symbol == "" {
		return fmt.Errorf("feed.symbol is required")
	}
	switch c.Audit.Backend {
	case "csv", "clickhouse", "kafka":
	default:
		return fmt.Errorf("audit.backend must be 'csv', 'clickhouse' or 'kafka', got '%s'", c.Audit.Backend)
	}
	if c.Audit.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when audit.backend is kafka")
	}
	if c.Audit.Backend == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when audit.backend is clickhouse")
	}
	if c.Volatility.Window <= c.Volatility.MinSamples {
		return fmt.Errorf("volatility.window must be larger than volatility.min_samples")
	}
	return nil
}
