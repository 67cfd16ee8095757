package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"TradePulse/internal/domain/models"
)

// Config is the full runtime configuration, loaded from YAML with
// environment overrides.
type Config struct {
	Environment string `yaml:"environment" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Engine struct {
		Symbols            []string      `yaml:"symbols" validate:"min=1"`
		Timeframe          string        `yaml:"timeframe" default:"5m"`
		CandleLookback     int           `yaml:"candle_lookback" default:"100" validate:"gt=0"`
		RefreshInterval    time.Duration `yaml:"refresh_interval" default:"25s"`
		EntryScanInterval  time.Duration `yaml:"entry_scan_interval" default:"60s"`
		RefreshWorkers     int           `yaml:"refresh_workers" default:"8" validate:"gt=0"`
		MaxOpenPositions   int           `yaml:"max_open_positions" default:"5" validate:"gt=0"`
		OrderQty           float64       `yaml:"order_qty" validate:"gt=0"`
		OrderTimeout       time.Duration `yaml:"order_timeout" default:"10s"`
		ExchangeTimeout    time.Duration `yaml:"exchange_timeout" default:"5s"`
		SnapshotTimeout    time.Duration `yaml:"snapshot_timeout" default:"2s"`
		ReconcileTolerance time.Duration `yaml:"reconcile_tolerance" default:"10s"`
		EMAFast            int           `yaml:"ema_fast" default:"9" validate:"gt=0"`
		EMASlow            int           `yaml:"ema_slow" default:"21" validate:"gt=0"`
		MaturityMinCandles int           `yaml:"maturity_min_candles" default:"28" validate:"gt=0"`
		AdvisorMinConf     float64       `yaml:"advisor_min_confidence" default:"0.7"`
		StrictInvariants   bool          `yaml:"strict_invariants"`
	} `yaml:"engine"`
	Filters models.FilterConfig  `yaml:"filters"`
	Protect models.ProtectConfig `yaml:"protect"`
	Exchange struct {
		Mode      string        `yaml:"mode" default:"paper" validate:"oneof=paper bybit"`
		RestURL   string        `yaml:"rest_url" default:"https://api.bybit.com"`
		WsURL     string        `yaml:"ws_url" default:"wss://stream.bybit.com/v5/public/linear"`
		APIKey    string        `yaml:"api_key"`
		APISecret string        `yaml:"api_secret"`
		Category  string        `yaml:"category" default:"linear"`
		Timeout   time.Duration `yaml:"timeout" default:"10s"`
		Stream    struct {
			Enabled        bool          `yaml:"enabled"`
			ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
			PingInterval   time.Duration `yaml:"ping_interval" default:"20s"`
		} `yaml:"stream"`
	} `yaml:"exchange"`
	History struct {
		Backend string `yaml:"backend" default:"none" validate:"oneof=kafka clickhouse none"`
	} `yaml:"history"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"tradepulse"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"tradepulse.trades"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"500ms"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		Async        bool          `yaml:"async" default:"true"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"tradepulse"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		AsyncInsert  bool          `yaml:"async_insert" default:"true"`
		WaitForAsync bool          `yaml:"wait_for_async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"clickhouse"`
}

var validate = validator.New()

// Load reads, defaults, parses, and validates a YAML configuration file.
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

// LoadWithEnv loads config from YAML and overrides with environment
// variables. Secrets in particular are expected to come from the
// environment, not the file.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Engine.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("EXCHANGE_MODE"); v != "" {
		c.Exchange.Mode = v
	}
	if v := os.Getenv("EXCHANGE_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("EXCHANGE_API_SECRET"); v != "" {
		c.Exchange.APISecret = v
	}
	if v := os.Getenv("HISTORY_BACKEND"); v != "" {
		c.History.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks the configuration, including the filter and protect
// thresholds the decision layer will run on.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Exchange.Mode == "bybit" && c.Exchange.APIKey == "" {
		return fmt.Errorf("exchange.api_key is required in bybit mode")
	}
	if c.History.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when history.backend is kafka")
	}
	if c.History.Backend == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when history.backend is clickhouse")
	}
	if c.Filters.RSIEntryLong >= c.Filters.RSIEntryShort {
		return fmt.Errorf("filters: rsi_entry_long must be below rsi_entry_short")
	}
	return nil
}
