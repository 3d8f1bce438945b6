// Package config provides configuration management for the seasonal trader.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	yaml "gopkg.in/yaml.v3"
)

// Defaults applied when a field is left empty.
const (
	defaultInterval       = 15 * time.Minute
	defaultWindowOffset   = "+01:00"
	defaultAttempts       = 3
	defaultRetryDelay     = 5 * time.Second
	defaultContractTimout = 15 * time.Second
	defaultHistTimeout    = 30 * time.Second
	defaultOrderTimeout   = 20 * time.Second
	defaultSettleDelay    = 5 * time.Second
	defaultBarDuration    = "1 D"
	defaultBarSize        = "1 min"
	defaultStoragePath    = "data/seasonal.db"
	defaultStatusAddr     = "127.0.0.1:8080"
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Gateway     GatewayConfig     `yaml:"gateway"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Execution   ExecutionConfig   `yaml:"execution"`
	Storage     StorageConfig     `yaml:"storage"`
	Alerts      AlertsConfig      `yaml:"alerts"`
	Status      StatusConfig      `yaml:"status"`
	Paper       PaperConfig       `yaml:"paper"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode      string `yaml:"mode" validate:"oneof=paper live"`
	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=text json"`
}

// GatewayConfig selects and protects the broker session.
type GatewayConfig struct {
	Provider       string               `yaml:"provider" validate:"required"`
	Host           string               `yaml:"host"`
	Port           int                  `yaml:"port" validate:"min=0,max=65535"`
	ClientID       int                  `yaml:"client_id"`
	AccountID      string               `yaml:"account_id"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig tunes the gateway circuit breaker.
type CircuitBreakerConfig struct {
	Enabled      bool     `yaml:"enabled"`
	MaxRequests  uint32   `yaml:"max_requests"`
	Interval     Duration `yaml:"interval"`
	Timeout      Duration `yaml:"timeout"`
	MinRequests  uint32   `yaml:"min_requests"`
	FailureRatio float64  `yaml:"failure_ratio" validate:"min=0,max=1"`
}

// ScheduleConfig defines pass cadence and window time zone.
type ScheduleConfig struct {
	MaterializeInterval Duration `yaml:"materialize_interval"`
	ExecuteInterval     Duration `yaml:"execute_interval"`
	// WindowOffset is the fixed UTC offset ("+01:00") rule times are read in.
	WindowOffset string `yaml:"window_offset"`
}

// ExecutionConfig holds retry and timing parameters for the engine.
type ExecutionConfig struct {
	ContractAttempts  int      `yaml:"contract_attempts" validate:"min=1,max=10"`
	ContractDelay     Duration `yaml:"contract_delay"`
	ContractTimeout   Duration `yaml:"contract_timeout"`
	HistoricalTimeout Duration `yaml:"historical_timeout"`
	OrderAttempts     int      `yaml:"order_attempts" validate:"min=1,max=10"`
	OrderDelay        Duration `yaml:"order_delay"`
	OrderTimeout      Duration `yaml:"order_timeout"`
	SettleDelay       Duration `yaml:"settle_delay"`
	BarDuration       string   `yaml:"bar_duration"`
	BarSize           string   `yaml:"bar_size"`
}

// StorageConfig defines the persistence backend.
type StorageConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite json memory"`
	Path   string `yaml:"path"`
}

// AlertsConfig configures operator alert delivery.
type AlertsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig configures the Telegram notifier.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token" validate:"required_if=Enabled true"`
	ChatID  int64  `yaml:"chat_id" validate:"required_if=Enabled true"`
}

// StatusConfig configures the read-only status server.
type StatusConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"`
}

// PaperConfig configures the simulated venue used in paper mode.
type PaperConfig struct {
	Balance     decimal.Decimal   `yaml:"balance"`
	Instruments []PaperInstrument `yaml:"instruments" validate:"dive"`
}

// PaperInstrument is one contract the paper venue quotes.
type PaperInstrument struct {
	Symbol       string          `yaml:"symbol" validate:"required"`
	Exchange     string          `yaml:"exchange" validate:"required"`
	Currency     string          `yaml:"currency"`
	Multiplier   string          `yaml:"multiplier"`
	MinTick      decimal.Decimal `yaml:"min_tick"`
	Price        decimal.Decimal `yaml:"price"`
	TimeZone     string          `yaml:"time_zone"`
	SessionOpen  string          `yaml:"session_open"`
	SessionClose string          `yaml:"session_close"`
}

// Duration is a time.Duration written as "15m" or "5s" in YAML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

var validate = validator.New()

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// applyDefaults fills every unset field
func (c *Config) applyDefaults() {
	setString(&c.Environment.Mode, "paper")
	setString(&c.Environment.LogLevel, "info")
	setString(&c.Environment.LogFormat, "text")
	setString(&c.Gateway.Provider, "paper")

	cb := &c.Gateway.CircuitBreaker
	if cb.MaxRequests == 0 {
		cb.MaxRequests = 3
	}
	setDuration(&cb.Interval, 60*time.Second)
	setDuration(&cb.Timeout, 30*time.Second)
	if cb.MinRequests == 0 {
		cb.MinRequests = 5
	}
	if cb.FailureRatio == 0 {
		cb.FailureRatio = 0.6
	}

	setDuration(&c.Schedule.MaterializeInterval, defaultInterval)
	setDuration(&c.Schedule.ExecuteInterval, defaultInterval)
	setString(&c.Schedule.WindowOffset, defaultWindowOffset)

	e := &c.Execution
	if e.ContractAttempts == 0 {
		e.ContractAttempts = defaultAttempts
	}
	if e.OrderAttempts == 0 {
		e.OrderAttempts = defaultAttempts
	}
	setDuration(&e.ContractDelay, defaultRetryDelay)
	setDuration(&e.OrderDelay, defaultRetryDelay)
	setDuration(&e.ContractTimeout, defaultContractTimout)
	setDuration(&e.HistoricalTimeout, defaultHistTimeout)
	setDuration(&e.OrderTimeout, defaultOrderTimeout)
	setDuration(&e.SettleDelay, defaultSettleDelay)
	setString(&e.BarDuration, defaultBarDuration)
	setString(&e.BarSize, defaultBarSize)

	setString(&c.Storage.Driver, "sqlite")
	if c.Storage.Driver != "memory" {
		setString(&c.Storage.Path, defaultStoragePath)
	}
	setString(&c.Status.Addr, defaultStatusAddr)

	if c.Paper.Balance.IsZero() {
		c.Paper.Balance = decimal.NewFromInt(100000)
	}
}

func setString(p *string, def string) {
	if *p == "" {
		*p = def
	}
}

func setDuration(p *Duration, def time.Duration) {
	if *p == 0 {
		*p = Duration(def)
	}
}

// Validate checks that all configuration values are valid and consistent.
// Call it after defaults are applied; Load does both.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	var errs []error
	if c.Environment.Mode == "live" && c.Gateway.Provider == "paper" {
		errs = append(errs, errors.New("gateway.provider 'paper' cannot be used in live mode"))
	}
	if _, err := c.WindowLocation(); err != nil {
		errs = append(errs, err)
	}
	for name, d := range map[string]Duration{
		"schedule.materialize_interval": c.Schedule.MaterializeInterval,
		"schedule.execute_interval":     c.Schedule.ExecuteInterval,
		"execution.contract_timeout":    c.Execution.ContractTimeout,
		"execution.historical_timeout":  c.Execution.HistoricalTimeout,
		"execution.order_timeout":       c.Execution.OrderTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0", name))
		}
	}
	if c.Execution.ContractDelay < 0 || c.Execution.OrderDelay < 0 || c.Execution.SettleDelay < 0 {
		errs = append(errs, errors.New("execution delays must not be negative"))
	}
	if c.Storage.Driver != "memory" && c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}
	if c.Status.Enabled && c.Status.Addr == "" {
		errs = append(errs, errors.New("status.addr is required when status is enabled"))
	}
	if c.IsPaperTrading() {
		if !c.Paper.Balance.IsPositive() {
			errs = append(errs, errors.New("paper.balance must be > 0"))
		}
		for _, inst := range c.Paper.Instruments {
			if !inst.Price.IsPositive() {
				errs = append(errs, fmt.Errorf("paper instrument %s: price must be > 0", inst.Symbol))
			}
			if inst.TimeZone != "" {
				if _, err := time.LoadLocation(inst.TimeZone); err != nil {
					errs = append(errs, fmt.Errorf("paper instrument %s: %w", inst.Symbol, err))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// IsPaperTrading returns true if the bot is configured for paper trading.
func (c *Config) IsPaperTrading() bool {
	return c.Environment.Mode == "paper"
}

// WindowLocation returns the fixed zone seasonal rule times are interpreted in.
// Accepts "+HH:MM", "-HH:MM", "UTC" or "Z".
func (c *Config) WindowLocation() (*time.Location, error) {
	return ParseOffset(c.Schedule.WindowOffset)
}

// ParseOffset builds a fixed zone from a UTC offset string.
func ParseOffset(s string) (*time.Location, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", "UTC", "Z", "+00:00", "-00:00":
		return time.UTC, nil
	}

	invalid := fmt.Errorf("schedule.window_offset %q: want +HH:MM or -HH:MM", s)
	if len(s) != 6 || (s[0] != '+' && s[0] != '-') || s[3] != ':' {
		return nil, invalid
	}
	h, err1 := strconv.Atoi(s[1:3])
	m, err2 := strconv.Atoi(s[4:6])
	if err1 != nil || err2 != nil || h > 14 || m > 59 {
		return nil, invalid
	}
	secs := h*3600 + m*60
	if s[0] == '-' {
		secs = -secs
	}
	return time.FixedZone("UTC"+s, secs), nil
}

// LogLevel returns the configured level name, defaulting to info
func (c *Config) LogLevel() string {
	if c.Environment.LogLevel == "" {
		return "info"
	}
	return c.Environment.LogLevel
}
