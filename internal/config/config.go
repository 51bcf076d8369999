package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Dhan       DhanConfig       `mapstructure:"dhan"`
	Instrument InstrumentConfig `mapstructure:"instrument"`
	Signal     SignalConfig     `mapstructure:"signal"`
	Session    SessionConfig    `mapstructure:"session"`
	Poll       PollConfig       `mapstructure:"poll"`
	Market     MarketConfig     `mapstructure:"market"`
	Server     ServerConfig     `mapstructure:"server"`
	Export     ExportConfig     `mapstructure:"export"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type DhanConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	ClientID      string  `mapstructure:"client_id"`
	AccessToken   string  `mapstructure:"access_token"`
	TimeoutSec    int     `mapstructure:"timeout_sec"`
	RetryCount    int     `mapstructure:"retry_count"`
	RetryDelay    int     `mapstructure:"retry_delay_sec"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
}

// Candidate is one (security id, segment) pair tried during expiry discovery.
type Candidate struct {
	SecurityID int    `mapstructure:"security_id"`
	Segment    string `mapstructure:"segment"`
}

type InstrumentConfig struct {
	Name           string      `mapstructure:"name"`
	SecurityID     int         `mapstructure:"security_id"`
	Segment        string      `mapstructure:"segment"`
	InstrumentType string      `mapstructure:"instrument_type"`
	Candidates     []Candidate `mapstructure:"candidates"`
	// ExpiryWeekday enables a computed weekly expiry when discovery fails.
	ExpiryWeekday    string `mapstructure:"expiry_weekday"`
	ExpiryCutoffHour int    `mapstructure:"expiry_cutoff_hour"`
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

// Weekday parses ExpiryWeekday. ok is false when the fallback is disabled
// or the name is unknown.
func (c InstrumentConfig) Weekday() (time.Weekday, bool) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(c.ExpiryWeekday))]
	return d, ok
}

type SignalConfig struct {
	EMASpan        int     `mapstructure:"ema_span"`
	RSIPeriod      int     `mapstructure:"rsi_period"`
	UseRSI         bool    `mapstructure:"use_rsi"`
	BuyRSI         float64 `mapstructure:"buy_rsi"`
	SellRSI        float64 `mapstructure:"sell_rsi"`
	Window         int     `mapstructure:"window"`
	Lookback       int     `mapstructure:"lookback"`
	GammaThreshold float64 `mapstructure:"gamma_threshold"`
}

type SessionConfig struct {
	MaxHistory int `mapstructure:"max_history"`
}

type PollConfig struct {
	IntervalSec int  `mapstructure:"interval_sec"`
	Countdown   bool `mapstructure:"countdown"`
	Backfill    bool `mapstructure:"backfill"`
}

type MarketConfig struct {
	EnforceHours bool   `mapstructure:"enforce_hours"`
	Timezone     string `mapstructure:"timezone"`
	Open         string `mapstructure:"open"`
	Close        string `mapstructure:"close"`
}

type ServerConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	WSEnabled bool   `mapstructure:"ws_enabled"`
	// SSE feed on /api/v1/signal/stream
	SSEEnabled      bool `mapstructure:"sse_enabled"`
	SSEHeartbeatSec int  `mapstructure:"sse_heartbeat_sec"`
}

type ExportConfig struct {
	OnExitPath string `mapstructure:"on_exit_path"`
}

type LoggingConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Directory  string `mapstructure:"directory"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// PollInterval returns the wait between cycles.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSec) * time.Second
}

// Load reads configuration from defaults, an optional YAML file and the
// environment (OISCALPER_ prefix). A .env file in the working directory is
// loaded into the environment first if present.
func Load(configPath string) (*Config, error) {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("OISCALPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Credentials use the brokerage's conventional names
	_ = v.BindEnv("dhan.client_id", "DHAN_CLIENT_ID", "OISCALPER_DHAN_CLIENT_ID")
	_ = v.BindEnv("dhan.access_token", "DHAN_ACCESS_TOKEN", "OISCALPER_DHAN_ACCESS_TOKEN")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if len(cfg.Instrument.Candidates) == 0 {
		cfg.Instrument.Candidates = []Candidate{{
			SecurityID: cfg.Instrument.SecurityID,
			Segment:    cfg.Instrument.Segment,
		}}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dhan.base_url", "https://api.dhan.co")
	v.SetDefault("dhan.timeout_sec", 30)
	v.SetDefault("dhan.retry_count", 2)
	v.SetDefault("dhan.retry_delay_sec", 3)
	// option chain endpoint allows one request every 3 seconds
	v.SetDefault("dhan.rate_per_second", 0.33)

	v.SetDefault("instrument.name", "NIFTY")
	v.SetDefault("instrument.security_id", 13)
	v.SetDefault("instrument.segment", "IDX_I")
	v.SetDefault("instrument.instrument_type", "INDEX")
	v.SetDefault("instrument.expiry_weekday", "")
	v.SetDefault("instrument.expiry_cutoff_hour", 15)

	v.SetDefault("signal.ema_span", 9)
	v.SetDefault("signal.rsi_period", 14)
	v.SetDefault("signal.use_rsi", true)
	v.SetDefault("signal.buy_rsi", 55.0)
	v.SetDefault("signal.sell_rsi", 45.0)
	v.SetDefault("signal.window", 5)
	v.SetDefault("signal.lookback", 3)
	v.SetDefault("signal.gamma_threshold", 20.0)

	v.SetDefault("session.max_history", 500)

	v.SetDefault("poll.interval_sec", 180)
	v.SetDefault("poll.countdown", false)
	v.SetDefault("poll.backfill", true)

	v.SetDefault("market.enforce_hours", false)
	v.SetDefault("market.timezone", "Asia/Kolkata")
	v.SetDefault("market.open", "09:15")
	v.SetDefault("market.close", "15:30")

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.ws_enabled", true)
	v.SetDefault("server.sse_enabled", true)
	v.SetDefault("server.sse_heartbeat_sec", 15)

	v.SetDefault("export.on_exit_path", "")

	v.SetDefault("logging.enabled", false)
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 14)
}
