package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"moexwatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	State     StateConfig     `mapstructure:"state"`
	Moex      MoexConfig      `mapstructure:"moex"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	History   HistoryConfig   `mapstructure:"history"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Chart     ChartConfig     `mapstructure:"chart"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// StateConfig locates the persisted snapshot file.
type StateConfig struct {
	Path string `mapstructure:"path"`
}

// MoexConfig covers MOEX ISS data access.
type MoexConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Board          string        `mapstructure:"board"`
	Security       string        `mapstructure:"security"`
	IndexName      string        `mapstructure:"index_name"`
	Timezone       string        `mapstructure:"timezone"`
	CandleInterval int           `mapstructure:"candle_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// TelegramConfig describes the delivery channel.
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	APIBase        string        `mapstructure:"api_base"`
	ChatIDs        []int64       `mapstructure:"chat_ids"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SchedulerConfig governs the two update cadences.
type SchedulerConfig struct {
	PriceUpdateInterval time.Duration `mapstructure:"price_update_interval"`
	ChartUpdateInterval time.Duration `mapstructure:"chart_update_interval"`
}

// HistoryConfig bounds the in-memory/persisted series.
type HistoryConfig struct {
	Retention      time.Duration `mapstructure:"retention"`
	BackfillWindow time.Duration `mapstructure:"backfill_window"`
}

// AlertingConfig defines the sliding-window move detector.
type AlertingConfig struct {
	Threshold   float64       `mapstructure:"threshold"`
	Window      time.Duration `mapstructure:"window"`
	DeleteAfter time.Duration `mapstructure:"delete_after"`
}

// ChartConfig sets chart rendering behaviour.
type ChartConfig struct {
	Lookback time.Duration `mapstructure:"lookback"`
	Width    int           `mapstructure:"width"`
	Height   int           `mapstructure:"height"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MOEXWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "moexwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("state.path", "bot_state.json")

	v.SetDefault("moex.base_url", "https://iss.moex.com/iss")
	v.SetDefault("moex.board", "SNDX")
	v.SetDefault("moex.security", "IMOEX2")
	v.SetDefault("moex.index_name", "IMOEX2 (все сессии)")
	v.SetDefault("moex.timezone", "Europe/Moscow")
	v.SetDefault("moex.candle_interval", 1)
	v.SetDefault("moex.request_timeout", "10s")
	v.SetDefault("moex.user_agent", "moexwatch/1.0")

	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.request_timeout", "30s")

	v.SetDefault("scheduler.price_update_interval", "1s")
	v.SetDefault("scheduler.chart_update_interval", "5m")

	v.SetDefault("history.retention", "6h")
	v.SetDefault("history.backfill_window", "5h")

	v.SetDefault("alerting.threshold", 15.0)
	v.SetDefault("alerting.window", "60s")
	v.SetDefault("alerting.delete_after", "1h")

	v.SetDefault("chart.lookback", "5h")
	v.SetDefault("chart.width", 1280)
	v.SetDefault("chart.height", 720)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.State.Path == "" {
		return fmt.Errorf("state.path must not be empty")
	}
	if c.Moex.Security == "" {
		return fmt.Errorf("moex.security must not be empty")
	}
	if c.Moex.CandleInterval <= 0 {
		return fmt.Errorf("moex.candle_interval must be greater than zero")
	}
	if c.Scheduler.PriceUpdateInterval <= 0 {
		return fmt.Errorf("scheduler.price_update_interval must be greater than zero")
	}
	if c.Scheduler.ChartUpdateInterval <= 0 {
		return fmt.Errorf("scheduler.chart_update_interval must be greater than zero")
	}
	if c.History.Retention <= 0 {
		return fmt.Errorf("history.retention must be greater than zero")
	}
	if c.Alerting.Threshold < 0 {
		return fmt.Errorf("alerting.threshold cannot be negative")
	}
	if c.Alerting.Window <= 0 {
		return fmt.Errorf("alerting.window must be greater than zero")
	}
	if c.Chart.Lookback <= 0 {
		return fmt.Errorf("chart.lookback must be greater than zero")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("moex.timezone: %w", err)
	}
	return nil
}

// ValidateDelivery checks the settings required for Telegram delivery.
func (c *Config) ValidateDelivery() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required (set MOEXWATCH_TELEGRAM_BOT_TOKEN)")
	}
	if len(c.Telegram.ChatIDs) == 0 {
		return fmt.Errorf("telegram.chat_ids is required (set MOEXWATCH_TELEGRAM_CHAT_IDS)")
	}
	return nil
}

// Location resolves the configured display timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Moex.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Moex.Timezone)
}
