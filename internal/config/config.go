package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"portfolio-watch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Portfolio PortfolioConfig `mapstructure:"portfolio"`
	Quotes    QuotesConfig    `mapstructure:"quotes"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig selects and configures the daily log store.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs when valuations run.
type SchedulerConfig struct {
	Cron            string `mapstructure:"cron"`
	Timezone        string `mapstructure:"timezone"`
	RunOnStart      bool   `mapstructure:"run_on_start"`
	AdvisoryLockKey int64  `mapstructure:"advisory_lock_key"`
}

// PortfolioConfig points at the asset list and threshold band.
type PortfolioConfig struct {
	Path string `mapstructure:"path"`
}

// QuotesConfig covers both quote sources.
type QuotesConfig struct {
	SourceTimeout      time.Duration   `mapstructure:"source_timeout"`
	Retries            int             `mapstructure:"retries"`
	RetryDelay         time.Duration   `mapstructure:"retry_delay"`
	PrimaryConcurrency int             `mapstructure:"primary_concurrency"`
	Primary            PrimaryConfig   `mapstructure:"primary"`
	Secondary          SecondaryConfig `mapstructure:"secondary"`
}

// PrimaryConfig configures the historical series source.
type PrimaryConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// SecondaryConfig configures the real-time quote source.
type SecondaryConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// AlertingConfig defines notification routing.
type AlertingConfig struct {
	Currency string         `mapstructure:"currency"`
	Timeout  time.Duration  `mapstructure:"timeout"`
	Email    EmailConfig    `mapstructure:"email"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// EmailConfig holds SMTP delivery settings.
type EmailConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
	TLS      string   `mapstructure:"tls"`
}

// TelegramConfig describes the Telegram alert channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PORTFOLIOWATCH")
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
	v.SetDefault("app.name", "portfoliowatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite_path", "db/portfolio.sqlite")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")

	// after the US close on weekdays
	v.SetDefault("scheduler.cron", "0 30 22 * * 1-5")
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.run_on_start", false)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x706f7274))

	v.SetDefault("portfolio.path", "data/portfolio.json")

	v.SetDefault("quotes.source_timeout", "20s")
	v.SetDefault("quotes.retries", 0)
	v.SetDefault("quotes.retry_delay", "500ms")
	v.SetDefault("quotes.primary_concurrency", 4)
	v.SetDefault("quotes.primary.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("quotes.primary.request_timeout", "10s")
	v.SetDefault("quotes.primary.user_agent", "Mozilla/5.0")
	v.SetDefault("quotes.secondary.enabled", true)
	v.SetDefault("quotes.secondary.base_url", "https://assets.msn.com")
	v.SetDefault("quotes.secondary.request_timeout", "10s")
	v.SetDefault("quotes.secondary.user_agent", "portfoliowatch/1.0")

	v.SetDefault("alerting.currency", "USD")
	v.SetDefault("alerting.timeout", "15s")
	v.SetDefault("alerting.email.enabled", false)
	v.SetDefault("alerting.email.port", 587)
	v.SetDefault("alerting.email.tls", "opportunistic")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 5000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	case "sqlite", "none", "":
	default:
		return fmt.Errorf("database.driver must be one of postgres, sqlite, none; got %q", c.Database.Driver)
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Cron == "" {
		return fmt.Errorf("scheduler.cron must be set")
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone: %w", err)
	}
	if c.Portfolio.Path == "" {
		return fmt.Errorf("portfolio.path must be set")
	}
	if c.Quotes.Retries < 0 {
		return fmt.Errorf("quotes.retries cannot be negative")
	}
	if c.Quotes.SourceTimeout <= 0 {
		return fmt.Errorf("quotes.source_timeout must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
