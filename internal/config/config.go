package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"dayahead/internal/logging"
	"dayahead/internal/model"
	"dayahead/internal/tax"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Entsoe     EntsoeConfig     `mapstructure:"entsoe"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Tax        TaxConfig        `mapstructure:"tax"`
	API        APIConfig        `mapstructure:"api"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates TimescaleDB connectivity.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
	RefreshViews    []string      `mapstructure:"refresh_views"`
}

// ClickHouseConfig describes the append store.
type ClickHouseConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Addr           []string      `mapstructure:"addr"`
	Database       string        `mapstructure:"database"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	MigrationsPath string        `mapstructure:"migrations_path"`
}

// EntsoeConfig captures transparency platform connectivity.
type EntsoeConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	SecurityToken  string        `mapstructure:"security_token"`
	DocumentType   string        `mapstructure:"document_type"`
	InDomain       string        `mapstructure:"in_domain"`
	OutDomain      string        `mapstructure:"out_domain"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// Pair returns the configured domain pair.
func (c EntsoeConfig) Pair() model.DomainPair {
	return model.DomainPair{In: c.InDomain, Out: c.OutDomain}
}

// SyncConfig governs what gets fetched.
type SyncConfig struct {
	StartTime       time.Time     `mapstructure:"start_time"`
	IntervalDays    int           `mapstructure:"interval_days"`
	MaxRequestSpan  time.Duration `mapstructure:"max_request_span"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// SchedulerConfig governs the background loop cadence.
type SchedulerConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Interval       time.Duration `mapstructure:"interval"`
	AlignToBucket  bool          `mapstructure:"align_to_bucket"`
	StartupDelay   time.Duration `mapstructure:"startup_delay"`
	RunImmediately bool          `mapstructure:"run_immediately"`
}

// TaxConfig points at the tax schedule.
type TaxConfig struct {
	ScheduleFile string  `mapstructure:"schedule_file"`
	DefaultRate  float64 `mapstructure:"default_rate"`

	// Windows is populated from ScheduleFile during Load.
	Windows []tax.Window `mapstructure:"-"`
}

// APIConfig configures the REST trigger surface.
type APIConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	ListenAddr     string   `mapstructure:"listen_addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Cooldown time.Duration  `mapstructure:"cooldown"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
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
	v.SetEnvPrefix("DAYAHEAD")
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

	if cfg.Tax.ScheduleFile != "" {
		windows, err := tax.LoadFile(cfg.Tax.ScheduleFile)
		if err != nil {
			return nil, err
		}
		cfg.Tax.Windows = windows
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
	v.SetDefault("app.name", "dayahead")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.max_size_mb", 100)
	v.SetDefault("logging.file.max_backups", 5)
	v.SetDefault("logging.file.max_age_days", 30)

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations/timescale")

	v.SetDefault("clickhouse.enabled", false)
	v.SetDefault("clickhouse.addr", []string{"localhost:9000"})
	v.SetDefault("clickhouse.database", "default")
	v.SetDefault("clickhouse.username", "default")
	v.SetDefault("clickhouse.dial_timeout", "10s")
	v.SetDefault("clickhouse.migrations_path", "migrations/clickhouse")

	v.SetDefault("entsoe.base_url", "https://web-api.tp.entsoe.eu/api")
	v.SetDefault("entsoe.document_type", model.DocumentTypeDayAhead)
	v.SetDefault("entsoe.in_domain", "10YFI-1--------U")
	v.SetDefault("entsoe.out_domain", "10YFI-1--------U")
	v.SetDefault("entsoe.request_timeout", "60s")

	v.SetDefault("sync.start_time", "2023-01-01T00:00:00Z")
	v.SetDefault("sync.interval_days", 2)
	v.SetDefault("sync.max_request_span", "8880h")
	v.SetDefault("sync.advisory_lock_key", int64(0x64617961))

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.align_to_bucket", false)
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.run_immediately", true)

	v.SetDefault("tax.default_rate", tax.DefaultRate)

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.allowed_origins", []string{"*"})

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Sync.IntervalDays <= 0 {
		return fmt.Errorf("sync.interval_days must be greater than zero")
	}
	if c.Sync.MaxRequestSpan <= 0 {
		return fmt.Errorf("sync.max_request_span must be greater than zero")
	}
	if c.Sync.StartTime.IsZero() {
		return fmt.Errorf("sync.start_time is required")
	}
	if err := c.Entsoe.Pair().Validate(); err != nil {
		return fmt.Errorf("entsoe: %w", err)
	}
	if c.Entsoe.RequestTimeout <= 0 {
		return fmt.Errorf("entsoe.request_timeout must be greater than zero")
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when database is enabled")
	}
	if c.ClickHouse.Enabled && len(c.ClickHouse.Addr) == 0 {
		return fmt.Errorf("clickhouse.addr is required when clickhouse is enabled")
	}
	if c.Tax.DefaultRate < 0 {
		return fmt.Errorf("tax.default_rate cannot be negative")
	}
	if err := tax.Validate(c.Tax.Windows); err != nil {
		return fmt.Errorf("tax schedule: %w", err)
	}
	if c.API.Enabled && c.API.ListenAddr == "" {
		return fmt.Errorf("api.listen_addr is required when api is enabled")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// Backends lists the names of the enabled storage backends.
func (c *Config) Backends() []string {
	var names []string
	if c.Database.Enabled {
		names = append(names, "timescale")
	}
	if c.ClickHouse.Enabled {
		names = append(names, "clickhouse")
	}
	return names
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
