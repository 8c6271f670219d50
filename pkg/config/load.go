package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/aggregate"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/insight"
)

// EnvPrefix prefixes every environment override, e.g. KPID_SERVER_PORT.
const EnvPrefix = "KPID"

// Config holds the settings of the kpid process.
type Config struct {
	BaseDir string          `mapstructure:"base_dir"`
	Server  ServerConfig    `mapstructure:"server"`
	Refresh RefreshConfig   `mapstructure:"refresh"`
	Storage StorageConfig   `mapstructure:"storage"`
	Pricing insight.Pricing `mapstructure:"pricing"`
	Report  ReportConfig    `mapstructure:"report"`
	Log     LogConfig       `mapstructure:"log"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RefreshConfig schedules snapshot rebuilds. An empty schedule disables them.
type RefreshConfig struct {
	Schedule string        `mapstructure:"schedule"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects the snapshot sinks. Empty paths disable a sink.
type StorageConfig struct {
	BadgerPath  string        `mapstructure:"badger_path"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	MaxMemoryMB int64         `mapstructure:"max_memory_mb"`
	Retention   time.Duration `mapstructure:"retention"`
}

// ReportConfig holds presentation constants.
type ReportConfig struct {
	ShelfLifeDays float64 `mapstructure:"shelf_life_days"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Load reads an optional config file and KPID_* environment overrides on
// top of the defaults. With an empty path, kpid.{yaml,json,toml} is looked
// up in ./config and the working directory; not finding one is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("kpid")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_dir", DefaultBaseDir)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("refresh.schedule", DefaultRefreshSchedule)
	v.SetDefault("refresh.timeout", DefaultRefreshTimeout)
	v.SetDefault("storage.badger_path", "./data/kpid/badger")
	v.SetDefault("storage.sqlite_path", "./data/kpid/kpis.db")
	v.SetDefault("storage.max_memory_mb", DefaultMaxMemoryMB)
	v.SetDefault("storage.retention", DefaultRetention)
	v.SetDefault("pricing.unit_cost", insight.DefaultUnitCost)
	v.SetDefault("pricing.unit_price", insight.DefaultUnitPrice)
	v.SetDefault("pricing.waste_value", aggregate.NominalWasteCost)
	v.SetDefault("report.shelf_life_days", DefaultShelfLifeDays)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return fmt.Errorf("base_dir is required")
	}
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("server.port must be a TCP port, got %q", c.Server.Port)
	}
	if c.Refresh.Schedule != "" {
		if _, err := cron.ParseStandard(c.Refresh.Schedule); err != nil {
			return fmt.Errorf("refresh.schedule: %w", err)
		}
	}
	if c.Refresh.Timeout <= 0 {
		return fmt.Errorf("refresh.timeout must be positive")
	}
	if c.Storage.Retention < 0 {
		return fmt.Errorf("storage.retention cannot be negative")
	}
	if c.Storage.MaxMemoryMB < 0 {
		return fmt.Errorf("storage.max_memory_mb cannot be negative")
	}
	if c.Pricing.UnitCost < 0 || c.Pricing.UnitPrice < 0 || c.Pricing.WasteValue < 0 {
		return fmt.Errorf("pricing values cannot be negative")
	}
	if c.Report.ShelfLifeDays <= 0 {
		return fmt.Errorf("report.shelf_life_days must be positive")
	}
	return nil
}
