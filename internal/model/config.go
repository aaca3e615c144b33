package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig selects and locates the task store.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `mapstructure:"driver" yaml:"driver"`

	// Path is the SQLite database file.
	Path string `mapstructure:"path" yaml:"path"`

	// DSN is the Postgres connection string. When empty the keyring entry
	// is consulted.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// SchedulerConfig controls the periodic cycle pass.
type SchedulerConfig struct {
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	MaxRetries  int `mapstructure:"max_retries" yaml:"max_retries"`
}

// IMAPConfig configures the mailbox reminder channel.
type IMAPConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
	Folder   string `mapstructure:"folder" yaml:"folder"`
	From     string `mapstructure:"from" yaml:"from"`
}

// NotifyConfig controls reminder delivery.
type NotifyConfig struct {
	TimeoutSec int        `mapstructure:"timeout_sec" yaml:"timeout_sec"`
	IMAP       IMAPConfig `mapstructure:"imap" yaml:"imap"`
}

// RedisConfig enables the distributed per-user lease.
type RedisConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr        string `mapstructure:"addr" yaml:"addr"`
	DB          int    `mapstructure:"db" yaml:"db"`
	LeaseTTLSec int    `mapstructure:"lease_ttl_sec" yaml:"lease_ttl_sec"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// AIConfig holds settings for the natural-language task parser.
type AIConfig struct {
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// LogConfig controls the console and rotating file loggers.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Notify    NotifyConfig    `mapstructure:"notify" yaml:"notify"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	AI        AIConfig        `mapstructure:"ai" yaml:"ai"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`

	// Timezone is an IANA name used for all calendar-day comparisons.
	// Empty means the host's local zone.
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
}

// Location resolves the configured timezone.
func (c *AppConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/cyclic/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "cyclic")
}

// configDefaults maps every config key to its default value. Keys listed
// here are also the ones reachable through CYCLIC_* environment variables.
func configDefaults() map[string]any {
	return map[string]any{
		"database.driver":        "sqlite",
		"database.path":          filepath.Join(configDir(), "cyclic.db"),
		"database.dsn":           "",
		"scheduler.interval_sec": 3600,
		"scheduler.concurrency":  4,
		"scheduler.max_retries":  3,
		"notify.timeout_sec":     10,
		"notify.imap.enabled":    false,
		"notify.imap.host":       "",
		"notify.imap.port":       "993",
		"notify.imap.username":   "",
		"notify.imap.tls":        true,
		"notify.imap.folder":     "Reminders",
		"notify.imap.from":       "cyclic@localhost",
		"redis.enabled":          false,
		"redis.addr":             "localhost:6379",
		"redis.db":               0,
		"redis.lease_ttl_sec":    30,
		"server.addr":            ":8080",
		"ai.model":               "claude-sonnet-4-5-20250929",
		"ai.max_tokens":          1024,
		"log.level":              "info",
		"log.file":               "",
		"log.max_size_mb":        100,
		"log.max_backups":        10,
		"log.max_age_days":       30,
		"timezone":               "",
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults are used. CYCLIC_* environment
// variables override both (e.g. CYCLIC_REDIS_ADDR).
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CYCLIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, val := range configDefaults() {
		v.SetDefault(key, val)
	}

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Scheduler.MaxRetries < 1 {
		cfg.Scheduler.MaxRetries = 1
	}
	if cfg.Scheduler.Concurrency < 1 {
		cfg.Scheduler.Concurrency = 1
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("database", cfg.Database)
	v.Set("scheduler", cfg.Scheduler)
	v.Set("notify", cfg.Notify)
	v.Set("redis", cfg.Redis)
	v.Set("server", cfg.Server)
	v.Set("ai", cfg.AI)
	v.Set("log", cfg.Log)
	v.Set("timezone", cfg.Timezone)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
