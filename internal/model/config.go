package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// RealtimeConfig holds the live event-stream connection settings.
type RealtimeConfig struct {
	// URL is the websocket endpoint pushing dashboard events.
	URL string `mapstructure:"url" yaml:"url" validate:"required,url"`

	// ReconnectDelay is the fixed wait between a dropped connection and
	// the next attempt.
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay" validate:"gt=0"`

	// ReadLimitBytes caps a single inbound frame. Zero keeps the
	// transport default.
	ReadLimitBytes int64 `mapstructure:"read_limit_bytes" yaml:"read_limit_bytes" validate:"gte=0"`
}

// APIConfig holds the scheduled-calls REST API settings.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	Retries int           `mapstructure:"retries" yaml:"retries" validate:"gte=0,lte=10"`

	// PollInterval re-runs the overdue scan periodically. Zero means the
	// scan only runs on startup and on manual refresh.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" validate:"gte=0"`
}

// StoreConfig selects the persistence backend by DSN
// (sqlite://path, file://path or memory://).
type StoreConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn" validate:"required"`
}

// NotificationsConfig holds notification log settings.
type NotificationsConfig struct {
	Max int `mapstructure:"max" yaml:"max" validate:"gte=1,lte=100"`
}

// SoundConfig controls the alert played for each new notification.
type SoundConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Command is run through the shell for each alert. Empty rings the
	// terminal bell instead.
	Command string `mapstructure:"command" yaml:"command"`
}

// LogConfig controls where and how verbosely the process logs.
type LogConfig struct {
	File  string `mapstructure:"file" yaml:"file"`
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Realtime      RealtimeConfig      `mapstructure:"realtime" yaml:"realtime"`
	API           APIConfig           `mapstructure:"api" yaml:"api"`
	Store         StoreConfig         `mapstructure:"store" yaml:"store"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Sound         SoundConfig         `mapstructure:"sound" yaml:"sound"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
}

// configDir returns ~/.config/admin3, falling back to the working
// directory when the home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "admin3")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/admin3/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := configDir()
	return &AppConfig{
		Realtime: RealtimeConfig{
			URL:            "wss://api.dearsirhometuition.com",
			ReconnectDelay: 5 * time.Second,
			ReadLimitBytes: 64 << 10,
		},
		API: APIConfig{
			BaseURL: "https://api.dearsirhometuition.com",
			Timeout: 15 * time.Second,
			Retries: 3,
		},
		Store: StoreConfig{
			DSN: "sqlite://" + filepath.Join(dir, "notifications.db"),
		},
		Notifications: NotificationsConfig{Max: 10},
		Sound:         SoundConfig{Enabled: true},
		Log: LogConfig{
			File:  filepath.Join(dir, "admin3.log"),
			Level: "info",
		},
	}
}

// newViper builds a viper instance with defaults and ADMIN3_* environment
// overrides registered.
func newViper(path string) *viper.Viper {
	d := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("realtime.url", d.Realtime.URL)
	v.SetDefault("realtime.reconnect_delay", d.Realtime.ReconnectDelay)
	v.SetDefault("realtime.read_limit_bytes", d.Realtime.ReadLimitBytes)
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.retries", d.API.Retries)
	v.SetDefault("api.poll_interval", d.API.PollInterval)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("notifications.max", d.Notifications.Max)
	v.SetDefault("sound.enabled", d.Sound.Enabled)
	v.SetDefault("sound.command", d.Sound.Command)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.level", d.Log.Level)

	v.SetEnvPrefix("ADMIN3")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file yields the defaults (plus any environment overrides).
func LoadConfig(path string) (*AppConfig, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.Log.File = ExpandHome(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints declared in the struct tags.
func (c *AppConfig) Validate() error {
	return validator.New().Struct(c)
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

	v.Set("realtime", cfg.Realtime)
	v.Set("api", cfg.API)
	v.Set("store", cfg.Store)
	v.Set("notifications", cfg.Notifications)
	v.Set("sound", cfg.Sound)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// WatchConfig reloads the file at path whenever it changes on disk and
// passes the new configuration to onChange. Reloads that fail to parse or
// validate are reported through onError and otherwise ignored. Nothing is
// watched when the file does not exist.
func WatchConfig(path string, onChange func(*AppConfig), onError func(error)) {
	if _, err := os.Stat(path); err != nil {
		return
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		onError(fmt.Errorf("reading config %s: %w", path, err))
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := LoadConfig(path)
		if err != nil {
			onError(err)
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
