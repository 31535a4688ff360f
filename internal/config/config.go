// Package config loads ironlog settings from ironlog.toml and IRONLOG_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the ironlog home directory.
const FileName = "ironlog.toml"

// EnvPrefix prefixes every environment override, e.g. IRONLOG_REMOTE_BASE_URL.
const EnvPrefix = "IRONLOG"

type StoreConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

type RemoteConfig struct {
	BaseURL  string        `mapstructure:"base_url" toml:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout" toml:"timeout"`
	Compress bool          `mapstructure:"compress" toml:"compress"`
}

type IdentityConfig struct {
	TokenPath string `mapstructure:"token_path" toml:"token_path"`
}

type SchedulerConfig struct {
	MutationDebounce  time.Duration   `mapstructure:"mutation_debounce" toml:"mutation_debounce"`
	PromptDelay       time.Duration   `mapstructure:"prompt_delay" toml:"prompt_delay"`
	MinGap            time.Duration   `mapstructure:"min_gap" toml:"min_gap"`
	AdaptiveIntervals []time.Duration `mapstructure:"adaptive_intervals" toml:"adaptive_intervals"`
	RetrySteps        []time.Duration `mapstructure:"retry_steps" toml:"retry_steps"`
}

type ConnectivityConfig struct {
	// ProbeURL defaults to the remote's /health endpoint when empty.
	ProbeURL      string        `mapstructure:"probe_url" toml:"probe_url"`
	ProbeInterval time.Duration `mapstructure:"probe_interval" toml:"probe_interval"`
}

type DashboardConfig struct {
	Host string `mapstructure:"host" toml:"host"`
	Port int    `mapstructure:"port" toml:"port"`
}

type LogConfig struct {
	File       string `mapstructure:"file" toml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" toml:"max_age_days"`
}

// AuthorityConfig is read by `ironlog authority serve` only.
type AuthorityConfig struct {
	Addr         string   `mapstructure:"addr" toml:"addr"`
	// DSN for the authority's SQLite database (default: authority.db in home)
	DSN          string   `mapstructure:"dsn" toml:"dsn"`
	Secret       string   `mapstructure:"secret" toml:"secret"`
	AllowOrigins []string `mapstructure:"allow_origins" toml:"allow_origins"`
}

// Config is the full ironlog configuration.
type Config struct {
	Store        StoreConfig        `mapstructure:"store" toml:"store"`
	Remote       RemoteConfig       `mapstructure:"remote" toml:"remote"`
	Identity     IdentityConfig     `mapstructure:"identity" toml:"identity"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler" toml:"scheduler"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity" toml:"connectivity"`
	Dashboard    DashboardConfig    `mapstructure:"dashboard" toml:"dashboard"`
	Log          LogConfig          `mapstructure:"log" toml:"log"`
	Authority    AuthorityConfig    `mapstructure:"authority" toml:"authority"`

	// Home is the directory relative paths were resolved against.
	Home string `mapstructure:"-" toml:"-"`
	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-" toml:"-"`
}

// Home returns $IRONLOG_HOME, falling back to ~/.ironlog.
func Home() (string, error) {
	if dir := os.Getenv(EnvPrefix + "_HOME"); dir != "" {
		return dir, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(userHome, ".ironlog"), nil
}

// Default returns the built-in configuration rooted at home.
func Default(home string) *Config {
	return &Config{
		Store:    StoreConfig{Path: "ironlog.db"},
		Remote:   RemoteConfig{Timeout: 30 * time.Second},
		Identity: IdentityConfig{TokenPath: "token"},
		Scheduler: SchedulerConfig{
			MutationDebounce:  5 * time.Second,
			PromptDelay:       500 * time.Millisecond,
			MinGap:            10 * time.Second,
			AdaptiveIntervals: []time.Duration{60 * time.Second, 300 * time.Second, 900 * time.Second},
			RetrySteps: []time.Duration{
				1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 15 * time.Second,
				30 * time.Second, 60 * time.Second, 120 * time.Second, 300 * time.Second,
			},
		},
		Connectivity: ConnectivityConfig{ProbeInterval: 15 * time.Second},
		Dashboard:    DashboardConfig{Host: "127.0.0.1", Port: 7420},
		Log:          LogConfig{MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
		Authority:    AuthorityConfig{Addr: ":8787"},
		Home:         home,
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("remote.base_url", d.Remote.BaseURL)
	v.SetDefault("remote.timeout", d.Remote.Timeout)
	v.SetDefault("remote.compress", d.Remote.Compress)
	v.SetDefault("identity.token_path", d.Identity.TokenPath)
	v.SetDefault("scheduler.mutation_debounce", d.Scheduler.MutationDebounce)
	v.SetDefault("scheduler.prompt_delay", d.Scheduler.PromptDelay)
	v.SetDefault("scheduler.min_gap", d.Scheduler.MinGap)
	v.SetDefault("scheduler.adaptive_intervals", durationStrings(d.Scheduler.AdaptiveIntervals))
	v.SetDefault("scheduler.retry_steps", durationStrings(d.Scheduler.RetrySteps))
	v.SetDefault("connectivity.probe_url", d.Connectivity.ProbeURL)
	v.SetDefault("connectivity.probe_interval", d.Connectivity.ProbeInterval)
	v.SetDefault("dashboard.host", d.Dashboard.Host)
	v.SetDefault("dashboard.port", d.Dashboard.Port)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("authority.addr", d.Authority.Addr)
	v.SetDefault("authority.dsn", d.Authority.DSN)
	v.SetDefault("authority.secret", d.Authority.Secret)
	v.SetDefault("authority.allow_origins", d.Authority.AllowOrigins)
}

// Load reads the configuration. An explicit path must exist; otherwise
// ironlog.toml in the home directory is optional.
func Load(path string) (*Config, error) {
	home, err := Home()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, Default(home))
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Home = home
	cfg.File = v.ConfigFileUsed()
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolvePaths() {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(c.Home, p)
	}
	c.Store.Path = resolve(c.Store.Path)
	c.Identity.TokenPath = resolve(c.Identity.TokenPath)
	c.Log.File = resolve(c.Log.File)
	if c.Authority.DSN == "" {
		c.Authority.DSN = "file:" + filepath.Join(c.Home, "authority.db")
	}
}

// Validate rejects settings the scheduler and transport cannot work with.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if len(c.Scheduler.RetrySteps) == 0 {
		return fmt.Errorf("scheduler.retry_steps must not be empty")
	}
	if len(c.Scheduler.AdaptiveIntervals) == 0 {
		return fmt.Errorf("scheduler.adaptive_intervals must not be empty")
	}
	for _, d := range append(append([]time.Duration{}, c.Scheduler.RetrySteps...), c.Scheduler.AdaptiveIntervals...) {
		if d <= 0 {
			return fmt.Errorf("scheduler intervals must be positive (got %v)", d)
		}
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port out of range (got %d)", c.Dashboard.Port)
	}
	return nil
}

// HealthURL is the connectivity probe target.
func (c *Config) HealthURL() string {
	if c.Connectivity.ProbeURL != "" {
		return c.Connectivity.ProbeURL
	}
	if c.Remote.BaseURL == "" {
		return ""
	}
	return strings.TrimRight(c.Remote.BaseURL, "/") + "/health"
}

func durationStrings(ds []time.Duration) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}
