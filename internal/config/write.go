package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// fileLayout mirrors Config with durations spelled as strings, the form
// Load accepts back.
type fileLayout struct {
	Store  StoreConfig `toml:"store"`
	Remote struct {
		BaseURL  string `toml:"base_url"`
		Timeout  string `toml:"timeout"`
		Compress bool   `toml:"compress"`
	} `toml:"remote"`
	Identity  IdentityConfig `toml:"identity"`
	Scheduler struct {
		MutationDebounce  string   `toml:"mutation_debounce"`
		PromptDelay       string   `toml:"prompt_delay"`
		MinGap            string   `toml:"min_gap"`
		AdaptiveIntervals []string `toml:"adaptive_intervals"`
		RetrySteps        []string `toml:"retry_steps"`
	} `toml:"scheduler"`
	Connectivity struct {
		ProbeURL      string `toml:"probe_url"`
		ProbeInterval string `toml:"probe_interval"`
	} `toml:"connectivity"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Log       LogConfig       `toml:"log"`
	Authority struct {
		Addr         string   `toml:"addr"`
		DSN          string   `toml:"dsn"`
		AllowOrigins []string `toml:"allow_origins"`
	} `toml:"authority"`
}

func layout(c *Config) fileLayout {
	var f fileLayout
	f.Store = c.Store
	f.Remote.BaseURL = c.Remote.BaseURL
	f.Remote.Timeout = c.Remote.Timeout.String()
	f.Remote.Compress = c.Remote.Compress
	f.Identity = c.Identity
	f.Scheduler.MutationDebounce = c.Scheduler.MutationDebounce.String()
	f.Scheduler.PromptDelay = c.Scheduler.PromptDelay.String()
	f.Scheduler.MinGap = c.Scheduler.MinGap.String()
	f.Scheduler.AdaptiveIntervals = durationStrings(c.Scheduler.AdaptiveIntervals)
	f.Scheduler.RetrySteps = durationStrings(c.Scheduler.RetrySteps)
	f.Connectivity.ProbeURL = c.Connectivity.ProbeURL
	f.Connectivity.ProbeInterval = c.Connectivity.ProbeInterval.String()
	f.Dashboard = c.Dashboard
	f.Log = c.Log
	f.Authority.Addr = c.Authority.Addr
	f.Authority.DSN = c.Authority.DSN
	f.Authority.AllowOrigins = c.Authority.AllowOrigins
	return f
}

// Encode writes c as TOML. The authority secret is never written; it
// belongs in the environment.
func Encode(w io.Writer, c *Config) error {
	if err := toml.NewEncoder(w).Encode(layout(c)); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Write stores c as TOML at path. Existing files are left alone unless
// force is set.
func Write(path string, c *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// #nosec G304 - controlled path from CLI
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "# ironlog configuration. Environment variables IRONLOG_<SECTION>_<KEY> override these values."); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := Encode(f, c); err != nil {
		return err
	}
	return f.Close()
}
