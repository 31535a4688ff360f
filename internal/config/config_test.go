package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("IRONLOG_HOME", home)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.File != "" {
		t.Errorf("expected no config file, got %s", cfg.File)
	}
	if cfg.Store.Path != filepath.Join(home, "ironlog.db") {
		t.Errorf("unexpected store path %s", cfg.Store.Path)
	}
	if cfg.Identity.TokenPath != filepath.Join(home, "token") {
		t.Errorf("unexpected token path %s", cfg.Identity.TokenPath)
	}
	if cfg.Scheduler.MutationDebounce != 5*time.Second || cfg.Scheduler.MinGap != 10*time.Second {
		t.Errorf("unexpected scheduler defaults: %+v", cfg.Scheduler)
	}
	if len(cfg.Scheduler.RetrySteps) != 9 || cfg.Scheduler.RetrySteps[8] != 300*time.Second {
		t.Errorf("unexpected retry steps: %v", cfg.Scheduler.RetrySteps)
	}
	if len(cfg.Scheduler.AdaptiveIntervals) != 3 || cfg.Scheduler.AdaptiveIntervals[2] != 900*time.Second {
		t.Errorf("unexpected adaptive intervals: %v", cfg.Scheduler.AdaptiveIntervals)
	}
	if cfg.Dashboard.Port != 7420 {
		t.Errorf("expected dashboard port 7420, got %d", cfg.Dashboard.Port)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("IRONLOG_HOME", home)
	t.Setenv("IRONLOG_REMOTE_BASE_URL", "https://sync.example.com/")

	content := `
[store]
path = "/var/lib/ironlog/data.db"

[scheduler]
min_gap = "30s"
retry_steps = ["1s", "5s"]

[dashboard]
port = 9000
`
	if err := os.WriteFile(filepath.Join(home, FileName), []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Path != "/var/lib/ironlog/data.db" {
		t.Errorf("absolute path should be kept, got %s", cfg.Store.Path)
	}
	if cfg.Scheduler.MinGap != 30*time.Second {
		t.Errorf("expected min gap 30s, got %v", cfg.Scheduler.MinGap)
	}
	if len(cfg.Scheduler.RetrySteps) != 2 || cfg.Scheduler.RetrySteps[1] != 5*time.Second {
		t.Errorf("unexpected retry steps: %v", cfg.Scheduler.RetrySteps)
	}
	if cfg.Scheduler.MutationDebounce != 5*time.Second {
		t.Errorf("unset keys should keep defaults, got %v", cfg.Scheduler.MutationDebounce)
	}
	if cfg.Dashboard.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Dashboard.Port)
	}
	if cfg.HealthURL() != "https://sync.example.com/health" {
		t.Errorf("unexpected health url %s", cfg.HealthURL())
	}
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	t.Setenv("IRONLOG_HOME", t.TempDir())
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty retry steps", func(c *Config) { c.Scheduler.RetrySteps = nil }},
		{"empty adaptive", func(c *Config) { c.Scheduler.AdaptiveIntervals = nil }},
		{"zero step", func(c *Config) { c.Scheduler.RetrySteps = []time.Duration{0} }},
		{"bad port", func(c *Config) { c.Dashboard.Port = 70000 }},
		{"no store", func(c *Config) { c.Store.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("IRONLOG_HOME", home)
	path := filepath.Join(home, FileName)

	want := Default(home)
	want.Remote.BaseURL = "https://sync.example.com"
	want.Scheduler.MinGap = 20 * time.Second
	if err := Write(path, want, false); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := Write(path, want, false); err == nil {
		t.Error("second Write without force should fail")
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Remote.BaseURL != want.Remote.BaseURL {
		t.Errorf("base url: got %s", got.Remote.BaseURL)
	}
	if got.Scheduler.MinGap != 20*time.Second {
		t.Errorf("min gap: got %v", got.Scheduler.MinGap)
	}
	if len(got.Scheduler.AdaptiveIntervals) != 3 || got.Scheduler.AdaptiveIntervals[0] != time.Minute {
		t.Errorf("adaptive intervals: got %v", got.Scheduler.AdaptiveIntervals)
	}
}
