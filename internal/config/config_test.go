package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"securerip/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SECURERIP_DEVICE", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "securerip", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "music", "rips") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.Drive.Device != "/dev/sr0" || !cfg.Drive.SelectDevice {
		t.Fatalf("unexpected drive defaults: %+v", cfg.Drive)
	}
	if cfg.Secure.RequiredMatchesAll != 2 || cfg.Secure.RequiredMatchesErrors != 3 {
		t.Fatalf("unexpected match policy: %+v", cfg.Secure)
	}
	if cfg.CooldownAfter() != 30*time.Minute {
		t.Fatalf("unexpected cooldown threshold: %s", cfg.CooldownAfter())
	}
	if cfg.CooldownPause() != 2*time.Minute {
		t.Fatalf("unexpected cooldown pause: %s", cfg.CooldownPause())
	}
	if cfg.ParanoiaBinary() != "cdparanoia" {
		t.Fatalf("unexpected paranoia binary: %q", cfg.ParanoiaBinary())
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SECURERIP_DEVICE", "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `[paths]
work_dir = "~/work"
history_db = ""

[drive]
device = "/dev/sr1"
offset_samples = 6
read_options = [" -Z ", ""]
select_device = false

[secure]
required_matches_all = 3
required_matches_errors = 2
max_tries = 0

[logging]
format = "JSON"
debug = true
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected explicit config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.WorkDir != filepath.Join(tempHome, "work") {
		t.Fatalf("unexpected work dir: %q", cfg.Paths.WorkDir)
	}
	if cfg.Paths.HistoryDB != "" {
		t.Fatalf("expected history disabled, got %q", cfg.Paths.HistoryDB)
	}
	if cfg.Drive.Device != "/dev/sr1" || cfg.Drive.OffsetSamples != 6 || cfg.Drive.SelectDevice {
		t.Fatalf("unexpected drive section: %+v", cfg.Drive)
	}
	if len(cfg.Drive.ReadOptions) != 1 || cfg.Drive.ReadOptions[0] != "-Z" {
		t.Fatalf("expected trimmed read options, got %q", cfg.Drive.ReadOptions)
	}
	if cfg.Secure.RequiredMatchesAll != 3 || cfg.Secure.RequiredMatchesErrors != 2 || cfg.Secure.MaxTries != 0 {
		t.Fatalf("unexpected secure section: %+v", cfg.Secure)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercase json format, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug switch to force debug level, got %q", cfg.Logging.Level)
	}
}

func TestDeviceEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SECURERIP_DEVICE", "/dev/sr9")
	t.Chdir(t.TempDir())

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Drive.Device != "/dev/sr9" {
		t.Fatalf("expected env device, got %q", cfg.Drive.Device)
	}
}

func TestLoadRejectsMissingExplicitPath(t *testing.T) {
	_, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestValidateRejectsBadPolicy(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"matches all", func(c *config.Config) { c.Secure.RequiredMatchesAll = 0 }, "required_matches_all"},
		{"matches errors", func(c *config.Config) { c.Secure.RequiredMatchesErrors = 0 }, "required_matches_errors"},
		{"negative tries", func(c *config.Config) { c.Secure.MaxTries = -1 }, "max_tries"},
		{"tries below matches", func(c *config.Config) { c.Secure.MaxTries = 1 }, "max_tries"},
		{"cooldown", func(c *config.Config) { c.Secure.CooldownAfterMinutes = -5 }, "cooldown_after_minutes"},
		{"managed flag", func(c *config.Config) { c.Drive.ReadOptions = []string{"-O"} }, "managed"},
		{"not a flag", func(c *config.Config) { c.Drive.ReadOptions = []string{"Z"} }, "not a flag"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"ntfy topic", func(c *config.Config) { c.Notifications.NtfyTopic = "my-rips" }, "ntfy_topic"},
	}
	for _, tt := range tests {
		cfg := config.Default()
		tt.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected validation error", tt.name)
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%s: expected %q in %q", tt.name, tt.want, err.Error())
		}
	}
}

func TestSampleConfigParsesAndValidates(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if decoded.Secure.RequiredMatchesErrors != config.Default().Secure.RequiredMatchesErrors {
		t.Fatalf("sample and defaults disagree on required_matches_errors: %d", decoded.Secure.RequiredMatchesErrors)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.HistoryDB = filepath.Join(base, "state", "history.db")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{"work", "out", "logs", "state"} {
		if info, err := os.Stat(filepath.Join(base, dir)); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}

func TestNotificationTimeoutDefaults(t *testing.T) {
	cfg := config.Default()
	if got := cfg.NotificationTimeout(); got != 10*time.Second {
		t.Fatalf("default timeout = %v, want 10s", got)
	}
	cfg.Notifications.RequestTimeoutSeconds = 0
	if got := cfg.NotificationTimeout(); got != 10*time.Second {
		t.Fatalf("zero timeout = %v, want fallback 10s", got)
	}
	cfg.Notifications.RequestTimeoutSeconds = 3
	if got := cfg.NotificationTimeout(); got != 3*time.Second {
		t.Fatalf("timeout = %v, want 3s", got)
	}
}
