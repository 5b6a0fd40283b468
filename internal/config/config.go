package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	HistoryDB string `toml:"history_db"`
}

// Drive contains configuration for the optical drive and the read tool.
type Drive struct {
	Device            string   `toml:"device"`
	OffsetSamples     int      `toml:"offset_samples"`
	PadMissingSamples bool     `toml:"pad_missing_samples"`
	ReadOptions       []string `toml:"read_options"`
	EjectAfterRip     bool     `toml:"eject_after_rip"`
	ParanoiaBinary    string   `toml:"paranoia_binary"`
	// SelectDevice passes -d to cdparanoia. Disable on ports that only read
	// from the default drive.
	SelectDevice      bool     `toml:"select_device"`
}

// Secure contains the trial and quorum policy.
type Secure struct {
	// RequiredMatchesAll is the number of full trials that must agree before a
	// track is accepted without correction.
	RequiredMatchesAll int `toml:"required_matches_all"`
	// RequiredMatchesErrors is the quorum a divergent sector needs.
	RequiredMatchesErrors int `toml:"required_matches_errors"`
	// MaxTries bounds the trial counter; 0 means unlimited.
	MaxTries             int `toml:"max_tries"`
	CooldownAfterMinutes int `toml:"cooldown_after_minutes"`
	CooldownPauseSeconds int `toml:"cooldown_pause_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format  string `toml:"format"`
	Level   string `toml:"level"`
	Debug   bool   `toml:"debug"`
	Verbose bool   `toml:"verbose"`
}

// Notifications contains the optional ntfy push configuration.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Config encapsulates all configuration values for securerip.
//
// Configuration sections by subsystem:
//   - Paths: work, output, and log directories plus the history database
//   - Drive: device, read offset, and cdparanoia options
//   - Secure: trial matching policy and drive cooldown
//   - Logging: log format, level, and debug/verbose switches
//   - Notifications: ntfy topic for session summaries and failures
type Config struct {
	Paths         Paths         `toml:"paths"`
	Drive         Drive         `toml:"drive"`
	Secure        Secure        `toml:"secure"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/securerip/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if os.IsNotExist(err) {
				return "", false, fmt.Errorf("config file %s not found", expanded)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %s is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("securerip.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for a rip session.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.LogDir}
	if db := strings.TrimSpace(c.Paths.HistoryDB); db != "" {
		dirs = append(dirs, filepath.Dir(db))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ParanoiaBinary returns the cdparanoia executable name.
func (c *Config) ParanoiaBinary() string {
	if bin := strings.TrimSpace(c.Drive.ParanoiaBinary); bin != "" {
		return bin
	}
	return defaultParanoiaBinary
}

// CooldownAfter is the continuous ripping time after which the drive rests.
// Zero disables the cooldown.
func (c *Config) CooldownAfter() time.Duration {
	return time.Duration(c.Secure.CooldownAfterMinutes) * time.Minute
}

// CooldownPause is how long the drive rests once CooldownAfter has elapsed.
func (c *Config) CooldownPause() time.Duration {
	return time.Duration(c.Secure.CooldownPauseSeconds) * time.Second
}

// NotificationTimeout bounds a single ntfy request.
func (c *Config) NotificationTimeout() time.Duration {
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		return defaultNotificationTimeoutSeconds * time.Second
	}
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
