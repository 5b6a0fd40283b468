package config

const (
	defaultWorkDir               = "~/.local/share/securerip/work"
	defaultOutputDir             = "~/music/rips"
	defaultLogDir                = "~/.local/share/securerip/logs"
	defaultHistoryDB             = "~/.local/share/securerip/history.db"
	defaultDevice                = "/dev/sr0"
	defaultParanoiaBinary        = "cdparanoia"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultRequiredMatchesAll    = 2
	defaultRequiredMatchesErrors = 3
	defaultMaxTries              = 7
	defaultCooldownAfterMinutes  = 30
	defaultCooldownPauseSeconds  = 120

	defaultNotificationTimeoutSeconds = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			HistoryDB: defaultHistoryDB,
		},
		Drive: Drive{
			Device:         defaultDevice,
			ParanoiaBinary: defaultParanoiaBinary,
			EjectAfterRip:  true,
			SelectDevice:   true,
		},
		Secure: Secure{
			RequiredMatchesAll:    defaultRequiredMatchesAll,
			RequiredMatchesErrors: defaultRequiredMatchesErrors,
			MaxTries:              defaultMaxTries,
			CooldownAfterMinutes:  defaultCooldownAfterMinutes,
			CooldownPauseSeconds:  defaultCooldownPauseSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotificationTimeoutSeconds,
		},
	}
}
