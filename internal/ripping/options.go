package ripping

import (
	"strings"
	"time"

	"securerip/internal/config"
)

// Options carries every tunable of a rip session.
type Options struct {
	// RequiredMatchesAll is the number of trials every sector must agree on
	// before any correction round starts.
	RequiredMatchesAll int
	// RequiredMatchesErrors is the quorum a divergent sector candidate needs.
	RequiredMatchesErrors int
	// MaxTries bounds the trial counter for a track; 0 means unlimited.
	MaxTries          int
	OffsetSamples     int
	PadMissingSamples bool
	Debug             bool
	Verbose           bool
	DriveOptions      []string
	Device            string
	WorkDir           string
	EjectAfterRip     bool
	CooldownAfter     time.Duration
	CooldownPause     time.Duration
}

// OptionsFromConfig derives rip options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}.normalized()
	}
	opts := Options{
		RequiredMatchesAll:    cfg.Secure.RequiredMatchesAll,
		RequiredMatchesErrors: cfg.Secure.RequiredMatchesErrors,
		MaxTries:              cfg.Secure.MaxTries,
		OffsetSamples:         cfg.Drive.OffsetSamples,
		PadMissingSamples:     cfg.Drive.PadMissingSamples,
		Debug:                 cfg.Logging.Debug,
		Verbose:               cfg.Logging.Verbose,
		DriveOptions:          append([]string(nil), cfg.Drive.ReadOptions...),
		Device:                cfg.Drive.Device,
		WorkDir:               cfg.Paths.WorkDir,
		EjectAfterRip:         cfg.Drive.EjectAfterRip,
		CooldownAfter:         cfg.CooldownAfter(),
		CooldownPause:         cfg.CooldownPause(),
	}
	return opts.normalized()
}

func (o Options) normalized() Options {
	if o.RequiredMatchesAll < 1 {
		o.RequiredMatchesAll = 1
	}
	if o.RequiredMatchesErrors < 1 {
		o.RequiredMatchesErrors = 1
	}
	if o.MaxTries < 0 {
		o.MaxTries = 0
	}
	if o.CooldownAfter < 0 {
		o.CooldownAfter = 0
	}
	if o.CooldownPause < 0 {
		o.CooldownPause = 0
	}
	o.Device = strings.TrimSpace(o.Device)
	if strings.TrimSpace(o.WorkDir) == "" {
		o.WorkDir = "."
	}
	return o
}
