package ripping

import (
	"context"
	"log/slog"
	"time"

	"securerip/internal/logging"
	"securerip/internal/sector"
	"securerip/internal/services"
)

// EventKind identifies a rip lifecycle event.
type EventKind string

const (
	EventTrackStarted     EventKind = "track_started"
	EventTrialStarted     EventKind = "trial_started"
	EventTrialFinished    EventKind = "trial_finished"
	EventTrialRejected    EventKind = "trial_rejected"
	EventCooldown         EventKind = "cooldown"
	EventMismatchReport   EventKind = "mismatch_report"
	EventAllMatched       EventKind = "all_matched"
	EventSectorsCorrected EventKind = "sectors_corrected"
	EventIrrecoverable    EventKind = "irrecoverable"
	EventProgress         EventKind = "progress"
	EventTrackFinished    EventKind = "track_finished"
	EventFatal            EventKind = "fatal"
)

// Event is a one-way notification about rip progress. Only the fields relevant
// to Kind are populated.
type Event struct {
	Kind  EventKind
	Track int
	Trial int
	// Sectors holds sorted payload indices for mismatch, correction and
	// irrecoverable events.
	Sectors []int64
	// ExpectedBytes and LengthSectors describe the track the sectors belong to.
	ExpectedBytes int64
	LengthSectors int64
	Matched       int64
	Elapsed       time.Duration
	Fraction      float64
	Result        *TrackResult
	Err           error
	Message       string
}

// Timestamps returns the mm:ss.ff offsets of the event's sectors.
func (e Event) Timestamps() []string {
	return sector.CDDA.Timestamps(e.Sectors)
}

// Reporter receives rip events. Implementations must not block for long; the
// ripper publishes synchronously between drive reads.
type Reporter interface {
	Publish(ctx context.Context, event Event)
}

// Reporters fans an event out to several reporters in order.
type Reporters []Reporter

// Publish forwards event to every non-nil reporter.
func (rs Reporters) Publish(ctx context.Context, event Event) {
	for _, r := range rs {
		if r != nil {
			r.Publish(ctx, event)
		}
	}
}

// LogReporter writes events to a structured logger.
type LogReporter struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler
}

// NewLogReporter builds a reporter that logs through logger.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{
		logger:  logging.NewComponentLogger(logger, "ripper"),
		sampler: logging.NewProgressSampler(5),
	}
}

// Publish implements Reporter.
func (l *LogReporter) Publish(ctx context.Context, event Event) {
	if l == nil {
		return
	}
	logger := logging.WithContext(ctx, l.logger)
	if _, ok := services.TrackFromContext(ctx); !ok {
		logger = logger.With(logging.Int(logging.FieldTrack, event.Track))
	}
	if event.Trial > 0 {
		logger = logger.With(logging.Int(logging.FieldTrial, event.Trial))
	}
	switch event.Kind {
	case EventTrackStarted:
		logger.Info("track rip started",
			logging.String(logging.FieldEventType, string(event.Kind)),
			logging.Int64("expected_bytes", event.ExpectedBytes),
			logging.Int64("length_sectors", event.LengthSectors),
		)
	case EventTrialStarted:
		logger.Debug("trial started", logging.String(logging.FieldEventType, string(event.Kind)))
	case EventTrialFinished:
		logger.Info("trial finished",
			logging.String(logging.FieldEventType, string(event.Kind)),
			logging.Duration("elapsed", event.Elapsed),
		)
	case EventTrialRejected:
		logging.WarnWithContext(logger, "trial rejected, reading again", string(event.Kind),
			logging.String(logging.FieldErrorHint, event.Message),
			logging.String(logging.FieldImpact, "the same trial number is read again"),
		)
	case EventCooldown:
		logger.Info("drive cooldown",
			logging.String(logging.FieldEventType, string(event.Kind)),
			logging.Duration("pause", event.Elapsed),
		)
	case EventMismatchReport:
		logger.Info("sectors not yet matched",
			logging.String(logging.FieldEventType, string(event.Kind)),
			logging.Int("mismatched", len(event.Sectors)),
			logging.Int64("matched", event.Matched),
			logging.Any("positions", event.Timestamps()),
		)
	case EventAllMatched:
		logger.Info("every sector matched",
			logging.String(logging.FieldEventType, string(event.Kind)),
			logging.Duration("elapsed", event.Elapsed),
		)
	case EventSectorsCorrected:
		logger.Info("sectors corrected by quorum",
			logging.String(logging.FieldEventType, string(event.Kind)),
			logging.Int("corrected", len(event.Sectors)),
			logging.Any("positions", event.Timestamps()),
		)
	case EventIrrecoverable:
		logging.WarnWithContext(logger, "maximum tries reached, keeping first trial data", string(event.Kind),
			logging.Int("unresolved", len(event.Sectors)),
			logging.Any("positions", event.Timestamps()),
			logging.String(logging.FieldErrorHint, "clean the disc or raise secure.max_tries and rip the track again"),
			logging.String(logging.FieldImpact, "output may contain audible errors at the listed positions"),
		)
	case EventProgress:
		if event.Track == 0 && event.Fraction == 0 {
			// Session start.
			l.sampler.Reset()
		}
		if l.sampler.ShouldLog(event.Fraction, event.Track) {
			logger.Info("rip progress",
				logging.String(logging.FieldEventType, string(event.Kind)),
				logging.Float64("fraction", event.Fraction),
			)
		}
	case EventTrackFinished:
		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, string(event.Kind)),
			logging.Duration("elapsed", event.Elapsed),
		}
		if res := event.Result; res != nil {
			attrs = append(attrs,
				logging.String("outcome", string(res.Outcome)),
				logging.Int("trials", res.Trials),
			)
			if res.Outcome == OutcomeCancelled {
				attrs = append(attrs, logging.Int("unresolved", len(res.Unresolved)))
			} else {
				attrs = append(attrs,
					logging.String("md5", res.Integrity.MD5),
					logging.String("crc32", res.Integrity.CRC32Hex()),
					logging.Float64("peak_percent", res.Integrity.PeakPercent),
				)
			}
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "track rip finished", attrs...)
	case EventFatal:
		logging.ErrorWithContext(logger, "track rip failed", string(event.Kind),
			logging.Error(event.Err),
			logging.String(logging.FieldErrorHint, event.Message),
		)
	default:
		logger.Debug("rip event", logging.String(logging.FieldEventType, string(event.Kind)))
	}
}

type nopReporter struct{}

func (nopReporter) Publish(context.Context, Event) {}
