package history

import (
	"context"
	"log/slog"

	"securerip/internal/logging"
	"securerip/internal/ripping"
)

// Recorder stores rip events of one session. It satisfies ripping.Reporter.
type Recorder struct {
	store       *Store
	sessionID   string
	fingerprint string
	logger      *slog.Logger

	outcomes map[ripping.Outcome]int
	failed   int
}

// NewRecorder returns a recorder bound to session.
func NewRecorder(store *Store, session Session, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:       store,
		sessionID:   session.ID,
		fingerprint: session.Fingerprint,
		logger:      logging.NewComponentLogger(logger, "history"),
		outcomes:    make(map[ripping.Outcome]int),
	}
}

// SessionID returns the ID of the session being recorded.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Publish implements ripping.Reporter. Storage failures are logged and never
// interrupt the rip.
func (r *Recorder) Publish(ctx context.Context, event ripping.Event) {
	if r == nil || r.store == nil {
		return
	}
	// Writes must land even when the rip itself is being cancelled.
	ctx = context.WithoutCancel(ctx)
	var err error
	switch event.Kind {
	case ripping.EventMismatchReport, ripping.EventIrrecoverable:
		err = r.store.RecordMismatch(ctx, Mismatch{
			SessionID:     r.sessionID,
			Track:         event.Track,
			Trial:         event.Trial,
			Final:         event.Kind == ripping.EventIrrecoverable,
			Sectors:       event.Sectors,
			ExpectedBytes: event.ExpectedBytes,
			LengthSectors: event.LengthSectors,
		})
	case ripping.EventTrackFinished:
		if event.Result == nil {
			return
		}
		if event.Result.Outcome != ripping.OutcomeCancelled {
			r.compareWithPrevious(ctx, event.Result)
		}
		r.outcomes[event.Result.Outcome]++
		err = r.store.RecordTrack(ctx, trackRecord(r.sessionID, event.Result))
	case ripping.EventFatal:
		r.failed++
		rec := TrackRecord{SessionID: r.sessionID, Track: event.Track, Outcome: "failed"}
		if event.Err != nil {
			rec.Error = event.Err.Error()
		}
		err = r.store.RecordTrack(ctx, rec)
	default:
		return
	}
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "failed to record rip history", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "rip continues; history for this session is incomplete"),
		)
	}
}

// Finish stores the session status derived from everything recorded.
func (r *Recorder) Finish(ctx context.Context, cancelled bool) error {
	return r.store.FinishSession(context.WithoutCancel(ctx), r.sessionID, r.Status(cancelled))
}

// Status summarizes the session so far.
func (r *Recorder) Status(cancelled bool) SessionStatus {
	switch {
	case cancelled:
		return StatusCancelled
	case r.failed > 0:
		return StatusFailed
	case r.outcomes[ripping.OutcomeDegraded] > 0:
		return StatusDegraded
	default:
		return StatusCompleted
	}
}

func (r *Recorder) compareWithPrevious(ctx context.Context, res *ripping.TrackResult) {
	if r.fingerprint == "" {
		return
	}
	logger := logging.WithContext(ctx, r.logger)
	previous, ok, err := r.store.PreviousCRC(ctx, r.fingerprint, res.Track, r.sessionID)
	if err != nil {
		logger.Warn("previous rip lookup failed", logging.Error(err), logging.String(logging.FieldEventType, "history_read_failed"))
		return
	}
	if !ok {
		return
	}
	current := res.Integrity.CRC32
	if previous == current {
		logger.Info("track matches an earlier rip of this disc",
			logging.String("crc32", res.Integrity.CRC32Hex()),
			logging.String(logging.FieldEventType, "previous_rip_match"),
		)
		return
	}
	logger.Warn("track differs from an earlier rip of this disc",
		logging.String("crc32", res.Integrity.CRC32Hex()),
		logging.String("previous_crc32", ripping.Integrity{CRC32: previous}.CRC32Hex()),
		logging.String(logging.FieldEventType, "previous_rip_mismatch"),
		logging.Alert("crc_mismatch"),
	)
}

func trackRecord(sessionID string, res *ripping.TrackResult) TrackRecord {
	rec := TrackRecord{
		SessionID:   sessionID,
		Track:       res.Track,
		Outcome:     string(res.Outcome),
		Trials:      res.Trials,
		MD5:         res.Integrity.MD5,
		CRC32:       res.Integrity.CRC32,
		HasCRC:      res.Integrity.MD5 != "",
		TrialCRCs:   res.Integrity.TrialCRCs,
		PeakPercent: res.Integrity.PeakPercent,
		Corrected:   len(res.Corrected),
		Unresolved:  res.Unresolved,
		Elapsed:     res.Elapsed,
	}
	return rec
}

var _ ripping.Reporter = (*Recorder)(nil)
