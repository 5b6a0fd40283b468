package ripping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"securerip/internal/logging"
	"securerip/internal/paranoia"
	"securerip/internal/sector"
	"securerip/internal/services"
)

// ReadExecutor performs one read of a track into a file.
type ReadExecutor interface {
	Read(ctx context.Context, req paranoia.ReadRequest) error
}

// DiscInfo exposes the table of contents facts the ripper depends on.
type DiscInfo interface {
	ExpectedByteLength(track int) int64
	StartSector(track int) int64
	LengthSectors(track int) int64
	IsFirstTrack(track int) bool
	IsLastTrack(track int) bool
}

// SpaceGuard reports whether the work directory can hold more data.
type SpaceGuard interface {
	HasFreeSpace(bytes int64) bool
}

// Ejector opens the drive tray.
type Ejector interface {
	Eject(ctx context.Context, device string) error
}

// Outcome classifies how a track rip ended.
type Outcome string

const (
	// OutcomeAccepted means every sector matched or was corrected.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeDegraded means the trial budget ran out with sectors unresolved.
	OutcomeDegraded Outcome = "degraded"
	// OutcomeCancelled means the context ended before the track finished.
	OutcomeCancelled Outcome = "cancelled"
)

// TrackResult describes one finished, degraded or cancelled track.
type TrackResult struct {
	Track        int
	Outcome      Outcome
	AcceptedPath string
	// Trials is the final trial counter.
	Trials    int
	Integrity Integrity
	// Unresolved lists payload indices still divergent at the end.
	Unresolved []int64
	// Corrected lists payload indices repaired by quorum.
	Corrected []int64
	Elapsed   time.Duration
}

// RipperOption customizes a Ripper.
type RipperOption func(*Ripper)

// WithEjector sets the collaborator used when Options.EjectAfterRip is set.
func WithEjector(ejector Ejector) RipperOption {
	return func(r *Ripper) {
		r.ejector = ejector
	}
}

// WithClock replaces the time source and the cooldown sleep (used in tests).
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) RipperOption {
	return func(r *Ripper) {
		if now != nil {
			r.now = now
		}
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// Ripper runs secure rips of one disc. It is not safe for concurrent use; a
// drive serves one track at a time.
type Ripper struct {
	opts     Options
	layout   sector.Layout
	disc     DiscInfo
	exec     ReadExecutor
	guard    SpaceGuard
	reporter Reporter
	logger   *slog.Logger
	ejector  Ejector
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
	trials   *trialReader

	totalSectors int64
	doneSectors  int64
}

// NewRipper constructs a ripper. guard and reporter may be nil.
func NewRipper(opts Options, disc DiscInfo, exec ReadExecutor, guard SpaceGuard, reporter Reporter, logger *slog.Logger, options ...RipperOption) *Ripper {
	if reporter == nil {
		reporter = nopReporter{}
	}
	r := &Ripper{
		opts:     opts.normalized(),
		layout:   sector.CDDA,
		disc:     disc,
		exec:     exec,
		guard:    guard,
		reporter: reporter,
		logger:   logging.NewComponentLogger(logger, "ripper"),
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range options {
		opt(r)
	}
	r.trials = &trialReader{
		opts:     r.opts,
		disc:     disc,
		exec:     exec,
		guard:    guard,
		cooldown: newCooldown(r.opts.CooldownAfter, r.opts.CooldownPause, r.now, r.sleep),
		reporter: r.reporter,
		logger:   r.logger,
		now:      r.now,
	}
	return r
}

// RipTracks rips the given tracks in order and ejects the disc afterwards when
// configured. Track-level failures are collected and the next track is tried;
// storage exhaustion and cancellation stop the session.
func (r *Ripper) RipTracks(ctx context.Context, tracks []int) ([]*TrackResult, error) {
	r.totalSectors, r.doneSectors = 0, 0
	for _, track := range tracks {
		r.totalSectors += r.disc.LengthSectors(track)
	}
	r.reporter.Publish(ctx, Event{Kind: EventProgress, Fraction: 0})

	results := make([]*TrackResult, 0, len(tracks))
	var errs []error
	for _, track := range tracks {
		if ctx.Err() != nil {
			break
		}
		res, err := r.RipTrack(ctx, track)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("track %d: %w", track, err))
			if services.SessionFatal(err) {
				break
			}
			continue
		}
		if res.Outcome == OutcomeCancelled {
			break
		}
	}

	if r.opts.EjectAfterRip && r.ejector != nil && ctx.Err() == nil {
		if err := r.ejector.Eject(ctx, r.opts.Device); err != nil {
			r.logger.Warn("failed to eject disc",
				logging.Error(err),
				logging.String(logging.FieldEventType, "eject_failed"),
				logging.String(logging.FieldErrorHint, "eject the disc manually"),
			)
		}
	}
	return results, errors.Join(errs...)
}

// RipTrack reads track until every sector is trusted, the trial budget is
// spent or ctx ends. Cancellation is reported through the result's Outcome,
// not as an error, unless no trial had completed yet.
func (r *Ripper) RipTrack(ctx context.Context, track int) (*TrackResult, error) {
	ctx = services.WithTrack(ctx, track)
	started := r.now()
	expected := r.disc.ExpectedByteLength(track)
	result := &TrackResult{Track: track}
	r.reporter.Publish(ctx, Event{
		Kind:          EventTrackStarted,
		Track:         track,
		ExpectedBytes: expected,
		LengthSectors: r.disc.LengthSectors(track),
	})

	if err := os.MkdirAll(r.opts.WorkDir, 0o755); err != nil {
		return nil, r.fatal(ctx, track, services.Wrap(services.ErrConfiguration, "ripping", "ensure work dir",
			"failed to create work directory; set paths.work_dir to a writable location", err))
	}
	if r.opts.Debug {
		logging.WithContext(ctx, r.logger).Info("expected trial size",
			logging.Int64("expected_bytes", expected),
			logging.Int64("start_sector", r.disc.StartSector(track)),
			logging.Bool("last_track", r.disc.IsLastTrack(track)),
		)
	}
	if r.guard != nil && !r.guard.HasFreeSpace(expected) {
		return nil, r.fatal(ctx, track, services.Wrap(services.ErrStorageExhausted, "ripping", "size test",
			fmt.Sprintf("not enough free space for %d bytes", expected), nil))
	}

	// Initial trials: every sector should match across all of them.
	// The first trial becomes the accepted file and survives unless the track
	// fails; every other trial file is removed on all paths.
	paths := make([]string, 0, r.opts.RequiredMatchesAll)
	keepReference := false
	defer func() {
		first := 0
		if keepReference {
			first = 1
		}
		for _, path := range paths[min(first, len(paths)):] {
			_ = os.Remove(path)
		}
	}()
	for len(paths) < r.opts.RequiredMatchesAll {
		path, err := r.trials.read(ctx, track, len(paths)+1)
		if err != nil {
			if isCancellation(err) {
				keepReference = true
				return r.cancelled(ctx, result, paths, nil, started)
			}
			return nil, r.fatal(ctx, track, err)
		}
		paths = append(paths, path)
	}
	result.AcceptedPath = paths[0]
	result.Trials = len(paths)

	analysisStart := r.now()
	payloadLen, err := r.payloadLength(paths[0])
	if err != nil {
		return nil, r.fatal(ctx, track, err)
	}
	analysis, err := Analyze(r.layout, paths, payloadLen)
	if err != nil {
		return nil, r.fatal(ctx, track, services.Wrap(services.ErrTransient, "ripping", "analyze trials", "failed to compare trial files", err))
	}
	for _, path := range paths[1:] {
		_ = os.Remove(path)
	}
	paths = paths[:1]
	result.Integrity.TrialCRCs = analysis.TrialCRCs
	errs := analysis.Errors
	if errs.Len() == 0 {
		r.reporter.Publish(ctx, Event{Kind: EventAllMatched, Track: track, Trial: result.Trials, Elapsed: r.now().Sub(analysisStart)})
	} else {
		r.publishMismatch(ctx, track, result.Trials, errs, analysis.Matched())
	}

	outcome, err := r.correct(ctx, track, result, errs)
	if err != nil {
		return nil, r.fatal(ctx, track, err)
	}
	keepReference = true
	if outcome == OutcomeCancelled {
		return r.cancelled(ctx, result, paths, errs, started)
	}

	integrity, err := ComputeIntegrity(r.layout, result.AcceptedPath)
	if err != nil {
		keepReference = false
		return nil, r.fatal(ctx, track, services.Wrap(services.ErrTransient, "ripping", "integrity", "failed to checksum accepted file", err))
	}
	integrity.TrialCRCs = result.Integrity.TrialCRCs
	result.Integrity = integrity
	result.Outcome = outcome
	result.Unresolved = errs.Indices()
	result.Elapsed = r.now().Sub(started)

	r.doneSectors += r.disc.LengthSectors(track)
	r.reporter.Publish(ctx, Event{Kind: EventProgress, Track: track, Fraction: r.fraction()})
	r.reporter.Publish(ctx, Event{Kind: EventTrackFinished, Track: track, Trial: result.Trials, Elapsed: result.Elapsed, Result: result})
	return result, nil
}

// correct runs correction rounds until errs is empty, the trial budget is
// exceeded or ctx ends.
func (r *Ripper) correct(ctx context.Context, track int, result *TrackResult, errs *ErrorMap) (Outcome, error) {
	if errs.Len() == 0 {
		return OutcomeAccepted, nil
	}
	accepted, err := os.OpenFile(result.AcceptedPath, os.O_RDWR, 0)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "ripping", "open accepted file", "failed to open first trial for correction", err)
	}
	defer accepted.Close()

	fix := &corrector{layout: r.layout, quorum: r.opts.RequiredMatchesErrors}
	for errs.Len() > 0 {
		if r.opts.MaxTries != 0 && result.Trials > r.opts.MaxTries {
			r.reporter.Publish(ctx, Event{
				Kind:          EventIrrecoverable,
				Track:         track,
				Trial:         result.Trials,
				Sectors:       errs.Indices(),
				ExpectedBytes: r.disc.ExpectedByteLength(track),
				LengthSectors: r.disc.LengthSectors(track),
			})
			return OutcomeDegraded, nil
		}
		if ctx.Err() != nil {
			return OutcomeCancelled, nil
		}

		number := result.Trials + 1
		path, err := r.trials.read(ctx, track, number)
		if err != nil {
			if isCancellation(err) {
				return OutcomeCancelled, nil
			}
			return "", err
		}
		result.Trials = number

		collectErr := fix.collect(ctx, errs, path)
		_ = os.Remove(path)
		if collectErr != nil {
			if isCancellation(collectErr) {
				return OutcomeCancelled, nil
			}
			return "", services.Wrap(services.ErrTransient, "ripping", "collect candidates", "failed to read divergent sectors from trial", collectErr)
		}

		if number <= r.opts.RequiredMatchesErrors {
			r.publishMismatch(ctx, track, number, errs, -1)
			continue
		}
		if ctx.Err() != nil {
			return OutcomeCancelled, nil
		}
		corrected, err := fix.resolve(errs, accepted)
		result.Corrected = append(result.Corrected, corrected...)
		if err != nil {
			return "", services.Wrap(services.ErrTransient, "ripping", "write correction", "failed to write corrected sector", err)
		}
		if len(corrected) > 0 {
			r.reporter.Publish(ctx, Event{Kind: EventSectorsCorrected, Track: track, Trial: number, Sectors: corrected})
		}
		if errs.Len() > 0 {
			r.publishMismatch(ctx, track, number, errs, -1)
		}
	}
	if err := accepted.Sync(); err != nil {
		return "", services.Wrap(services.ErrTransient, "ripping", "sync accepted file", "failed to flush corrected sectors", err)
	}
	return OutcomeAccepted, nil
}

func (r *Ripper) publishMismatch(ctx context.Context, track, trial int, errs *ErrorMap, matched int64) {
	r.reporter.Publish(ctx, Event{
		Kind:          EventMismatchReport,
		Track:         track,
		Trial:         trial,
		Sectors:       errs.Indices(),
		ExpectedBytes: r.disc.ExpectedByteLength(track),
		LengthSectors: r.disc.LengthSectors(track),
		Matched:       matched,
	})
}

// cancelled finishes a track interrupted by ctx. Once trial 1 exists it stays
// in the work dir as the accepted file and the track is reported finished.
func (r *Ripper) cancelled(ctx context.Context, result *TrackResult, paths []string, errs *ErrorMap, started time.Time) (*TrackResult, error) {
	result.Outcome = OutcomeCancelled
	result.Unresolved = errs.Indices()
	result.Elapsed = r.now().Sub(started)
	if result.AcceptedPath == "" && len(paths) > 0 {
		result.AcceptedPath = paths[0]
		result.Trials = len(paths)
	}
	r.logger.Info("track rip cancelled",
		logging.Int(logging.FieldTrack, result.Track),
		logging.Int("trials", result.Trials),
		logging.Int("unresolved", len(result.Unresolved)),
	)
	if len(paths) == 0 {
		return result, services.Wrap(services.ErrNoTrials, "ripping", "read trial", "cancelled before any trial completed", context.Cause(ctx))
	}
	r.reporter.Publish(ctx, Event{Kind: EventTrackFinished, Track: result.Track, Trial: result.Trials, Elapsed: result.Elapsed, Result: result})
	return result, nil
}

func (r *Ripper) fatal(ctx context.Context, track int, err error) error {
	r.reporter.Publish(ctx, Event{Kind: EventFatal, Track: track, Err: err, Message: fatalHint(err)})
	return err
}

func (r *Ripper) payloadLength(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "ripping", "stat trial", "first trial disappeared", err)
	}
	return r.layout.PayloadLength(info.Size()), nil
}

func (r *Ripper) fraction() float64 {
	if r.totalSectors <= 0 {
		return 1
	}
	return float64(r.doneSectors) / float64(r.totalSectors)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func fatalHint(err error) string {
	switch {
	case errors.Is(err, services.ErrExternalTool):
		return "verify cdparanoia is installed and drive.read_options are valid"
	case errors.Is(err, services.ErrStorageExhausted):
		return "free disk space in the work directory"
	case errors.Is(err, services.ErrConfiguration):
		return "check the configuration file"
	default:
		return "check logs for details"
	}
}
