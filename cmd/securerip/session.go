package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"securerip/internal/config"
	"securerip/internal/disc"
	"securerip/internal/fileutil"
	"securerip/internal/history"
	"securerip/internal/logging"
	"securerip/internal/notifications"
	"securerip/internal/ripping"
	"securerip/internal/services"
	"securerip/internal/storage"
)

// workReserveBytes is kept free on the work filesystem beyond one trial.
const workReserveBytes = 64 << 20

type ripRequest struct {
	device string
	tracks []int
	image  bool
}

type ripSummary struct {
	sessionID   string
	fingerprint string
	outputDir   string
	toc         *disc.TOC
	results     []*ripping.TrackResult
	cancelled   bool
}

func (s *ripSummary) degraded() int {
	count := 0
	for _, res := range s.results {
		if res.Outcome == ripping.OutcomeDegraded {
			count++
		}
	}
	return count
}

// runRipSession rips the requested tracks of the disc in req.device, or the
// configured drive, and publishes accepted files below the output directory.
// The returned summary is non-nil whenever the TOC could be read.
func runRipSession(ctx context.Context, cfg *config.Config, logger *slog.Logger, tools *ripTools, req ripRequest) (*ripSummary, error) {
	local := *cfg
	if req.device != "" {
		local.Drive.Device = req.device
	}
	cfg = &local
	device := cfg.Drive.Device
	ctx = services.WithStage(ctx, "rip")

	lock := disc.NewDriveLock(cfg.Paths.WorkDir, device)
	if err := lock.Acquire(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "rip", "lock drive",
			"another securerip process is using this drive", err)
	}
	defer func() { _ = lock.Release() }()

	toc, err := tools.scanner.Scan(ctx, device)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "rip", "read toc",
			"failed to read the disc table of contents; check that an audio CD is loaded", err)
	}
	requested := req.tracks
	if req.image {
		requested = []int{disc.ImageTrack}
	}
	selection, err := toc.Selection(requested)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "rip", "select tracks", err.Error(), nil)
	}

	summary := &ripSummary{
		sessionID:   uuid.NewString(),
		fingerprint: toc.Fingerprint(),
		toc:         toc,
	}
	summary.outputDir = filepath.Join(cfg.Paths.OutputDir, summary.fingerprint)

	recorder, closeHistory := openRecorder(ctx, cfg, logger, summary.fingerprint, device, req.image)
	defer closeHistory()
	if recorder != nil {
		summary.sessionID = recorder.SessionID()
	}
	ctx = services.WithSessionID(ctx, summary.sessionID)
	logging.WithContext(ctx, logger).Info("rip session started",
		logging.String("device", device),
		logging.String("fingerprint", summary.fingerprint),
		logging.Int("tracks", len(selection)),
		logging.String(logging.FieldEventType, "session_started"),
	)

	notifier := notifications.NewReporter(notifications.NewNotifier(cfg), logger)
	reporters := ripping.Reporters{ripping.NewLogReporter(logger), notifier}
	if recorder != nil {
		reporters = append(reporters, recorder)
	}

	ripper := ripping.NewRipper(
		ripping.OptionsFromConfig(cfg),
		toc,
		tools.reader,
		storage.NewGuard(cfg.Paths.WorkDir, workReserveBytes, logger),
		reporters,
		logger,
		ripping.WithEjector(tools.ejector),
	)
	results, ripErr := ripper.RipTracks(ctx, selection)
	summary.results = results
	summary.cancelled = ctx.Err() != nil
	for _, res := range results {
		if res.Outcome == ripping.OutcomeCancelled {
			summary.cancelled = true
		}
	}

	publishErr := publishResults(ctx, logger, summary)

	if recorder != nil {
		if err := recorder.Finish(ctx, summary.cancelled); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, logger), "failed to close history session", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "session stays marked as running in history"),
			)
		}
	}
	notifier.SessionDone(ctx, summary.fingerprint, summary.cancelled)

	return summary, errors.Join(ripErr, publishErr)
}

// openRecorder starts a history session when a database is configured. History
// failures never block a rip.
func openRecorder(ctx context.Context, cfg *config.Config, logger *slog.Logger, fingerprint, device string, image bool) (*history.Recorder, func()) {
	if cfg.Paths.HistoryDB == "" {
		return nil, func() {}
	}
	warn := func(msg string, err error) {
		logging.WarnWithContext(logging.WithContext(ctx, logger), msg, "history_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.history_db or set it to an empty string"),
			logging.String(logging.FieldImpact, "this rip is not recorded in history"),
		)
	}
	store, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		warn("failed to open history database", err)
		return nil, func() {}
	}
	session, err := store.BeginSession(ctx, fingerprint, device, image)
	if err != nil {
		warn("failed to start history session", err)
		_ = store.Close()
		return nil, func() {}
	}
	return history.NewRecorder(store, session, logger), func() { _ = store.Close() }
}

// publishResults moves accepted and degraded tracks into the output
// directory. Cancelled tracks stay in the work directory.
func publishResults(ctx context.Context, logger *slog.Logger, summary *ripSummary) error {
	var errs []error
	for _, res := range summary.results {
		if res.Outcome == ripping.OutcomeCancelled || res.AcceptedPath == "" {
			continue
		}
		dest := filepath.Join(summary.outputDir, outputName(res.Track))
		if err := fileutil.MoveFile(res.AcceptedPath, dest); err != nil {
			errs = append(errs, fmt.Errorf("track %d: publish %s: %w", res.Track, dest, err))
			continue
		}
		res.AcceptedPath = dest
		logging.WithContext(services.WithTrack(ctx, res.Track), logger).Debug("track published",
			logging.String("path", dest),
		)
	}
	return errors.Join(errs...)
}

func outputName(track int) string {
	if track == disc.ImageTrack {
		return "image.wav"
	}
	return fmt.Sprintf("track%02d.wav", track)
}
