package ripping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"securerip/internal/logging"
	"securerip/internal/paranoia"
	"securerip/internal/sector"
	"securerip/internal/services"
)

// trialPath names the temporary file of one trial.
func trialPath(workDir string, track, number int) string {
	return filepath.Join(workDir, fmt.Sprintf("track%02d_%d.wav", track, number))
}

// trialReader performs single trial reads and applies the size policy.
type trialReader struct {
	opts     Options
	disc     DiscInfo
	exec     ReadExecutor
	guard    SpaceGuard
	cooldown *cooldown
	reporter Reporter
	logger   *slog.Logger
	now      func() time.Time
}

// read produces a size-checked trial file for track under the given trial
// number. Undersized output is discarded and read again with the same number
// until it succeeds, the context ends or storage runs out.
func (r *trialReader) read(ctx context.Context, track, number int) (string, error) {
	logger := logging.WithContext(ctx, r.logger).With(logging.Int(logging.FieldTrial, number))
	path := trialPath(r.opts.WorkDir, track, number)
	last := r.disc.IsLastTrack(track)
	expected := r.disc.ExpectedByteLength(track)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if r.cooldown.due() {
			r.reporter.Publish(ctx, Event{Kind: EventCooldown, Track: track, Trial: number, Elapsed: r.cooldown.pause})
			if err := r.cooldown.wait(ctx); err != nil {
				return "", err
			}
		}

		_ = os.Remove(path)
		r.reporter.Publish(ctx, Event{Kind: EventTrialStarted, Track: track, Trial: number})
		started := r.now()
		req := paranoia.ReadRequest{
			Track:         track,
			Trial:         number,
			StartSector:   r.disc.StartSector(track),
			LengthSectors: r.disc.LengthSectors(track),
			ToEnd:         last,
			LastOrImage:   last,
			Device:        r.opts.Device,
			OffsetSamples: r.opts.OffsetSamples,
			Options:       r.opts.DriveOptions,
			OutputPath:    path,
			Verbose:       r.opts.Verbose,
		}
		readErr := r.exec.Read(ctx, req)
		if err := ctx.Err(); err != nil {
			_ = os.Remove(path)
			return "", err
		}

		info, statErr := os.Stat(path)
		if statErr != nil {
			return "", services.Wrap(
				services.ErrExternalTool,
				"ripping",
				"read trial",
				"read tool produced no output; check drive options and the device path",
				errors.Join(readErr, statErr),
			)
		}
		if readErr != nil {
			logger.Warn("read tool reported failure but produced output",
				logging.Error(readErr),
				logging.String(logging.FieldEventType, "read_tool_status"),
				logging.String(logging.FieldImpact, "output is validated by size and comparison"),
			)
		}

		accepted, err := r.checkSize(ctx, logger, track, number, path, info.Size(), expected)
		if err != nil {
			return "", err
		}
		if accepted {
			r.reporter.Publish(ctx, Event{Kind: EventTrialFinished, Track: track, Trial: number, Elapsed: r.now().Sub(started)})
			return path, nil
		}
	}
}

// checkSize applies the size policy. It returns false when the trial must be
// read again.
func (r *trialReader) checkSize(ctx context.Context, logger *slog.Logger, track, number int, path string, size, expected int64) (bool, error) {
	diff := expected - size
	switch {
	case diff == 0:
		return true, nil
	case diff < 0:
		logger.Debug("more data read than expected", logging.Int64("extra_bytes", -diff))
		return true, nil
	case r.opts.OffsetSamples != 0 && (r.disc.IsFirstTrack(track) || r.disc.IsLastTrack(track)):
		result := "kept_short"
		if r.opts.PadMissingSamples {
			result = "padded"
		}
		attrs := append(logging.DecisionAttrs("boundary_short_read", result, "read offset shifts data past the disc edge"),
			logging.Int64("missing_bytes", diff),
			logging.Float64("missing_sectors", float64(diff)/sector.BlockSize),
			logging.String(logging.FieldErrorHint, "known behaviour for some drives when using a read offset"),
			logging.String(logging.FieldImpact, "each missing sector is 1/75 second of audio"),
		)
		logging.WarnWithContext(logger, "trial shorter than expected at disc boundary", "boundary_short_read", attrs...)
		if r.opts.PadMissingSamples {
			if err := os.Truncate(path, expected); err != nil {
				return false, services.Wrap(services.ErrTransient, "ripping", "pad trial", "failed to pad short trial with silence", err)
			}
		}
		return true, nil
	}

	_ = os.Remove(path)
	if r.guard != nil && !r.guard.HasFreeSpace(expected) {
		return false, services.Wrap(
			services.ErrStorageExhausted,
			"ripping",
			"read trial",
			fmt.Sprintf("not enough free space for %d bytes in the work directory", expected),
			nil,
		)
	}
	r.reporter.Publish(ctx, Event{
		Kind:          EventTrialRejected,
		Track:         track,
		Trial:         number,
		ExpectedBytes: expected,
		Message:       fmt.Sprintf("file is %d bytes short", diff),
	})
	return false, nil
}

