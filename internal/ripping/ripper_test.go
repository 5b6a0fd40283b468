package ripping

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"securerip/internal/logging"
	"securerip/internal/paranoia"
	"securerip/internal/sector"
	"securerip/internal/services"
	"securerip/internal/testsupport"
)

func workFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRipTrackIdenticalTrials(t *testing.T) {
	payload := make([]byte, 10*sector.BlockSize)
	binary.LittleEndian.PutUint16(payload[2*sector.BlockSize+100:], 0x10000-20000)
	opts := testOptions(t, 2, 3, 0)
	drive := &fakeDrive{t: t, payload: trialsByNumber(payload, payload)}
	reporter := &recordingReporter{}
	ripper := NewRipper(opts, fakeDisc{sectors: 10}, drive, fixedGuard(true), reporter, logging.NewNop())

	res, err := ripper.RipTrack(context.Background(), 1)
	if err != nil {
		t.Fatalf("RipTrack: %v", err)
	}
	if res.Outcome != OutcomeAccepted || res.Trials != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if drive.count() != 2 {
		t.Fatalf("expected no correction rounds, got %d reads", drive.count())
	}
	if len(reporter.ofKind(EventAllMatched)) != 1 || len(reporter.ofKind(EventMismatchReport)) != 0 {
		t.Fatal("expected a single all-matched event and no mismatch report")
	}
	if len(reporter.ofKind(EventTrackFinished)) != 1 {
		t.Fatal("expected integrity to be reported once")
	}
	if res.Integrity.PeakSample != 20000 {
		t.Fatalf("peak sample = %d, want 20000", res.Integrity.PeakSample)
	}
	data, err := os.ReadFile(res.AcceptedPath)
	if err != nil {
		t.Fatalf("read accepted: %v", err)
	}
	sum := md5.Sum(data)
	if res.Integrity.MD5 != hex.EncodeToString(sum[:]) {
		t.Fatalf("unexpected md5 %s", res.Integrity.MD5)
	}
	if len(res.Integrity.TrialCRCs) != 2 || res.Integrity.TrialCRCs[0] != res.Integrity.CRC32 {
		t.Fatalf("unexpected trial CRCs %v (crc %08X)", res.Integrity.TrialCRCs, res.Integrity.CRC32)
	}
	if diff := cmp.Diff([]string{"track01_1.wav"}, workFiles(t, opts.WorkDir)); diff != "" {
		t.Fatalf("work dir mismatch (-want +got):\n%s", diff)
	}
}

func TestRipTrackCorrectsSingleSector(t *testing.T) {
	base := testsupport.Payload(10)
	odd := testsupport.SetBlock(base, 3, 0xAA)
	opts := testOptions(t, 2, 2, 0)
	drive := &fakeDrive{t: t, payload: trialsByNumber(base, odd, base)}
	reporter := &recordingReporter{}
	ripper := NewRipper(opts, fakeDisc{sectors: 10}, drive, fixedGuard(true), reporter, logging.NewNop())

	res, err := ripper.RipTrack(context.Background(), 1)
	if err != nil {
		t.Fatalf("RipTrack: %v", err)
	}
	index := int64(3 * sector.BlockSize)
	if res.Outcome != OutcomeAccepted || res.Trials != 3 {
		t.Fatalf("unexpected result outcome=%s trials=%d", res.Outcome, res.Trials)
	}
	if diff := cmp.Diff([]int64{index}, res.Corrected); diff != "" {
		t.Fatalf("corrected mismatch (-want +got):\n%s", diff)
	}
	if len(res.Unresolved) != 0 {
		t.Fatalf("expected no unresolved sectors, got %v", res.Unresolved)
	}
	events := reporter.ofKind(EventSectorsCorrected)
	if len(events) != 1 || events[0].Timestamps()[0] != "00:00.03" {
		t.Fatalf("unexpected corrected events %+v", events)
	}
	if got := readPayload(t, res.AcceptedPath); !cmp.Equal(base, got) {
		t.Fatal("expected accepted payload to equal the majority content")
	}
}

func TestRipTrackRepairsReferenceTrial(t *testing.T) {
	base := testsupport.Payload(8)
	bad := testsupport.SetBlock(base, 5, 0x00)
	opts := testOptions(t, 2, 2, 0)
	drive := &fakeDrive{t: t, payload: trialsByNumber(bad, base, base)}
	ripper := NewRipper(opts, fakeDisc{sectors: 8}, drive, nil, nil, logging.NewNop())

	res, err := ripper.RipTrack(context.Background(), 2)
	if err != nil {
		t.Fatalf("RipTrack: %v", err)
	}
	if got := readPayload(t, res.AcceptedPath); !cmp.Equal(base, got) {
		t.Fatal("expected first trial to be overwritten with the agreed sector")
	}
	if res.Integrity.CRC32 != res.Integrity.TrialCRCs[1] {
		t.Fatalf("expected final CRC to match the clean trial, got %08X vs %v", res.Integrity.CRC32, res.Integrity.TrialCRCs)
	}
}

func TestRipTrackIrrecoverableAfterMaxTries(t *testing.T) {
	base := testsupport.Payload(10)
	opts := testOptions(t, 2, 3, 4)
	drive := &fakeDrive{t: t, payload: func(n int, _ paranoia.ReadRequest) []byte {
		return testsupport.SetBlock(base, 3, byte(n))
	}}
	reporter := &recordingReporter{}
	ripper := NewRipper(opts, fakeDisc{sectors: 10}, drive, fixedGuard(true), reporter, logging.NewNop())

	res, err := ripper.RipTrack(context.Background(), 1)
	if err != nil {
		t.Fatalf("RipTrack: %v", err)
	}
	index := int64(3 * sector.BlockSize)
	if res.Outcome != OutcomeDegraded {
		t.Fatalf("expected degraded outcome, got %s", res.Outcome)
	}
	if res.Trials != 5 || drive.count() != 5 {
		t.Fatalf("expected the trial counter to pass max tries, trials=%d reads=%d", res.Trials, drive.count())
	}
	events := reporter.ofKind(EventIrrecoverable)
	if len(events) != 1 {
		t.Fatalf("expected one irrecoverable event, got %d", len(events))
	}
	if diff := cmp.Diff([]int64{index}, events[0].Sectors); diff != "" {
		t.Fatalf("irrecoverable sectors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{index}, res.Unresolved); diff != "" {
		t.Fatalf("unresolved mismatch (-want +got):\n%s", diff)
	}
	got := readPayload(t, res.AcceptedPath)
	if !cmp.Equal(testsupport.SetBlock(base, 3, 1), got) {
		t.Fatal("expected first trial data to be retained unmodified")
	}
	if res.Integrity.MD5 == "" {
		t.Fatal("expected integrity for degraded track")
	}
	if diff := cmp.Diff([]string{"track01_1.wav"}, workFiles(t, opts.WorkDir)); diff != "" {
		t.Fatalf("work dir mismatch (-want +got):\n%s", diff)
	}
}

func TestRipTrackCancelledMidRound(t *testing.T) {
	base := testsupport.Payload(8)
	first := testsupport.SetBlock(testsupport.SetBlock(base, 3, 0x11), 5, 0x22)
	second := testsupport.SetBlock(base, 3, 0x33)
	third := testsupport.SetBlock(base, 3, 0x44)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	opts := testOptions(t, 2, 2, 0)
	drive := &fakeDrive{
		t:       t,
		payload: trialsByNumber(first, second, third, base),
		before: func(n int) {
			if n == 4 {
				cancel()
			}
		},
	}
	reporter := &recordingReporter{}
	ripper := NewRipper(opts, fakeDisc{sectors: 8}, drive, fixedGuard(true), reporter, logging.NewNop())

	res, err := ripper.RipTrack(ctx, 1)
	if err != nil {
		t.Fatalf("expected cancellation without error, got %v", err)
	}
	if res.Outcome != OutcomeCancelled {
		t.Fatalf("expected cancelled outcome, got %s", res.Outcome)
	}
	if diff := cmp.Diff([]int64{5 * sector.BlockSize}, res.Corrected); diff != "" {
		t.Fatalf("corrected mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{3 * sector.BlockSize}, res.Unresolved); diff != "" {
		t.Fatalf("unresolved mismatch (-want +got):\n%s", diff)
	}
	got := readPayload(t, res.AcceptedPath)
	if !cmp.Equal(block(base, 5), block(got, 5)) {
		t.Fatal("expected previously corrected sector to stay corrected")
	}
	if !cmp.Equal(block(first, 3), block(got, 3)) {
		t.Fatal("expected no write for the in-flight sector")
	}
	if res.Integrity.MD5 != "" {
		t.Fatal("expected no integrity report for a cancelled track")
	}
	finished := reporter.ofKind(EventTrackFinished)
	if len(finished) != 1 || finished[0].Result.Outcome != OutcomeCancelled {
		t.Fatalf("expected one cancelled track report, got %+v", finished)
	}
	if diff := cmp.Diff([]int64{3 * sector.BlockSize}, finished[0].Result.Unresolved); diff != "" {
		t.Fatalf("reported unresolved mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"track01_1.wav"}, workFiles(t, opts.WorkDir)); diff != "" {
		t.Fatalf("work dir mismatch (-want +got):\n%s", diff)
	}
}

func TestRipTrackCancelledDuringInitialTrials(t *testing.T) {
	payload := testsupport.Payload(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	opts := testOptions(t, 3, 3, 0)
	drive := &fakeDrive{
		t:       t,
		payload: trialsByNumber(payload, payload, payload),
		before: func(n int) {
			if n == 2 {
				cancel()
			}
		},
	}
	reporter := &recordingReporter{}
	ripper := NewRipper(opts, fakeDisc{sectors: 4}, drive, fixedGuard(true), reporter, logging.NewNop())

	res, err := ripper.RipTrack(ctx, 1)
	if err != nil {
		t.Fatalf("expected cancellation without error, got %v", err)
	}
	if res.Outcome != OutcomeCancelled || res.Trials != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if filepath.Base(res.AcceptedPath) != "track01_1.wav" {
		t.Fatalf("expected first trial to be kept as accepted file, got %q", res.AcceptedPath)
	}
	if diff := cmp.Diff(payload, readPayload(t, res.AcceptedPath)); diff != "" {
		t.Fatalf("accepted payload mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"track01_1.wav"}, workFiles(t, opts.WorkDir)); diff != "" {
		t.Fatalf("work dir mismatch (-want +got):\n%s", diff)
	}
	if len(reporter.ofKind(EventTrackFinished)) != 1 {
		t.Fatal("expected the cancelled track to be reported")
	}
}

func TestRipTrackCancelledBeforeFirstTrial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := testOptions(t, 2, 3, 0)
	drive := &fakeDrive{t: t, payload: trialsByNumber(testsupport.Payload(2))}
	ripper := NewRipper(opts, fakeDisc{sectors: 2}, drive, nil, nil, logging.NewNop())

	res, err := ripper.RipTrack(ctx, 1)
	if !errors.Is(err, services.ErrNoTrials) {
		t.Fatalf("expected no trials error, got %v", err)
	}
	if res == nil || res.Outcome != OutcomeCancelled {
		t.Fatalf("expected cancelled result, got %+v", res)
	}
	if drive.count() != 0 {
		t.Fatalf("expected no reads, got %d", drive.count())
	}
}

func TestRipTrackMissingOutputAbortsTrack(t *testing.T) {
	opts := testOptions(t, 2, 3, 0)
	drive := &fakeDrive{t: t, noOutput: true}
	reporter := &recordingReporter{}
	ripper := NewRipper(opts, fakeDisc{sectors: 2}, drive, nil, reporter, logging.NewNop())

	res, err := ripper.RipTrack(context.Background(), 1)
	if !errors.Is(err, services.ErrExternalTool) || res != nil {
		t.Fatalf("expected external tool failure, got res=%v err=%v", res, err)
	}
	events := reporter.ofKind(EventFatal)
	if len(events) != 1 || events[0].Message == "" {
		t.Fatalf("expected fatal event with hint, got %+v", events)
	}
}

func TestRipTracksStopsOnStorageExhaustion(t *testing.T) {
	opts := testOptions(t, 2, 3, 0)
	drive := &fakeDrive{t: t, payload: trialsByNumber(testsupport.Payload(2))}
	ripper := NewRipper(opts, fakeDisc{sectors: 2}, drive, fixedGuard(false), nil, logging.NewNop())

	results, err := ripper.RipTracks(context.Background(), []int{1, 2, 3})
	if !errors.Is(err, services.ErrStorageExhausted) {
		t.Fatalf("expected storage exhausted, got %v", err)
	}
	if len(results) != 0 || drive.count() != 0 {
		t.Fatalf("expected session to stop before reading, results=%d reads=%d", len(results), drive.count())
	}
}

func TestRipTracksReportsProgressAndEjects(t *testing.T) {
	payload := testsupport.Payload(4)
	opts := testOptions(t, 2, 3, 0)
	opts.EjectAfterRip = true
	drive := &fakeDrive{t: t, payload: trialsByNumber(payload)}
	reporter := &recordingReporter{}
	ejector := &stubEjector{}
	ripper := NewRipper(opts, fakeDisc{sectors: 4}, drive, fixedGuard(true), reporter, logging.NewNop(), WithEjector(ejector))

	results, err := ripper.RipTracks(context.Background(), []int{1, 2})
	if err != nil {
		t.Fatalf("RipTracks: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected two results, got %d", len(results))
	}
	var fractions []float64
	for _, e := range reporter.ofKind(EventProgress) {
		fractions = append(fractions, e.Fraction)
	}
	if diff := cmp.Diff([]float64{0, 0.5, 1}, fractions); diff != "" {
		t.Fatalf("progress mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/dev/sr0"}, ejector.devices); diff != "" {
		t.Fatalf("eject mismatch (-want +got):\n%s", diff)
	}
	for _, res := range results {
		if filepath.Dir(res.AcceptedPath) != opts.WorkDir {
			t.Fatalf("unexpected accepted path %s", res.AcceptedPath)
		}
	}
}

func TestOptionsNormalized(t *testing.T) {
	opts := Options{RequiredMatchesAll: 0, RequiredMatchesErrors: -1, MaxTries: -3}.normalized()
	if opts.RequiredMatchesAll != 1 || opts.RequiredMatchesErrors != 1 || opts.MaxTries != 0 || opts.WorkDir != "." {
		t.Fatalf("unexpected normalized options %+v", opts)
	}
	cfg := testsupport.NewConfig(t, testsupport.WithSecure(3, 4, 9), testsupport.WithDevice("/dev/sr1"))
	derived := OptionsFromConfig(cfg)
	if derived.RequiredMatchesAll != 3 || derived.RequiredMatchesErrors != 4 || derived.MaxTries != 9 || derived.Device != "/dev/sr1" {
		t.Fatalf("unexpected derived options %+v", derived)
	}
	if derived.CooldownAfter != cfg.CooldownAfter() || derived.WorkDir != cfg.Paths.WorkDir {
		t.Fatalf("unexpected derived cooldown/work dir %+v", derived)
	}
}
