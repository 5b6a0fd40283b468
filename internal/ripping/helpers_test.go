package ripping

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"securerip/internal/paranoia"
	"securerip/internal/sector"
	"securerip/internal/testsupport"
)

type fakeDrive struct {
	t     *testing.T
	mu    sync.Mutex
	calls []paranoia.ReadRequest
	// payload returns what the nth Read call (1-based) writes.
	payload func(n int, req paranoia.ReadRequest) []byte
	// before runs ahead of writing output for the nth call.
	before   func(n int)
	noOutput bool
}

func (d *fakeDrive) Read(_ context.Context, req paranoia.ReadRequest) error {
	d.mu.Lock()
	d.calls = append(d.calls, req)
	n := len(d.calls)
	d.mu.Unlock()
	if d.before != nil {
		d.before(n)
	}
	if d.noOutput {
		return errors.New("exit status 1")
	}
	testsupport.WriteTrial(d.t, req.OutputPath, d.payload(n, req))
	return nil
}

func (d *fakeDrive) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type fakeDisc struct {
	sectors int64
	first   bool
	last    bool
}

func (d fakeDisc) ExpectedByteLength(int) int64 { return sector.CDDA.FileSize(d.sectors) }
func (d fakeDisc) StartSector(track int) int64  { return int64(track) * 1000 }
func (d fakeDisc) LengthSectors(int) int64      { return d.sectors }
func (d fakeDisc) IsFirstTrack(int) bool        { return d.first }
func (d fakeDisc) IsLastTrack(int) bool         { return d.last }

type fixedGuard bool

func (g fixedGuard) HasFreeSpace(int64) bool { return bool(g) }

type recordingReporter struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingReporter) Publish(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingReporter) ofKind(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type stubEjector struct {
	devices []string
}

func (s *stubEjector) Eject(_ context.Context, device string) error {
	s.devices = append(s.devices, device)
	return nil
}

func testOptions(t *testing.T, matchesAll, matchesErrors, maxTries int) Options {
	t.Helper()
	return Options{
		RequiredMatchesAll:    matchesAll,
		RequiredMatchesErrors: matchesErrors,
		MaxTries:              maxTries,
		Device:                "/dev/sr0",
		WorkDir:               t.TempDir(),
	}
}

// trialsByNumber serves payloads[n-1] for the nth read.
func trialsByNumber(payloads ...[]byte) func(int, paranoia.ReadRequest) []byte {
	return func(n int, _ paranoia.ReadRequest) []byte {
		if n > len(payloads) {
			return payloads[len(payloads)-1]
		}
		return payloads[n-1]
	}
}

func readPayload(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data[sector.HeaderSize:]
}

func block(payload []byte, index int) []byte {
	return payload[index*sector.BlockSize : (index+1)*sector.BlockSize]
}
