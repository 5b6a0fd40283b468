package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"securerip/internal/config"
	"securerip/internal/disc"
	"securerip/internal/logging"
	"securerip/internal/paranoia"
	"securerip/internal/testsupport"
)

const testTrackSectors = 4

type fakeScanner struct {
	toc *disc.TOC
	err error
}

func (f fakeScanner) Scan(context.Context, string) (*disc.TOC, error) {
	return f.toc, f.err
}

// fakeReader writes deterministic trial files. payload receives the 1-based
// read count of the requested track.
type fakeReader struct {
	t       *testing.T
	mu      sync.Mutex
	reads   map[int]int
	payload func(track, n int) []byte
}

func (f *fakeReader) Read(_ context.Context, req paranoia.ReadRequest) error {
	f.mu.Lock()
	if f.reads == nil {
		f.reads = make(map[int]int)
	}
	f.reads[req.Track]++
	n := f.reads[req.Track]
	f.mu.Unlock()

	data := testsupport.Payload(int(req.LengthSectors))
	if f.payload != nil {
		data = f.payload(req.Track, n)
	}
	testsupport.WriteTrial(f.t, req.OutputPath, data)
	return nil
}

type fakeEjector struct{ calls int }

func (f *fakeEjector) Eject(context.Context, string) error {
	f.calls++
	return nil
}

type cliEnv struct {
	cfg        *config.Config
	configPath string
	reader     *fakeReader
	scanner    fakeScanner
	ejector    *fakeEjector
}

func twoTrackTOC() *disc.TOC {
	return &disc.TOC{Tracks: []disc.TrackInfo{
		{Number: 1, StartSector: 0, LengthSectors: testTrackSectors, CopyPermitted: true, Channels: 2},
		{Number: 2, StartSector: testTrackSectors, LengthSectors: testTrackSectors, Channels: 2},
	}}
}

func setupCLI(t *testing.T, opts ...testsupport.ConfigOption) *cliEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SECURERIP_DEVICE", "")

	cfg := testsupport.NewConfig(t, opts...)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliEnv{
		cfg:        cfg,
		configPath: configPath,
		reader:     &fakeReader{t: t},
		scanner:    fakeScanner{toc: twoTrackTOC()},
		ejector:    &fakeEjector{},
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliEnv, args ...string) (string, error) {
	t.Helper()
	cctx := newCommandContext()
	cctx.newLogger = func(*config.Config) (*slog.Logger, error) { return logging.NewNop(), nil }
	cctx.newTools = func(*config.Config, *slog.Logger) (*ripTools, error) {
		return &ripTools{scanner: env.scanner, reader: env.reader, ejector: env.ejector}, nil
	}
	cmd := newRootCommandWithContext(cctx)
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stdout)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
