package preflight

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"securerip/internal/services"
	"securerip/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDevice(t *testing.T) {
	if r := CheckDevice("drive", " "); r.Passed || r.Detail != "no device configured" {
		t.Fatalf("unexpected result for blank device: %+v", r)
	}
	if r := CheckDevice("drive", filepath.Join(t.TempDir(), "sr9")); r.Passed {
		t.Fatal("expected failure for missing device")
	}
	regular := filepath.Join(t.TempDir(), "sr0")
	if err := os.WriteFile(regular, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckDevice("drive", regular); r.Passed || !strings.Contains(r.Detail, "not a device node") {
		t.Fatalf("expected regular file to be rejected: %+v", r)
	}
	if r := CheckDevice("drive", "/dev/null"); !r.Passed {
		t.Fatalf("expected /dev/null to pass as a readable device: %+v", r)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(nil); results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}

func TestRunAllAndVerify(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDevice("/dev/null"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := RunAll(cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 checks, got %d", len(results))
	}
	if err := Verify(results); err != nil {
		t.Fatalf("expected all checks to pass, got %v", err)
	}

	cfg.Paths.HistoryDB = ""
	cfg.Drive.Device = filepath.Join(t.TempDir(), "missing")
	results = RunAll(cfg)
	if len(results) != 3 {
		t.Fatalf("expected history check to be skipped, got %d results", len(results))
	}
	err := Verify(results)
	if !errors.Is(err, services.ErrConfiguration) || !strings.Contains(err.Error(), "Optical drive") {
		t.Fatalf("expected configuration error naming the drive, got %v", err)
	}
}
