package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"securerip/internal/config"
	"securerip/internal/history"
	"securerip/internal/services"
)

func TestTOCCommand(t *testing.T) {
	env := setupCLI(t)
	out, err := runCLI(t, env, "toc")
	if err != nil {
		t.Fatalf("toc: %v", err)
	}
	requireContains(t, out, "PRE-EMPHASIS")
	requireContains(t, out, twoTrackTOC().Fingerprint())
	requireContains(t, out, "00:00.04")
	requireContains(t, out, "9,452")
	requireContains(t, out, "(8 sectors)")
}

func TestHistoryCommands(t *testing.T) {
	env := setupCLI(t)

	out, err := runCLI(t, env, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No rip sessions recorded")

	if out, err := runCLI(t, env, "rip", "1"); err != nil {
		t.Fatalf("rip: %v\n%s", err, out)
	}
	store, err := history.Open(env.cfg.Paths.HistoryDB)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	sessions, err := store.ListSessions(context.Background(), 1)
	_ = store.Close()
	if err != nil || len(sessions) != 1 {
		t.Fatalf("expected one session, got %v (err=%v)", sessions, err)
	}
	id := sessions[0].ID

	out, err = runCLI(t, env, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, id)
	requireContains(t, out, "completed")

	out, err = runCLI(t, env, "history", "show", id)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, out, "Status:      completed")
	requireContains(t, out, "accepted")

	_, err = runCLI(t, env, "history", "show", "missing-session")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown session, got %v", err)
	}
}

func TestHistoryDisabled(t *testing.T) {
	env := setupCLI(t)
	env.cfg.Paths.HistoryDB = ""
	writeTestConfig(t, env.configPath, env.cfg)

	_, err := runCLI(t, env, "history")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if out, err := runCLI(t, env, "rip", "1"); err != nil {
		t.Fatalf("rip without history should succeed: %v\n%s", err, out)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLI(t)

	out, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "max tries 7")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err = runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, err := runCLI(t, env, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestDepsCommandReportsMissingBinary(t *testing.T) {
	env := setupCLI(t)
	env.cfg.Drive.ParanoiaBinary = filepath.Join(t.TempDir(), "cdparanoia")
	writeTestConfig(t, env.configPath, env.cfg)

	out, err := runCLI(t, env, "deps")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	requireContains(t, out, "cdparanoia")
	requireContains(t, out, "missing")
}

func TestMaxTriesLabel(t *testing.T) {
	if got := maxTriesLabel(0); got != "unlimited" {
		t.Fatalf("maxTriesLabel(0) = %q", got)
	}
	if got := maxTriesLabel(config.Default().Secure.MaxTries); got != "7" {
		t.Fatalf("maxTriesLabel(default) = %q", got)
	}
}
