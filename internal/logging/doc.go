// Package logging assembles structured slog loggers and formatting helpers used
// across securerip.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so ripping code can automatically tag log
// lines with session IDs, track numbers, and stages. The package also provides
// a no-op logger for tests and wiring code that cannot fail.
package logging
