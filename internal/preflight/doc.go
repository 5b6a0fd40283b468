// Package preflight checks the filesystem and the optical drive before a rip.
//
// A rip that starts with an unwritable work directory or an unreadable drive
// fails only after the first trial, so the CLI runs RunAll up front and the
// deps command prints the same results next to the binary checks.
package preflight
