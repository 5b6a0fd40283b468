// Package notifications pushes rip outcomes to ntfy.
//
// Reporter plugs into the ripper's event fan-out and forwards only the events
// a person away from the drive cares about: sectors left unresolved, tracks
// that failed, and the session summary. When no topic is configured the
// notifier is a no-op, so callers never need to branch on configuration.
package notifications
