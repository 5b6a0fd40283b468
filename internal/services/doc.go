// Package services defines shared utilities consumed by the ripping core and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, track numbers, and stage names
//     for logging.
//   - Structured error markers plus the Wrap helper that let callers decide
//     whether a failure ends the current track or the whole session.
//
// Use these helpers when wiring new collaborators so operational behaviour
// (error handling, observability) stays uniform across the ripper.
package services
