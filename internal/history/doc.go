// Package history persists rip sessions in SQLite.
//
// Every session records the disc fingerprint, the per-track outcome with its
// checksums and every mismatch report emitted while correcting. The Recorder
// type plugs the store into the ripper as an event reporter, and PreviousCRC
// lets a new rip be compared against an earlier rip of the same disc without
// keeping any audio around.
package history
