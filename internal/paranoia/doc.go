// Package paranoia wraps the cdparanoia CLI used to read audio tracks.
//
// Reads are described by a typed ReadRequest and translated into an argument
// vector, never a shell string, then run through an injectable Executor so
// tests can substitute a fake drive. The package only reports whether the tool
// ran; validating the produced file is the ripper's job.
package paranoia
