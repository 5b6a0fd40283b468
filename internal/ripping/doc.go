// Package ripping implements secure, multi-trial reading of audio tracks.
//
// A Ripper reads every track several times through an injected ReadExecutor,
// compares the trials sector by sector and keeps reading until each divergent
// sector has been seen with the same content often enough to be trusted. The
// agreed value is written into the first trial, which becomes the accepted
// file. When the trial budget runs out the remaining sectors are reported with
// their time offsets and the first trial's data is kept as-is.
//
// The package never talks to the drive, the filesystem layout of the output
// directory, or the history database directly; those concerns arrive through
// the DiscInfo, SpaceGuard and Reporter interfaces so tests can drive the whole
// loop with fakes.
package ripping
