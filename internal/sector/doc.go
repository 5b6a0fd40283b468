// Package sector describes the on-disk layout of a ripped trial: a fixed
// 44-byte WAV header followed by audio payload organised in 2352-byte CD-DA
// sectors. All positional arithmetic in the ripper goes through this package
// so that a payload index and a file offset are never confused.
package sector
