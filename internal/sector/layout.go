package sector

import "fmt"

const (
	// HeaderSize is the WAV container overhead written by the read tool.
	HeaderSize = 44
	// BlockSize is one CD-DA sector of audio: 588 stereo 16-bit samples.
	BlockSize = 2352
	// FramesPerSecond is the number of sectors in one second of audio.
	FramesPerSecond = 75
	// BytesPerSample is one 16-bit sample of one channel.
	BytesPerSample = 2
	// Channels is fixed at two for Redbook audio.
	Channels = 2
	// SamplesPerSector counts stereo samples (frames) per sector.
	SamplesPerSector = BlockSize / (BytesPerSample * Channels)
)

// Layout converts between payload indices and file offsets for a trial file.
type Layout struct {
	Header int64
	Block  int64
}

// CDDA is the layout produced by cdparanoia WAV output.
var CDDA = Layout{Header: HeaderSize, Block: BlockSize}

// FileOffset returns the byte offset in the trial file for a payload index.
func (l Layout) FileOffset(index int64) int64 {
	return l.Header + index
}

// PayloadLength returns the payload size for a file of the given total size.
func (l Layout) PayloadLength(fileSize int64) int64 {
	if fileSize <= l.Header {
		return 0
	}
	return fileSize - l.Header
}

// FileSize returns the expected file size for a track spanning sectors.
func (l Layout) FileSize(sectors int64) int64 {
	return l.Header + sectors*l.Block
}

// Sectors returns how many whole or partial blocks a payload spans.
func (l Layout) Sectors(payloadLen int64) int64 {
	if payloadLen <= 0 {
		return 0
	}
	return (payloadLen + l.Block - 1) / l.Block
}

// SectorNumber returns the 0-based sector number of a payload index.
func (l Layout) SectorNumber(index int64) int64 {
	return index / l.Block
}

// Timestamp formats a payload index as mm:ss.ff where ff counts 1/75 second
// frames, the notation used on disc tables of contents.
func (l Layout) Timestamp(index int64) string {
	sector := l.SectorNumber(index)
	minutes := sector / (60 * FramesPerSecond)
	seconds := (sector / FramesPerSecond) % 60
	frames := sector % FramesPerSecond
	return fmt.Sprintf("%02d:%02d.%02d", minutes, seconds, frames)
}

// Timestamps formats a list of payload indices.
func (l Layout) Timestamps(indices []int64) []string {
	out := make([]string, 0, len(indices))
	for _, index := range indices {
		out = append(out, l.Timestamp(index))
	}
	return out
}
