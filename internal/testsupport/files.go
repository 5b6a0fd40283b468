package testsupport

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"securerip/internal/sector"
)

// Header returns a canonical 44-byte WAV header for payloadLen bytes of CD audio.
func Header(payloadLen int) []byte {
	h := make([]byte, sector.HeaderSize)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], uint32(36+payloadLen))
	copy(h[8:], "WAVEfmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], 1)
	binary.LittleEndian.PutUint16(h[22:], sector.Channels)
	binary.LittleEndian.PutUint32(h[24:], 44100)
	binary.LittleEndian.PutUint32(h[28:], 44100*sector.Channels*sector.BytesPerSample)
	binary.LittleEndian.PutUint16(h[32:], sector.Channels*sector.BytesPerSample)
	binary.LittleEndian.PutUint16(h[34:], 16)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], uint32(payloadLen))
	return h
}

// Payload builds blocks sectors of deterministic audio. Each sector carries a
// distinct pattern so a swapped or altered sector is detectable.
func Payload(blocks int) []byte {
	out := make([]byte, blocks*sector.BlockSize)
	for i := range out {
		out[i] = byte((i/sector.BlockSize)*7 + i%251)
	}
	return out
}

// SetBlock overwrites sector block of payload with value.
func SetBlock(payload []byte, block int, value byte) []byte {
	out := append([]byte(nil), payload...)
	start := block * sector.BlockSize
	for i := start; i < start+sector.BlockSize && i < len(out); i++ {
		out[i] = value
	}
	return out
}

// WriteTrial writes a header plus payload to path.
func WriteTrial(t testing.TB, path string, payload []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data := append(Header(len(payload)), payload...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
