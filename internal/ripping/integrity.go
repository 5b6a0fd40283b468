package ripping

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"securerip/internal/sector"
)

const (
	digestChunkSize = 100000
	fullScale       = 32767
)

// Integrity summarizes the accepted file of a track.
type Integrity struct {
	// MD5 covers the whole file, header included.
	MD5 string
	// CRC32 covers the payload only.
	CRC32 uint32
	// PeakPercent is the largest absolute sample relative to full scale.
	PeakPercent float64
	PeakSample  int
	// TrialCRCs are the payload checksums of the trials compared during analysis.
	TrialCRCs []uint32
}

// CRC32Hex formats the payload checksum the way rip logs usually show it.
func (i Integrity) CRC32Hex() string {
	return fmt.Sprintf("%08X", i.CRC32)
}

// ComputeIntegrity streams path once and computes its checksums and peak level.
func ComputeIntegrity(layout sector.Layout, path string) (Integrity, error) {
	f, err := os.Open(path)
	if err != nil {
		return Integrity{}, fmt.Errorf("open accepted file: %w", err)
	}
	defer f.Close()

	digest := md5.New()
	crc := crc32.NewIEEE()
	peak := 0
	var carry []byte
	buf := make([]byte, digestChunkSize)
	var offset int64
	for {
		n, readErr := io.ReadFull(f, buf)
		if n > 0 {
			chunk := buf[:n]
			digest.Write(chunk)
			payload := chunk
			if offset < layout.Header {
				skip := min(layout.Header-offset, int64(n))
				payload = chunk[skip:]
			}
			offset += int64(n)
			if len(payload) > 0 {
				crc.Write(payload)
				samples := append(carry, payload...)
				even := len(samples) &^ 1
				peak = max(peak, peakSample(samples[:even]))
				carry = append(carry[:0:0], samples[even:]...)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
				break
			}
			return Integrity{}, fmt.Errorf("read accepted file: %w", readErr)
		}
	}

	percent := float64(peak) / fullScale * 100
	if percent > 100 {
		percent = 100
	}
	return Integrity{
		MD5:         hex.EncodeToString(digest.Sum(nil)),
		CRC32:       crc.Sum32(),
		PeakPercent: percent,
		PeakSample:  peak,
	}, nil
}

// peakSample returns the largest absolute little-endian int16 in data.
func peakSample(data []byte) int {
	peak := 0
	for i := 0; i+1 < len(data); i += sector.BytesPerSample {
		v := int(int16(binary.LittleEndian.Uint16(data[i:])))
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}
