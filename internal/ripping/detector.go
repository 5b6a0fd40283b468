package ripping

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"securerip/internal/sector"
)

const compareChunkSize = 64 * 1024

// Analysis is the outcome of comparing the initial trials of a track.
type Analysis struct {
	Errors *ErrorMap
	// Scanned reports whether the sector-level scan ran.
	Scanned    bool
	Sectors    int64
	Mismatched int64
	// TrialCRCs holds the payload CRC32 of every analysed trial, in order.
	TrialCRCs []uint32
}

// Matched returns the number of sectors that agreed across all trials.
func (a *Analysis) Matched() int64 {
	if a == nil {
		return 0
	}
	return a.Sectors - a.Mismatched
}

// Analyze compares trial files and records divergent sectors. paths[0] is the
// reference trial; payloadLen is the number of payload bytes to scan.
func Analyze(layout sector.Layout, paths []string, payloadLen int64) (*Analysis, error) {
	if len(paths) == 0 {
		return nil, errors.New("analyze: no trials")
	}
	analysis := &Analysis{
		Errors:  NewErrorMap(),
		Sectors: layout.Sectors(payloadLen),
	}

	files := make([]*os.File, 0, len(paths))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open trial: %w", err)
		}
		files = append(files, f)
	}

	for _, f := range files {
		sum, err := payloadCRC(layout, f)
		if err != nil {
			return nil, err
		}
		analysis.TrialCRCs = append(analysis.TrialCRCs, sum)
	}

	equal := true
	for i := 1; i < len(files) && equal; i++ {
		same, err := filesEqual(files[i-1], files[i])
		if err != nil {
			return nil, err
		}
		equal = same
	}
	if equal {
		return analysis, nil
	}

	analysis.Scanned = true
	ref := make([]byte, layout.Block)
	cmp := make([]byte, layout.Block)
	for t := 1; t < len(files); t++ {
		for index := int64(0); index < payloadLen; index += layout.Block {
			if analysis.Errors.Has(index) {
				continue
			}
			a, err := readBlock(files[0], layout, index, ref)
			if err != nil {
				return nil, err
			}
			b, err := readBlock(files[t], layout, index, cmp)
			if err != nil {
				return nil, err
			}
			if bytes.Equal(a, b) {
				continue
			}
			for _, f := range files {
				block, err := readBlock(f, layout, index, cmp)
				if err != nil {
					return nil, err
				}
				analysis.Errors.Add(index, block)
			}
			analysis.Mismatched++
		}
	}
	return analysis, nil
}

// readBlock reads the block at payload index into buf. The result is shorter
// than a block at the end of the file.
func readBlock(f *os.File, layout sector.Layout, index int64, buf []byte) ([]byte, error) {
	n, err := f.ReadAt(buf[:layout.Block], layout.FileOffset(index))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read sector at %d: %w", index, err)
	}
	return buf[:n], nil
}

func payloadCRC(layout sector.Layout, f *os.File) (uint32, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat trial: %w", err)
	}
	payload := io.NewSectionReader(f, layout.Header, layout.PayloadLength(info.Size()))
	hash := crc32.NewIEEE()
	if _, err := io.Copy(hash, payload); err != nil {
		return 0, fmt.Errorf("checksum trial: %w", err)
	}
	return hash.Sum32(), nil
}

func filesEqual(a, b *os.File) (bool, error) {
	infoA, err := a.Stat()
	if err != nil {
		return false, fmt.Errorf("stat trial: %w", err)
	}
	infoB, err := b.Stat()
	if err != nil {
		return false, fmt.Errorf("stat trial: %w", err)
	}
	if infoA.Size() != infoB.Size() {
		return false, nil
	}
	bufA := make([]byte, compareChunkSize)
	bufB := make([]byte, compareChunkSize)
	for offset := int64(0); offset < infoA.Size(); offset += compareChunkSize {
		na, errA := a.ReadAt(bufA, offset)
		if errA != nil && !errors.Is(errA, io.EOF) {
			return false, fmt.Errorf("compare trials: %w", errA)
		}
		nb, errB := b.ReadAt(bufB, offset)
		if errB != nil && !errors.Is(errB, io.EOF) {
			return false, fmt.Errorf("compare trials: %w", errB)
		}
		if !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
	}
	return true, nil
}
