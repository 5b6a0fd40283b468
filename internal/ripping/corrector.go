package ripping

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"securerip/internal/sector"
)

// corrector accumulates candidates for divergent sectors and writes the
// winning candidate into the accepted file once it reaches quorum.
type corrector struct {
	layout sector.Layout
	quorum int
}

// collect appends the new trial's content of every flagged sector, visiting
// sectors in ascending order.
func (c *corrector) collect(ctx context.Context, errs *ErrorMap, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open trial: %w", err)
	}
	defer f.Close()

	buf := make([]byte, c.layout.Block)
	for _, index := range errs.Indices() {
		if err := ctx.Err(); err != nil {
			return err
		}
		block, err := readBlock(f, c.layout, index, buf)
		if err != nil {
			return err
		}
		errs.Add(index, block)
	}
	return nil
}

// resolve writes every candidate that reached quorum into accepted and drops
// its sector from errs. It returns the corrected payload indices.
func (c *corrector) resolve(errs *ErrorMap, accepted *os.File) ([]int64, error) {
	var corrected []int64
	for _, index := range errs.Indices() {
		winner, ok := quorumWinner(errs.Candidates(index), c.quorum)
		if !ok {
			continue
		}
		if _, err := accepted.WriteAt(winner, c.layout.FileOffset(index)); err != nil {
			return corrected, fmt.Errorf("write corrected sector at %d: %w", index, err)
		}
		errs.Delete(index)
		corrected = append(corrected, index)
	}
	return corrected, nil
}

// quorumWinner counts each distinct candidate and returns the most frequent
// one when it occurs at least need times. Ties go to the candidate seen first.
func quorumWinner(candidates [][]byte, need int) ([]byte, bool) {
	bestIndex, bestCount := -1, 0
	for i, candidate := range candidates {
		seenBefore := false
		for _, prior := range candidates[:i] {
			if bytes.Equal(prior, candidate) {
				seenBefore = true
				break
			}
		}
		if seenBefore {
			continue
		}
		count := 1
		for _, other := range candidates[i+1:] {
			if bytes.Equal(other, candidate) {
				count++
			}
		}
		if count > bestCount {
			bestIndex, bestCount = i, count
		}
	}
	if bestIndex < 0 || bestCount < need {
		return nil, false
	}
	return candidates[bestIndex], true
}
