package ripping

import (
	"hash/crc32"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"securerip/internal/sector"
	"securerip/internal/testsupport"
)

func writeTrials(t *testing.T, payloads ...[]byte) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(payloads))
	for i, payload := range payloads {
		path := trialPath(dir, 1, i+1)
		testsupport.WriteTrial(t, path, payload)
		paths = append(paths, path)
	}
	return paths
}

func TestAnalyzeIdenticalTrialsSkipsScan(t *testing.T) {
	payload := testsupport.Payload(10)
	paths := writeTrials(t, payload, payload, payload)

	analysis, err := Analyze(sector.CDDA, paths, int64(len(payload)))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.Scanned {
		t.Fatal("expected identical trials to skip the sector scan")
	}
	if analysis.Errors.Len() != 0 {
		t.Fatalf("expected empty error map, got %v", analysis.Errors.Indices())
	}
	if analysis.Matched() != 10 {
		t.Fatalf("expected 10 matched sectors, got %d", analysis.Matched())
	}
	want := crc32.ChecksumIEEE(payload)
	if diff := cmp.Diff([]uint32{want, want, want}, analysis.TrialCRCs); diff != "" {
		t.Fatalf("trial CRCs mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyzeSingleDivergentSector(t *testing.T) {
	base := testsupport.Payload(10)
	odd := testsupport.SetBlock(base, 3, 0xAA)
	paths := writeTrials(t, base, base, odd)

	analysis, err := Analyze(sector.CDDA, paths, int64(len(base)))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	index := int64(3 * sector.BlockSize)
	if diff := cmp.Diff([]int64{index}, analysis.Errors.Indices()); diff != "" {
		t.Fatalf("indices mismatch (-want +got):\n%s", diff)
	}
	want := [][]byte{block(base, 3), block(base, 3), block(odd, 3)}
	if diff := cmp.Diff(want, analysis.Errors.Candidates(index)); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}
	if analysis.Mismatched != 1 || analysis.Matched() != 9 {
		t.Fatalf("unexpected counts matched=%d mismatched=%d", analysis.Matched(), analysis.Mismatched)
	}
}

func TestAnalyzeFlagsSectorOnceAcrossComparators(t *testing.T) {
	base := testsupport.Payload(6)
	second := testsupport.SetBlock(base, 2, 0x01)
	third := testsupport.SetBlock(base, 2, 0x02)
	paths := writeTrials(t, base, second, third)

	analysis, err := Analyze(sector.CDDA, paths, int64(len(base)))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	got := analysis.Errors.Candidates(2 * sector.BlockSize)
	if len(got) != 3 {
		t.Fatalf("expected one candidate per trial, got %d", len(got))
	}
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	base := testsupport.Payload(8)
	paths := writeTrials(t, base, testsupport.SetBlock(testsupport.SetBlock(base, 1, 0), 6, 0xFF))

	first, err := Analyze(sector.CDDA, paths, int64(len(base)))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	second, err := Analyze(sector.CDDA, paths, int64(len(base)))
	if err != nil {
		t.Fatalf("Analyze again: %v", err)
	}
	if diff := cmp.Diff(first.Errors.Indices(), second.Errors.Indices()); diff != "" {
		t.Fatalf("indices differ between runs:\n%s", diff)
	}
	for _, index := range first.Errors.Indices() {
		if diff := cmp.Diff(first.Errors.Candidates(index), second.Errors.Candidates(index)); diff != "" {
			t.Fatalf("candidates differ at %d:\n%s", index, diff)
		}
	}
}

func TestAnalyzeShortComparatorFlagsTail(t *testing.T) {
	base := testsupport.Payload(4)
	paths := writeTrials(t, base, base[:3*sector.BlockSize+100])

	analysis, err := Analyze(sector.CDDA, paths, int64(len(base)))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if diff := cmp.Diff([]int64{3 * sector.BlockSize}, analysis.Errors.Indices()); diff != "" {
		t.Fatalf("indices mismatch (-want +got):\n%s", diff)
	}
	candidates := analysis.Errors.Candidates(3 * sector.BlockSize)
	if len(candidates[1]) != 100 {
		t.Fatalf("expected partial block from short trial, got %d bytes", len(candidates[1]))
	}
}

func TestAnalyzeRequiresTrials(t *testing.T) {
	if _, err := Analyze(sector.CDDA, nil, 0); err == nil {
		t.Fatal("expected error without trials")
	}
	if _, err := Analyze(sector.CDDA, []string{filepath.Join(t.TempDir(), "missing.wav")}, 0); err == nil {
		t.Fatal("expected error for missing trial")
	}
}
