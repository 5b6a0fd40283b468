package ripping

import (
	"slices"
)

// ErrorMap tracks divergent sectors and the candidate contents read for each,
// in trial arrival order. A sector is present until a candidate reaches quorum.
type ErrorMap struct {
	entries map[int64][][]byte
}

// NewErrorMap returns an empty map.
func NewErrorMap() *ErrorMap {
	return &ErrorMap{entries: make(map[int64][][]byte)}
}

// Len returns the number of unresolved sectors.
func (m *ErrorMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Has reports whether index is flagged.
func (m *ErrorMap) Has(index int64) bool {
	if m == nil {
		return false
	}
	_, ok := m.entries[index]
	return ok
}

// Add appends a copy of data as the next candidate for index, flagging the
// sector if it was not flagged yet.
func (m *ErrorMap) Add(index int64, data []byte) {
	m.entries[index] = append(m.entries[index], slices.Clone(data))
}

// Candidates returns the candidates recorded for index.
func (m *ErrorMap) Candidates(index int64) [][]byte {
	if m == nil {
		return nil
	}
	return m.entries[index]
}

// Delete removes index once it is resolved.
func (m *ErrorMap) Delete(index int64) {
	delete(m.entries, index)
}

// Indices returns a sorted snapshot of flagged payload indices. Callers iterate
// the snapshot so deletions during a round never change the visiting order.
func (m *ErrorMap) Indices() []int64 {
	if m == nil {
		return nil
	}
	out := make([]int64, 0, len(m.entries))
	for index := range m.entries {
		out = append(out, index)
	}
	slices.Sort(out)
	return out
}
