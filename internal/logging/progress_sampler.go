package logging

// ProgressSampler suppresses repetitive progress logs while preserving signal
// when the track changes or the session fraction crosses a bucket boundary.
type ProgressSampler struct {
	bucketSize float64
	lastTrack  int
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 5%) or when the track changes.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastTrack: -1, lastBucket: -1}
}

// ShouldLog reports whether a progress update should be logged. fraction is
// the session progress in [0,1]; negative means unknown.
func (s *ProgressSampler) ShouldLog(fraction float64, track int) bool {
	if s == nil {
		return true
	}
	emit := false
	if track != s.lastTrack {
		s.lastTrack = track
		emit = true
	}
	if fraction >= 0 {
		percent := fraction * 100
		if percent > 100 {
			percent = 100
		}
		bucket := int(percent / s.bucketSize)
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}

// Reset clears the sampler state (e.g. when a new session starts).
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastTrack = -1
	s.lastBucket = -1
}
