package disc

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"securerip/internal/sector"
)

// ImageTrack selects the whole disc as one image instead of a single track.
const ImageTrack = 0

// TrackInfo is one audio track entry in the table of contents.
type TrackInfo struct {
	Number        int
	StartSector   int64
	LengthSectors int64
	CopyPermitted bool
	PreEmphasis   bool
	Channels      int
}

// TOC is the audio table of contents of a disc.
type TOC struct {
	Tracks []TrackInfo
}

// AudioTracks returns the number of audio tracks on the disc.
func (t *TOC) AudioTracks() int {
	if t == nil {
		return 0
	}
	return len(t.Tracks)
}

// Has reports whether track can be ripped from this disc.
func (t *TOC) Has(track int) bool {
	if track == ImageTrack {
		return t.AudioTracks() > 0
	}
	_, ok := t.lookup(track)
	return ok
}

func (t *TOC) lookup(track int) (TrackInfo, bool) {
	if t == nil {
		return TrackInfo{}, false
	}
	for _, info := range t.Tracks {
		if info.Number == track {
			return info, true
		}
	}
	return TrackInfo{}, false
}

// StartSector returns the first sector of track, or of the first audio track
// for the image.
func (t *TOC) StartSector(track int) int64 {
	if track == ImageTrack {
		if t.AudioTracks() == 0 {
			return 0
		}
		return t.Tracks[0].StartSector
	}
	info, _ := t.lookup(track)
	return info.StartSector
}

// LengthSectors returns the number of sectors spanned by track.
func (t *TOC) LengthSectors(track int) int64 {
	if track == ImageTrack {
		if t.AudioTracks() == 0 {
			return 0
		}
		last := t.Tracks[len(t.Tracks)-1]
		return last.StartSector + last.LengthSectors - t.Tracks[0].StartSector
	}
	info, _ := t.lookup(track)
	return info.LengthSectors
}

// ExpectedByteLength is the size of a complete trial file for track,
// WAV header included.
func (t *TOC) ExpectedByteLength(track int) int64 {
	return sector.CDDA.FileSize(t.LengthSectors(track))
}

// IsLastTrack reports whether track ends at the tail of the disc. The image
// spans the whole disc and therefore counts as both first and last.
func (t *TOC) IsLastTrack(track int) bool {
	if track == ImageTrack {
		return true
	}
	return t.AudioTracks() > 0 && t.Tracks[len(t.Tracks)-1].Number == track
}

// IsFirstTrack reports whether track starts at the head of the disc.
func (t *TOC) IsFirstTrack(track int) bool {
	if track == ImageTrack {
		return true
	}
	return t.AudioTracks() > 0 && t.Tracks[0].Number == track
}

// HasPreEmphasis reports whether the track was mastered with pre-emphasis.
func (t *TOC) HasPreEmphasis(track int) bool {
	info, _ := t.lookup(track)
	return info.PreEmphasis
}

// TotalSectors is the sum of all audio track lengths.
func (t *TOC) TotalSectors() int64 {
	var total int64
	if t == nil {
		return 0
	}
	for _, info := range t.Tracks {
		total += info.LengthSectors
	}
	return total
}

// Fingerprint returns a stable identifier derived from the track layout. Two
// pressings with an identical sector table share a fingerprint.
func (t *TOC) Fingerprint() string {
	if t.AudioTracks() == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(strconv.Itoa(len(t.Tracks)))
	for _, info := range t.Tracks {
		fmt.Fprintf(&b, ";%d:%d+%d", info.Number, info.StartSector, info.LengthSectors)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:12]))
}

// Selection expands a requested track list. An empty request selects every
// track; ImageTrack cannot be mixed with individual tracks.
func (t *TOC) Selection(requested []int) ([]int, error) {
	if t.AudioTracks() == 0 {
		return nil, fmt.Errorf("disc has no audio tracks")
	}
	if len(requested) == 0 {
		out := make([]int, 0, len(t.Tracks))
		for _, info := range t.Tracks {
			out = append(out, info.Number)
		}
		return out, nil
	}
	seen := make(map[int]struct{}, len(requested))
	out := make([]int, 0, len(requested))
	for _, track := range requested {
		if track == ImageTrack && len(requested) > 1 {
			return nil, fmt.Errorf("image rip cannot be combined with individual tracks")
		}
		if !t.Has(track) {
			return nil, fmt.Errorf("track %d not on disc (%d audio tracks)", track, t.AudioTracks())
		}
		if _, dup := seen[track]; dup {
			continue
		}
		seen[track] = struct{}{}
		out = append(out, track)
	}
	return out, nil
}
