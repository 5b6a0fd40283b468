package disc

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// cdparanoia -Q prints one line per audio track:
//
//	  1.    16503 [03:40.03]        0 [00:00.00]    no   no  2
var tocLinePattern = regexp.MustCompile(`^\s*(\d+)\.\s+(\d+)\s+\[[^\]]*\]\s+(\d+)\s+\[[^\]]*\]\s+(\w+)\s+(\w+)\s+(\d+)`)

// ErrNoDisc is returned when the query output contains no table of contents.
var ErrNoDisc = errors.New("no audio disc in drive")

// ParseTOC parses the table of contents printed by `cdparanoia -Q`.
func ParseTOC(data []byte) (*TOC, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, errors.New("cdparanoia produced empty output")
	}

	toc := &TOC{}
	for _, line := range strings.Split(text, "\n") {
		match := tocLinePattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		number, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		length, err := strconv.ParseInt(match[2], 10, 64)
		if err != nil {
			continue
		}
		start, err := strconv.ParseInt(match[3], 10, 64)
		if err != nil {
			continue
		}
		channels, _ := strconv.Atoi(match[6])
		toc.Tracks = append(toc.Tracks, TrackInfo{
			Number:        number,
			StartSector:   start,
			LengthSectors: length,
			CopyPermitted: yes(match[4]),
			PreEmphasis:   yes(match[5]),
			Channels:      channels,
		})
	}

	if len(toc.Tracks) == 0 {
		return nil, ErrNoDisc
	}
	return toc, nil
}

func yes(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "y", "true", "ok":
		return true
	default:
		return false
	}
}
