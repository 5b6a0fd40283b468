package disc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Linux cdrom ioctls.
const (
	ioctlDriveStatus = 0x5326
	ioctlDiscStatus  = 0x5327
)

// ErrNoAudio reports a loaded disc without audio tracks.
var ErrNoAudio = errors.New("disc has no audio tracks")

// TrayState is the CDROM_DRIVE_STATUS answer.
type TrayState int

const (
	TrayNoInfo TrayState = iota
	TrayEmpty
	TrayOpen
	TrayNotReady
	TrayLoaded
)

func (s TrayState) String() string {
	switch s {
	case TrayNoInfo:
		return "no_info"
	case TrayEmpty:
		return "no_disc"
	case TrayOpen:
		return "tray_open"
	case TrayNotReady:
		return "not_ready"
	case TrayLoaded:
		return "disc_ok"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// MediaKind is the CDROM_DISC_STATUS answer for a loaded tray.
type MediaKind int

const (
	MediaUnknown MediaKind = 0
	MediaAudio   MediaKind = 100
	MediaData1   MediaKind = 101
	MediaData2   MediaKind = 102
	MediaXA21    MediaKind = 103
	MediaXA22    MediaKind = 104
	MediaMixed   MediaKind = 105
)

func (k MediaKind) String() string {
	switch k {
	case MediaAudio:
		return "audio"
	case MediaMixed:
		return "mixed"
	case MediaData1, MediaData2, MediaXA21, MediaXA22:
		return "data"
	default:
		return "unknown"
	}
}

// DriveState combines tray and media status.
type DriveState struct {
	Tray  TrayState
	Media MediaKind
}

// HasAudio reports whether a loaded disc carries audio tracks.
func (s DriveState) HasAudio() bool {
	return s.Tray == TrayLoaded && (s.Media == MediaAudio || s.Media == MediaMixed)
}

func (s DriveState) String() string {
	if s.Tray != TrayLoaded {
		return s.Tray.String()
	}
	return s.Tray.String() + "/" + s.Media.String()
}

// ProbeDrive queries tray state and, when a disc is loaded, its media kind.
func ProbeDrive(device string) (DriveState, error) {
	device = strings.TrimSpace(device)
	if device == "" {
		return DriveState{}, errors.New("empty device path")
	}

	fd, err := unix.Open(device, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return DriveState{}, fmt.Errorf("open %s: %w", device, err)
	}
	defer unix.Close(fd) //nolint:errcheck

	tray, err := unix.IoctlRetInt(fd, ioctlDriveStatus)
	if err != nil {
		return DriveState{}, fmt.Errorf("drive status of %s: %w", device, err)
	}
	state := DriveState{Tray: TrayState(tray)}
	if state.Tray != TrayLoaded {
		return state, nil
	}

	media, err := unix.IoctlRetInt(fd, ioctlDiscStatus)
	if err != nil {
		return state, fmt.Errorf("disc status of %s: %w", device, err)
	}
	state.Media = MediaKind(media)
	return state, nil
}

// WaitForAudioDisc polls the drive until a disc is loaded, then checks that
// it carries audio. A loaded data-only disc returns ErrNoAudio.
func WaitForAudioDisc(ctx context.Context, device string, maxPolls int, interval time.Duration) (DriveState, error) {
	if maxPolls <= 0 {
		maxPolls = 60
	}
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last DriveState
	for poll := 1; ; poll++ {
		state, err := ProbeDrive(device)
		if err != nil {
			return state, err
		}
		last = state
		if state.Tray == TrayLoaded {
			if !state.HasAudio() {
				return state, fmt.Errorf("%s: %w (%s)", device, ErrNoAudio, state)
			}
			return state, nil
		}
		if poll >= maxPolls {
			break
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
	return last, fmt.Errorf("drive %s not ready after %d polls (last status: %s)", device, maxPolls, last)
}
