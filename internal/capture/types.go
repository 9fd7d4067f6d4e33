package capture

import "fmt"

// Rect is a screen region in pixels, origin top-left.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.Left, r.Top)
}

// WindowInfo describes the active window at capture time. Title may be the
// "window" fallback when no window manager query is available.
type WindowInfo struct {
	Title string
	BBox  Rect
}

// Backend identifies one of the two interchangeable capture backends.
type Backend int

const (
	// BackendSession grabs through a persistent capture session. Primary.
	BackendSession Backend = iota
	// BackendOneShot spawns a fresh single-shot grab per frame. Secondary.
	BackendOneShot
)

func (b Backend) String() string {
	switch b {
	case BackendSession:
		return "session"
	case BackendOneShot:
		return "oneshot"
	default:
		return fmt.Sprintf("backend(%d)", int(b))
	}
}

// Other returns the alternate backend.
func (b Backend) Other() Backend {
	if b == BackendSession {
		return BackendOneShot
	}
	return BackendSession
}

// ParseBackend maps a backend name to its enum value. Used for the
// HINDSIGHT_FORCE_BACKEND startup override and the config file.
func ParseBackend(name string) (Backend, bool) {
	switch name {
	case "session":
		return BackendSession, true
	case "oneshot":
		return BackendOneShot, true
	default:
		return BackendSession, false
	}
}
