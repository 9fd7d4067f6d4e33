package capture

import (
	"context"
	"strconv"
	"strings"
	"time"
)

const windowQueryTimeout = 2 * time.Second

// fallbackBBox is used when neither the window manager nor the display can
// be queried.
var fallbackBBox = Rect{Left: 0, Top: 0, Width: 1920, Height: 1080}

// ActiveWindow returns the active window's title and geometry via xdotool,
// falling back to a fullscreen region titled "window" when detection fails.
func ActiveWindow() WindowInfo {
	if info, ok := xdotoolActiveWindow(); ok {
		return info
	}
	return FullscreenFallback()
}

// FullscreenFallback returns a whole-display region with the placeholder
// title. The display size comes from xdotool when available.
func FullscreenFallback() WindowInfo {
	info := WindowInfo{Title: "window", BBox: fallbackBBox}
	ctx, cancel := context.WithTimeout(context.Background(), windowQueryTimeout)
	defer cancel()
	out, err := commandOutput(ctx, "xdotool", "getdisplaygeometry")
	if err != nil {
		return info
	}
	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) != 2 {
		return info
	}
	w, errW := strconv.Atoi(fields[0])
	h, errH := strconv.Atoi(fields[1])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return info
	}
	info.BBox = Rect{Left: 0, Top: 0, Width: w, Height: h}
	return info
}

func xdotoolActiveWindow() (WindowInfo, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), windowQueryTimeout)
	defer cancel()

	out, err := commandOutput(ctx, "xdotool", "getactivewindow")
	if err != nil {
		return WindowInfo{}, false
	}
	winID := strings.TrimSpace(string(out))
	if winID == "" {
		return WindowInfo{}, false
	}

	out, err = commandOutput(ctx, "xdotool", "getwindowname", winID)
	if err != nil {
		return WindowInfo{}, false
	}
	title := strings.TrimSpace(string(out))
	if title == "" {
		title = "window"
	}

	out, err = commandOutput(ctx, "xdotool", "getwindowgeometry", winID)
	if err != nil {
		return WindowInfo{}, false
	}
	bbox, ok := parseGeometry(string(out))
	if !ok {
		return WindowInfo{}, false
	}
	return WindowInfo{Title: title, BBox: bbox}, true
}

// parseGeometry extracts the region from xdotool getwindowgeometry output:
//
//	Position: 132,90 (screen: 0)
//	Geometry: 800x600
func parseGeometry(raw string) (Rect, bool) {
	var bbox Rect
	havePos, haveGeom := false, false
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Position:"):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return Rect{}, false
			}
			xy := strings.SplitN(fields[1], ",", 2)
			if len(xy) != 2 {
				return Rect{}, false
			}
			left, errX := strconv.Atoi(xy[0])
			top, errY := strconv.Atoi(xy[1])
			if errX != nil || errY != nil {
				return Rect{}, false
			}
			bbox.Left, bbox.Top = left, top
			havePos = true
		case strings.HasPrefix(line, "Geometry:"):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return Rect{}, false
			}
			wh := strings.SplitN(fields[1], "x", 2)
			if len(wh) != 2 {
				return Rect{}, false
			}
			width, errW := strconv.Atoi(wh[0])
			height, errH := strconv.Atoi(wh[1])
			if errW != nil || errH != nil || width <= 0 || height <= 0 {
				return Rect{}, false
			}
			bbox.Width, bbox.Height = width, height
			haveGeom = true
		}
	}
	return bbox, havePos && haveGeom
}
