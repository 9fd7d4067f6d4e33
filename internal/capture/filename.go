package capture

import (
	"regexp"
	"strings"
	"time"
)

// DefaultMaxTitleLength bounds the sanitized title portion of artifact
// filenames when no explicit limit is configured.
const DefaultMaxTitleLength = 80

var nonAlnumRuns = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Filename derives the artifact name for a capture:
// TITLE_YYYY-MM-DD_HH-MM-SS.png, where TITLE is the window title with every
// run of non-alphanumeric characters collapsed to a single underscore,
// trimmed and truncated to DefaultMaxTitleLength. Empty or all-symbol titles
// become "window".
func Filename(title string, ts time.Time) string {
	return FilenameWithLimit(title, ts, DefaultMaxTitleLength)
}

// FilenameWithLimit is Filename with a caller-supplied bound on the title
// portion. Non-positive limits fall back to DefaultMaxTitleLength.
func FilenameWithLimit(title string, ts time.Time, maxTitle int) string {
	if maxTitle <= 0 {
		maxTitle = DefaultMaxTitleLength
	}
	cleaned := nonAlnumRuns.ReplaceAllString(strings.TrimSpace(title), "_")
	cleaned = strings.Trim(cleaned, "_")
	if cleaned == "" {
		cleaned = "window"
	}
	if len(cleaned) > maxTitle {
		cleaned = cleaned[:maxTitle]
	}
	return cleaned + ts.Format("_2006-01-02_15-04-05") + ".png"
}

// TimestampPrefs selects the wall clock used for filename timestamps. The
// frontend passes these through the environment so filenames match what the
// user sees regardless of the daemon's own zone.
type TimestampPrefs struct {
	// Spec is "UTC", "LOCAL", or a fixed offset like "+0530" / "-0800".
	Spec string
	// DSTAdjust shifts the result forward one hour.
	DSTAdjust bool
}

var fixedOffset = regexp.MustCompile(`^[+-]\d{4}$`)

// Timestamp resolves now against the preferences. Unrecognized specs fall
// back to UTC.
func (p TimestampPrefs) Timestamp(now time.Time) time.Time {
	spec := strings.ToUpper(strings.TrimSpace(p.Spec))
	adjust := time.Duration(0)
	if p.DSTAdjust {
		adjust = time.Hour
	}
	switch {
	case spec == "LOCAL":
		return now.Local().Add(adjust)
	case fixedOffset.MatchString(spec):
		sign := 1
		if spec[0] == '-' {
			sign = -1
		}
		hours := int(spec[1]-'0')*10 + int(spec[2]-'0')
		mins := int(spec[3]-'0')*10 + int(spec[4]-'0')
		offset := time.Duration(sign*(hours*60+mins)) * time.Minute
		return now.UTC().Add(offset + adjust)
	default:
		return now.UTC().Add(adjust)
	}
}
