// Package duration parses and renders the human duration strings used for
// auth key lifetimes ("1h", "7d").
package duration

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalid reports a duration string that is not a positive integer
// immediately followed by a single unit character.
var ErrInvalid = errors.New("invalid duration")

const (
	secondsPerMinute = 60
	secondsPerHour   = 3600
	secondsPerDay    = 86400
)

// Parse converts a string such as "1h" or "7d" to a duration in seconds.
// Supported units are h (hours) and d (days). Non-positive magnitudes,
// missing units, and any other malformed input yield ErrInvalid.
func Parse(text string) (int64, error) {
	text = strings.TrimSpace(text)
	if len(text) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, text)
	}

	magnitude, err := strconv.ParseInt(text[:len(text)-1], 10, 64)
	if err != nil || magnitude <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, text)
	}

	switch text[len(text)-1] {
	case 'h', 'H':
		return magnitude * secondsPerHour, nil
	case 'd', 'D':
		return magnitude * secondsPerDay, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalid, text)
	}
}

// Format renders seconds as the largest whole unit that fits: days, then
// hours, then minutes, with singular/plural wording. This is a display helper
// and is not required to round-trip through Parse.
func Format(seconds int64) string {
	switch {
	case seconds >= secondsPerDay:
		return pluralize(seconds/secondsPerDay, "day")
	case seconds >= secondsPerHour:
		return pluralize(seconds/secondsPerHour, "hour")
	default:
		return pluralize(seconds/secondsPerMinute, "minute")
	}
}

func pluralize(count int64, unit string) string {
	if count == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", count, unit)
}
