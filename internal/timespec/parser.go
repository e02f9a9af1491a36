package timespec

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the length of the clock-time domain.
const MinutesPerDay = 24 * 60

// ParseClock parses a clock time of day into minutes since midnight.
// Supports two formats:
//   - "HH:MM"    e.g. "09:00", "9:5"
//   - "HH:MM:SS" e.g. "17:30:00" (seconds are ignored)
//
// Malformed or out-of-range input yields ok=false, never an error: callers treat an
// unparseable time as "no constraint".
func ParseClock(spec string) (minutes int, ok bool) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, false
	}

	parts := strings.Split(spec, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, false
	}
	mins, err := strconv.Atoi(parts[1])
	if err != nil || mins < 0 || mins > 59 {
		return 0, false
	}
	if len(parts) == 3 {
		if secs, err := strconv.Atoi(parts[2]); err != nil || secs < 0 || secs > 59 {
			return 0, false
		}
	}

	return hours*60 + mins, true
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	minutes = ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// MinuteOfDay returns the minutes since local midnight of t.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// InWindow reports whether now lies in the half-open window [start, end).
// When start > end the window wraps past midnight (e.g. 22:00-06:00).
// An empty window (start == end) contains nothing.
func InWindow(now, start, end int) bool {
	switch {
	case start == end:
		return false
	case start < end:
		return now >= start && now < end
	default:
		return now >= start || now < end
	}
}

// Day returns the calendar date of t as "YYYY-MM-DD", the format of last_daily_reset.
func Day(t time.Time) string {
	return t.Format("2006-01-02")
}
