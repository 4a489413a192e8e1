// Package windowid parses and formats the bit-stable window identifier
// grammar: "{asset}-{duration}-YYYY-MM-DD-HH:MM", always UTC. It is the
// single place that grammar is encoded, the way internal/windowid's sibling
// packages in this module each own one parsing concern end to end.
package windowid

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// grammarRe matches exactly the wire format: lowercase
// asset, an integer-minutes duration suffixed with "m", then a UTC
// date-time. Anything not matching exactly is rejected.
var grammarRe = regexp.MustCompile(`^([a-z]+)-(\d+)m-(\d{4})-(\d{2})-(\d{2})-(\d{2}):(\d{2})$`)

// Parsed is the result of parsing a window identifier.
type Parsed struct {
	Asset         string
	DurationLabel string // e.g. "15m"
	StartTime     time.Time
	EndTime       time.Time
	IsValid       bool
	Error         string
}

// Parse decodes a window_id string. On grammar mismatch or an impossible
// calendar date it returns IsValid=false with Error populated; it never
// panics or returns a Go error, so callers (e.g. canEnterWindow) can report
// the failure to their own caller without a type switch.
func Parse(windowID string) Parsed {
	m := grammarRe.FindStringSubmatch(windowID)
	if m == nil {
		return Parsed{IsValid: false, Error: fmt.Sprintf("window_id %q does not match grammar {asset}-{duration}m-YYYY-MM-DD-HH:MM", windowID)}
	}

	asset := m[1]
	durationMin, err := strconv.Atoi(m[2])
	if err != nil || durationMin <= 0 {
		return Parsed{IsValid: false, Error: fmt.Sprintf("window_id %q has invalid duration", windowID)}
	}

	year, _ := strconv.Atoi(m[3])
	month, _ := strconv.Atoi(m[4])
	day, _ := strconv.Atoi(m[5])
	hour, _ := strconv.Atoi(m[6])
	minute, _ := strconv.Atoi(m[7])

	start := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	// time.Date normalizes out-of-range components instead of failing, so
	// round-trip the canonical string to catch e.g. "2026-02-30".
	if start.Year() != year || int(start.Month()) != month || start.Day() != day ||
		start.Hour() != hour || start.Minute() != minute {
		return Parsed{IsValid: false, Error: fmt.Sprintf("window_id %q has an impossible calendar date", windowID)}
	}

	duration := time.Duration(durationMin) * time.Minute
	return Parsed{
		Asset:         asset,
		DurationLabel: fmt.Sprintf("%dm", durationMin),
		StartTime:     start,
		EndTime:       start.Add(duration),
		IsValid:       true,
	}
}

// Format reconstructs the canonical window_id for a parsed window. Used to
// verify the round-trip invariant: Parse(Format(Parse(id))) == Parse(id).
func Format(asset string, durationLabel string, start time.Time) string {
	start = start.UTC()
	return fmt.Sprintf("%s-%s-%04d-%02d-%02d-%02d:%02d",
		asset, durationLabel, start.Year(), start.Month(), start.Day(), start.Hour(), start.Minute())
}

// Format reconstructs the canonical window_id string for this Parsed value.
func (p Parsed) Format() string {
	return Format(p.Asset, p.DurationLabel, p.StartTime)
}
