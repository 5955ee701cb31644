package logging

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// rotationPolicy is either time triggered (interval) or size triggered
// (sizeMB). The zero value never rotates on its own.
type rotationPolicy struct {
	interval time.Duration
	sizeMB   int
}

// retentionPolicy bounds rotated artifacts by age or by count.
type retentionPolicy struct {
	maxAgeDays int
	maxFiles   int
}

var namedIntervals = map[string]time.Duration{
	"hourly":   time.Hour,
	"daily":    24 * time.Hour,
	"midnight": 24 * time.Hour,
	"weekly":   7 * 24 * time.Hour,
}

var timeUnits = map[string]time.Duration{
	"m": time.Minute, "min": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"w": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
}

// sizeUnits are expressed in KB so that sub-megabyte limits round up.
var sizeUnits = map[string]int{
	"kb": 1,
	"mb": 1024,
	"gb": 1024 * 1024,
}

// splitQuantity splits "10 MB", "10MB" or "7" into its number and lower-cased unit.
func splitQuantity(raw string) (int, string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	i := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	if i == 0 {
		return 0, emptyString, fmt.Errorf("%q: missing quantity", raw)
	}
	numPart, unit := s, emptyString
	if i > 0 {
		numPart, unit = s[:i], strings.TrimSpace(s[i:])
	}
	n, err := strconv.Atoi(numPart)
	if err != nil {
		return 0, emptyString, fmt.Errorf("%q: %w", raw, err)
	}
	if n <= 0 {
		return 0, emptyString, fmt.Errorf("%q: quantity must be positive", raw)
	}
	return n, unit, nil
}

// parseRotation accepts "1 day", "12 hours", "daily", "hourly", "1 week",
// "10 MB" or "1 GB". An empty string disables rotation.
func parseRotation(raw string) (rotationPolicy, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == emptyString {
		return rotationPolicy{}, nil
	}
	if d, ok := namedIntervals[s]; ok {
		return rotationPolicy{interval: d}, nil
	}

	n, unit, err := splitQuantity(s)
	if err != nil {
		return rotationPolicy{}, err
	}
	if d, ok := timeUnits[unit]; ok {
		return rotationPolicy{interval: time.Duration(n) * d}, nil
	}
	if kb, ok := sizeUnits[unit]; ok {
		total := n * kb
		mb := (total + 1023) / 1024
		return rotationPolicy{sizeMB: mb}, nil
	}
	return rotationPolicy{}, fmt.Errorf("%q: unknown rotation unit %q", raw, unit)
}

// parseRetention accepts "7 days", "1 week", "12 hours" (rounded up to whole
// days), "5 files" or a bare count. An empty string keeps everything.
func parseRetention(raw string) (retentionPolicy, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == emptyString {
		return retentionPolicy{}, nil
	}

	n, unit, err := splitQuantity(s)
	if err != nil {
		return retentionPolicy{}, err
	}
	switch unit {
	case emptyString, "file", "files":
		return retentionPolicy{maxFiles: n}, nil
	}
	d, ok := timeUnits[unit]
	if !ok {
		return retentionPolicy{}, fmt.Errorf("%q: unknown retention unit %q", raw, unit)
	}
	total := time.Duration(n) * d
	days := int((total + 24*time.Hour - 1) / (24 * time.Hour))
	return retentionPolicy{maxAgeDays: days}, nil
}
