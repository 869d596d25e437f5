package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatSeconds renders a second offset the way ffmpeg's -ss and -t accept it,
// without trailing zeros.
func FormatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

// ParseTimestamp parses a timestamp string (HH:MM:SS.mmm or SS.mmm or MM:SS)
func ParseTimestamp(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp format: %s", s)
	}

	// Fold right to left: seconds, minutes, hours
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid timestamp format: %s", s)
		}
		total = total*60 + v
	}

	return time.Duration(total * float64(time.Second)), nil
}

// ParseFrameRate parses frame rate from ffprobe format (e.g., "30/1")
func ParseFrameRate(s string) float64 {
	fps, err := ParseRational(s)
	if err != nil {
		return 0
	}
	return fps
}

// ParseRational parses "num/den" strictly, rejecting zero denominators.
func ParseRational(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid rational %q", s)
	}
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numerator in %q: %w", s, err)
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid denominator in %q: %w", s, err)
	}
	if den == 0 {
		return 0, fmt.Errorf("zero denominator in %q", s)
	}
	return num / den, nil
}
