package workoutapi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrUnparsableDuration is returned when a duration label carries no leading minute count.
var ErrUnparsableDuration = errors.New("duration label has no minute count")

// NotAvailable is shown in place of a minute count that cannot be recovered.
const NotAvailable = "N/A"

// FormatDuration renders minutes the way the remote API stores them ("30 minutes").
func FormatDuration(minutes int) string {
	return fmt.Sprintf("%d minutes", minutes)
}

// minuteUnits are the unit words accepted after the count; a bare number also counts as minutes.
var minuteUnits = map[string]bool{"": true, "min": true, "mins": true, "minute": true, "minutes": true}

// ParseDurationMinutes extracts the leading integer from a label such as "30 minutes".
// Labels typed by hand on other clients ("half an hour", "2 hours") cannot be recovered.
func ParseDurationMinutes(label string) (int, error) {
	trimmed := strings.TrimSpace(label)
	end := strings.IndexFunc(trimmed, func(r rune) bool { return !unicode.IsDigit(r) })
	if end == -1 {
		end = len(trimmed)
	}
	if end == 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnparsableDuration, label)
	}
	if !minuteUnits[strings.ToLower(strings.TrimSpace(trimmed[end:]))] {
		return 0, fmt.Errorf("%w: %q", ErrUnparsableDuration, label)
	}
	minutes, err := strconv.Atoi(trimmed[:end])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnparsableDuration, label)
	}
	return minutes, nil
}

// DisplayMinutes returns the minute count of label as text, or NotAvailable.
func DisplayMinutes(label string) string {
	minutes, err := ParseDurationMinutes(label)
	if err != nil {
		return NotAvailable
	}
	return strconv.Itoa(minutes)
}
