package parse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var percentRe = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)\s*%?\s*$`)

// DateLayout is the wire format of booking dates.
const DateLayout = "2006-01-02"

var dateLayouts = []string{DateLayout, "2006/01/02", "02.01.2006"}

var (
	// ErrEmpty is returned for blank input.
	ErrEmpty = errors.New("value is required")
	// ErrBatteryRange is returned when a percentage falls outside 0-100.
	ErrBatteryRange = errors.New("battery percentage must be between 0 and 100")
)

// Battery parses a user-entered state of charge such as "45", "45%" or "45.0 %".
// The range is checked before fractions are truncated.
func Battery(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrEmpty
	}

	m := percentRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("unable to parse battery percentage: %q", raw)
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse battery percentage: %q", raw)
	}

	if f < 0 || f > 100 {
		return 0, ErrBatteryRange
	}
	return int(f), nil
}

// CheckBattery validates a percentage already held as a number.
func CheckBattery(pct int) error {
	if pct < 0 || pct > 100 {
		return ErrBatteryRange
	}
	return nil
}

// Date normalizes a booking date to YYYY-MM-DD.
func Date(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmpty
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("unable to parse date: %q", raw)
}
