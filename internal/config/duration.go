package config

import (
	"fmt"
	"strings"
	"time"
)

// Durations in the config file are Go duration strings ("45s", "1m30s"),
// kept as strings so an absent key is distinguishable from an explicit zero.

// ParseDuration parses one duration field. Empty input yields zero with no
// error so the caller can apply its own default; path names the field in
// error messages ("engine.pacing_min").
func ParseDuration(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: duration must be >= 0, got %q", path, raw)
	}
	return d, nil
}

// DurationOrDefault is ParseDuration with a fallback for empty values.
func DurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDuration(path, raw)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
