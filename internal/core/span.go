package core

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FallbackSpan is substituted for any span string that fails to parse.
const FallbackSpan = time.Hour

var spanPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)([hms])$`)

// ParseSpan parses a string of the form "<decimal><unit>" where unit is one
// of h, m or s (case-insensitive) into a duration. The grammar admits exactly
// one number and one unit; compound forms are rejected.
func ParseSpan(raw string) (time.Duration, error) {
	match := spanPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
	if match == nil {
		return 0, fmt.Errorf("invalid span %q: want <number><h|m|s>", raw)
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid span %q: %w", raw, err)
	}
	var unit time.Duration
	switch match[2] {
	case "h":
		unit = time.Hour
	case "m":
		unit = time.Minute
	case "s":
		unit = time.Second
	}
	return time.Duration(value * float64(unit)), nil
}

// SpanOrFallback parses raw, logging the parse error and substituting a
// one-hour fallback on malformed input. Errors never propagate past here.
func SpanOrFallback(logger *slog.Logger, raw string) time.Duration {
	d, err := ParseSpan(raw)
	if err != nil {
		logger.Error("span parse failed, using fallback", "raw", raw, "fallback", FallbackSpan, "err", err)
		return FallbackSpan
	}
	return d
}
