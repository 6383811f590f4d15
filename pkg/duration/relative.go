package duration

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors for relative time parsing.
var (
	ErrEmptyRelativeString   = errors.New("duration: empty relative time string")
	ErrNoRelativeKeyword     = errors.New("duration: no relative keyword found (ago, from now, before, after)")
	ErrNoDurationFound       = errors.New("duration: no duration component found in relative expression")
	ErrConflictingDirections = errors.New("duration: conflicting direction keywords (e.g., both 'ago' and 'from now')")
)

// Direction indicates whether to add or subtract the duration.
type Direction int

const (
	DirectionPast   Direction = -1 // ago, before
	DirectionFuture Direction = 1  // from now, after
)

// relativeKeywords maps keywords to their direction.
var relativeKeywords = map[string]Direction{
	"ago":      DirectionPast,
	"before":   DirectionPast,
	"from now": DirectionFuture,
	"after":    DirectionFuture,
	"later":    DirectionFuture,
}

// ParseRelative parses a relative time expression anchored at the current
// time.
//
// Supported formats:
//   - "5 days ago" → now - 5 days
//   - "3 hours from now" → now + 3 hours
//   - "in 2 weeks" → now + 2 weeks
//
// The duration component accepts everything Parse does ("15m", "2 weeks",
// "1d12h").
func ParseRelative(s string) (time.Time, error) {
	return ParseRelativeFrom(s, time.Now())
}

// ParseRelativeFrom is like ParseRelative but anchored at the given time.
func ParseRelativeFrom(s string, anchor time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmptyRelativeString
	}
	lower := strings.ToLower(s)

	// "in X" form, e.g. "in 5 days".
	if strings.HasPrefix(lower, "in ") {
		dur, err := Parse(strings.TrimSpace(s[3:]))
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrNoDurationFound, err)
		}
		return anchor.Add(dur), nil
	}

	// Find the direction keyword, preferring the longest match.
	var foundKeyword string
	var keywordPos int
	var direction Direction

	for keyword, dir := range relativeKeywords {
		pos := strings.Index(lower, keyword)
		if pos == -1 {
			continue
		}
		if foundKeyword != "" && relativeKeywords[foundKeyword] != dir {
			return time.Time{}, ErrConflictingDirections
		}
		if foundKeyword == "" || len(keyword) > len(foundKeyword) {
			foundKeyword = keyword
			keywordPos = pos
			direction = dir
		}
	}
	if foundKeyword == "" {
		return time.Time{}, ErrNoRelativeKeyword
	}

	// The duration normally precedes the keyword ("15m ago"); "after 2h"
	// style puts it behind.
	durationStr := strings.TrimSpace(s[:keywordPos])
	if durationStr == "" {
		durationStr = strings.TrimSpace(s[keywordPos+len(foundKeyword):])
	}
	if durationStr == "" {
		return time.Time{}, ErrNoDurationFound
	}

	dur, err := Parse(durationStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: could not parse %q as duration: %v", ErrNoDurationFound, durationStr, err)
	}

	return anchor.Add(time.Duration(direction) * dur), nil
}
