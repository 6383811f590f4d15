// Package consent maintains the recognized-faces database that backs the
// pipeline's blur decisions. The consent directory is the source of truth:
// one JPEG per capture, named with a timestamp and the subject's name.
// External processes add or revoke consent by writing or deleting files;
// the manager keeps the in-memory database synchronized.
package consent

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

const (
	// timestampLayout is the 14-digit local-time prefix on capture files.
	timestampLayout = "20060102150405"
	timestampLength = 14

	// minStemLength is timestamp + separator + at least one name rune.
	minStemLength = timestampLength + 2

	// FallbackName is used when a capture has no usable subject name.
	FallbackName = "unknown"
)

// Capture identifies one consent capture file: when it was taken and whom
// it shows. Names are stored lowercase; comparison is case-insensitive by
// construction.
type Capture struct {
	Time time.Time
	Name string
}

// SanitizeName normalizes a free-form subject name into the filename-safe
// form: lowercase alphanumerics plus underscore and hyphen, spaces folded to
// underscores, runs collapsed, leading/trailing underscores trimmed. An
// empty result falls back to "unknown".
func SanitizeName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) && r < 128, unicode.IsDigit(r) && r < 128, r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	s := strings.Trim(b.String(), "_")
	if s == "" {
		return FallbackName
	}
	return s
}

// FormatFilename builds the capture filename for the given local time and
// subject name. The name is sanitized first, so any input yields a valid
// filename.
func FormatFilename(t time.Time, name string) string {
	return fmt.Sprintf("%s_%s.jpg", t.Format(timestampLayout), SanitizeName(name))
}

// ParseFilename decodes a consent capture filename. It accepts the bare stem
// or the full name with the .jpg extension. The timestamp is interpreted as
// local time, matching how captures are written.
func ParseFilename(filename string) (Capture, error) {
	stem := strings.TrimSuffix(filename, ".jpg")

	if len(stem) < minStemLength {
		return Capture{}, fmt.Errorf("consent filename %q too short", filename)
	}

	ts := stem[:timestampLength]
	for _, r := range ts {
		if r < '0' || r > '9' {
			return Capture{}, fmt.Errorf("consent filename %q: timestamp is not numeric", filename)
		}
	}
	if stem[timestampLength] != '_' {
		return Capture{}, fmt.Errorf("consent filename %q: missing separator after timestamp", filename)
	}

	name := stem[timestampLength+1:]
	if name == "" {
		return Capture{}, fmt.Errorf("consent filename %q: empty name", filename)
	}

	t, err := time.ParseInLocation(timestampLayout, ts, time.Local)
	if err != nil {
		return Capture{}, fmt.Errorf("consent filename %q: invalid timestamp: %w", filename, err)
	}

	return Capture{Time: t, Name: strings.ToLower(name)}, nil
}
