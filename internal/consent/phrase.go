package consent

import (
	"log/slog"
	"regexp"
	"strings"
)

// ConsentDetector scans transcription text for a spoken consent statement.
// A positive match returns the speaker's stated name.
type ConsentDetector interface {
	Detect(text string) (name string, ok bool)
}

// consentPatterns match first-person consent statements and capture the
// stated name. Matching is case-insensitive; the name is the trailing
// word group after the consent verb phrase.
var consentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bmy name is ([a-z][a-z '-]{0,40}?)\b.{0,40}?\bi consent\b`),
	regexp.MustCompile(`(?i)\bi(?:'m| am) ([a-z][a-z '-]{0,40}?)(?:,| and)\s+i consent\b`),
	regexp.MustCompile(`(?i)\bi,?\s+([a-z][a-z '-]{0,40}?),?\s+consent to (?:being|be) (?:filmed|recorded|on camera)\b`),
	regexp.MustCompile(`(?i)\bthis is ([a-z][a-z '-]{0,40}?)(?:,| and)\s+(?:i|you have my) consent\b`),
}

// bareConsent matches a consent statement with no name attached. The
// capture then falls back to the "unknown" name.
var bareConsent = regexp.MustCompile(`(?i)\bi consent to (?:being|be) (?:filmed|recorded|on camera)\b`)

// PhraseDetector is a deterministic rule-based ConsentDetector.
type PhraseDetector struct {
	logger *slog.Logger
}

// NewPhraseDetector creates a rule-based consent phrase detector.
func NewPhraseDetector(logger *slog.Logger) *PhraseDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &PhraseDetector{logger: logger.With(slog.String("component", "consent-phrase"))}
}

// Detect scans one transcription line. On a match the detected name is
// returned already sanitized for use in a consent filename.
func (d *PhraseDetector) Detect(text string) (string, bool) {
	for _, pat := range consentPatterns {
		m := pat.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := SanitizeName(strings.TrimSpace(m[1]))
		d.logger.Info("[CONSENT DETECTED] individual=" + name)
		return name, true
	}

	if bareConsent.MatchString(text) {
		d.logger.Info("[CONSENT DETECTED] individual=" + FallbackName)
		return FallbackName, true
	}
	return "", false
}
