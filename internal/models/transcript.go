package models

import "time"

// Transcript is one recognized speech segment from the live stream, stored
// with stream-relative timestamps so operators can line it up with the
// published video.
type Transcript struct {
	BaseModel

	// StartMs and EndMs are milliseconds since the input session started.
	StartMs int64 `gorm:"not null;index" json:"start_ms"`
	EndMs   int64 `gorm:"not null" json:"end_ms"`

	// Text is the recognized speech, trimmed and never empty.
	Text string `gorm:"not null" json:"text"`
}

// Start returns the segment start as a stream offset.
func (t *Transcript) Start() time.Duration {
	return time.Duration(t.StartMs) * time.Millisecond
}

// End returns the segment end as a stream offset.
func (t *Transcript) End() time.Duration {
	return time.Duration(t.EndMs) * time.Millisecond
}

// Validate checks the transcript invariants before persistence.
func (t *Transcript) Validate() error {
	if t.Text == "" {
		return ErrTextRequired
	}
	if t.EndMs < t.StartMs {
		return ErrInvalidTimeRange
	}
	return nil
}
