// Package asr defines the speech-to-text contract the pipeline consumes.
// Implementations live in internal/inference.
package asr

import (
	"context"
	"time"
)

// Segment is one transcribed span of an utterance. Timestamps are relative
// to the start of the submitted audio; the transcription worker offsets
// them to stream time.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Options tune a single transcription request.
type Options struct {
	BeamSize int
	Language string
}

// DefaultOptions returns the options the pipeline uses when none are
// configured.
func DefaultOptions() Options {
	return Options{BeamSize: 5, Language: "en"}
}

// Transcriber converts normalized float32 mono PCM into text segments.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int, opts Options) ([]Segment, error)
}
