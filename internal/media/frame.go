// Package media defines the frame types and the source/sink contracts that
// connect the pipeline to the streaming endpoints. The FFmpeg-backed
// implementations demux and decode on the ingest side and encode and mux on
// the publish side; the pipeline itself only ever sees raw frames.
package media

import (
	"time"
)

// VideoFrame is one decoded frame in packed BGR24 layout, row-major, no
// padding. The pixel buffer is owned by exactly one pipeline stage at a
// time; stages mutate it in place.
type VideoFrame struct {
	Data   []byte
	Width  int
	Height int

	// PTS is stream time since session start.
	PTS time.Duration

	// Sequence is strictly monotonic per input session and resets on
	// reconnect.
	Sequence uint64

	// FacesDetected is stamped by the video stage.
	FacesDetected int
}

// Size returns the expected byte length of the pixel buffer.
func (f *VideoFrame) Size() int {
	return f.Width * f.Height * 3
}

// PixelAt returns the BGR bytes at (x, y). Callers must bounds-check.
func (f *VideoFrame) PixelAt(x, y int) (b, g, r byte) {
	off := (y*f.Width + x) * 3
	return f.Data[off], f.Data[off+1], f.Data[off+2]
}

// AudioChunk is decoded interleaved s16le PCM at the source's native rate
// and channel count. The VAD stage downmixes and resamples it.
type AudioChunk struct {
	Samples    []int16
	SampleRate int
	Channels   int

	PTS      time.Duration
	Sequence uint64
}

// SampleCount returns samples per channel.
func (c *AudioChunk) SampleCount() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Duration returns the play time this chunk covers.
func (c *AudioChunk) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(c.SampleCount()) * time.Second / time.Duration(c.SampleRate)
}

// AudioPacket is a slice of the muxed audio elementary stream, passed
// through from ingest to publish without decoding.
type AudioPacket struct {
	Data     []byte
	Sequence uint64
}
