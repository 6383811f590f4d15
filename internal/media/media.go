package media

import (
	"context"
	"errors"
)

// ErrConnectTimeout means no publisher arrived within the connect window.
// The input worker treats this as routine and silently retries.
var ErrConnectTimeout = errors.New("no publisher within connect timeout")

// ErrNoVideo means the published stream carries no usable video.
var ErrNoVideo = errors.New("stream has no video")

// StreamInfo holds the properties discovered when a publisher connects.
type StreamInfo struct {
	VideoCodec string  `json:"video_codec"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`

	HasAudio   bool   `json:"has_audio"`
	AudioCodec string `json:"audio_codec,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

// Map flattens the info for the connection-state metadata.
func (si *StreamInfo) Map() map[string]any {
	m := map[string]any{
		"video_codec": si.VideoCodec,
		"width":       si.Width,
		"height":      si.Height,
		"fps":         si.FPS,
		"has_audio":   si.HasAudio,
	}
	if si.HasAudio {
		m["audio_codec"] = si.AudioCodec
		m["sample_rate"] = si.SampleRate
		m["channels"] = si.Channels
	}
	return m
}

// Source is one ingest session: it accepts a publisher, exposes the stream
// properties, and produces decoded frames until the publisher goes away.
// A Source is single-use; the input worker creates a fresh one per attempt.
//
// ReadVideo, ReadAudio, and ReadPacket each drain an independent stream and
// must be pumped concurrently, or the demux process stalls on a full pipe.
type Source interface {
	// Connect blocks until a publisher connects and the stream properties
	// are known. ErrConnectTimeout is a routine no-show, not a failure.
	Connect(ctx context.Context) (*StreamInfo, error)

	// ReadVideo returns the next decoded frame. io.EOF ends the session.
	ReadVideo() (*VideoFrame, error)

	// ReadAudio returns the next decoded PCM chunk from the audio tap.
	// io.EOF when the tap is disabled or the stream ends.
	ReadAudio() (*AudioChunk, error)

	// ReadPacket returns the next passthrough audio packet. io.EOF when the
	// stream has no audio or ends.
	ReadPacket() (*AudioPacket, error)

	// Close tears the session down. Safe to call more than once and
	// concurrently with blocked reads, which it unblocks.
	Close() error
}

// Sink is one publish session. Single-use, like Source.
type Sink interface {
	// Open starts the publish side for the given stream properties.
	Open(info *StreamInfo) error

	// WriteVideo encodes and publishes one processed frame.
	WriteVideo(f *VideoFrame) error

	// WritePacket forwards one passthrough audio packet.
	WritePacket(p *AudioPacket) error

	// Close flushes and tears the session down. Safe to call more than once.
	Close() error
}

// SourceFactory builds a Source per connection attempt.
type SourceFactory func() Source

// SinkFactory builds a Sink per publish session.
type SinkFactory func() Sink
