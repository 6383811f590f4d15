package ts

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts/codecs"
)

// audioPID is the PID of the single audio track in the remuxed stream.
// Fixed regardless of what PID the source used; this is the "substituted
// stream identifier" the output muxer sees.
const audioPID = 0x0101

// Muxer writes an audio-only MPEG-TS stream. The track is created lazily
// on the first write so the codec detected by the demuxer can be carried
// over.
type Muxer struct {
	writer io.Writer
	logger *slog.Logger

	mu          sync.Mutex
	codec       string
	sampleRate  int
	muxer       *mpegts.Writer
	track       *mpegts.Track
	initialized bool
}

// NewMuxer creates a muxer emitting transport stream bytes to w.
func NewMuxer(w io.Writer, logger *slog.Logger) *Muxer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Muxer{
		writer: w,
		logger: logger.With(slog.String("component", "ts-muxer")),
	}
}

// SetCodec fixes the track codec before the first write. Must be called
// once; subsequent writes fail without it.
func (m *Muxer) SetCodec(codec string, sampleRate int) {
	m.mu.Lock()
	m.codec, m.sampleRate = codec, sampleRate
	m.mu.Unlock()
}

func (m *Muxer) initialize() error {
	if m.initialized {
		return nil
	}
	if m.codec == "" {
		return fmt.Errorf("muxer codec not set")
	}

	rate := m.sampleRate
	if rate <= 0 {
		rate = 48000
	}

	var codec mpegts.Codec
	switch m.codec {
	case "ac3":
		codec = &mpegts.CodecAC3{SampleRate: rate, ChannelCount: 2}
	case "eac3":
		codec = &codecs.EAC3{SampleRate: rate, ChannelCount: 6}
	case "mp3":
		codec = &mpegts.CodecMPEG1Audio{}
	case "opus":
		codec = &mpegts.CodecOpus{ChannelCount: 2}
	default:
		codec = &mpegts.CodecMPEG4Audio{Config: mpeg4audio.AudioSpecificConfig{
			Type:         mpeg4audio.ObjectTypeAACLC,
			SampleRate:   rate,
			ChannelCount: 2,
		}}
	}

	m.track = &mpegts.Track{PID: audioPID, Codec: codec}
	m.muxer = &mpegts.Writer{W: m.writer, Tracks: []*mpegts.Track{m.track}}
	if err := m.muxer.Initialize(); err != nil {
		return fmt.Errorf("initializing mpegts writer: %w", err)
	}

	m.initialized = true
	m.logger.Debug("audio muxer initialized",
		slog.String("codec", m.codec),
		slog.Int("sample_rate", rate))
	return nil
}

// WriteFrame writes one audio frame at the given 90 kHz PTS.
func (m *Muxer) WriteFrame(pts int64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		if err := m.initialize(); err != nil {
			return err
		}
	}
	if len(data) == 0 {
		return nil
	}

	switch m.track.Codec.(type) {
	case *mpegts.CodecAC3:
		return m.muxer.WriteAC3(m.track, pts, data)
	case *codecs.EAC3:
		return m.muxer.WriteEAC3(m.track, pts, data)
	case *mpegts.CodecMPEG1Audio:
		return m.muxer.WriteMPEG1Audio(m.track, pts, [][]byte{data})
	case *mpegts.CodecOpus:
		return m.muxer.WriteOpus(m.track, pts, [][]byte{data})
	default:
		aus := extractAACFrames(data)
		if len(aus) == 0 {
			return nil
		}
		return m.muxer.WriteMPEG4Audio(m.track, pts, aus)
	}
}

// extractAACFrames strips ADTS framing when present; mediacommon wants
// raw access units.
func extractAACFrames(data []byte) [][]byte {
	if len(data) == 0 {
		return nil
	}
	if len(data) >= 7 && data[0] == 0xFF && (data[1]&0xF0) == 0xF0 {
		return extractADTSFrames(data)
	}
	return [][]byte{data}
}

func extractADTSFrames(data []byte) [][]byte {
	var frames [][]byte
	offset := 0

	for offset+7 <= len(data) {
		if data[offset] != 0xFF || (data[offset+1]&0xF0) != 0xF0 {
			offset++
			continue
		}

		protectionAbsent := (data[offset+1] & 0x01) != 0
		headerSize := 7
		if !protectionAbsent {
			headerSize = 9
		}

		// 13-bit frame length spans three bytes.
		frameLen := int(data[offset+3]&0x03)<<11 |
			int(data[offset+4])<<3 |
			int(data[offset+5]>>5)

		if frameLen < headerSize || offset+frameLen > len(data) {
			break
		}

		raw := data[offset+headerSize : offset+frameLen]
		if len(raw) > 0 {
			frames = append(frames, raw)
		}
		offset += frameLen
	}
	return frames
}
