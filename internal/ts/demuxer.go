// Package ts carries the original audio track through the pipeline
// untouched. The input adapter taps the source's audio as MPEG-TS; this
// package demuxes the elementary stream and remuxes it into a fresh
// transport stream for the output muxer, so the audio is never decoded
// or re-encoded on its way through.
package ts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts/codecs"
)

// Demuxer extracts the audio elementary stream from MPEG-TS input. It is
// audio-only: the tap this feeds from maps just the source's audio track,
// and any stray video track is ignored.
type Demuxer struct {
	logger  *slog.Logger
	onFrame func(pts int64, data []byte)

	reader *mpegts.Reader

	codec         string
	sampleRate    int
	frameDuration int64 // 90 kHz ticks between frames in a multi-frame PES

	pipeMu     sync.Mutex
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter

	initialized bool
	initOnce    sync.Once
	initErr     error
	initDone    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDemuxer creates a demuxer delivering audio frames to onFrame. The
// reader runs in its own goroutine; feed it with Write and stop it with
// Close.
func NewDemuxer(logger *slog.Logger, onFrame func(pts int64, data []byte)) *Demuxer {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()

	d := &Demuxer{
		logger:     logger.With(slog.String("component", "ts-demuxer")),
		onFrame:    onFrame,
		pipeReader: pr,
		pipeWriter: pw,
		initDone:   make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}

	go d.runReader()
	return d
}

func (d *Demuxer) runReader() {
	defer func() {
		d.pipeReader.Close()
		close(d.initDone)
	}()

	d.reader = &mpegts.Reader{R: d.pipeReader}

	// Initialize blocks until PAT/PMT arrive.
	if err := d.reader.Initialize(); err != nil {
		d.initOnce.Do(func() {
			d.initErr = fmt.Errorf("initializing mpegts reader: %w", err)
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				d.logger.Info("audio demuxer initialization failed",
					slog.String("error", err.Error()))
			}
		})
		return
	}

	for _, track := range d.reader.Tracks() {
		d.setupTrack(track)
	}

	d.initOnce.Do(func() {
		d.initialized = true
		d.logger.Debug("audio demuxer ready",
			slog.String("codec", d.codec),
			slog.Int("sample_rate", d.sampleRate))
	})

	d.reader.OnDecodeError(func(err error) {
		d.logger.Debug("audio demuxer decode error", slog.String("error", err.Error()))
	})

	for {
		select {
		case <-d.ctx.Done():
			return
		default:
			if err := d.reader.Read(); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
					return
				}
				d.logger.Info("audio demuxer read error (exiting)",
					slog.String("codec", d.codec),
					slog.String("error", err.Error()))
				return
			}
		}
	}
}

func (d *Demuxer) setupTrack(track *mpegts.Track) {
	switch codec := track.Codec.(type) {
	case *mpegts.CodecMPEG4Audio:
		d.codec = "aac"
		d.sampleRate = codec.Config.SampleRate
		if d.sampleRate <= 0 {
			d.sampleRate = 48000
		}
		d.frameDuration = int64(1024 * 90000 / d.sampleRate)
		d.reader.OnDataMPEG4Audio(track, func(pts int64, aus [][]byte) error {
			d.emitFrames(pts, aus)
			return nil
		})

	case *mpegts.CodecAC3:
		d.codec = "ac3"
		d.sampleRate = codec.SampleRate
		d.reader.OnDataAC3(track, func(pts int64, frame []byte) error {
			d.emit(pts, frame)
			return nil
		})

	case *codecs.EAC3:
		d.codec = "eac3"
		d.sampleRate = codec.SampleRate
		d.reader.OnDataEAC3(track, func(pts int64, frame []byte) error {
			d.emit(pts, frame)
			return nil
		})

	case *mpegts.CodecMPEG1Audio:
		d.codec = "mp3"
		d.sampleRate = 48000
		d.frameDuration = int64(1152 * 90000 / d.sampleRate)
		d.reader.OnDataMPEG1Audio(track, func(pts int64, frames [][]byte) error {
			d.emitFrames(pts, frames)
			return nil
		})

	case *mpegts.CodecOpus:
		d.codec = "opus"
		d.sampleRate = 48000
		d.frameDuration = int64(960 * 90000 / d.sampleRate)
		d.reader.OnDataOpus(track, func(pts int64, packets [][]byte) error {
			d.emitFrames(pts, packets)
			return nil
		})

	default:
		d.logger.Debug("ignoring non-audio track",
			slog.Uint64("pid", uint64(track.PID)),
			slog.String("type", fmt.Sprintf("%T", track.Codec)))
	}
}

// emitFrames spaces the frames of one PES packet by the codec's frame
// duration so each carries its own PTS.
func (d *Demuxer) emitFrames(pts int64, frames [][]byte) {
	for _, frame := range frames {
		if len(frame) == 0 {
			continue
		}
		d.emit(pts, frame)
		pts += d.frameDuration
	}
}

func (d *Demuxer) emit(pts int64, data []byte) {
	if len(data) == 0 {
		return
	}
	d.onFrame(pts, data)
}

// Write feeds MPEG-TS bytes into the demuxer.
func (d *Demuxer) Write(data []byte) error {
	d.pipeMu.Lock()
	defer d.pipeMu.Unlock()

	if _, err := d.pipeWriter.Write(data); err != nil {
		return fmt.Errorf("writing to demuxer pipe: %w", err)
	}
	return nil
}

// Codec returns the detected audio codec, empty until initialized.
func (d *Demuxer) Codec() string {
	return d.codec
}

// SampleRate returns the detected sample rate, zero until initialized.
func (d *Demuxer) SampleRate() int {
	return d.sampleRate
}

// WaitInitialized blocks until PAT/PMT have been parsed or ctx expires.
func (d *Demuxer) WaitInitialized(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.initDone:
		return d.initErr
	}
}

// Close stops the reader goroutine.
func (d *Demuxer) Close() {
	d.cancel()
	d.pipeWriter.Close()
}
