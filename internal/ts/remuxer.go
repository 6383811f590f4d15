package ts

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
)

// Remuxer rewrites the audio transport stream: frames come out of the
// source's TS tap, keep their PTS, and go back into a clean single-track
// TS with this repo's own PAT/PMT and PID. Each call to Write may produce
// zero or more remuxed chunks on the OnOutput callback.
type Remuxer struct {
	logger   *slog.Logger
	onOutput func(data []byte)

	demuxer *Demuxer
	muxer   *Muxer
	buf     bytes.Buffer

	mu       sync.Mutex
	codecSet bool
	muxErr   error
	frames   int64
}

// NewRemuxer creates a remuxer delivering remuxed TS chunks to onOutput.
// The callback runs on the demuxer's reader goroutine.
func NewRemuxer(logger *slog.Logger, onOutput func(data []byte)) *Remuxer {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Remuxer{
		logger:   logger.With(slog.String("component", "ts-remuxer")),
		onOutput: onOutput,
	}
	r.muxer = NewMuxer(&r.buf, nil)
	r.demuxer = NewDemuxer(logger, r.handleFrame)
	return r
}

func (r *Remuxer) handleFrame(pts int64, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.codecSet {
		r.muxer.SetCodec(r.demuxer.Codec(), r.demuxer.SampleRate())
		r.codecSet = true
	}

	if err := r.muxer.WriteFrame(pts, data); err != nil {
		if r.muxErr == nil {
			r.muxErr = err
			r.logger.Warn("audio remux write failed",
				slog.String("error", err.Error()))
		}
		return
	}
	r.frames++

	if r.buf.Len() > 0 {
		chunk := make([]byte, r.buf.Len())
		copy(chunk, r.buf.Bytes())
		r.buf.Reset()
		r.onOutput(chunk)
	}
}

// Write feeds raw TS bytes from the source tap.
func (r *Remuxer) Write(data []byte) error {
	r.mu.Lock()
	err := r.muxErr
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("remuxer failed: %w", err)
	}
	return r.demuxer.Write(data)
}

// Frames returns the number of audio frames carried through so far.
func (r *Remuxer) Frames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close stops the underlying demuxer.
func (r *Remuxer) Close() {
	r.demuxer.Close()
}
