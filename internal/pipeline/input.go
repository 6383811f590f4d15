package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/veilcast/veilcast/internal/config"
	"github.com/veilcast/veilcast/internal/media"
	"github.com/veilcast/veilcast/internal/metrics"
)

// connectHeartbeat bounds how long the input worker goes without a heartbeat
// while waiting for a publisher.
const connectHeartbeat = time.Second

// InputWorker owns the ingest side: it waits for a publisher, pumps the
// session's video, PCM tap, and passthrough audio streams into the pipeline
// queues, and cycles back to waiting when the publisher goes away. Every
// session gets a fresh Source, a fresh session ID, and sequence counters
// starting at zero.
type InputWorker struct {
	cfg     config.InputConfig
	factory media.SourceFactory
	sup     *Supervisor
	conn    *ConnectionState
	logger  *slog.Logger

	videoQ *Queue[*media.VideoFrame]
	audioQ *Queue[*media.AudioPacket]
	vadQ   *Queue[*media.AudioChunk]

	// clearDownstream drains queues the worker does not own (processed
	// frames, remuxed packets) when a session ends. May be nil.
	clearDownstream func() int

	queueTimeout time.Duration
}

// NewInputWorker creates the input worker. vadQ may be nil when transcription
// is disabled; the PCM tap is still drained so the demuxer never stalls.
func NewInputWorker(
	cfg config.InputConfig,
	factory media.SourceFactory,
	sup *Supervisor,
	conn *ConnectionState,
	videoQ *Queue[*media.VideoFrame],
	audioQ *Queue[*media.AudioPacket],
	vadQ *Queue[*media.AudioChunk],
	queueTimeout time.Duration,
	logger *slog.Logger,
) *InputWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &InputWorker{
		cfg:          cfg,
		factory:      factory,
		sup:          sup,
		conn:         conn,
		logger:       logger.With(slog.String("component", "input-worker")),
		videoQ:       videoQ,
		audioQ:       audioQ,
		vadQ:         vadQ,
		queueTimeout: queueTimeout,
	}
}

// SetClearDownstream installs the drain hook for queues further down the
// pipeline, called when a session ends.
func (w *InputWorker) SetClearDownstream(fn func() int) {
	w.clearDownstream = fn
}

// Run loops between connect attempts and live sessions until the context is
// cancelled.
func (w *InputWorker) Run(ctx context.Context) {
	w.sup.UpdateState(WorkerInput, StateRunning)
	defer w.sup.UpdateState(WorkerInput, StateStopped)

	w.logger.Info("waiting for publisher", slog.String("url", w.cfg.URL))

	for ctx.Err() == nil {
		src := w.factory()
		info, err := w.connect(ctx, src)
		if err != nil {
			_ = src.Close()
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, media.ErrConnectTimeout) {
				// Routine no-show, go straight back to listening.
				continue
			}
			w.logger.Warn("connect attempt failed", slog.String("error", err.Error()))
			w.sleep(ctx, w.cfg.ReconnectDelay)
			continue
		}

		sessionID := uuid.New().String()
		w.logger.Info("input connected",
			slog.String("session", sessionID),
			slog.String("video_codec", info.VideoCodec),
			slog.Int("width", info.Width),
			slog.Int("height", info.Height),
			slog.Float64("fps", info.FPS),
			slog.Bool("has_audio", info.HasAudio),
		)
		w.conn.SetInputConnected(true)
		w.conn.SetStreamInfo(info)
		w.conn.SetMetadata(info.Map())
		metrics.SetConnected("input", true)

		reason := w.runSession(ctx, src)
		_ = src.Close()
		w.teardownSession(sessionID, reason)

		if ctx.Err() != nil {
			return
		}
		w.sleep(ctx, w.cfg.ReconnectDelay)
	}
}

// connect runs one connect attempt, heartbeating while it waits so the
// supervisor never sees a stale input worker during a long listen.
func (w *InputWorker) connect(ctx context.Context, src media.Source) (*media.StreamInfo, error) {
	attemptCtx := ctx
	if w.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, w.cfg.ConnectTimeout)
		defer cancel()
	}

	type result struct {
		info *media.StreamInfo
		err  error
	}
	done := make(chan result, 1)
	go func() {
		info, err := src.Connect(attemptCtx)
		done <- result{info, err}
	}()

	ticker := time.NewTicker(connectHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case r := <-done:
			w.sup.Heartbeat(WorkerInput)
			return r.info, r.err
		case <-ticker.C:
			w.sup.Heartbeat(WorkerInput)
		}
	}
}

// runSession pumps the three source streams until one of them fails or the
// context is cancelled, and returns the reason the session ended.
func (w *InputWorker) runSession(ctx context.Context, src media.Source) string {
	errCh := make(chan error, 3)

	go w.pumpVideo(src, errCh)
	go w.pumpTap(src, errCh)
	go w.pumpPackets(src, errCh)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "shutdown"
		case err := <-errCh:
			if errors.Is(err, io.EOF) {
				return "publisher disconnected"
			}
			w.logger.Debug("stream error", slog.String("error", err.Error()))
			return "stream error"
		case <-ticker.C:
			w.sup.Heartbeat(WorkerInput)
		}
	}
}

// pumpVideo moves decoded frames into the video queue, stamping sequences.
func (w *InputWorker) pumpVideo(src media.Source, errCh chan<- error) {
	var seq uint64
	for {
		frame, err := src.ReadVideo()
		if err != nil {
			errCh <- err
			return
		}
		frame.Sequence = seq
		seq++
		if !w.videoQ.Put(frame, w.queueTimeout) {
			metrics.AddFramesDropped(w.videoQ.Name(), 1)
		}
	}
}

// pumpTap drains the decoded PCM tap. Chunks go to the VAD queue with the
// silent-skip put: losing one shifts an utterance boundary by a chunk, which
// the segmenter tolerates, so a busy queue is not worth a log line.
func (w *InputWorker) pumpTap(src media.Source, errCh chan<- error) {
	var seq uint64
	for {
		chunk, err := src.ReadAudio()
		if err != nil {
			errCh <- err
			return
		}
		chunk.Sequence = seq
		seq++
		if w.vadQ != nil {
			w.vadQ.TryPut(chunk)
		}
	}
}

// pumpPackets moves passthrough audio into the audio queue.
func (w *InputWorker) pumpPackets(src media.Source, errCh chan<- error) {
	var seq uint64
	for {
		pkt, err := src.ReadPacket()
		if err != nil {
			errCh <- err
			return
		}
		pkt.Sequence = seq
		seq++
		if !w.audioQ.Put(pkt, w.queueTimeout) {
			metrics.AddFramesDropped(w.audioQ.Name(), 1)
		}
	}
}

// teardownSession clears everything the ended session left behind so the
// next session starts from a clean slate.
func (w *InputWorker) teardownSession(sessionID, reason string) {
	cleared := w.videoQ.Clear() + w.audioQ.Clear()
	if w.vadQ != nil {
		cleared += w.vadQ.Clear()
	}
	if w.clearDownstream != nil {
		cleared += w.clearDownstream()
	}

	w.conn.SetInputConnected(false)
	metrics.SetConnected("input", false)

	w.logger.Info("input disconnected",
		slog.String("session", sessionID),
		slog.String("reason", reason),
		slog.Int("cleared", cleared),
	)
}

// sleep waits for d or until the context is cancelled, heartbeating so the
// reconnect pause never reads as a stall.
func (w *InputWorker) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	ticker := time.NewTicker(connectHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case <-ticker.C:
			w.sup.Heartbeat(WorkerInput)
		}
	}
}
