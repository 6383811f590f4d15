package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/veilcast/veilcast/internal/media"
	"github.com/veilcast/veilcast/internal/metrics"
)

// inputPollInterval is how often the output worker checks for an active
// input session while it has nothing to publish.
const inputPollInterval = 100 * time.Millisecond

// OutputWorker publishes processed frames and remuxed audio. It follows
// the input side's lead: a publish session opens once a publisher has
// connected upstream and closes when that session ends, because the next
// session may carry a different resolution or codec.
type OutputWorker struct {
	sup    *Supervisor
	conn   *ConnectionState
	logger *slog.Logger

	factory media.SinkFactory

	videoIn  *Queue[*media.VideoFrame]
	packetIn *Queue[*media.AudioPacket]

	queueTimeout   time.Duration
	reconnectDelay time.Duration
}

// NewOutputWorker creates the output worker.
func NewOutputWorker(
	factory media.SinkFactory,
	sup *Supervisor,
	conn *ConnectionState,
	videoIn *Queue[*media.VideoFrame],
	packetIn *Queue[*media.AudioPacket],
	queueTimeout, reconnectDelay time.Duration,
	logger *slog.Logger,
) *OutputWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutputWorker{
		sup:            sup,
		conn:           conn,
		logger:         logger.With(slog.String("component", "output-worker")),
		factory:        factory,
		videoIn:        videoIn,
		packetIn:       packetIn,
		queueTimeout:   queueTimeout,
		reconnectDelay: reconnectDelay,
	}
}

// Run cycles between waiting for an input session and publishing it until
// the context is cancelled.
func (w *OutputWorker) Run(ctx context.Context) {
	w.sup.UpdateState(WorkerOutput, StateRunning)
	defer w.sup.UpdateState(WorkerOutput, StateStopped)

	for ctx.Err() == nil {
		info := w.awaitInput(ctx)
		if info == nil {
			return
		}

		sink := w.factory()
		if err := sink.Open(info); err != nil {
			w.logger.Warn("publish open failed", slog.String("error", err.Error()))
			_ = sink.Close()
			w.sleep(ctx, w.reconnectDelay)
			continue
		}

		w.conn.SetOutputConnected(true)
		metrics.SetConnected("output", true)
		w.logger.Info("output connected",
			slog.Int("width", info.Width),
			slog.Int("height", info.Height),
			slog.Bool("has_audio", info.HasAudio),
		)

		w.publish(ctx, sink)

		_ = sink.Close()
		w.conn.SetOutputConnected(false)
		metrics.SetConnected("output", false)
		w.logger.Info("output disconnected")
	}
}

// awaitInput blocks until the input side has an active session and returns
// its stream properties, or nil on shutdown.
func (w *OutputWorker) awaitInput(ctx context.Context) *media.StreamInfo {
	ticker := time.NewTicker(inputPollInterval)
	defer ticker.Stop()

	for {
		if info := w.conn.StreamInfo(); info != nil && w.conn.InputConnected() {
			return info
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.sup.Heartbeat(WorkerOutput)
		}
	}
}

// publish moves frames and packets into the sink until the session ends: a
// write fails, the input session goes away, or shutdown.
func (w *OutputWorker) publish(ctx context.Context, sink media.Sink) {
	for {
		if ctx.Err() != nil {
			return
		}
		if !w.conn.InputConnected() {
			// The upstream session ended; its queues were cleared, and the
			// next session needs a fresh sink.
			return
		}

		w.drainPackets(sink)

		frame, status := w.videoIn.Get(w.queueTimeout)
		switch status {
		case GetClosed:
			return
		case GetTimeout:
			w.sup.Heartbeat(WorkerOutput)
			continue
		}
		w.sup.Heartbeat(WorkerOutput)

		if err := sink.WriteVideo(frame); err != nil {
			w.logger.Warn("video write failed", slog.String("error", err.Error()))
			w.sleep(ctx, w.reconnectDelay)
			return
		}
		metrics.IncFramesProcessed("output")
	}
}

// drainPackets forwards whatever remuxed audio is ready without blocking the
// video path.
func (w *OutputWorker) drainPackets(sink media.Sink) {
	for {
		pkt, status := w.packetIn.Get(0)
		if status != GetOK {
			return
		}
		if err := sink.WritePacket(pkt); err != nil {
			w.logger.Debug("packet write failed", slog.String("error", err.Error()))
			return
		}
	}
}

func (w *OutputWorker) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
