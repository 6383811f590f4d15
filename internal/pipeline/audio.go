package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/veilcast/veilcast/internal/media"
	"github.com/veilcast/veilcast/internal/metrics"
	"github.com/veilcast/veilcast/internal/ts"
)

// AudioWorker carries the passthrough audio path: TS chunks tapped off the
// source are remuxed onto this service's own transport stream and queued for
// the sink. The audio bytes themselves are never decoded.
type AudioWorker struct {
	sup    *Supervisor
	logger *slog.Logger

	in  *Queue[*media.AudioPacket]
	out *Queue[*media.AudioPacket]

	queueTimeout time.Duration

	remuxer *ts.Remuxer
	seq     atomic.Uint64
}

// NewAudioWorker creates the audio worker.
func NewAudioWorker(
	sup *Supervisor,
	in, out *Queue[*media.AudioPacket],
	queueTimeout time.Duration,
	logger *slog.Logger,
) *AudioWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AudioWorker{
		sup:          sup,
		logger:       logger.With(slog.String("component", "audio-worker")),
		in:           in,
		out:          out,
		queueTimeout: queueTimeout,
	}
}

// Run remuxes packets until the context is cancelled or the input queue
// closes.
func (w *AudioWorker) Run(ctx context.Context) {
	w.sup.UpdateState(WorkerAudio, StateRunning)
	defer w.sup.UpdateState(WorkerAudio, StateStopped)
	defer w.dropRemuxer()

	for {
		if ctx.Err() != nil {
			return
		}

		pkt, status := w.in.Get(w.queueTimeout)
		switch status {
		case GetClosed:
			return
		case GetTimeout:
			w.sup.Heartbeat(WorkerAudio)
			continue
		}
		w.sup.Heartbeat(WorkerAudio)

		if w.remuxer == nil {
			w.remuxer = ts.NewRemuxer(w.logger, w.emit)
		}

		if err := w.remuxer.Write(pkt.Data); err != nil {
			// A reconnected publisher restarts the transport stream; a
			// fresh remuxer resyncs on the next packets.
			w.logger.Debug("audio remux reset", slog.String("error", err.Error()))
			w.dropRemuxer()
			continue
		}
		metrics.IncFramesProcessed("audio")
	}
}

// emit queues one remuxed chunk for the output worker.
func (w *AudioWorker) emit(data []byte) {
	pkt := &media.AudioPacket{
		Data:     data,
		Sequence: w.seq.Add(1) - 1,
	}
	if !w.out.Put(pkt, w.queueTimeout) {
		metrics.AddFramesDropped(w.out.Name(), 1)
	}
}

func (w *AudioWorker) dropRemuxer() {
	if w.remuxer != nil {
		w.remuxer.Close()
		w.remuxer = nil
	}
}
