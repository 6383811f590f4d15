package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/veilcast/veilcast/internal/audio"
	"github.com/veilcast/veilcast/internal/config"
	"github.com/veilcast/veilcast/internal/media"
	"github.com/veilcast/veilcast/internal/metrics"
)

// VADWorker converts the PCM tap to the target rate and layout, runs voice
// activity detection, and queues complete utterances for transcription. It
// owns the transcription queue's producer side and closes it on exit so the
// transcription worker drains and stops.
type VADWorker struct {
	sup    *Supervisor
	logger *slog.Logger

	cfg       config.VADConfig
	segmenter *audio.Segmenter
	stats     *StatsCollector

	in  *Queue[*media.AudioChunk]
	out *Queue[audio.Utterance]

	queueTimeout time.Duration
}

// NewVADWorker creates the VAD worker.
func NewVADWorker(
	cfg config.VADConfig,
	vad audio.Classifier,
	sup *Supervisor,
	stats *StatsCollector,
	in *Queue[*media.AudioChunk],
	out *Queue[audio.Utterance],
	queueTimeout time.Duration,
	logger *slog.Logger,
) *VADWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &VADWorker{
		sup:          sup,
		logger:       logger.With(slog.String("component", "vad-worker")),
		cfg:          cfg,
		segmenter:    audio.NewSegmenter(cfg, vad),
		stats:        stats,
		in:           in,
		out:          out,
		queueTimeout: queueTimeout,
	}
}

// Run segments speech until the context is cancelled or the input queue
// closes, then flushes any buffered speech as a final utterance.
func (w *VADWorker) Run(ctx context.Context) {
	w.sup.UpdateState(WorkerVAD, StateRunning)
	defer w.sup.UpdateState(WorkerVAD, StateStopped)
	defer w.out.Close()

	for {
		if ctx.Err() != nil {
			w.flush()
			return
		}

		chunk, status := w.in.Get(w.queueTimeout)
		switch status {
		case GetClosed:
			w.flush()
			return
		case GetTimeout:
			w.sup.Heartbeat(WorkerVAD)
			continue
		}
		w.sup.Heartbeat(WorkerVAD)

		mono := audio.Convert(chunk.Samples, chunk.SampleRate, chunk.Channels, w.cfg.SamplingRate)
		for _, utt := range w.segmenter.Push(mono) {
			w.enqueue(utt)
		}
	}
}

// flush emits whatever speech is still buffered when the stream ends.
func (w *VADWorker) flush() {
	if utt, ok := w.segmenter.Flush(); ok {
		w.enqueue(utt)
	}
}

func (w *VADWorker) enqueue(utt audio.Utterance) {
	w.stats.RecordUtterance()
	w.logger.Debug("utterance segmented",
		slog.Duration("start", utt.Start),
		slog.Duration("duration", utt.End-utt.Start),
	)
	// Never block the segmenter on a slow transcriber; a full queue drops
	// the segment immediately.
	if !w.out.PutNowait(utt) {
		metrics.TranscriptionsDropped.Inc()
		w.logger.Warn("transcription queue full, dropping audio segment")
	}
}
