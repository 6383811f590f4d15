package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/veilcast/veilcast/internal/asr"
	"github.com/veilcast/veilcast/internal/audio"
	"github.com/veilcast/veilcast/internal/config"
	"github.com/veilcast/veilcast/internal/consent"
	"github.com/veilcast/veilcast/internal/metrics"
)

// TranscriptStore persists finished transcript lines. Implemented by the
// transcript repository; nil disables persistence.
type TranscriptStore interface {
	SaveTranscript(ctx context.Context, start, end time.Duration, text string) error
}

// TranscribeWorker pulls segmented utterances, sends them to the speech
// recognizer, and fans the text out: the log, the transcript store, and the
// consent phrase detector. A failed utterance is skipped; the worker only
// stops when its queue closes.
type TranscribeWorker struct {
	sup    *Supervisor
	logger *slog.Logger

	cfg         config.TranscriptionConfig
	sampleRate  int
	transcriber asr.Transcriber
	phrases     consent.ConsentDetector
	capture     *consent.CaptureRequest
	store       TranscriptStore

	in *Queue[audio.Utterance]

	queueTimeout time.Duration

	// flushDeadline bounds the post-shutdown drain of queued utterances.
	flushDeadline time.Time
}

// NewTranscribeWorker creates the transcription worker. phrases and capture
// may be nil together to disable spoken-consent detection; store may be nil
// to disable persistence.
func NewTranscribeWorker(
	cfg config.TranscriptionConfig,
	sampleRate int,
	transcriber asr.Transcriber,
	phrases consent.ConsentDetector,
	capture *consent.CaptureRequest,
	store TranscriptStore,
	sup *Supervisor,
	in *Queue[audio.Utterance],
	queueTimeout time.Duration,
	logger *slog.Logger,
) *TranscribeWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscribeWorker{
		sup:          sup,
		logger:       logger.With(slog.String("component", "transcribe-worker")),
		cfg:          cfg,
		sampleRate:   sampleRate,
		transcriber:  transcriber,
		phrases:      phrases,
		capture:      capture,
		store:        store,
		in:           in,
		queueTimeout: queueTimeout,
	}
}

// Run transcribes utterances until the queue closes. After the root context
// is cancelled the queue is drained for up to the configured flush timeout
// so speech captured just before shutdown still produces a transcript.
func (w *TranscribeWorker) Run(ctx context.Context) {
	w.sup.UpdateState(WorkerTranscribe, StateRunning)
	defer w.sup.UpdateState(WorkerTranscribe, StateStopped)

	for {
		if !w.withinBudget(ctx) {
			return
		}

		utt, status := w.in.Get(w.queueTimeout)
		switch status {
		case GetClosed:
			return
		case GetTimeout:
			w.sup.Heartbeat(WorkerTranscribe)
			continue
		}
		w.sup.Heartbeat(WorkerTranscribe)

		opCtx, cancel := w.opCtx(ctx)
		w.transcribe(opCtx, utt)
		cancel()
	}
}

// withinBudget reports whether the worker should keep pulling. Cancellation
// starts the flush clock instead of stopping immediately.
func (w *TranscribeWorker) withinBudget(ctx context.Context) bool {
	if ctx.Err() == nil {
		return true
	}
	if w.flushDeadline.IsZero() {
		flush := w.cfg.FlushTimeout
		if flush <= 0 {
			flush = 5 * time.Second
		}
		w.flushDeadline = time.Now().Add(flush)
	}
	return time.Now().Before(w.flushDeadline)
}

// opCtx returns the context transcription calls run under: the root context
// while live, a deadline-bound fresh context during the shutdown drain.
func (w *TranscribeWorker) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return ctx, func() {}
	}
	return context.WithDeadline(context.Background(), w.flushDeadline)
}

func (w *TranscribeWorker) transcribe(ctx context.Context, utt audio.Utterance) {
	opts := asr.Options{
		BeamSize: w.cfg.BeamSize,
		Language: w.cfg.Language,
	}

	started := time.Now()
	segments, err := w.transcriber.Transcribe(ctx, utt.Samples, w.sampleRate, opts)
	metrics.ObserveTranscribe(time.Since(started))
	if err != nil {
		w.logger.Error("transcription failed",
			slog.Duration("utterance_start", utt.Start),
			slog.String("error", err.Error()),
		)
		return
	}

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		start := utt.Start + seg.Start
		end := utt.Start + seg.End

		w.logger.Info(fmt.Sprintf("[Transcription] [%.2fs -> %.2fs] %s",
			start.Seconds(), end.Seconds(), text))

		if w.phrases != nil && w.capture != nil {
			if name, ok := w.phrases.Detect(text); ok {
				w.capture.Arm(name)
				metrics.IncConsentEvent("phrase")
			}
		}

		if w.store != nil {
			if err := w.store.SaveTranscript(ctx, start, end, text); err != nil {
				w.logger.Warn("transcript persist failed", slog.String("error", err.Error()))
			}
		}
	}
}
