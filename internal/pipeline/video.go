package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/veilcast/veilcast/internal/consent"
	"github.com/veilcast/veilcast/internal/media"
	"github.com/veilcast/veilcast/internal/metrics"
	"github.com/veilcast/veilcast/internal/vision"
)

// frameLogEvery is how often the video worker logs its frame counter.
const frameLogEvery = 100

// VideoWorker pulls decoded frames, blurs non-consented faces in place, and
// hands the processed frames to the output queue. It also services armed
// consent captures: before a frame is blurred it is still the original
// pixels, which is exactly what a consent photo needs.
type VideoWorker struct {
	sup    *Supervisor
	logger *slog.Logger

	processor *vision.FaceProcessor
	detector  vision.Detector
	capture   *consent.CaptureRequest
	capturer  *consent.Capturer
	consents  *consent.Manager
	stats     *StatsCollector

	in  *Queue[*media.VideoFrame]
	out *Queue[*media.VideoFrame]

	queueTimeout time.Duration
	frames       uint64
}

// NewVideoWorker creates the video worker. capture, capturer, and consents
// may be nil together to disable consent capture.
func NewVideoWorker(
	processor *vision.FaceProcessor,
	detector vision.Detector,
	capture *consent.CaptureRequest,
	capturer *consent.Capturer,
	consents *consent.Manager,
	sup *Supervisor,
	stats *StatsCollector,
	in, out *Queue[*media.VideoFrame],
	queueTimeout time.Duration,
	logger *slog.Logger,
) *VideoWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoWorker{
		sup:          sup,
		logger:       logger.With(slog.String("component", "video-worker")),
		processor:    processor,
		detector:     detector,
		capture:      capture,
		capturer:     capturer,
		consents:     consents,
		stats:        stats,
		in:           in,
		out:          out,
		queueTimeout: queueTimeout,
	}
}

// Run processes frames until the context is cancelled or the input queue
// closes.
func (w *VideoWorker) Run(ctx context.Context) {
	w.sup.UpdateState(WorkerVideo, StateRunning)
	defer w.sup.UpdateState(WorkerVideo, StateStopped)

	for {
		if ctx.Err() != nil {
			return
		}

		frame, status := w.in.Get(w.queueTimeout)
		switch status {
		case GetClosed:
			return
		case GetTimeout:
			w.sup.Heartbeat(WorkerVideo)
			continue
		}
		w.sup.Heartbeat(WorkerVideo)

		if w.capture != nil && w.capturer != nil && w.capture.Armed() {
			w.serviceCapture(ctx, frame)
		}

		detected, blurred, err := w.processor.Process(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// The frame goes out unprocessed rather than stalling the
			// stream; the next frame retries detection.
			w.logger.Warn("frame processing failed", slog.String("error", err.Error()))
		}
		frame.FacesDetected = detected

		w.stats.RecordFrame()
		w.stats.RecordFaces(detected, blurred)
		metrics.IncFramesProcessed("video")

		w.frames++
		if w.frames%frameLogEvery == 0 {
			w.logger.Debug("frames processed",
				slog.Uint64("frames", w.frames),
				slog.Int("faces", detected),
			)
		}

		if !w.out.Put(frame, w.queueTimeout) {
			metrics.AddFramesDropped(w.out.Name(), 1)
			w.logger.Debug("output queue full, dropping frame",
				slog.Uint64("sequence", frame.Sequence))
		}
	}
}

// serviceCapture takes the armed capture request and writes the largest face
// of the current (still unblurred) frame into the consent directory. The new
// file is ingested immediately rather than waiting for the watcher, so the
// person stops being blurred on the very next cache refresh.
func (w *VideoWorker) serviceCapture(ctx context.Context, frame *media.VideoFrame) {
	name, ok := w.capture.Take()
	if !ok {
		return
	}

	detections, err := w.detector.Detect(ctx, frame)
	if err != nil {
		w.logger.Warn("consent capture detection failed",
			slog.String("name", name), slog.String("error", err.Error()))
		return
	}

	path, err := w.capturer.Capture(frame, detections, name)
	if err != nil {
		w.logger.Warn("consent capture failed",
			slog.String("name", name), slog.String("error", err.Error()))
		return
	}

	metrics.IncConsentEvent("captured")
	w.logger.Info("consent photo captured",
		slog.String("name", name), slog.String("path", path))

	if w.consents != nil {
		w.consents.IngestFile(ctx, path)
	}
}
