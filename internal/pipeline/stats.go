package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/veilcast/veilcast/internal/metrics"
	"github.com/veilcast/veilcast/pkg/format"
)

// fpsWindow is how many recent frame timestamps feed the FPS estimate.
const fpsWindow = 100

// StatsCollector tracks pipeline throughput and logs a periodic summary.
// Workers call the Record methods from their hot loops; those are cheap
// (a mutex-guarded ring write or an atomic add). The summary loop samples
// queue depths through the source function installed by the runtime.
type StatsCollector struct {
	logger   *slog.Logger
	interval time.Duration

	mu         sync.Mutex
	frameTimes [fpsWindow]time.Time
	frameHead  int
	frameCount int

	framesProcessed uint64
	facesDetected   uint64
	facesBlurred    uint64
	utterances      uint64

	queueSource func() []QueueStats
}

// NewStatsCollector creates a collector that logs a summary every interval.
func NewStatsCollector(interval time.Duration, logger *slog.Logger) *StatsCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsCollector{
		logger:   logger.With(slog.String("component", "stats")),
		interval: interval,
	}
}

// SetQueueSource installs the function used to sample queue counters for
// the periodic summary.
func (s *StatsCollector) SetQueueSource(fn func() []QueueStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queueSource = fn
}

// RecordFrame notes one processed video frame for FPS tracking.
func (s *StatsCollector) RecordFrame() {
	now := time.Now()

	s.mu.Lock()
	s.frameTimes[s.frameHead] = now
	s.frameHead = (s.frameHead + 1) % fpsWindow
	if s.frameCount < fpsWindow {
		s.frameCount++
	}
	s.framesProcessed++
	s.mu.Unlock()
}

// RecordFaces notes detector results for one frame.
func (s *StatsCollector) RecordFaces(detected, blurred int) {
	s.mu.Lock()
	s.facesDetected += uint64(detected)
	s.facesBlurred += uint64(blurred)
	s.mu.Unlock()
}

// RecordUtterance notes one speech segment handed to the transcriber.
func (s *StatsCollector) RecordUtterance() {
	metrics.Utterances.Inc()
	s.mu.Lock()
	s.utterances++
	s.mu.Unlock()
}

// FramesProcessed returns the total processed frame count.
func (s *StatsCollector) FramesProcessed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.framesProcessed
}

// FPS estimates the recent processed frame rate from the timestamp window.
func (s *StatsCollector) FPS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fpsLocked(time.Now())
}

func (s *StatsCollector) fpsLocked(now time.Time) float64 {
	if s.frameCount < 2 {
		return 0
	}

	newest := s.frameTimes[(s.frameHead-1+fpsWindow)%fpsWindow]
	oldest := s.frameTimes[(s.frameHead-s.frameCount+fpsWindow)%fpsWindow]

	// A stalled pipeline decays toward zero instead of freezing at the
	// last computed rate.
	span := newest.Sub(oldest)
	if idle := now.Sub(newest); idle > time.Second {
		span += idle
	}
	if span <= 0 {
		return 0
	}
	return float64(s.frameCount-1) / span.Seconds()
}

// Run logs the summary line on each tick until the context is cancelled.
func (s *StatsCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logSummary()
		}
	}
}

func (s *StatsCollector) logSummary() {
	s.mu.Lock()
	fps := s.fpsLocked(time.Now())
	frames := s.framesProcessed
	detected := s.facesDetected
	blurred := s.facesBlurred
	utterances := s.utterances
	source := s.queueSource
	s.mu.Unlock()

	metrics.VideoFPS.Set(fps)

	attrs := []any{
		slog.String("fps", fmt.Sprintf("%.1f", fps)),
		slog.String("frames", format.Number(int64(frames))),
		slog.String("faces_detected", format.Number(int64(detected))),
		slog.String("faces_blurred", format.Number(int64(blurred))),
		slog.Uint64("utterances", utterances),
	}

	if source != nil {
		for _, q := range source() {
			metrics.SetQueueDepth(q.Name, q.Len)
			attrs = append(attrs,
				slog.String(q.Name+"_queue", fmt.Sprintf("%d/%d", q.Len, q.Cap)))
			if q.Dropped > 0 {
				attrs = append(attrs,
					slog.String(q.Name+"_dropped", format.Number(int64(q.Dropped))))
			}
		}
	}

	s.logger.Info("pipeline stats", attrs...)
}
