package vision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/veilcast/veilcast/internal/config"
	"github.com/veilcast/veilcast/internal/media"
	"github.com/veilcast/veilcast/internal/metrics"
)

// cacheStatsInterval is how often the cache hit-rate line is logged.
const cacheStatsInterval = 30 * time.Second

// blurRegion is one cached rectangle plus its gate decision. The gate result
// rides along with the rectangle so cache hits reuse it instead of calling
// the recognizer again.
type blurRegion struct {
	rect      Rect
	consented bool
	name      string
}

// FaceProcessor runs detection-with-cache and selective blurring on decoded
// frames. It owns its Detector and, when the recognition gate is enabled, a
// Recognizer; neither is shared with other workers.
//
// Detection results are cached by wall-clock age: at 30 fps with the default
// 150 ms TTL roughly four in five frames reuse the previous rectangles. Faces
// move little in that window and the padding absorbs the rest.
type FaceProcessor struct {
	detector   Detector
	recognizer Recognizer
	consents   ConsentMatcher
	logger     *slog.Logger

	minConfidence float64
	paddingRatio  float64
	cacheTTL      time.Duration
	blurKernel    int
	gateEnabled   bool

	// Detection cache, touched only by the owning video worker.
	cached    []blurRegion
	cachedAt  time.Time
	lastW     int
	lastH     int
	sizeKnown bool

	hits       uint64
	misses     uint64
	lastStatus time.Time
}

// NewFaceProcessor creates a processor. recognizer and consents may be nil
// when the gate is disabled; every detected face is then blurred.
func NewFaceProcessor(
	detCfg config.DetectorConfig,
	recCfg config.RecognizerConfig,
	detector Detector,
	recognizer Recognizer,
	consents ConsentMatcher,
	logger *slog.Logger,
) *FaceProcessor {
	if logger == nil {
		logger = slog.Default()
	}

	gate := recCfg.GateEnabled && recognizer != nil && consents != nil

	return &FaceProcessor{
		detector:      detector,
		recognizer:    recognizer,
		consents:      consents,
		logger:        logger.With(slog.String("component", "face-processor")),
		minConfidence: detCfg.MinConfidence,
		paddingRatio:  detCfg.PaddingRatio,
		cacheTTL:      detCfg.CacheDuration,
		blurKernel:    detCfg.BlurKernel,
		gateEnabled:   gate,
		lastStatus:    time.Now(),
	}
}

// GateEnabled reports whether the recognition gate is active.
func (p *FaceProcessor) GateEnabled() bool {
	return p.gateEnabled
}

// Process detects faces in the frame and blurs the non-consented ones in
// place. It returns the number of faces detected and the number blurred.
func (p *FaceProcessor) Process(ctx context.Context, frame *media.VideoFrame) (detected, blurred int, err error) {
	regions, err := p.regions(ctx, frame)
	if err != nil {
		return 0, 0, err
	}

	for _, r := range regions {
		if r.consented {
			continue
		}
		BlurROI(frame, r.rect, p.blurKernel)
		blurred++
	}

	p.maybeLogCacheStats()
	return len(regions), blurred, nil
}

// regions returns the blur regions for the frame, from cache when fresh.
func (p *FaceProcessor) regions(ctx context.Context, frame *media.VideoFrame) ([]blurRegion, error) {
	sizeChanged := !p.sizeKnown || frame.Width != p.lastW || frame.Height != p.lastH
	if !sizeChanged && time.Since(p.cachedAt) < p.cacheTTL {
		p.hits++
		metrics.IncDetectorCache("hit")
		return p.cached, nil
	}

	if sizeChanged {
		p.detector.SetInputSize(frame.Width, frame.Height)
		p.lastW = frame.Width
		p.lastH = frame.Height
		p.sizeKnown = true
		p.cached = nil
	}

	p.misses++
	metrics.IncDetectorCache("miss")

	start := time.Now()
	dets, err := p.detector.Detect(ctx, frame)
	if err != nil {
		// A failed detection invalidates the cache; stale rectangles must
		// not outlive their TTL just because the sidecar hiccupped.
		p.cached = nil
		p.cachedAt = time.Time{}
		return nil, fmt.Errorf("detecting faces: %w", err)
	}
	metrics.ObserveDetect(time.Since(start))

	regions := make([]blurRegion, 0, len(dets))
	for _, d := range dets {
		if d.Score < p.minConfidence {
			continue
		}

		r := blurRegion{rect: d.PaddedRect(p.paddingRatio, frame.Width, frame.Height)}
		if p.gateEnabled {
			r.consented, r.name = p.checkConsent(ctx, frame, d)
		}
		regions = append(regions, r)
	}

	p.cached = regions
	p.cachedAt = time.Now()
	return regions, nil
}

// checkConsent runs the recognition gate for one detection. Any failure is
// treated as "no consent": when in doubt, blur.
func (p *FaceProcessor) checkConsent(ctx context.Context, frame *media.VideoFrame, d Detection) (bool, string) {
	feature, err := p.recognizer.Feature(ctx, frame, d)
	if err != nil {
		p.logger.Debug("feature extraction failed, blurring face",
			slog.String("error", err.Error()))
		return false, ""
	}

	name, ok := p.consents.Match(feature)
	if !ok {
		return false, ""
	}

	p.logger.Debug("consented face passed through", slog.String("name", name))
	return true, name
}

// CacheStats returns lifetime cache hit and miss counts.
func (p *FaceProcessor) CacheStats() (hits, misses uint64) {
	return p.hits, p.misses
}

func (p *FaceProcessor) maybeLogCacheStats() {
	if time.Since(p.lastStatus) < cacheStatsInterval {
		return
	}
	p.lastStatus = time.Now()

	total := p.hits + p.misses
	if total == 0 {
		return
	}
	p.logger.Info("detector cache stats",
		slog.Uint64("hits", p.hits),
		slog.Uint64("misses", p.misses),
		slog.String("hit_rate", fmt.Sprintf("%.1f%%", float64(p.hits)/float64(total)*100)),
	)
}
