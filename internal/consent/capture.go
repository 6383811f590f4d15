package consent

import (
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/veilcast/veilcast/internal/config"
	"github.com/veilcast/veilcast/internal/media"
	"github.com/veilcast/veilcast/internal/vision"
)

// capturePadding is the padding ratio applied around the detected face
// before cropping a consent image. Wider than the blur padding so the
// saved capture keeps enough context for later recognition.
const capturePadding = 0.10

// CaptureRequest is a one-shot armed capture. Arming records the name to
// associate with the next frame containing at least one face; the video
// worker consumes the request with Take.
type CaptureRequest struct {
	mu    sync.Mutex
	name  string
	armed bool
}

// Arm requests that the next suitable frame be saved as a consent image
// for name. A newer request replaces a pending one.
func (r *CaptureRequest) Arm(name string) {
	r.mu.Lock()
	r.name = name
	r.armed = true
	r.mu.Unlock()
}

// Take consumes a pending request, returning the armed name. Reports
// false when nothing is armed.
func (r *CaptureRequest) Take() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.armed {
		return "", false
	}
	r.armed = false
	return r.name, true
}

// Armed reports whether a capture is pending, without consuming it.
func (r *CaptureRequest) Armed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.armed
}

// Capturer writes consent images into the consent directory. The crop is
// the largest detected face padded by 10%, encoded as JPEG.
type Capturer struct {
	dir       string
	quality   int
	logger    *slog.Logger
	now       func() time.Time
	onCapture func(name, path string)
}

// OnCapture installs a callback invoked after every successful capture.
// Must be set before the pipeline starts.
func (c *Capturer) OnCapture(fn func(name, path string)) {
	c.onCapture = fn
}

// NewCapturer creates a capturer writing into the configured consent
// directory.
func NewCapturer(cfg config.ConsentConfig, logger *slog.Logger) *Capturer {
	if logger == nil {
		logger = slog.Default()
	}
	quality := cfg.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = 95
	}
	return &Capturer{
		dir:     cfg.Dir,
		quality: quality,
		logger:  logger.With(slog.String("component", "consent-capture")),
		now:     time.Now,
	}
}

// Capture crops the largest face out of frame and writes it as a consent
// image for name. Returns the written path.
func (c *Capturer) Capture(frame *media.VideoFrame, detections []vision.Detection, name string) (string, error) {
	if len(detections) == 0 {
		return "", fmt.Errorf("no face in frame for consent capture")
	}

	best := detections[0]
	for _, d := range detections[1:] {
		if d.Area() > best.Area() {
			best = d
		}
	}

	roi := best.PaddedRect(capturePadding, frame.Width, frame.Height)
	img := imageFromFrame(frame, image.Rect(roi.X, roi.Y, roi.X+roi.W, roi.Y+roi.H))

	safe := SanitizeName(name)
	path := filepath.Join(c.dir, FormatFilename(c.now(), safe))

	if err := writeJPEG(path, img, c.quality); err != nil {
		return "", fmt.Errorf("writing consent image: %w", err)
	}

	c.logger.Info("consent image captured",
		slog.String("name", safe),
		slog.String("path", path),
		slog.Int("width", roi.W),
		slog.Int("height", roi.H),
	)
	if c.onCapture != nil {
		c.onCapture(safe, path)
	}
	return path, nil
}
