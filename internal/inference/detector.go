package inference

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"

	"github.com/veilcast/veilcast/internal/config"
	"github.com/veilcast/veilcast/internal/httpclient"
	"github.com/veilcast/veilcast/internal/media"
	"github.com/veilcast/veilcast/internal/vision"
)

// Detector calls the face-detection sidecar. Frames go over as JPEG; the
// sidecar answers with scored boxes and five-point landmarks in the
// submitted image's coordinate space.
type Detector struct {
	cfg    config.DetectorConfig
	client *httpclient.Client
	logger *slog.Logger

	mu     sync.Mutex
	width  int
	height int
}

type detectResponse struct {
	Faces []struct {
		X         int          `json:"x"`
		Y         int          `json:"y"`
		W         int          `json:"w"`
		H         int          `json:"h"`
		Score     float64      `json:"score"`
		Landmarks [][2]float64 `json:"landmarks"`
	} `json:"faces"`
}

// NewDetector creates a sidecar-backed detector.
func NewDetector(cfg config.DetectorConfig, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "inference-detector"))
	return &Detector{
		cfg:    cfg,
		client: newSidecarClient(cfg.Timeout, logger),
		logger: logger,
	}
}

// SetInputSize records the expected frame dimensions. The sidecar is
// stateless; the size rides along on each request so the server can keep
// its model input resized to match.
func (d *Detector) SetInputSize(w, h int) {
	d.mu.Lock()
	d.width, d.height = w, h
	d.mu.Unlock()
}

// Detect submits the frame and returns the sidecar's detections mapped
// back to the frame's coordinate space.
func (d *Detector) Detect(ctx context.Context, frame *media.VideoFrame) ([]vision.Detection, error) {
	scaled, factor := scaleFrame(frame, d.cfg.MaxSide)

	body, err := encodeFrameJPEG(scaled, jpegQuality)
	if err != nil {
		return nil, fmt.Errorf("preparing detection request: %w", err)
	}

	q := url.Values{}
	q.Set("width", strconv.Itoa(scaled.Width))
	q.Set("height", strconv.Itoa(scaled.Height))
	q.Set("score_threshold", strconv.FormatFloat(d.cfg.ScoreThreshold, 'f', -1, 64))
	q.Set("nms_threshold", strconv.FormatFloat(d.cfg.NMSThreshold, 'f', -1, 64))
	if d.cfg.TopK > 0 {
		q.Set("top_k", strconv.Itoa(d.cfg.TopK))
	}

	resp, err := d.client.Post(ctx, endpointURL(d.cfg.Endpoint, "/v1/detect")+"?"+q.Encode(), "image/jpeg", body)
	if err != nil {
		return nil, fmt.Errorf("detection request: %w", err)
	}

	var out detectResponse
	if err := decodeResponse(resp, &out); err != nil {
		return nil, fmt.Errorf("detection response: %w", err)
	}

	dets := make([]vision.Detection, 0, len(out.Faces))
	for _, f := range out.Faces {
		det := vision.Detection{
			X:     int(float64(f.X) * factor),
			Y:     int(float64(f.Y) * factor),
			W:     int(float64(f.W) * factor),
			H:     int(float64(f.H) * factor),
			Score: f.Score,
		}
		for _, lm := range f.Landmarks {
			det.Landmarks = append(det.Landmarks, vision.Point{
				X: lm[0] * factor,
				Y: lm[1] * factor,
			})
		}
		dets = append(dets, det)
	}
	return dets, nil
}
