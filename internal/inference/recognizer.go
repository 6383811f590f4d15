package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/veilcast/veilcast/internal/config"
	"github.com/veilcast/veilcast/internal/httpclient"
	"github.com/veilcast/veilcast/internal/media"
	"github.com/veilcast/veilcast/internal/vision"
)

// Recognizer calls the face-recognition sidecar. The sidecar aligns the
// face from the submitted landmarks and returns the embedding.
type Recognizer struct {
	cfg    config.RecognizerConfig
	client *httpclient.Client
	logger *slog.Logger
}

type embedRequest struct {
	Image     string       `json:"image"` // base64 JPEG
	Box       embedBox     `json:"box"`
	Landmarks [][2]float64 `json:"landmarks,omitempty"`
}

type embedBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type embedResponse struct {
	Feature []float32 `json:"feature"`
}

// NewRecognizer creates a sidecar-backed recognizer.
func NewRecognizer(cfg config.RecognizerConfig, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "inference-recognizer"))
	return &Recognizer{
		cfg:    cfg,
		client: newSidecarClient(cfg.Timeout, logger),
		logger: logger,
	}
}

// Feature returns the embedding for the detected face.
func (r *Recognizer) Feature(ctx context.Context, frame *media.VideoFrame, det vision.Detection) ([]float32, error) {
	jpg, err := encodeFrameJPEG(frame, jpegQuality)
	if err != nil {
		return nil, fmt.Errorf("preparing embedding request: %w", err)
	}

	req := embedRequest{
		Image: base64.StdEncoding.EncodeToString(jpg),
		Box:   embedBox{X: det.X, Y: det.Y, W: det.W, H: det.H},
	}
	for _, lm := range det.Landmarks {
		req.Landmarks = append(req.Landmarks, [2]float64{lm.X, lm.Y})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding embedding request: %w", err)
	}

	resp, err := r.client.Post(ctx, endpointURL(r.cfg.Endpoint, "/v1/embed"), "application/json", body)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}

	var out embedResponse
	if err := decodeResponse(resp, &out); err != nil {
		return nil, fmt.Errorf("embedding response: %w", err)
	}
	if len(out.Feature) == 0 {
		return nil, fmt.Errorf("sidecar returned empty feature vector")
	}
	return out.Feature, nil
}
