package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// CaptureArmer arms a one-shot consent capture for the next frame with a
// face. Satisfied by the pipeline runtime.
type CaptureArmer interface {
	ArmCapture(name string)
}

// CaptureHandler handles consent capture triggers.
type CaptureHandler struct {
	armer  CaptureArmer
	logger *slog.Logger
}

// NewCaptureHandler creates a new capture handler.
func NewCaptureHandler(armer CaptureArmer, logger *slog.Logger) *CaptureHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptureHandler{
		armer:  armer,
		logger: logger.With(slog.String("component", "capture-api")),
	}
}

// TriggerCaptureInput is the input for the capture trigger endpoint.
type TriggerCaptureInput struct {
	Body struct {
		Name string `json:"name,omitempty" maxLength:"255" doc:"Subject name; omitted names are saved as unknown"`
	}
}

// TriggerCaptureOutput is the output for the capture trigger endpoint.
type TriggerCaptureOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

// Register registers the capture routes with the API.
func (h *CaptureHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "triggerCapture",
		Method:      http.MethodPost,
		Path:        "/api/v1/capture",
		Summary:     "Trigger consent capture",
		Description: "Arms a one-shot capture: the next frame containing a face is cropped and saved as a consent image",
		Tags:        []string{"Consents"},
	}, h.TriggerCapture)
}

// TriggerCapture arms the video worker's capture flag.
func (h *CaptureHandler) TriggerCapture(_ context.Context, input *TriggerCaptureInput) (*TriggerCaptureOutput, error) {
	h.armer.ArmCapture(input.Body.Name)
	h.logger.Info("consent capture armed", slog.String("name", input.Body.Name))

	out := &TriggerCaptureOutput{}
	out.Body.Message = "Capture armed"
	return out, nil
}
