package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/veilcast/veilcast/internal/pipeline"
)

// StatusProvider reports the live pipeline state. Satisfied by the pipeline
// runtime.
type StatusProvider interface {
	Status() pipeline.Status
}

// StatusHandler handles the pipeline status endpoint.
type StatusHandler struct {
	provider StatusProvider
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(provider StatusProvider) *StatusHandler {
	return &StatusHandler{provider: provider}
}

// GetStatusInput is the input for the status endpoint.
type GetStatusInput struct{}

// GetStatusOutput is the output for the status endpoint.
type GetStatusOutput struct {
	Body pipeline.Status
}

// Register registers the status route with the API.
func (h *StatusHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getStatus",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Pipeline status",
		Description: "Returns connection state, worker states, queue depths and throughput",
		Tags:        []string{"System"},
	}, h.GetStatus)
}

// GetStatus returns the live pipeline status.
func (h *StatusHandler) GetStatus(_ context.Context, _ *GetStatusInput) (*GetStatusOutput, error) {
	return &GetStatusOutput{Body: h.provider.Status()}, nil
}
