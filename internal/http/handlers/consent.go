// Package handlers provides control API handlers for veilcast.
package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/veilcast/veilcast/internal/consent"
)

// ConsentHandler exposes the consent directory over the control API. The
// directory stays the source of truth; the handler never touches the
// in-memory recognition database directly, it only reads and deletes files
// and lets the consent manager observe the changes.
type ConsentHandler struct {
	manager *consent.Manager
	logger  *slog.Logger
}

// NewConsentHandler creates a new consent handler.
func NewConsentHandler(manager *consent.Manager, logger *slog.Logger) *ConsentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsentHandler{
		manager: manager,
		logger:  logger.With(slog.String("component", "consent-api")),
	}
}

// ConsentResponse is one consent capture in API responses.
type ConsentResponse struct {
	ID   string `json:"id" doc:"Filename stem, used as the consent identifier"`
	Name string `json:"name" doc:"Normalized subject name"`
	Time int64  `json:"time" doc:"Capture time as unix seconds"`
}

// ListConsentsInput is the input for the consent list endpoint.
type ListConsentsInput struct{}

// ListConsentsOutput is the output for the consent list endpoint.
type ListConsentsOutput struct {
	Body struct {
		Consents []ConsentResponse `json:"consents"`
	}
}

// DeleteConsentInput is the input for the consent revoke endpoint.
type DeleteConsentInput struct {
	ID string `path:"id" doc:"Consent identifier (filename stem)"`
}

// DeleteConsentOutput is the output for the consent revoke endpoint.
type DeleteConsentOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

// Register registers the consent routes with the API.
func (h *ConsentHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listConsents",
		Method:      http.MethodGet,
		Path:        "/api/v1/consents",
		Summary:     "List consents",
		Description: "Lists all consent captures in the consent directory, newest first",
		Tags:        []string{"Consents"},
	}, h.ListConsents)

	huma.Register(api, huma.Operation{
		OperationID: "deleteConsent",
		Method:      http.MethodDelete,
		Path:        "/api/v1/consents/{id}",
		Summary:     "Revoke consent",
		Description: "Deletes the consent capture; the person is blurred again once the manager observes the deletion",
		Tags:        []string{"Consents"},
	}, h.DeleteConsent)
}

// RegisterImageServer registers the raw JPEG route on the router. Served
// outside huma so the bytes go out unwrapped.
func (h *ConsentHandler) RegisterImageServer(router chi.Router) {
	router.Get("/api/v1/consents/{id}/image", h.ServeImage)
}

// ListConsents lists the consent directory, newest capture first.
func (h *ConsentHandler) ListConsents(_ context.Context, _ *ListConsentsInput) (*ListConsentsOutput, error) {
	entries, err := os.ReadDir(h.manager.Dir())
	if err != nil {
		return nil, huma.Error500InternalServerError("reading consent directory", err)
	}

	consents := make([]ConsentResponse, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".jpg") {
			continue
		}
		capture, err := consent.ParseFilename(entry.Name())
		if err != nil {
			h.logger.Warn("skipping consent file with unparseable name",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()))
			continue
		}
		consents = append(consents, ConsentResponse{
			ID:   strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Name: capture.Name,
			Time: capture.Time.Unix(),
		})
	}

	sort.Slice(consents, func(i, j int) bool {
		return consents[i].Time > consents[j].Time
	})

	out := &ListConsentsOutput{}
	out.Body.Consents = consents
	return out, nil
}

// DeleteConsent removes the consent capture file.
func (h *ConsentHandler) DeleteConsent(_ context.Context, input *DeleteConsentInput) (*DeleteConsentOutput, error) {
	path, err := h.manager.ResolveID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid consent id")
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, huma.Error404NotFound("consent not found")
		}
		return nil, huma.Error500InternalServerError("checking consent file", err)
	}

	if err := os.Remove(path); err != nil {
		return nil, huma.Error500InternalServerError("deleting consent file", err)
	}

	h.logger.Info("consent revoked via API", slog.String("id", input.ID))

	out := &DeleteConsentOutput{}
	out.Body.Message = "Successfully revoked consent for " + input.ID
	return out, nil
}

// ServeImage serves the raw JPEG bytes of a consent capture.
func (h *ConsentHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	path, err := h.manager.ResolveID(id)
	if err != nil {
		http.Error(w, "invalid consent id", http.StatusBadRequest)
		return
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "consent not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to read consent image", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := io.Copy(w, file); err != nil {
		h.logger.Debug("consent image write aborted",
			slog.String("id", id),
			slog.String("error", err.Error()))
	}
}
