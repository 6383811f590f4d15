package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/veilcast/veilcast/internal/models"
	"github.com/veilcast/veilcast/internal/repository"
	"github.com/veilcast/veilcast/pkg/duration"
)

// defaultTranscriptLimit bounds the transcript listing when the client does
// not ask for a specific count.
const defaultTranscriptLimit = 50

// TranscriptHandler handles transcript listing endpoints.
type TranscriptHandler struct {
	repo repository.TranscriptRepository
}

// NewTranscriptHandler creates a new transcript handler.
func NewTranscriptHandler(repo repository.TranscriptRepository) *TranscriptHandler {
	return &TranscriptHandler{repo: repo}
}

// TranscriptResponse is one transcript line in API responses.
type TranscriptResponse struct {
	ID        string    `json:"id"`
	StartMs   int64     `json:"start_ms" doc:"Segment start, milliseconds of stream time"`
	EndMs     int64     `json:"end_ms" doc:"Segment end, milliseconds of stream time"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ListTranscriptsInput is the input for the transcript list endpoint.
type ListTranscriptsInput struct {
	Limit int    `query:"limit" minimum:"1" maximum:"1000" required:"false" doc:"Maximum number of lines to return"`
	Since string `query:"since" required:"false" doc:"Only lines recorded within this window, as a duration (\"15m\") or relative expression (\"2 hours ago\")"`
}

// ListTranscriptsOutput is the output for the transcript list endpoint.
type ListTranscriptsOutput struct {
	Body struct {
		Transcripts []TranscriptResponse `json:"transcripts"`
	}
}

// Register registers the transcript routes with the API.
func (h *TranscriptHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listTranscripts",
		Method:      http.MethodGet,
		Path:        "/api/v1/transcripts",
		Summary:     "List transcripts",
		Description: "Lists recent transcription segments, newest first",
		Tags:        []string{"Transcripts"},
	}, h.ListTranscripts)
}

// ListTranscripts lists recent transcription segments.
func (h *TranscriptHandler) ListTranscripts(ctx context.Context, input *ListTranscriptsInput) (*ListTranscriptsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultTranscriptLimit
	}

	var transcripts []*models.Transcript
	var err error
	if input.Since != "" {
		cutoff, perr := parseSince(input.Since)
		if perr != nil {
			return nil, huma.Error400BadRequest("invalid since value", perr)
		}
		transcripts, err = h.repo.GetCreatedSince(ctx, cutoff, limit)
	} else {
		transcripts, err = h.repo.GetRecent(ctx, limit)
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("listing transcripts", err)
	}

	out := &ListTranscriptsOutput{}
	out.Body.Transcripts = make([]TranscriptResponse, 0, len(transcripts))
	for _, tr := range transcripts {
		out.Body.Transcripts = append(out.Body.Transcripts, TranscriptResponse{
			ID:        tr.ID.String(),
			StartMs:   tr.StartMs,
			EndMs:     tr.EndMs,
			Text:      tr.Text,
			CreatedAt: tr.CreatedAt,
		})
	}
	return out, nil
}

// parseSince turns a window spec into a cutoff time. A bare duration like
// "15m" means that far back; anything else goes through the relative
// expression parser ("2 hours ago").
func parseSince(s string) (time.Time, error) {
	if d, err := duration.Parse(s); err == nil {
		return time.Now().Add(-d), nil
	}
	return duration.ParseRelative(s)
}
