package inference

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/veilcast/veilcast/internal/asr"
	"github.com/veilcast/veilcast/internal/config"
	"github.com/veilcast/veilcast/internal/httpclient"
)

// Transcriber calls the speech-to-text sidecar with WAV-wrapped utterances.
type Transcriber struct {
	cfg    config.TranscriptionConfig
	client *httpclient.Client
	logger *slog.Logger
}

type transcribeResponse struct {
	Segments []struct {
		Start float64 `json:"start"` // seconds
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// NewTranscriber creates a sidecar-backed transcriber.
func NewTranscriber(cfg config.TranscriptionConfig, logger *slog.Logger) *Transcriber {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "inference-transcriber"))
	return &Transcriber{
		cfg:    cfg,
		client: newSidecarClient(cfg.Timeout, logger),
		logger: logger,
	}
}

// Transcribe submits one utterance and returns its segments with
// timestamps relative to the utterance start.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, sampleRate int, opts asr.Options) ([]asr.Segment, error) {
	q := url.Values{}
	if opts.BeamSize > 0 {
		q.Set("beam_size", strconv.Itoa(opts.BeamSize))
	}
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	if t.cfg.Model != "" {
		q.Set("model", t.cfg.Model)
	}
	if t.cfg.CPUThreads > 0 {
		q.Set("cpu_threads", strconv.Itoa(t.cfg.CPUThreads))
	}

	body := encodeWAV(samples, sampleRate)
	resp, err := t.client.Post(ctx, endpointURL(t.cfg.Endpoint, "/v1/transcribe")+"?"+q.Encode(), "audio/wav", body)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}

	var out transcribeResponse
	if err := decodeResponse(resp, &out); err != nil {
		return nil, fmt.Errorf("transcription response: %w", err)
	}

	segs := make([]asr.Segment, 0, len(out.Segments))
	for _, s := range out.Segments {
		segs = append(segs, asr.Segment{
			Start: time.Duration(s.Start * float64(time.Second)),
			End:   time.Duration(s.End * float64(time.Second)),
			Text:  s.Text,
		})
	}
	return segs, nil
}
