// Package inference adapts the HTTP model sidecars (face detection, face
// recognition, speech-to-text) to the interfaces the pipeline consumes.
// Each adapter owns a resilient HTTP client; a sidecar outage surfaces as
// per-call errors the workers already know how to absorb.
package inference

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/veilcast/veilcast/internal/httpclient"
)

const defaultTimeout = 10 * time.Second

// maxErrorBody bounds how much of a sidecar error response gets folded
// into the returned error.
const maxErrorBody = 512

func newSidecarClient(timeout time.Duration, logger *slog.Logger) *httpclient.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = timeout
	cfg.RetryAttempts = 1
	cfg.RetryDelay = 100 * time.Millisecond
	cfg.Logger = logger
	return httpclient.New(cfg)
}

// decodeResponse reads an HTTP response into out, converting non-2xx
// statuses into errors carrying the sidecar's message.
func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("sidecar returned %d: %s", resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding sidecar response: %w", err)
	}
	return nil
}

func endpointURL(endpoint, path string) string {
	return strings.TrimRight(endpoint, "/") + path
}
