package pipeline

import (
	"sync"
	"time"

	"github.com/veilcast/veilcast/internal/media"
)

// WorkerState represents the lifecycle state of a pipeline worker.
type WorkerState int

const (
	// StateIdle means the worker is registered but not yet running.
	StateIdle WorkerState = iota
	// StateRunning means the worker loop is active.
	StateRunning
	// StateStopping means shutdown was requested and cleanup is in progress.
	StateStopping
	// StateStopped means the worker loop has exited cleanly.
	StateStopped
	// StateError means the worker aborted and will not recover on its own.
	StateError
)

func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ConnectionState tracks whether the ingest and publish endpoints are
// connected, plus the stream metadata discovered at connect time. All
// mutation goes through its methods; readers get consistent snapshots.
type ConnectionState struct {
	mu sync.RWMutex

	inputConnected    bool
	outputConnected   bool
	inputConnectTime  time.Time
	outputConnectTime time.Time
	metadata          map[string]any
	streamInfo        *media.StreamInfo
}

// NewConnectionState creates an empty connection state.
func NewConnectionState() *ConnectionState {
	return &ConnectionState{
		metadata: make(map[string]any),
	}
}

// SetInputConnected records the ingest side coming up or down. Connecting
// stamps the connect time; disconnecting clears the stream metadata, which
// belongs to the session that just ended.
func (c *ConnectionState) SetInputConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inputConnected = connected
	if connected {
		c.inputConnectTime = time.Now()
	} else {
		c.metadata = make(map[string]any)
		c.streamInfo = nil
	}
}

// SetStreamInfo records the current input session's stream properties. The
// output worker reads them when opening the publish side.
func (c *ConnectionState) SetStreamInfo(info *media.StreamInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if info == nil {
		c.streamInfo = nil
		return
	}
	cp := *info
	c.streamInfo = &cp
}

// StreamInfo returns a copy of the current session's stream properties, or
// nil when no session is active.
func (c *ConnectionState) StreamInfo() *media.StreamInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.streamInfo == nil {
		return nil
	}
	cp := *c.streamInfo
	return &cp
}

// SetOutputConnected records the publish side coming up or down.
func (c *ConnectionState) SetOutputConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.outputConnected = connected
	if connected {
		c.outputConnectTime = time.Now()
	}
}

// InputConnected reports whether the ingest side is up.
func (c *ConnectionState) InputConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inputConnected
}

// OutputConnected reports whether the publish side is up.
func (c *ConnectionState) OutputConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.outputConnected
}

// SetMetadata merges stream properties discovered by the input worker
// (codec, resolution, frame rate) into the current session's metadata.
func (c *ConnectionState) SetMetadata(meta map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range meta {
		c.metadata[k] = v
	}
}

// Metadata returns a copy of the current stream metadata.
func (c *ConnectionState) Metadata() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		out[k] = v
	}
	return out
}

// Snapshot returns a consistent copy of the full connection state.
func (c *ConnectionState) Snapshot() ConnectionSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	meta := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		meta[k] = v
	}

	return ConnectionSnapshot{
		InputConnected:    c.inputConnected,
		OutputConnected:   c.outputConnected,
		InputConnectTime:  c.inputConnectTime,
		OutputConnectTime: c.outputConnectTime,
		Metadata:          meta,
	}
}

// ConnectionSnapshot is a point-in-time copy of ConnectionState.
type ConnectionSnapshot struct {
	InputConnected    bool           `json:"input_connected"`
	OutputConnected   bool           `json:"output_connected"`
	InputConnectTime  time.Time      `json:"input_connect_time"`
	OutputConnectTime time.Time      `json:"output_connect_time"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}
