package pipeline

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Names of the pipeline workers registered with the supervisor.
const (
	WorkerInput      = "input"
	WorkerVideo      = "video"
	WorkerAudio      = "audio"
	WorkerVAD        = "vad"
	WorkerTranscribe = "transcription"
	WorkerOutput     = "output"
)

// Supervisor tracks the state and heartbeat of every registered worker.
// Workers report their own transitions; the supervisor only observes, so a
// wedged worker can never block another worker's reporting path.
type Supervisor struct {
	heartbeatTimeout time.Duration
	logger           *slog.Logger

	mu      sync.RWMutex
	workers map[string]*workerEntry
}

type workerEntry struct {
	state         WorkerState
	stateSince    time.Time
	lastHeartbeat time.Time
}

// WorkerStatus is a point-in-time view of one worker.
type WorkerStatus struct {
	Name          string    `json:"name"`
	State         string    `json:"state"`
	StateSince    time.Time `json:"state_since"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Healthy       bool      `json:"healthy"`
}

// NewSupervisor creates a supervisor. Workers whose heartbeat is older than
// heartbeatTimeout are reported unhealthy.
func NewSupervisor(heartbeatTimeout time.Duration, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		heartbeatTimeout: heartbeatTimeout,
		logger:           logger.With(slog.String("component", "supervisor")),
		workers:          make(map[string]*workerEntry),
	}
}

// Register adds a worker in the idle state. Registering an existing name
// resets its entry; this happens when a worker is rebuilt after a restart.
func (s *Supervisor) Register(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.workers[name] = &workerEntry{
		state:         StateIdle,
		stateSince:    now,
		lastHeartbeat: now,
	}
}

// UpdateState records a state transition for the named worker. Transitions
// also count as a heartbeat. Unknown names are ignored.
func (s *Supervisor) UpdateState(name string, state WorkerState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.workers[name]
	if !ok {
		return
	}
	if entry.state == state {
		return
	}

	s.logger.Debug("worker state changed",
		slog.String("worker", name),
		slog.String("from", entry.state.String()),
		slog.String("to", state.String()),
	)

	now := time.Now()
	entry.state = state
	entry.stateSince = now
	entry.lastHeartbeat = now
}

// Heartbeat stamps the named worker as alive. Unknown names are ignored.
func (s *Supervisor) Heartbeat(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.workers[name]; ok {
		entry.lastHeartbeat = time.Now()
	}
}

// State returns the current state of the named worker.
func (s *Supervisor) State(name string) (WorkerState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.workers[name]
	if !ok {
		return StateIdle, false
	}
	return entry.state, true
}

// StateSince returns when the named worker entered its current state.
func (s *Supervisor) StateSince(name string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.workers[name]
	if !ok {
		return time.Time{}, false
	}
	return entry.stateSince, true
}

// IsHealthy reports whether the named worker heartbeated within the timeout
// and is in a live state. Stopped and errored workers are never healthy.
func (s *Supervisor) IsHealthy(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.workers[name]
	if !ok {
		return false
	}
	return s.entryHealthy(entry)
}

// AllHealthy reports whether every registered worker is healthy.
func (s *Supervisor) AllHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.workers {
		if !s.entryHealthy(entry) {
			return false
		}
	}
	return true
}

func (s *Supervisor) entryHealthy(entry *workerEntry) bool {
	if entry.state == StateError || entry.state == StateStopped {
		return false
	}
	return time.Since(entry.lastHeartbeat) < s.heartbeatTimeout
}

// Workers returns a snapshot of all registered workers, sorted by name.
func (s *Supervisor) Workers() []WorkerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]WorkerStatus, 0, len(s.workers))
	for name, entry := range s.workers {
		out = append(out, WorkerStatus{
			Name:          name,
			State:         entry.state.String(),
			StateSince:    entry.stateSince,
			LastHeartbeat: entry.lastHeartbeat,
			Healthy:       s.entryHealthy(entry),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AwaitStopped blocks until every worker reaches a terminal state (stopped
// or errored) or the timeout elapses. Workers still live at the deadline are
// marked errored and reported so the caller can exit anyway.
func (s *Supervisor) AwaitStopped(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		if s.allTerminal() {
			return nil
		}
		if time.Now().After(deadline) {
			stuck := s.markStuck()
			return fmt.Errorf("workers did not stop within %s: %s",
				timeout, strings.Join(stuck, ", "))
		}
		<-ticker.C
	}
}

func (s *Supervisor) allTerminal() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.workers {
		if entry.state != StateStopped && entry.state != StateError {
			return false
		}
	}
	return true
}

// markStuck flags every non-terminal worker as errored and returns their
// names sorted.
func (s *Supervisor) markStuck() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stuck []string
	now := time.Now()
	for name, entry := range s.workers {
		if entry.state != StateStopped && entry.state != StateError {
			stuck = append(stuck, name)
			entry.state = StateError
			entry.stateSince = now
			s.logger.Error("worker unresponsive during shutdown",
				slog.String("worker", name))
		}
	}
	sort.Strings(stuck)
	return stuck
}
