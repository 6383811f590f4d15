package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/veilcast/veilcast/internal/metrics"
)

// dropWarnEvery is the dropped-frame milestone that triggers a warning.
const dropWarnEvery = 1000

// Monitor periodically sweeps supervisor health, logs worker transitions,
// and escalates a persistently errored input worker to a fatal callback.
// Degraded downstream workers only degrade health; without the input worker
// there is no stream at all, so that one failure tears the process down.
type Monitor struct {
	sup      *Supervisor
	logger   *slog.Logger
	interval time.Duration

	inputErrorThreshold time.Duration
	onInputFatal        func(reason string)
	fatalFired          bool

	queueSource   func() []QueueStats
	lastHealthy   map[string]bool
	lastDropMarks map[string]uint64
}

// NewMonitor creates a health monitor sweeping at the given interval.
// onInputFatal is invoked at most once, when the input worker has been in
// the error state longer than inputErrorThreshold.
func NewMonitor(
	sup *Supervisor,
	interval time.Duration,
	inputErrorThreshold time.Duration,
	onInputFatal func(reason string),
	logger *slog.Logger,
) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		sup:                 sup,
		logger:              logger.With(slog.String("component", "monitor")),
		interval:            interval,
		inputErrorThreshold: inputErrorThreshold,
		onInputFatal:        onInputFatal,
		lastHealthy:         make(map[string]bool),
		lastDropMarks:       make(map[string]uint64),
	}
}

// SetQueueSource installs the function used to watch drop counters.
func (m *Monitor) SetQueueSource(fn func() []QueueStats) {
	m.queueSource = fn
}

// Run sweeps until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Monitor) sweep() {
	for _, w := range m.sup.Workers() {
		metrics.SetWorkerHealthy(w.Name, w.Healthy)

		last, seen := m.lastHealthy[w.Name]
		if seen && last && !w.Healthy {
			m.logger.Warn("worker unhealthy",
				slog.String("worker", w.Name),
				slog.String("state", w.State),
				slog.Time("last_heartbeat", w.LastHeartbeat),
			)
		}
		if seen && !last && w.Healthy {
			m.logger.Info("worker recovered", slog.String("worker", w.Name))
		}
		m.lastHealthy[w.Name] = w.Healthy
	}

	m.checkInputError()
	m.checkDropMilestones()
}

// checkInputError escalates when the input worker sits in the error state
// past the threshold.
func (m *Monitor) checkInputError() {
	if m.fatalFired || m.onInputFatal == nil {
		return
	}

	state, ok := m.sup.State(WorkerInput)
	if !ok || state != StateError {
		return
	}

	since, _ := m.sup.StateSince(WorkerInput)
	errored := time.Since(since)
	if errored < m.inputErrorThreshold {
		return
	}

	m.fatalFired = true
	m.logger.Error("input worker errored past threshold, shutting down",
		slog.Duration("errored_for", errored),
		slog.Duration("threshold", m.inputErrorThreshold),
	)
	m.onInputFatal("input worker errored past threshold")
}

// checkDropMilestones warns once per thousand frames dropped on a queue.
func (m *Monitor) checkDropMilestones() {
	if m.queueSource == nil {
		return
	}

	for _, q := range m.queueSource() {
		mark := m.lastDropMarks[q.Name]
		if q.Dropped/dropWarnEvery > mark/dropWarnEvery {
			m.logger.Warn("sustained frame drops",
				slog.String("queue", q.Name),
				slog.Uint64("dropped_total", q.Dropped),
			)
		}
		m.lastDropMarks[q.Name] = q.Dropped
	}
}
