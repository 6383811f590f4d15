package pipeline

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestMonitor_LogsHealthTransitions(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	sup := NewSupervisor(time.Minute, testLogger())
	sup.Register(WorkerVideo)
	sup.UpdateState(WorkerVideo, StateRunning)

	m := NewMonitor(sup, time.Second, time.Minute, nil, logger)

	// First sweep records the baseline without logging a transition.
	m.sweep()
	if strings.Contains(buf.String(), "worker unhealthy") {
		t.Error("baseline sweep should not log a transition")
	}

	sup.UpdateState(WorkerVideo, StateError)
	m.sweep()
	if !strings.Contains(buf.String(), "worker unhealthy") {
		t.Error("expected unhealthy transition log")
	}

	buf.Reset()
	sup.Register(WorkerVideo)
	sup.UpdateState(WorkerVideo, StateRunning)
	m.sweep()
	if !strings.Contains(buf.String(), "worker recovered") {
		t.Error("expected recovery transition log")
	}
}

func TestMonitor_InputErrorEscalation(t *testing.T) {
	sup := NewSupervisor(time.Minute, testLogger())
	sup.Register(WorkerInput)
	sup.UpdateState(WorkerInput, StateError)

	fired := 0
	m := NewMonitor(sup, time.Second, time.Millisecond, func(reason string) {
		fired++
	}, testLogger())

	time.Sleep(5 * time.Millisecond)
	m.sweep()
	if fired != 1 {
		t.Fatalf("expected fatal callback once, fired %d times", fired)
	}

	// The callback never fires twice.
	m.sweep()
	if fired != 1 {
		t.Errorf("fatal callback should fire at most once, fired %d times", fired)
	}
}

func TestMonitor_InputErrorBelowThreshold(t *testing.T) {
	sup := NewSupervisor(time.Minute, testLogger())
	sup.Register(WorkerInput)
	sup.UpdateState(WorkerInput, StateError)

	fired := false
	m := NewMonitor(sup, time.Second, time.Hour, func(string) { fired = true }, testLogger())

	m.sweep()
	if fired {
		t.Error("fatal callback must not fire before the threshold elapses")
	}
}

func TestMonitor_RunningInputDoesNotEscalate(t *testing.T) {
	sup := NewSupervisor(time.Minute, testLogger())
	sup.Register(WorkerInput)
	sup.UpdateState(WorkerInput, StateRunning)

	fired := false
	m := NewMonitor(sup, time.Second, 0, func(string) { fired = true }, testLogger())

	time.Sleep(2 * time.Millisecond)
	m.sweep()
	if fired {
		t.Error("a running input worker must not trigger the fatal callback")
	}
}

func TestMonitor_DropMilestones(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	sup := NewSupervisor(time.Minute, testLogger())
	m := NewMonitor(sup, time.Second, time.Minute, nil, logger)

	dropped := uint64(0)
	m.SetQueueSource(func() []QueueStats {
		return []QueueStats{{Name: "video", Cap: 60, Dropped: dropped}}
	})

	// Below the first milestone: quiet.
	dropped = 900
	m.sweep()
	if strings.Contains(buf.String(), "sustained frame drops") {
		t.Error("no warning expected below the first milestone")
	}

	// Crossing 1000 warns once.
	dropped = 1500
	m.sweep()
	if !strings.Contains(buf.String(), "sustained frame drops") {
		t.Error("expected a warning after crossing the milestone")
	}

	// No repeat warning within the same milestone band.
	buf.Reset()
	dropped = 1900
	m.sweep()
	if strings.Contains(buf.String(), "sustained frame drops") {
		t.Error("warning should not repeat within a milestone band")
	}

	// Next milestone warns again.
	dropped = 2100
	m.sweep()
	if !strings.Contains(buf.String(), "sustained frame drops") {
		t.Error("expected a warning at the next milestone")
	}
}
