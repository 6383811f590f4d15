package pipeline

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSupervisor_RegisterAndState(t *testing.T) {
	sup := NewSupervisor(30*time.Second, testLogger())

	sup.Register("input")

	state, ok := sup.State("input")
	if !ok {
		t.Fatal("registered worker not found")
	}
	if state != StateIdle {
		t.Errorf("expected idle after register, got %v", state)
	}

	if _, ok := sup.State("ghost"); ok {
		t.Error("unknown worker should not be found")
	}
}

func TestSupervisor_UpdateState(t *testing.T) {
	sup := NewSupervisor(30*time.Second, testLogger())
	sup.Register("video")

	sup.UpdateState("video", StateRunning)

	state, _ := sup.State("video")
	if state != StateRunning {
		t.Errorf("expected running, got %v", state)
	}

	// Updating an unregistered worker is a no-op.
	sup.UpdateState("ghost", StateRunning)
	if _, ok := sup.State("ghost"); ok {
		t.Error("UpdateState must not create workers")
	}
}

func TestSupervisor_IsHealthy(t *testing.T) {
	sup := NewSupervisor(50*time.Millisecond, testLogger())
	sup.Register("audio")
	sup.UpdateState("audio", StateRunning)

	if !sup.IsHealthy("audio") {
		t.Error("running worker with fresh heartbeat should be healthy")
	}

	// A stale heartbeat makes the worker unhealthy even while running.
	time.Sleep(70 * time.Millisecond)
	if sup.IsHealthy("audio") {
		t.Error("worker with stale heartbeat should be unhealthy")
	}

	sup.Heartbeat("audio")
	if !sup.IsHealthy("audio") {
		t.Error("heartbeat should restore health")
	}
}

func TestSupervisor_TerminalStatesAreUnhealthy(t *testing.T) {
	sup := NewSupervisor(time.Minute, testLogger())
	sup.Register("video")

	sup.UpdateState("video", StateError)
	if sup.IsHealthy("video") {
		t.Error("errored worker should be unhealthy regardless of heartbeat")
	}

	sup.UpdateState("video", StateStopped)
	if sup.IsHealthy("video") {
		t.Error("stopped worker should be unhealthy regardless of heartbeat")
	}
}

func TestSupervisor_IsHealthy_Unknown(t *testing.T) {
	sup := NewSupervisor(time.Minute, testLogger())
	if sup.IsHealthy("ghost") {
		t.Error("unknown worker should not be healthy")
	}
}

func TestSupervisor_AllHealthy(t *testing.T) {
	sup := NewSupervisor(time.Minute, testLogger())
	sup.Register("input")
	sup.Register("output")
	sup.UpdateState("input", StateRunning)
	sup.UpdateState("output", StateRunning)

	if !sup.AllHealthy() {
		t.Error("all running workers should report healthy")
	}

	sup.UpdateState("output", StateError)
	if sup.AllHealthy() {
		t.Error("one errored worker should make AllHealthy false")
	}
}

func TestSupervisor_Workers(t *testing.T) {
	sup := NewSupervisor(time.Minute, testLogger())
	sup.Register("video")
	sup.Register("audio")
	sup.UpdateState("video", StateRunning)

	workers := sup.Workers()
	if len(workers) != 2 {
		t.Fatalf("expected 2 workers, got %d", len(workers))
	}

	// Sorted by name.
	if workers[0].Name != "audio" || workers[1].Name != "video" {
		t.Errorf("expected sorted order [audio video], got [%s %s]",
			workers[0].Name, workers[1].Name)
	}
	if workers[1].State != "running" {
		t.Errorf("expected video state running, got %q", workers[1].State)
	}
	if !workers[1].Healthy {
		t.Error("running worker should be healthy in snapshot")
	}
}

func TestSupervisor_AwaitStopped(t *testing.T) {
	sup := NewSupervisor(time.Minute, testLogger())
	sup.Register("input")
	sup.Register("video")
	sup.UpdateState("input", StateRunning)
	sup.UpdateState("video", StateRunning)

	go func() {
		time.Sleep(30 * time.Millisecond)
		sup.UpdateState("input", StateStopped)
		sup.UpdateState("video", StateStopped)
	}()

	if err := sup.AwaitStopped(time.Second); err != nil {
		t.Errorf("AwaitStopped should succeed once workers stop: %v", err)
	}
}

func TestSupervisor_AwaitStopped_ErroredWorkerIsTerminal(t *testing.T) {
	sup := NewSupervisor(time.Minute, testLogger())
	sup.Register("video")
	sup.UpdateState("video", StateError)

	if err := sup.AwaitStopped(100 * time.Millisecond); err != nil {
		t.Errorf("an errored worker should not block shutdown: %v", err)
	}
}

func TestSupervisor_AwaitStopped_MarksStuckWorkers(t *testing.T) {
	sup := NewSupervisor(time.Minute, testLogger())
	sup.Register("input")
	sup.Register("video")
	sup.UpdateState("input", StateStopped)
	sup.UpdateState("video", StateRunning)

	err := sup.AwaitStopped(50 * time.Millisecond)
	if err == nil {
		t.Fatal("expected error for a worker that never stops")
	}
	if !strings.Contains(err.Error(), "video") {
		t.Errorf("error should name the stuck worker, got %q", err.Error())
	}

	state, _ := sup.State("video")
	if state != StateError {
		t.Errorf("stuck worker should be marked errored, got %v", state)
	}
}

func TestSupervisor_ReRegisterResets(t *testing.T) {
	sup := NewSupervisor(time.Minute, testLogger())
	sup.Register("input")
	sup.UpdateState("input", StateError)

	sup.Register("input")
	state, _ := sup.State("input")
	if state != StateIdle {
		t.Errorf("re-register should reset to idle, got %v", state)
	}
}
