package consent

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilcast/veilcast/internal/models"
)

type memoryRecorder struct {
	mu     sync.Mutex
	events []*models.ConsentEvent
	err    error
}

func (r *memoryRecorder) Create(_ context.Context, event *models.ConsentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *memoryRecorder) recorded() []*models.ConsentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.ConsentEvent(nil), r.events...)
}

func TestAuditor_ChangeHook(t *testing.T) {
	recorder := &memoryRecorder{}
	auditor := NewAuditor(recorder, nil)
	hook := auditor.ChangeHook()

	rec := Record{Path: "/c/20240101T000000_alice.jpg", Name: "alice"}
	hook(context.Background(), FileAdded, rec)
	hook(context.Background(), FileDeleted, rec)

	events := recorder.recorded()
	require.Len(t, events, 2)
	assert.Equal(t, models.ConsentEventAdded, events[0].Kind)
	assert.Equal(t, models.ConsentEventRemoved, events[1].Kind)
	assert.Equal(t, "alice", events[0].Name)
	assert.Equal(t, rec.Path, events[0].Path)
}

func TestAuditor_CaptureHook(t *testing.T) {
	recorder := &memoryRecorder{}
	auditor := NewAuditor(recorder, nil)

	auditor.CaptureHook()("bob", "/c/20240101T000000_bob.jpg")

	events := recorder.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, models.ConsentEventCaptured, events[0].Kind)
	assert.Equal(t, "bob", events[0].Name)
}

func TestAuditor_RecorderFailureIsSwallowed(t *testing.T) {
	recorder := &memoryRecorder{err: errors.New("disk full")}
	auditor := NewAuditor(recorder, nil)

	// Must not panic or propagate; the hook is called from the watcher loop.
	auditor.ChangeHook()(context.Background(), FileAdded, Record{Name: "alice", Path: "/c/a.jpg"})
	assert.Empty(t, recorder.recorded())
}
