package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/veilcast/veilcast/internal/config"
	"github.com/veilcast/veilcast/internal/consent"
	"github.com/veilcast/veilcast/internal/models"
	"github.com/veilcast/veilcast/internal/pipeline"
	"github.com/veilcast/veilcast/internal/repository"
)

// minimal JPEG: SOI + EOI markers, enough for content-type checks.
var jpegStub = []byte{0xFF, 0xD8, 0xFF, 0xD9}

func newTestConsentManager(t *testing.T) (*consent.Manager, string) {
	dir := t.TempDir()
	mgr := consent.NewManager(
		config.ConsentConfig{Dir: dir, PollInterval: 250 * time.Millisecond},
		consent.NewDatabase(0.363, 1.128),
		nil, nil, nil,
	)
	return mgr, dir
}

func writeConsentFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, jpegStub, 0o644))
	return path
}

func TestConsentHandler_ListConsents(t *testing.T) {
	mgr, dir := newTestConsentManager(t)
	handler := NewConsentHandler(mgr, nil)

	writeConsentFile(t, dir, "20240101120000_alice.jpg")
	writeConsentFile(t, dir, "20240301120000_bob.jpg")
	writeConsentFile(t, dir, "notes.txt")
	writeConsentFile(t, dir, "garbage.jpg") // unparseable, skipped

	out, err := handler.ListConsents(context.Background(), &ListConsentsInput{})
	require.NoError(t, err)
	require.Len(t, out.Body.Consents, 2)

	// Newest first.
	assert.Equal(t, "20240301120000_bob", out.Body.Consents[0].ID)
	assert.Equal(t, "bob", out.Body.Consents[0].Name)
	assert.Equal(t, "alice", out.Body.Consents[1].Name)
	assert.Greater(t, out.Body.Consents[0].Time, out.Body.Consents[1].Time)
}

func TestConsentHandler_DeleteConsent(t *testing.T) {
	mgr, dir := newTestConsentManager(t)
	handler := NewConsentHandler(mgr, nil)

	path := writeConsentFile(t, dir, "20240101120000_alice.jpg")

	out, err := handler.DeleteConsent(context.Background(), &DeleteConsentInput{ID: "20240101120000_alice"})
	require.NoError(t, err)
	assert.Equal(t, "Successfully revoked consent for 20240101120000_alice", out.Body.Message)
	assert.NoFileExists(t, path)

	// Second delete is a 404.
	_, err = handler.DeleteConsent(context.Background(), &DeleteConsentInput{ID: "20240101120000_alice"})
	require.Error(t, err)

	// Traversal attempts never reach the filesystem.
	_, err = handler.DeleteConsent(context.Background(), &DeleteConsentInput{ID: "../secret"})
	require.Error(t, err)
}

func TestConsentHandler_ServeImage(t *testing.T) {
	mgr, dir := newTestConsentManager(t)
	handler := NewConsentHandler(mgr, nil)

	writeConsentFile(t, dir, "20240101120000_alice.jpg")

	router := chi.NewRouter()
	handler.RegisterImageServer(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/consents/20240101120000_alice/image", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, jpegStub, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/consents/nothing/image", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/consents/foo..bar/image", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type recordingArmer struct {
	mu    sync.Mutex
	names []string
}

func (a *recordingArmer) ArmCapture(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.names = append(a.names, name)
}

func TestCaptureHandler_TriggerCapture(t *testing.T) {
	armer := &recordingArmer{}
	handler := NewCaptureHandler(armer, nil)

	input := &TriggerCaptureInput{}
	input.Body.Name = "Bob Smith"

	out, err := handler.TriggerCapture(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "Capture armed", out.Body.Message)

	armer.mu.Lock()
	defer armer.mu.Unlock()
	require.Len(t, armer.names, 1)
	assert.Equal(t, "Bob Smith", armer.names[0])
}

type fixedStatus struct {
	status pipeline.Status
}

func (f *fixedStatus) Status() pipeline.Status { return f.status }

func TestStatusHandler_GetStatus(t *testing.T) {
	provider := &fixedStatus{status: pipeline.Status{
		FPS:     29.7,
		Frames:  1234,
		Healthy: true,
	}}
	handler := NewStatusHandler(provider)

	out, err := handler.GetStatus(context.Background(), &GetStatusInput{})
	require.NoError(t, err)
	assert.InDelta(t, 29.7, out.Body.FPS, 0.001)
	assert.Equal(t, uint64(1234), out.Body.Frames)
	assert.True(t, out.Body.Healthy)
}

func newTestTranscriptRepo(t *testing.T) repository.TranscriptRepository {
	repo, _ := newTestTranscriptRepoDB(t)
	return repo
}

func newTestTranscriptRepoDB(t *testing.T) (repository.TranscriptRepository, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Transcript{}))
	return repository.NewTranscriptRepository(db), db
}

func TestTranscriptHandler_ListTranscripts(t *testing.T) {
	repo := newTestTranscriptRepo(t)
	handler := NewTranscriptHandler(repo)
	ctx := context.Background()

	for i, text := range []string{"one", "two", "three"} {
		require.NoError(t, repo.Create(ctx, &models.Transcript{
			StartMs: int64(i * 1000),
			EndMs:   int64(i*1000 + 800),
			Text:    text,
		}))
	}

	out, err := handler.ListTranscripts(ctx, &ListTranscriptsInput{Limit: 2})
	require.NoError(t, err)
	require.Len(t, out.Body.Transcripts, 2)
	assert.Equal(t, "three", out.Body.Transcripts[0].Text)
	assert.NotEmpty(t, out.Body.Transcripts[0].ID)

	// Default limit kicks in when unset.
	out, err = handler.ListTranscripts(ctx, &ListTranscriptsInput{})
	require.NoError(t, err)
	assert.Len(t, out.Body.Transcripts, 3)
}

func TestTranscriptHandler_ListTranscripts_Since(t *testing.T) {
	repo, db := newTestTranscriptRepoDB(t)
	handler := NewTranscriptHandler(repo)
	ctx := context.Background()

	stale := &models.Transcript{StartMs: 0, EndMs: 400, Text: "yesterday"}
	require.NoError(t, repo.Create(ctx, stale))
	require.NoError(t, db.Model(stale).Update("created_at", time.Now().Add(-48*time.Hour)).Error)

	require.NoError(t, repo.Create(ctx, &models.Transcript{
		StartMs: 1000, EndMs: 1800, Text: "just now",
	}))

	// Bare duration window.
	out, err := handler.ListTranscripts(ctx, &ListTranscriptsInput{Since: "1h"})
	require.NoError(t, err)
	require.Len(t, out.Body.Transcripts, 1)
	assert.Equal(t, "just now", out.Body.Transcripts[0].Text)

	// Relative expression window.
	out, err = handler.ListTranscripts(ctx, &ListTranscriptsInput{Since: "3 days ago"})
	require.NoError(t, err)
	assert.Len(t, out.Body.Transcripts, 2)

	// Unparseable window is a client error.
	_, err = handler.ListTranscripts(ctx, &ListTranscriptsInput{Since: "whenever"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid since value")
}

func TestHealthHandler_GetHealth(t *testing.T) {
	handler := NewHealthHandler("1.0.0", nil, func() bool { return true })

	out, err := handler.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)
	assert.Equal(t, "healthy", out.Body.Status)
	assert.Equal(t, "1.0.0", out.Body.Version)
	assert.Equal(t, "unknown", out.Body.Database.Status)
	assert.Greater(t, out.Body.CPUInfo.Cores, 0)
}

func TestHealthHandler_Probes(t *testing.T) {
	ready := false
	handler := NewHealthHandler("1.0.0", nil, func() bool { return ready })

	router := chi.NewRouter()
	handler.RegisterProbes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"veilcast"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ready = true
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
