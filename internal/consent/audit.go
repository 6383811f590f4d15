package consent

import (
	"context"
	"log/slog"
	"time"

	"github.com/veilcast/veilcast/internal/models"
)

// auditTimeout bounds each audit write so a slow database never stalls the
// watcher or capture path.
const auditTimeout = 5 * time.Second

// EventRecorder persists consent audit entries.
type EventRecorder interface {
	Create(ctx context.Context, event *models.ConsentEvent) error
}

// Auditor translates consent directory changes and captures into audit
// trail entries. A failed write is logged and dropped; the consent
// directory itself remains the source of truth.
type Auditor struct {
	recorder EventRecorder
	logger   *slog.Logger
}

// NewAuditor creates an auditor writing through recorder.
func NewAuditor(recorder EventRecorder, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		recorder: recorder,
		logger:   logger.With(slog.String("component", "consent-audit")),
	}
}

// ChangeHook returns a callback suitable for Manager.OnChange.
func (a *Auditor) ChangeHook() func(ctx context.Context, kind EventKind, rec Record) {
	return func(ctx context.Context, kind EventKind, rec Record) {
		eventKind := models.ConsentEventAdded
		if kind == FileDeleted {
			eventKind = models.ConsentEventRemoved
		}
		a.record(&models.ConsentEvent{
			Kind: eventKind,
			Name: rec.Name,
			Path: rec.Path,
		})
	}
}

// CaptureHook returns a callback suitable for Capturer.OnCapture.
func (a *Auditor) CaptureHook() func(name, path string) {
	return func(name, path string) {
		a.record(&models.ConsentEvent{
			Kind: models.ConsentEventCaptured,
			Name: name,
			Path: path,
		})
	}
}

func (a *Auditor) record(event *models.ConsentEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	if err := a.recorder.Create(ctx, event); err != nil {
		a.logger.Warn("failed to record consent event",
			slog.String("kind", string(event.Kind)),
			slog.String("name", event.Name),
			slog.String("error", err.Error()))
		return
	}
	a.logger.Debug("consent event recorded",
		slog.String("kind", string(event.Kind)),
		slog.String("name", event.Name))
}
