package consent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/veilcast/veilcast/internal/config"
	"github.com/veilcast/veilcast/internal/media"
	"github.com/veilcast/veilcast/internal/metrics"
	"github.com/veilcast/veilcast/internal/vision"
)

// Manager keeps the recognition database synchronized with the consent
// directory. It owns its own Detector and Recognizer instances; the models
// behind them are not shared with the video worker.
//
// Per-file failures (unreadable image, no face, feature extraction error)
// are logged and skipped. The directory is the source of truth; a file
// whose features cannot be computed simply confers no consent.
type Manager struct {
	dir        string
	maxBytes   int64
	db         *Database
	detector   vision.Detector
	recognizer vision.Recognizer
	watcher    *Watcher
	logger     *slog.Logger

	// onChange, if set, is called after every database mutation. Used for
	// the consent-event audit trail.
	onChange func(ctx context.Context, kind EventKind, rec Record)
}

// NewManager creates a consent manager for the configured directory.
func NewManager(
	cfg config.ConsentConfig,
	db *Database,
	detector vision.Detector,
	recognizer vision.Recognizer,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dir:        cfg.Dir,
		maxBytes:   int64(cfg.MaxImageSize),
		db:         db,
		detector:   detector,
		recognizer: recognizer,
		watcher:    NewWatcher(cfg.Dir, cfg.PollInterval, logger),
		logger:     logger.With(slog.String("component", "consent-manager")),
	}
}

// OnChange installs a callback invoked after every add or delete. The
// record carries the affected path and name.
func (m *Manager) OnChange(fn func(ctx context.Context, kind EventKind, rec Record)) {
	m.onChange = fn
}

// Database returns the recognition database this manager maintains.
func (m *Manager) Database() *Database {
	return m.db
}

// Dir returns the consent directory path.
func (m *Manager) Dir() string {
	return m.dir
}

// Load creates the consent directory if absent and loads every existing
// .jpg into the recognition database. Called once before the watcher
// starts.
func (m *Manager) Load(ctx context.Context) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("creating consent directory %s: %w", m.dir, err)
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("reading consent directory %s: %w", m.dir, err)
	}

	loaded, skipped := 0, 0
	for _, e := range entries {
		if e.IsDir() || !isJPEG(e.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.IngestFile(ctx, filepath.Join(m.dir, e.Name())) {
			loaded++
		} else {
			skipped++
		}
	}

	m.logger.Info("consent database loaded",
		slog.String("dir", m.dir),
		slog.Int("records", loaded),
		slog.Int("skipped", skipped),
	)
	return nil
}

// Run consumes directory events until the context is cancelled. Load must
// have been called first.
func (m *Manager) Run(ctx context.Context) error {
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- m.watcher.Run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return <-watchErr

		case ev, ok := <-m.watcher.Events():
			if !ok {
				return <-watchErr
			}
			switch ev.Kind {
			case FileAdded:
				metrics.IncConsentEvent("added")
				m.IngestFile(ctx, ev.Path)
			case FileDeleted:
				metrics.IncConsentEvent("deleted")
				m.removeFile(ctx, ev.Path)
			}
		}
	}
}

// IngestFile loads one consent image, extracts the largest face's feature
// vector, and upserts the record. It reports whether a record was stored.
// Safe to call from outside the manager's own loop: the capture path calls
// it directly so a fresh capture grants consent without waiting for the
// watcher to notice the file.
func (m *Manager) IngestFile(ctx context.Context, path string) bool {
	cap, err := ParseFilename(filepath.Base(path))
	if err != nil {
		m.logger.Warn("skipping consent file with unparseable name",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return false
	}

	frame, err := loadFrame(path, m.maxBytes)
	if err != nil {
		m.logger.Warn("skipping unreadable consent image",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return false
	}

	det, ok := m.largestFace(ctx, frame)
	if !ok {
		m.logger.Warn("no face found in consent image", slog.String("path", path))
		return false
	}

	feature, err := m.recognizer.Feature(ctx, frame, det)
	if err != nil {
		m.logger.Warn("feature extraction failed for consent image",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return false
	}

	rec := Record{
		Path:       path,
		Name:       cap.Name,
		Feature:    feature,
		CapturedAt: cap.Time,
	}
	inserted := m.db.Upsert(rec)
	m.logger.Info("consent record added",
		slog.String("name", rec.Name),
		slog.String("file", filepath.Base(path)))

	// Re-ingesting a known path (watcher echo of a capture, rescan) is not
	// a new grant.
	if inserted && m.onChange != nil {
		m.onChange(ctx, FileAdded, rec)
	}
	return true
}

func (m *Manager) removeFile(ctx context.Context, path string) {
	rec, ok := m.db.Remove(path)
	if !ok {
		return
	}

	if m.db.HasName(rec.Name) {
		m.logger.Info("consent record removed, other captures remain",
			slog.String("name", rec.Name),
			slog.String("file", filepath.Base(path)))
	} else {
		m.logger.Info("consent revoked",
			slog.String("name", rec.Name),
			slog.String("file", filepath.Base(path)))
	}

	if m.onChange != nil {
		m.onChange(ctx, FileDeleted, rec)
	}
}

// Rescan reconciles the database against the directory: files on disk that
// have no record are ingested, records whose files vanished are removed.
// Used by the scheduler as a safety net behind the watcher.
func (m *Manager) Rescan(ctx context.Context) error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("reading consent directory %s: %w", m.dir, err)
	}

	present := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isJPEG(e.Name()) {
			continue
		}
		path := filepath.Join(m.dir, e.Name())
		present[path] = struct{}{}
	}

	known := make(map[string]struct{}, m.db.Len())
	for _, rec := range m.db.Snapshot() {
		known[rec.Path] = struct{}{}
		if _, ok := present[rec.Path]; !ok {
			m.removeFile(ctx, rec.Path)
		}
	}
	for path := range present {
		if _, ok := known[path]; !ok {
			m.IngestFile(ctx, path)
		}
	}
	return nil
}

// largestFace runs the detector and returns the max-area detection.
func (m *Manager) largestFace(ctx context.Context, frame *media.VideoFrame) (vision.Detection, bool) {
	m.detector.SetInputSize(frame.Width, frame.Height)
	dets, err := m.detector.Detect(ctx, frame)
	if err != nil {
		m.logger.Warn("face detection failed on consent image",
			slog.String("error", err.Error()))
		return vision.Detection{}, false
	}
	if len(dets) == 0 {
		return vision.Detection{}, false
	}

	best := dets[0]
	for _, d := range dets[1:] {
		if d.Area() > best.Area() {
			best = d
		}
	}
	return best, true
}

// FilesForName returns the consent files bearing the given (sanitized)
// name, used by the control API when revoking by name.
func (m *Manager) FilesForName(name string) []string {
	safe := SanitizeName(name)
	var out []string
	for _, rec := range m.db.Snapshot() {
		if rec.Name == safe {
			out = append(out, rec.Path)
		}
	}
	return out
}

// ResolveID maps a consent ID (filename stem) to its path inside the
// consent directory, rejecting anything that would escape it.
func (m *Manager) ResolveID(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return "", fmt.Errorf("invalid consent id %q", id)
	}
	return filepath.Join(m.dir, id+".jpg"), nil
}
