package consent

import (
	"math"
	"sync"
	"time"

	"github.com/veilcast/veilcast/internal/metrics"
)

// Record is one entry in the recognition database, sourced from exactly one
// file in the consent directory. The file path is the unique key; a person
// appearing in several captures has one record per capture.
type Record struct {
	Path       string
	Name       string
	Feature    []float32
	CapturedAt time.Time
}

// Database is the in-memory recognition database. Writes go through the
// manager under a single lock; readers take a copy-on-write snapshot so the
// video worker never matches while holding a lock.
type Database struct {
	cosineThreshold float64
	l2Threshold     float64

	mu      sync.RWMutex
	records map[string]Record
	// snapshot is rebuilt on every mutation and handed out by value.
	snapshot []Record
}

// NewDatabase creates an empty database with the given SFace match
// thresholds.
func NewDatabase(cosineThreshold, l2Threshold float64) *Database {
	return &Database{
		cosineThreshold: cosineThreshold,
		l2Threshold:     l2Threshold,
		records:         make(map[string]Record),
	}
}

// Upsert inserts the record, replacing any previous record with the same
// path. It reports whether the path was previously unknown.
func (db *Database) Upsert(rec Record) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, existed := db.records[rec.Path]
	db.records[rec.Path] = rec
	db.rebuildLocked()
	return !existed
}

// Remove deletes the record keyed by path. It returns the removed record and
// whether anything was removed.
func (db *Database) Remove(path string) (Record, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rec, ok := db.records[path]
	if !ok {
		return Record{}, false
	}
	delete(db.records, path)
	db.rebuildLocked()
	return rec, true
}

func (db *Database) rebuildLocked() {
	snap := make([]Record, 0, len(db.records))
	for _, rec := range db.records {
		snap = append(snap, rec)
	}
	db.snapshot = snap
	metrics.ConsentRecords.Set(float64(len(snap)))
}

// Snapshot returns the current records. The returned slice is immutable by
// convention; mutations happen only through Upsert/Remove.
func (db *Database) Snapshot() []Record {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.snapshot
}

// Len returns the number of records.
func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.records)
}

// HasName reports whether at least one record bears the given name. Names
// are compared case-insensitively via their stored lowercase form.
func (db *Database) HasName(name string) bool {
	name = SanitizeName(name)

	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, rec := range db.records {
		if rec.Name == name {
			return true
		}
	}
	return false
}

// Names returns the set of consented names: every name borne by at least
// one record.
func (db *Database) Names() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	seen := make(map[string]struct{}, len(db.records))
	var names []string
	for _, rec := range db.records {
		if _, ok := seen[rec.Name]; ok {
			continue
		}
		seen[rec.Name] = struct{}{}
		names = append(names, rec.Name)
	}
	return names
}

// Match compares the feature against every record and returns the name of
// the first match. A face matches a record when the cosine score is below
// the cosine threshold OR the L2 score is below the L2 threshold; in the
// SFace convention lower scores mean more similar. Matching any one record
// of a person implies consent.
func (db *Database) Match(feature []float32) (string, bool) {
	for _, rec := range db.Snapshot() {
		cos := CosineScore(feature, rec.Feature)
		l2 := L2Score(feature, rec.Feature)
		if cos < db.cosineThreshold || l2 < db.l2Threshold {
			return rec.Name, true
		}
	}
	return "", false
}

// CosineScore returns the cosine distance between two feature vectors:
// 1 - cos(a, b). Zero means identical direction; lower is more similar.
func CosineScore(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.MaxFloat64
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return math.MaxFloat64
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// L2Score returns the Euclidean distance between the L2-normalized feature
// vectors, matching the SFace norm-L2 measure.
func L2Score(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.MaxFloat64
	}

	var na, nb float64
	for i := range a {
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return math.MaxFloat64
	}
	na = math.Sqrt(na)
	nb = math.Sqrt(nb)

	var sum float64
	for i := range a {
		d := float64(a[i])/na - float64(b[i])/nb
		sum += d * d
	}
	return math.Sqrt(sum)
}
