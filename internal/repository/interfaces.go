// Package repository defines data access interfaces for veilcast entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"
	"time"

	"github.com/veilcast/veilcast/internal/models"
)

// TranscriptRepository defines operations for transcript persistence.
type TranscriptRepository interface {
	// Create stores a new transcript segment.
	Create(ctx context.Context, transcript *models.Transcript) error
	// GetRecent retrieves the newest transcripts, most recent first.
	GetRecent(ctx context.Context, limit int) ([]*models.Transcript, error)
	// GetCreatedSince retrieves transcripts created at or after the cutoff,
	// most recent first.
	GetCreatedSince(ctx context.Context, cutoff time.Time, limit int) ([]*models.Transcript, error)
	// GetByTimeRange retrieves transcripts overlapping a stream-time window,
	// in stream order.
	GetByTimeRange(ctx context.Context, start, end time.Duration) ([]*models.Transcript, error)
	// DeleteOlderThan removes transcripts created before the cutoff and
	// returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	// Count returns the total number of stored transcripts.
	Count(ctx context.Context) (int64, error)
}

// ConsentEventRepository defines operations for the consent audit trail.
type ConsentEventRepository interface {
	// Create stores a new consent event.
	Create(ctx context.Context, event *models.ConsentEvent) error
	// GetRecent retrieves the newest events, most recent first.
	GetRecent(ctx context.Context, limit int) ([]*models.ConsentEvent, error)
	// GetByName retrieves all events for a normalized name, most recent
	// first.
	GetByName(ctx context.Context, name string) ([]*models.ConsentEvent, error)
}
