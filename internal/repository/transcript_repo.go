package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/veilcast/veilcast/internal/models"
	"gorm.io/gorm"
)

// transcriptRepo implements TranscriptRepository using GORM.
type transcriptRepo struct {
	db *gorm.DB
}

// NewTranscriptRepository creates a new TranscriptRepository.
func NewTranscriptRepository(db *gorm.DB) *transcriptRepo {
	return &transcriptRepo{db: db}
}

// Create creates a new transcript segment.
func (r *transcriptRepo) Create(ctx context.Context, transcript *models.Transcript) error {
	if err := transcript.Validate(); err != nil {
		return fmt.Errorf("validating transcript: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(transcript).Error; err != nil {
		return fmt.Errorf("creating transcript: %w", err)
	}
	return nil
}

// SaveTranscript stores a recognized speech segment keyed by stream time.
// It satisfies the pipeline's transcript sink.
func (r *transcriptRepo) SaveTranscript(ctx context.Context, start, end time.Duration, text string) error {
	transcript := &models.Transcript{
		StartMs: start.Milliseconds(),
		EndMs:   end.Milliseconds(),
		Text:    strings.TrimSpace(text),
	}
	return r.Create(ctx, transcript)
}

// GetRecent retrieves the newest transcripts, most recent first.
func (r *transcriptRepo) GetRecent(ctx context.Context, limit int) ([]*models.Transcript, error) {
	var transcripts []*models.Transcript
	query := r.db.WithContext(ctx).Order("start_ms DESC, created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&transcripts).Error; err != nil {
		return nil, fmt.Errorf("getting recent transcripts: %w", err)
	}
	return transcripts, nil
}

// GetCreatedSince retrieves transcripts created at or after the cutoff,
// most recent first.
func (r *transcriptRepo) GetCreatedSince(ctx context.Context, cutoff time.Time, limit int) ([]*models.Transcript, error) {
	var transcripts []*models.Transcript
	query := r.db.WithContext(ctx).
		Where("created_at >= ?", cutoff).
		Order("start_ms DESC, created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&transcripts).Error; err != nil {
		return nil, fmt.Errorf("getting transcripts since cutoff: %w", err)
	}
	return transcripts, nil
}

// GetByTimeRange retrieves transcripts overlapping the [start, end] window
// of stream time, in stream order.
func (r *transcriptRepo) GetByTimeRange(ctx context.Context, start, end time.Duration) ([]*models.Transcript, error) {
	var transcripts []*models.Transcript
	if err := r.db.WithContext(ctx).
		Where("end_ms >= ? AND start_ms <= ?", start.Milliseconds(), end.Milliseconds()).
		Order("start_ms ASC").
		Find(&transcripts).Error; err != nil {
		return nil, fmt.Errorf("getting transcripts by time range: %w", err)
	}
	return transcripts, nil
}

// DeleteOlderThan removes transcripts created before the cutoff.
func (r *transcriptRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	// Retention is a hard purge, not a soft delete.
	result := r.db.WithContext(ctx).Unscoped().
		Where("created_at < ?", cutoff).
		Delete(&models.Transcript{})
	if result.Error != nil {
		return 0, fmt.Errorf("deleting old transcripts: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Count returns the total number of stored transcripts.
func (r *transcriptRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Transcript{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting transcripts: %w", err)
	}
	return count, nil
}
