package repository

import (
	"context"
	"fmt"

	"github.com/veilcast/veilcast/internal/models"
	"gorm.io/gorm"
)

// consentEventRepo implements ConsentEventRepository using GORM.
type consentEventRepo struct {
	db *gorm.DB
}

// NewConsentEventRepository creates a new ConsentEventRepository.
func NewConsentEventRepository(db *gorm.DB) *consentEventRepo {
	return &consentEventRepo{db: db}
}

// Create creates a new consent event.
func (r *consentEventRepo) Create(ctx context.Context, event *models.ConsentEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("validating consent event: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("creating consent event: %w", err)
	}
	return nil
}

// GetRecent retrieves the newest consent events, most recent first.
func (r *consentEventRepo) GetRecent(ctx context.Context, limit int) ([]*models.ConsentEvent, error) {
	var events []*models.ConsentEvent
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("getting recent consent events: %w", err)
	}
	return events, nil
}

// GetByName retrieves all events for a normalized name, most recent first.
func (r *consentEventRepo) GetByName(ctx context.Context, name string) ([]*models.ConsentEvent, error) {
	var events []*models.ConsentEvent
	if err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Order("created_at DESC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("getting consent events by name: %w", err)
	}
	return events, nil
}
