package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/veilcast/veilcast/internal/models"
)

func setupConsentEventTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.ConsentEvent{})
	require.NoError(t, err)

	return db
}

func TestConsentEventRepo_Create(t *testing.T) {
	db := setupConsentEventTestDB(t)
	repo := NewConsentEventRepository(db)
	ctx := context.Background()

	event := &models.ConsentEvent{
		Kind: models.ConsentEventAdded,
		Name: "alice",
		Path: "/data/consent/alice.jpg",
	}

	err := repo.Create(ctx, event)
	require.NoError(t, err)
	assert.False(t, event.ID.IsZero())
}

func TestConsentEventRepo_Create_Invalid(t *testing.T) {
	db := setupConsentEventTestDB(t)
	repo := NewConsentEventRepository(db)
	ctx := context.Background()

	err := repo.Create(ctx, &models.ConsentEvent{Kind: "bogus", Name: "alice"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidConsentEvent)

	err = repo.Create(ctx, &models.ConsentEvent{Kind: models.ConsentEventRemoved})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNameRequired)
}

func TestConsentEventRepo_GetRecent(t *testing.T) {
	db := setupConsentEventTestDB(t)
	repo := NewConsentEventRepository(db)
	ctx := context.Background()

	names := []string{"alice", "bob", "carol"}
	for _, name := range names {
		err := repo.Create(ctx, &models.ConsentEvent{
			Kind: models.ConsentEventAdded,
			Name: name,
			Path: "/data/consent/" + name + ".jpg",
		})
		require.NoError(t, err)
	}

	events, err := repo.GetRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)

	all, err := repo.GetRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestConsentEventRepo_GetByName(t *testing.T) {
	db := setupConsentEventTestDB(t)
	repo := NewConsentEventRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.ConsentEvent{
		Kind: models.ConsentEventAdded,
		Name: "bob",
		Path: "/data/consent/bob.jpg",
	}))
	require.NoError(t, repo.Create(ctx, &models.ConsentEvent{
		Kind: models.ConsentEventRemoved,
		Name: "bob",
		Path: "/data/consent/bob.jpg",
	}))
	require.NoError(t, repo.Create(ctx, &models.ConsentEvent{
		Kind: models.ConsentEventAdded,
		Name: "alice",
		Path: "/data/consent/alice.jpg",
	}))

	events, err := repo.GetByName(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, event := range events {
		assert.Equal(t, "bob", event.Name)
	}

	events, err = repo.GetByName(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, events)
}
