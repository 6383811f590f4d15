package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/veilcast/veilcast/internal/models"
)

func setupTranscriptTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Transcript{})
	require.NoError(t, err)

	return db
}

func TestTranscriptRepo_Create(t *testing.T) {
	db := setupTranscriptTestDB(t)
	repo := NewTranscriptRepository(db)
	ctx := context.Background()

	transcript := &models.Transcript{
		StartMs: 1500,
		EndMs:   3200,
		Text:    "hello everyone",
	}

	err := repo.Create(ctx, transcript)
	require.NoError(t, err)
	assert.False(t, transcript.ID.IsZero())

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTranscriptRepo_Create_Invalid(t *testing.T) {
	db := setupTranscriptTestDB(t)
	repo := NewTranscriptRepository(db)
	ctx := context.Background()

	err := repo.Create(ctx, &models.Transcript{StartMs: 0, EndMs: 1000})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrTextRequired)

	err = repo.Create(ctx, &models.Transcript{StartMs: 2000, EndMs: 1000, Text: "backwards"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidTimeRange)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestTranscriptRepo_SaveTranscript(t *testing.T) {
	db := setupTranscriptTestDB(t)
	repo := NewTranscriptRepository(db)
	ctx := context.Background()

	err := repo.SaveTranscript(ctx, 2*time.Second, 4500*time.Millisecond, "  my name is bob  ")
	require.NoError(t, err)

	transcripts, err := repo.GetRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, transcripts, 1)
	assert.Equal(t, int64(2000), transcripts[0].StartMs)
	assert.Equal(t, int64(4500), transcripts[0].EndMs)
	assert.Equal(t, "my name is bob", transcripts[0].Text)
}

func TestTranscriptRepo_GetRecent(t *testing.T) {
	db := setupTranscriptTestDB(t)
	repo := NewTranscriptRepository(db)
	ctx := context.Background()

	for i, text := range []string{"first", "second", "third"} {
		err := repo.Create(ctx, &models.Transcript{
			StartMs: int64(i * 1000),
			EndMs:   int64(i*1000 + 500),
			Text:    text,
		})
		require.NoError(t, err)
	}

	transcripts, err := repo.GetRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, transcripts, 2)
	assert.Equal(t, "third", transcripts[0].Text)
	assert.Equal(t, "second", transcripts[1].Text)

	all, err := repo.GetRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTranscriptRepo_GetCreatedSince(t *testing.T) {
	db := setupTranscriptTestDB(t)
	repo := NewTranscriptRepository(db)
	ctx := context.Background()

	old := &models.Transcript{StartMs: 0, EndMs: 500, Text: "stale"}
	require.NoError(t, repo.Create(ctx, old))
	err := db.Model(old).Update("created_at", time.Now().Add(-2*time.Hour)).Error
	require.NoError(t, err)

	for i, text := range []string{"fresh one", "fresh two"} {
		require.NoError(t, repo.Create(ctx, &models.Transcript{
			StartMs: int64((i + 1) * 1000),
			EndMs:   int64((i+1)*1000 + 500),
			Text:    text,
		}))
	}

	recent, err := repo.GetCreatedSince(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "fresh two", recent[0].Text)
	assert.Equal(t, "fresh one", recent[1].Text)

	limited, err := repo.GetCreatedSince(ctx, time.Now().Add(-time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "fresh two", limited[0].Text)

	all, err := repo.GetCreatedSince(ctx, time.Now().Add(-24*time.Hour), 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTranscriptRepo_GetByTimeRange(t *testing.T) {
	db := setupTranscriptTestDB(t)
	repo := NewTranscriptRepository(db)
	ctx := context.Background()

	segments := []*models.Transcript{
		{StartMs: 0, EndMs: 1000, Text: "early"},
		{StartMs: 2000, EndMs: 3000, Text: "middle"},
		{StartMs: 5000, EndMs: 6000, Text: "late"},
	}
	for _, seg := range segments {
		require.NoError(t, repo.Create(ctx, seg))
	}

	// Window overlapping the middle segment only.
	found, err := repo.GetByTimeRange(ctx, 1500*time.Millisecond, 4*time.Second)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "middle", found[0].Text)

	// Window covering everything, in stream order.
	found, err = repo.GetByTimeRange(ctx, 0, 10*time.Second)
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, "early", found[0].Text)
	assert.Equal(t, "late", found[2].Text)
}

func TestTranscriptRepo_DeleteOlderThan(t *testing.T) {
	db := setupTranscriptTestDB(t)
	repo := NewTranscriptRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Transcript{StartMs: 0, EndMs: 500, Text: "old"}))
	require.NoError(t, repo.Create(ctx, &models.Transcript{StartMs: 1000, EndMs: 1500, Text: "also old"}))

	// Everything just created is older than a future cutoff.
	deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	// And nothing is older than a cutoff in the past.
	require.NoError(t, repo.Create(ctx, &models.Transcript{StartMs: 2000, EndMs: 2500, Text: "fresh"}))
	deleted, err = repo.DeleteOlderThan(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
