package repositories

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cbodonnell/cardstage/pkg/repositories/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteRepository(t *testing.T) Repository {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cardstage.db")
	repo, err := NewRepository(ctx, "sqlite://"+path, filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close(ctx) })
	return repo
}

func TestSQLiteRepository_SaveAndGetMatch(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLiteRepository(t)

	winner := uint32(1)
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	match := &models.Match{
		SessionID:    "s1",
		Result:       "victory(1)",
		Winner:       &winner,
		Participants: 2,
		Turns:        7,
		StartedAt:    started,
		EndedAt:      started.Add(5 * time.Minute),
		ActionLog:    []byte{1, 2, 3},
	}
	require.NoError(t, repo.SaveMatch(ctx, match))

	got, err := repo.GetMatch(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, match, got)

	_, err = repo.GetMatch(ctx, "missing")
	assert.True(t, IsNotFound(err))
}

func TestSQLiteRepository_ListMatches(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLiteRepository(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.SaveMatch(ctx, &models.Match{
			SessionID:    id,
			Result:       "out_of_turns",
			Participants: 2,
			StartedAt:    base,
			EndedAt:      base.Add(time.Duration(i) * time.Minute),
		}))
	}

	matches, err := repo.ListMatches(ctx, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "c", matches[0].SessionID)
	assert.Equal(t, "b", matches[1].SessionID)
	assert.Nil(t, matches[0].Winner)
}

func TestNewRepository_UnsupportedScheme(t *testing.T) {
	_, err := NewRepository(context.Background(), "mysql://localhost/db", "migrations")
	assert.Error(t, err)
}
