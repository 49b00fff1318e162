package registry

import (
	"context"
	"testing"
	"time"

	"github.com/cbodonnell/cardstage/pkg/game/turn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistry(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()
	now := time.Now()

	require.NoError(t, r.Put(ctx, SessionInfo{ID: "a", Stage: "waiting", UpdatedAt: now}))
	require.NoError(t, r.Put(ctx, SessionInfo{
		ID:        "b",
		Stage:     "player_turn",
		Turn:      &turn.Turn{Participant: 1, Phase: turn.PhasePlay},
		UpdatedAt: now.Add(time.Second),
	}))

	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "waiting", got.Stage)

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID, "most recently updated first")

	require.NoError(t, r.Delete(ctx, "a"))
	_, err = r.Get(ctx, "a")
	assert.True(t, IsNotFound(err))
}

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "session:abc", sessionKey("abc"))
}
