package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/cbodonnell/cardstage/pkg/arena"
	"github.com/cbodonnell/cardstage/pkg/game/turn"
	"github.com/cbodonnell/cardstage/pkg/game/types"
	"github.com/cbodonnell/cardstage/pkg/log"
	"github.com/cbodonnell/cardstage/pkg/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

type scriptedConn struct {
	inbound []messages.Action
	end     error
	sent    []messages.Action
}

func (c *scriptedConn) Send(ctx context.Context, action messages.Action) error {
	c.sent = append(c.sent, action)
	return nil
}

func (c *scriptedConn) Receive(ctx context.Context) (messages.Action, error) {
	if len(c.inbound) == 0 {
		return nil, c.end
	}
	next := c.inbound[0]
	c.inbound = c.inbound[1:]
	return next, nil
}

func TestBot_PlaysATurn(t *testing.T) {
	rested := arena.Handle{Index: 4, Generation: 1}
	conn := &scriptedConn{
		inbound: []messages.Action{
			&messages.AssignID{Participant: 1, ReconnectToken: "token"},
			&messages.SetupBegin{Session: "s", Participants: 2},
			&messages.HandUpdate{Participant: 1, Cards: []types.Card{{ID: "d", Name: "dragon"}, {ID: "w", Name: "wolf"}}},
			&messages.PlayCard{Participant: 1, CardID: "x", Permanent: &rested},
			&messages.NewTurn{Turn: turn.Turn{Participant: 0, Phase: turn.PhasePlay}, Mana: 1},
			&messages.NewTurn{Turn: turn.Turn{Participant: 1, Phase: turn.PhaseStart}, Mana: 2},
			&messages.NewTurn{Turn: turn.Turn{Participant: 1, Phase: turn.PhasePlay}, Mana: 2},
		},
		end: websocket.CloseError{Code: websocket.StatusNormalClosure, Reason: "out_of_turns"},
	}
	b := New(conn, log.Discard())

	reason, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "out_of_turns", reason)
	assert.Equal(t, uint32(1), b.Participant())
	assert.Equal(t, "token", b.ReconnectToken())

	assert.Equal(t, []messages.Action{
		&messages.Ready{Participant: 1},
		&messages.PlayCard{Participant: 1, CardID: "w"},
		&messages.Attack{Participant: 1, Attacker: rested},
		&messages.EndTurn{Participant: 1},
	}, conn.sent)
}

func TestBot_ForgetsDestroyedPermanents(t *testing.T) {
	h := arena.Handle{Index: 0, Generation: 0}
	conn := &scriptedConn{
		inbound: []messages.Action{
			&messages.PlayCard{Participant: 0, CardID: "x", Permanent: &h},
			&messages.Attack{Participant: 1, Destroyed: []arena.Handle{h}},
			&messages.NewTurn{Turn: turn.Turn{Participant: 0, Phase: turn.PhaseStart}},
			&messages.NewTurn{Turn: turn.Turn{Participant: 0, Phase: turn.PhasePlay}},
		},
		end: errors.New("connection reset"),
	}
	b := New(conn, log.Discard())

	_, err := b.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, []messages.Action{&messages.EndTurn{Participant: 0}}, conn.sent)
}

func TestBot_RebuildsPermanentsFromTable(t *testing.T) {
	own := arena.Handle{Index: 2, Generation: 3}
	tired := arena.Handle{Index: 5, Generation: 1}
	foreign := arena.Handle{Index: 1, Generation: 1}
	conn := &scriptedConn{
		inbound: []messages.Action{
			&messages.AssignID{Participant: 0, ReconnectToken: "token"},
			&messages.GameStarted{Battlefield: []types.PermanentView{
				{Handle: foreign, Permanent: types.Permanent{Owner: 1}},
				{Handle: own, Permanent: types.Permanent{Owner: 0}},
				{Handle: tired, Permanent: types.Permanent{Owner: 0, Exhausted: true}},
			}},
			&messages.NewTurn{Turn: turn.Turn{Participant: 0, Phase: turn.PhasePlay}},
		},
		end: websocket.CloseError{Code: websocket.StatusNormalClosure, Reason: "draw"},
	}
	b := New(conn, log.Discard())

	_, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []messages.Action{
		&messages.Attack{Participant: 0, Attacker: own},
		&messages.EndTurn{Participant: 0},
	}, conn.sent)
}
