package clients

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cbodonnell/cardstage/pkg/log"
	"github.com/cbodonnell/cardstage/pkg/messages"
	"github.com/cbodonnell/cardstage/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	lock   sync.Mutex
	sent   []messages.Action
	reason string
	closed bool
}

func (c *recordingConn) Send(action messages.Action) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	c.sent = append(c.sent, action)
	return nil
}

func (c *recordingConn) Close(reason string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.closed = true
	c.reason = reason
}

func (c *recordingConn) actions() []messages.Action {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]messages.Action(nil), c.sent...)
}

func (c *recordingConn) hasType(t messages.ActionType) bool {
	for _, a := range c.actions() {
		if a.Type() == t {
			return true
		}
	}
	return false
}

// stalledConn blocks every send until release is closed, which stalls the
// coordinator it belongs to.
type stalledConn struct {
	recordingConn
	release chan struct{}
}

func (c *stalledConn) Send(action messages.Action) error {
	<-c.release
	return c.recordingConn.Send(action)
}

func newTestLobby(t *testing.T) (*Lobby, context.CancelFunc, chan error) {
	t.Helper()
	return newTestLobbyWithRelay(t, 0)
}

func newTestLobbyWithRelay(t *testing.T, relaySize int) (*Lobby, context.CancelFunc, chan error) {
	t.Helper()
	n := 0
	lobby, err := NewLobby(NewLobbyOptions{
		RelaySize: relaySize,
		Config: session.Config{
			Participants:     2,
			TurnLimit:        10,
			WaitingTimeout:   time.Minute,
			SetupTimeout:     time.Minute,
			GameStartTimeout: time.Minute,
			PlayDuration:     time.Minute,
			StartingLife:     20,
			OpeningHandSize:  3,
		},
		NewID: func() string {
			n++
			return fmt.Sprintf("session-%d", n)
		},
		Logger: log.Discard(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lobby.Run(ctx) }()
	return lobby, cancel, done
}

func TestLobby_FillsSessions(t *testing.T) {
	lobby, cancel, done := newTestLobby(t)

	a, b, c := &recordingConn{}, &recordingConn{}, &recordingConn{}
	ta, err := lobby.Join(a, "", "")
	require.NoError(t, err)
	tb, err := lobby.Join(b, "", "")
	require.NoError(t, err)
	tc, err := lobby.Join(c, "", "")
	require.NoError(t, err)

	assert.Equal(t, ta.SessionID, tb.SessionID)
	assert.NotEqual(t, ta.SessionID, tc.SessionID)
	assert.Equal(t, uint32(0), ta.Participant)
	assert.Equal(t, uint32(1), tb.Participant)
	assert.Equal(t, uint32(0), tc.Participant)
	assert.Equal(t, 2, lobby.Sessions())

	assert.Eventually(t, func() bool { return a.hasType(messages.ActionTypeSetupBegin) }, time.Second, 5*time.Millisecond)
	first := a.actions()[0]
	assign, ok := first.(*messages.AssignID)
	require.True(t, ok, "the first message is the participant identity, got %T", first)
	assert.Equal(t, ta.ReconnectToken, assign.ReconnectToken)
	assert.False(t, c.hasType(messages.ActionTypeSetupBegin))

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 0, lobby.Sessions())
	assert.True(t, a.closed)

	_, err = lobby.Join(&recordingConn{}, "", "")
	assert.ErrorIs(t, err, ErrLobbyClosed)
}

func TestLobby_Reconnect(t *testing.T) {
	lobby, cancel, done := newTestLobby(t)
	defer func() {
		cancel()
		<-done
	}()

	first := &recordingConn{}
	ticket, err := lobby.Join(first, "", "")
	require.NoError(t, err)

	_, err = lobby.Join(&recordingConn{}, "missing", "")
	assert.ErrorIs(t, err, ErrUnknownToken)

	ticket.Leave()
	ticket.Leave()

	second := &recordingConn{}
	again, err := lobby.Join(second, ticket.ReconnectToken, "")
	require.NoError(t, err)
	assert.Equal(t, ticket.SessionID, again.SessionID)
	assert.Equal(t, ticket.Participant, again.Participant)
	assert.Eventually(t, func() bool { return second.hasType(messages.ActionTypeAssignID) }, time.Second, 5*time.Millisecond)
}

func TestLobby_ShutdownRemovesSession(t *testing.T) {
	lobby, cancel, done := newTestLobby(t)
	defer func() {
		cancel()
		<-done
	}()

	conn := &recordingConn{}
	ticket, err := lobby.Join(conn, "", "")
	require.NoError(t, err)
	require.NoError(t, ticket.Shutdown())

	assert.Eventually(t, func() bool { return lobby.Sessions() == 0 }, time.Second, 5*time.Millisecond)
	_, err = lobby.Join(&recordingConn{}, ticket.ReconnectToken, "")
	assert.ErrorIs(t, err, ErrUnknownToken)
	ticket.Leave()
}

func TestLobby_BusySessionDoesNotStallOtherJoins(t *testing.T) {
	lobby, cancel, done := newTestLobbyWithRelay(t, 1)

	stalled := &stalledConn{release: make(chan struct{})}
	ta, err := lobby.Join(stalled, "", "")
	require.NoError(t, err)

	// the coordinator is stuck sending to the first participant, so the
	// second join fills the relay and blocks on it
	secondJoined := make(chan error, 1)
	go func() {
		_, err := lobby.Join(&recordingConn{}, "", "")
		secondJoined <- err
	}()
	require.Eventually(t, func() bool {
		lobby.lock.Lock()
		defer lobby.lock.Unlock()
		return lobby.open == nil
	}, time.Second, 5*time.Millisecond, "the second join claims the last seat")

	thirdJoined := make(chan *Ticket, 1)
	go func() {
		tc, err := lobby.Join(&recordingConn{}, "", "")
		assert.NoError(t, err)
		thirdJoined <- tc
	}()
	select {
	case tc := <-thirdJoined:
		require.NotNil(t, tc)
		assert.NotEqual(t, ta.SessionID, tc.SessionID)
	case <-time.After(time.Second):
		t.Fatal("a join to a new session waited for a busy one")
	}

	close(stalled.release)
	cancel()
	require.NoError(t, <-done)
	<-secondJoined
}
