package clients

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cbodonnell/cardstage/pkg/log"
	"github.com/cbodonnell/cardstage/pkg/messages"
	"github.com/cbodonnell/cardstage/pkg/registry"
	"github.com/cbodonnell/cardstage/pkg/session"
	"github.com/cbodonnell/cardstage/pkg/workers"
	"github.com/google/uuid"
)

// DefaultRelaySize is the capacity of the relay of every session.
const DefaultRelaySize = 256

var ErrLobbyClosed = errors.New("lobby is closed")

// Table is one running session together with its seats.
type Table struct {
	ID    string
	Seats *SeatManager
	relay *session.Relay
	stage *session.Stage
}

// Ticket is the membership of a connection in a session.
type Ticket struct {
	SessionID      string
	Participant    uint32
	ReconnectToken string

	sender RelaySender
	seats  *SeatManager
	once   sync.Once
}

// Send submits an action on behalf of the participant of the ticket.
func (t *Ticket) Send(action messages.Action) error {
	return t.sender.Send(session.Act{Participant: t.Participant, Action: action})
}

// Shutdown asks the session to end immediately.
func (t *Ticket) Shutdown() error {
	return t.sender.Send(session.Shutdown{Participant: t.Participant})
}

// Leave detaches the connection from the session. The seat is released only
// after the session was told, so a reconnect always arrives after the Close.
func (t *Ticket) Leave() {
	t.once.Do(func() {
		_ = t.sender.Send(session.Close{Participant: t.Participant})
		t.seats.Release(t.Participant)
		t.sender.Close()
	})
}

// Lobby matches incoming connections to sessions. Connections fill the open
// session until all of its seats are claimed, then a new one is created.
type Lobby struct {
	lock   sync.Mutex
	open   *Table
	tables map[string]*Table
	tokens map[string]*Table
	uids   map[string]*Table
	closed bool

	config     session.Config
	relaySize  int
	resultChan chan<- workers.MatchResult
	statusChan chan<- registry.SessionInfo
	newID      func() string
	logger     *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type NewLobbyOptions struct {
	Config     session.Config
	RelaySize  int
	ResultChan chan<- workers.MatchResult
	StatusChan chan<- registry.SessionInfo
	// NewID generates session IDs. Defaults to uuid.NewString.
	NewID  func() string
	Logger *log.Logger
}

func NewLobby(opts NewLobbyOptions) (*Lobby, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %v", err)
	}
	relaySize := opts.RelaySize
	if relaySize <= 0 {
		relaySize = DefaultRelaySize
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Lobby{
		tables:     make(map[string]*Table),
		tokens:     make(map[string]*Table),
		uids:       make(map[string]*Table),
		config:     opts.Config,
		relaySize:  relaySize,
		resultChan: opts.ResultChan,
		statusChan: opts.StatusChan,
		newID:      newID,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Join seats conn in a session. A non-empty token reclaims the seat it was
// issued for; a non-empty uid reclaims the seat bound to that user. The lobby
// lock only covers picking the seat, so a busy session cannot stall joins to
// the others.
func (l *Lobby) Join(conn session.Connection, token string, uid string) (*Ticket, error) {
	table, seat, err := l.claim(token, uid)
	if err != nil {
		return nil, err
	}

	sender := table.relay.Sender()
	if err := table.Seats.Open(sender, conn, seat); err != nil {
		sender.Close()
		return nil, err
	}

	l.logger.Debug("Participant %d joined session %s", seat.Participant, table.ID)
	return &Ticket{
		SessionID:      table.ID,
		Participant:    seat.Participant,
		ReconnectToken: seat.ReconnectToken,
		sender:         sender,
		seats:          table.Seats,
	}, nil
}

func (l *Lobby) claim(token string, uid string) (*Table, Seat, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.closed {
		return nil, Seat{}, ErrLobbyClosed
	}

	table, err := l.tableFor(token, uid)
	if err != nil {
		return nil, Seat{}, err
	}
	seat, err := table.Seats.Claim(token, uid)
	if err != nil {
		return nil, Seat{}, err
	}
	l.tokens[seat.ReconnectToken] = table
	if uid != "" {
		l.uids[uid] = table
	}
	if table == l.open && table.Seats.Full() {
		l.open = nil
	}
	return table, seat, nil
}

// tableFor must be called with the lock held.
func (l *Lobby) tableFor(token string, uid string) (*Table, error) {
	if token != "" {
		table, ok := l.tokens[token]
		if !ok {
			return nil, ErrUnknownToken
		}
		return table, nil
	}
	if uid != "" {
		if table, ok := l.uids[uid]; ok {
			return table, nil
		}
	}
	if l.open == nil || l.open.Seats.Full() {
		table, err := l.spawn()
		if err != nil {
			return nil, err
		}
		l.open = table
	}
	return l.open, nil
}

// spawn must be called with the lock held.
func (l *Lobby) spawn() (*Table, error) {
	id := l.newID()
	relay := session.NewRelay(l.relaySize)
	stage, err := session.NewStage(session.NewStageOptions{
		ID:         id,
		Config:     l.config,
		Relay:      relay,
		Logger:     l.logger,
		ResultChan: l.resultChan,
		StatusChan: l.statusChan,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %v", err)
	}
	table := &Table{
		ID: id,
		Seats: NewSeatManager(NewSeatManagerOptions{
			Seats:  l.config.Participants,
			Sender: relay.Sender(),
			Logger: l.logger.With("session", id),
		}),
		relay: relay,
		stage: stage,
	}
	l.tables[id] = table

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := stage.Run(l.ctx); err != nil {
			l.logger.Error("Session %s stopped: %v", id, err)
		}
		l.Remove(id)
	}()

	l.logger.Info("Created session %s", id)
	return table, nil
}

// Remove forgets a session and every reconnect token issued for it.
func (l *Lobby) Remove(id string) {
	l.lock.Lock()
	defer l.lock.Unlock()

	table, ok := l.tables[id]
	if !ok {
		return
	}
	delete(l.tables, id)
	for token, t := range l.tokens {
		if t == table {
			delete(l.tokens, token)
		}
	}
	for uid, t := range l.uids {
		if t == table {
			delete(l.uids, uid)
		}
	}
	if l.open == table {
		l.open = nil
	}
	table.Seats.Close()
	l.logger.Debug("Removed session %s", id)
}

// Sessions returns the number of running sessions.
func (l *Lobby) Sessions() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.tables)
}

// Run blocks until ctx is cancelled, then stops every session and waits for
// them to finish.
func (l *Lobby) Run(ctx context.Context) error {
	<-ctx.Done()

	l.lock.Lock()
	l.closed = true
	l.lock.Unlock()

	l.logger.Info("Stopping %d sessions", l.Sessions())
	l.cancel()
	l.wg.Wait()
	return nil
}
