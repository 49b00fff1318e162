package clients

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cbodonnell/cardstage/pkg/log"
	"github.com/cbodonnell/cardstage/pkg/session"
	"github.com/google/uuid"
)

var (
	ErrSessionFull  = errors.New("session is full")
	ErrUnknownToken = errors.New("unknown reconnect token")
	ErrSeatTaken    = errors.New("seat is already connected")
)

// RelaySender is the producing side of a session relay.
type RelaySender interface {
	Send(msg session.RelayMessage) error
	Close()
}

// Seat is the identity of a connection within a session.
type Seat struct {
	Participant    uint32
	ReconnectToken string
	UID            string
}

type seat struct {
	Seat
	claimed   bool
	opened    bool
	connected bool
}

// SeatManager hands out the participant IDs of one session. A new
// connection takes the lowest seat nobody claimed yet; a connection
// presenting a reconnect token (or the verified UID bound to a seat) takes
// its previous seat back.
type SeatManager struct {
	lock     sync.Mutex
	seats    []seat
	started  bool
	sender   RelaySender
	newToken func() string
	logger   *log.Logger
}

type NewSeatManagerOptions struct {
	Seats uint32
	// Sender is used to start the session once every seat is connected.
	// The manager owns it and closes it in Close.
	Sender RelaySender
	// NewToken generates reconnect tokens. Defaults to uuid.NewString.
	NewToken func() string
	Logger   *log.Logger
}

func NewSeatManager(opts NewSeatManagerOptions) *SeatManager {
	newToken := opts.NewToken
	if newToken == nil {
		newToken = uuid.NewString
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	seats := make([]seat, opts.Seats)
	for i := range seats {
		seats[i].Participant = uint32(i)
	}
	return &SeatManager{
		seats:    seats,
		sender:   opts.Sender,
		newToken: newToken,
		logger:   logger,
	}
}

// Join seats a connection and attaches it to the session through link. The
// session is started once every seat has been opened for the first time.
func (m *SeatManager) Join(link RelaySender, conn session.Connection, token string, uid string) (Seat, error) {
	seat, err := m.Claim(token, uid)
	if err != nil {
		return Seat{}, err
	}
	if err := m.Open(link, conn, seat); err != nil {
		return Seat{}, err
	}
	return seat, nil
}

// Open attaches conn to a claimed seat through link. It blocks while the
// relay of the session is full. On failure the seat is released.
func (m *SeatManager) Open(link RelaySender, conn session.Connection, seat Seat) error {
	open := session.Open{Participant: seat.Participant, Connection: conn, ReconnectToken: seat.ReconnectToken}
	if err := link.Send(open); err != nil {
		m.Release(seat.Participant)
		return fmt.Errorf("failed to open seat %d: %v", seat.Participant, err)
	}

	if m.markOpened(seat.Participant) {
		m.logger.Debug("Every seat is connected, starting the session")
		if err := m.sender.Send(session.Start{}); err != nil {
			m.logger.Error("Failed to start the session: %v", err)
		}
	}
	return nil
}

// Claim reserves a seat without telling the session. It never blocks on the
// relay; the seat must then be opened or released.
func (m *SeatManager) Claim(token string, uid string) (Seat, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	s, err := m.find(token, uid)
	if err != nil {
		return Seat{}, err
	}
	if s.connected {
		return Seat{}, ErrSeatTaken
	}
	if !s.claimed {
		s.claimed = true
		s.ReconnectToken = m.newToken()
		s.UID = uid
	}
	s.connected = true
	return s.Seat, nil
}

// find must be called with the lock held.
func (m *SeatManager) find(token string, uid string) (*seat, error) {
	if token != "" {
		for i := range m.seats {
			if m.seats[i].claimed && m.seats[i].ReconnectToken == token {
				return &m.seats[i], nil
			}
		}
		return nil, ErrUnknownToken
	}
	if uid != "" {
		for i := range m.seats {
			if m.seats[i].claimed && m.seats[i].UID == uid {
				return &m.seats[i], nil
			}
		}
	}
	for i := range m.seats {
		if !m.seats[i].claimed {
			return &m.seats[i], nil
		}
	}
	return nil, ErrSessionFull
}

func (m *SeatManager) markOpened(participant uint32) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.seats[participant].opened = true
	if m.started {
		return false
	}
	for _, s := range m.seats {
		if !s.opened {
			return false
		}
	}
	m.started = true
	return true
}

// Release marks the seat of a participant as disconnected. The seat stays
// reserved for its reconnect token.
func (m *SeatManager) Release(participant uint32) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if int(participant) < len(m.seats) {
		m.seats[participant].connected = false
	}
}

// Full reports whether every seat has been claimed.
func (m *SeatManager) Full() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, s := range m.seats {
		if !s.claimed {
			return false
		}
	}
	return true
}

// Connected returns the participants currently connected.
func (m *SeatManager) Connected() []uint32 {
	m.lock.Lock()
	defer m.lock.Unlock()
	var connected []uint32
	for _, s := range m.seats {
		if s.connected {
			connected = append(connected, s.Participant)
		}
	}
	return connected
}

// Close releases the sender of the manager.
func (m *SeatManager) Close() {
	if m.sender != nil {
		m.sender.Close()
	}
}
