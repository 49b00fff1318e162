package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cbodonnell/cardstage/pkg/messages"
	"github.com/cbodonnell/cardstage/pkg/queue"
)

// ErrRelayDisconnected is returned by Run when every sender of its relay has
// been closed.
var ErrRelayDisconnected = errors.New("relay disconnected")

// RelayMessage is an input of the session coordinator.
type RelayMessage interface {
	relayMessage()
}

// Open attaches a connection to a participant. ReconnectToken is handed to
// the participant so it can reclaim its seat later.
type Open struct {
	Participant    uint32
	Connection     Connection
	ReconnectToken string
}

// Close detaches the connection of a participant.
type Close struct {
	Participant uint32
}

// Act submits an action on behalf of a participant.
type Act struct {
	Participant uint32
	Action      messages.Action
}

// Start leaves the waiting stage once enough participants are connected.
type Start struct{}

// Shutdown ends the session immediately.
type Shutdown struct {
	Participant uint32
}

func (Open) relayMessage()     {}
func (Close) relayMessage()    {}
func (Act) relayMessage()      {}
func (Start) relayMessage()    {}
func (Shutdown) relayMessage() {}

// Relay carries messages from any number of connection goroutines to a
// single coordinator. It is disconnected once the last Sender is closed.
type Relay struct {
	queue *queue.InMemoryQueue[RelayMessage]

	lock    sync.Mutex
	senders int
}

func NewRelay(size int) *Relay {
	return &Relay{
		queue: queue.NewInMemoryQueue[RelayMessage](size),
	}
}

// Sender returns a new producer handle. Every sender must be closed.
func (r *Relay) Sender() *Sender {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.senders++
	return &Sender{relay: r}
}

func (r *Relay) release() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.senders--
	if r.senders == 0 {
		r.queue.Close()
	}
}

func (r *Relay) receive(ctx context.Context) (RelayMessage, error) {
	msg, err := r.queue.Dequeue(ctx)
	if errors.Is(err, queue.ErrQueueClosed) {
		return nil, ErrRelayDisconnected
	}
	return msg, err
}

func (r *Relay) close() {
	r.queue.Close()
}

// Sender is one producer of a Relay.
type Sender struct {
	relay     *Relay
	closeOnce sync.Once
}

// Send enqueues a message, blocking while the relay is full. It fails once
// the coordinator has stopped.
func (s *Sender) Send(msg RelayMessage) error {
	if err := s.relay.queue.Enqueue(msg); err != nil {
		return fmt.Errorf("failed to relay %T: %v", msg, err)
	}
	return nil
}

// Close releases the sender. It is safe to call more than once.
func (s *Sender) Close() {
	s.closeOnce.Do(s.relay.release)
}
