package session

import "github.com/cbodonnell/cardstage/pkg/messages"

// Connection delivers actions to one participant. Implementations must not
// block the caller on network I/O.
type Connection interface {
	Send(action messages.Action) error
	Close(reason string)
}

// Empty is the connection of a participant that is not connected. Sending to
// it always succeeds and goes nowhere.
type Empty struct{}

func (Empty) Send(messages.Action) error { return nil }

func (Empty) Close(string) {}

func isEmpty(c Connection) bool {
	_, ok := c.(Empty)
	return ok
}
