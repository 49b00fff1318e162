package actions

import (
	"errors"
	"fmt"

	"github.com/cbodonnell/cardstage/pkg/messages"
)

// OkCode tells the coordinator what to do with an action that was applied.
type OkCode uint8

const (
	// Nothing means the action had no observable effect
	Nothing OkCode = iota
	// Done means the action was applied and is broadcast to every participant
	Done
	// ChangeState means the action completed the current stage
	ChangeState
	// EchoAction means the action is mirrored back to its participant only
	EchoAction
)

func (c OkCode) String() string {
	switch c {
	case Nothing:
		return "nothing"
	case Done:
		return "done"
	case ChangeState:
		return "change_state"
	case EchoAction:
		return "echo_action"
	default:
		return "unknown"
	}
}

type ErrorKind uint8

const (
	KindNotSupported ErrorKind = iota
	KindInternal
	KindGeneric
	KindInvalidTarget
	KindNoTarget
	KindCantPayCost
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotSupported:
		return "not_supported"
	case KindInternal:
		return "internal"
	case KindGeneric:
		return "generic"
	case KindInvalidTarget:
		return "invalid_target"
	case KindNoTarget:
		return "no_target"
	case KindCantPayCost:
		return "cant_pay_cost"
	default:
		return "unknown"
	}
}

// ActionError is returned when an accepted action cannot be applied.
type ActionError struct {
	Kind   ErrorKind
	Detail string
}

func (e *ActionError) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func newActionError(kind ErrorKind, format string, args ...interface{}) *ActionError {
	return &ActionError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// IsActionError returns the ActionError wrapped by err, if any.
func IsActionError(err error) (*ActionError, bool) {
	var actionErr *ActionError
	if errors.As(err, &actionErr) {
		return actionErr, true
	}
	return nil, false
}

// ValidationError is returned when an action is rejected before being queued.
type ValidationError struct {
	Action messages.ActionType
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Action, e.Reason)
}

func newValidationError(a messages.Action, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Action: a.Type(), Reason: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// Actor is the origin of an action: a participant or the authority itself.
type Actor struct {
	system      bool
	participant uint32
}

// User returns the actor for a participant.
func User(participant uint32) Actor {
	return Actor{participant: participant}
}

// System is the actor for actions generated by the authority.
var System = Actor{system: true}

func (a Actor) IsSystem() bool {
	return a.system
}

// Participant returns the participant of a user actor.
func (a Actor) Participant() (uint32, bool) {
	return a.participant, !a.system
}

func (a Actor) String() string {
	if a.system {
		return "system"
	}
	return fmt.Sprintf("user(%d)", a.participant)
}
