package turn

import (
	"fmt"
	"time"
)

type Phase uint8

const (
	PhaseStart Phase = iota
	PhaseDraw
	PhasePlay
	PhaseEnd
)

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseDraw:
		return "draw"
	case PhasePlay:
		return "play"
	case PhaseEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Next returns the following phase within the same turn. End wraps to Start.
func (p Phase) Next() Phase {
	if p >= PhaseEnd {
		return PhaseStart
	}
	return p + 1
}

// Turn identifies one phase of one participant's turn. Turns are values and
// are replaced, never mutated, on every transition.
type Turn struct {
	Participant uint32 `json:"participant"`
	Counter     uint32 `json:"counter"`
	Phase       Phase  `json:"phase"`
}

func (t Turn) String() string {
	return fmt.Sprintf("turn %d participant %d phase %s", t.Counter, t.Participant, t.Phase)
}

type Config struct {
	// ParticipantCount is the number of seats taking turns.
	ParticipantCount uint32
	// TurnLimit ends the session once the counter reaches it.
	TurnLimit uint32
	// PlayDuration is the time budget of the play phase.
	PlayDuration time.Duration
}

// First returns the opening turn of a session.
func First() Turn {
	return Turn{Participant: 0, Counter: 0, Phase: PhaseStart}
}

// Next computes the turn that follows t. It returns false when the session
// has run out of turns.
func Next(t Turn, cfg Config) (Turn, bool) {
	if t.Phase != PhaseEnd {
		return Turn{Participant: t.Participant, Counter: t.Counter, Phase: t.Phase.Next()}, true
	}

	count := cfg.ParticipantCount
	if count == 0 {
		count = 1
	}
	participant := (t.Participant + 1) % count
	counter := t.Counter
	if participant == 0 {
		counter++
	}
	if counter >= cfg.TurnLimit {
		return Turn{}, false
	}
	return Turn{Participant: participant, Counter: counter, Phase: PhaseStart}, true
}

// Duration returns the time budget of t. Only the play phase waits for the
// participant; every other phase completes immediately.
func Duration(t Turn, cfg Config) time.Duration {
	if t.Phase == PhasePlay {
		return cfg.PlayDuration
	}
	return 0
}
