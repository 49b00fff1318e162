package types

import (
	"fmt"

	"github.com/cbodonnell/cardstage/pkg/arena"
)

// StageKind mirrors the coordinator's current stage so the action pipeline
// can validate against it without depending on the coordinator.
type StageKind uint8

const (
	StageWaiting StageKind = iota
	StageGameSetup
	StageGameStart
	StagePlayerTurn
	StageDone
)

func (s StageKind) String() string {
	switch s {
	case StageWaiting:
		return "waiting"
	case StageGameSetup:
		return "game_setup"
	case StageGameStart:
		return "game_start"
	case StagePlayerTurn:
		return "player_turn"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

type ResultKind uint8

const (
	ResultNotAllPlayersConnected ResultKind = iota
	ResultNotAllPlayersReady
	ResultOutOfTurns
	ResultStopAndExit
	ResultVictory
	ResultDraw
)

func (r ResultKind) String() string {
	switch r {
	case ResultNotAllPlayersConnected:
		return "not_all_players_connected"
	case ResultNotAllPlayersReady:
		return "not_all_players_ready"
	case ResultOutOfTurns:
		return "out_of_turns"
	case ResultStopAndExit:
		return "stop_and_exit"
	case ResultVictory:
		return "victory"
	case ResultDraw:
		return "draw"
	default:
		return "unknown"
	}
}

// Result is how a session ended. Winner is only meaningful for ResultVictory.
type Result struct {
	Kind   ResultKind `json:"kind"`
	Winner uint32     `json:"winner,omitempty"`
}

func (r Result) String() string {
	if r.Kind == ResultVictory {
		return fmt.Sprintf("%s(%d)", r.Kind, r.Winner)
	}
	return r.Kind.String()
}

// Card is one physical card in a deck, identified across zones by ID.
type Card struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PermanentView is a card in play as every participant sees it. Handle is
// how actions refer to it.
type PermanentView struct {
	Handle    arena.Handle `json:"handle"`
	Permanent Permanent    `json:"permanent"`
}

// PlayerView is the public part of a participant's state.
type PlayerView struct {
	Participant uint32 `json:"participant"`
	Life        int    `json:"life"`
	HandSize    int    `json:"handSize"`
	LibrarySize int    `json:"librarySize"`
}
