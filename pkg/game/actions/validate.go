package actions

import (
	"github.com/cbodonnell/cardstage/pkg/game/turn"
	"github.com/cbodonnell/cardstage/pkg/game/types"
	"github.com/cbodonnell/cardstage/pkg/messages"
)

// Validate checks whether actor may submit the action in the current state.
// Actions from the system are trusted and never rejected.
func Validate(actor Actor, action messages.Action, state *types.GameState) error {
	if actor.IsSystem() {
		return nil
	}
	participant, _ := actor.Participant()

	if attributed, ok := action.(messages.Attributed); ok && attributed.ParticipantID() != participant {
		return newValidationError(action, "participant %d cannot act for participant %d", participant, attributed.ParticipantID())
	}
	if _, ok := state.Player(participant); !ok {
		return newValidationError(action, "participant %d is not seated", participant)
	}

	switch a := action.(type) {
	case *messages.Invalid:
		return newValidationError(action, "malformed action: %s", a.Reason)
	case *messages.Text:
		return nil
	case *messages.Ready:
		if state.Stage != types.StageGameSetup {
			return newValidationError(action, "not accepted during %s", state.Stage)
		}
		if p, _ := state.Player(participant); p.Ready {
			return newValidationError(action, "participant %d is already ready", participant)
		}
		return nil
	case *messages.PlayCard, *messages.Attack, *messages.EndTurn:
		return validateTurn(action, state, participant, turn.PhasePlay)
	default:
		return newValidationError(action, "not accepted from participants")
	}
}

func validateTurn(action messages.Action, state *types.GameState, participant uint32, phase turn.Phase) error {
	if state.Stage != types.StagePlayerTurn {
		return newValidationError(action, "not accepted during %s", state.Stage)
	}
	if state.Turn.Participant != participant {
		return newValidationError(action, "it is the turn of participant %d", state.Turn.Participant)
	}
	if state.Turn.Phase != phase {
		return newValidationError(action, "not accepted during the %s phase", state.Turn.Phase)
	}
	return nil
}
