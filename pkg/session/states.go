package session

import (
	"time"

	"github.com/cbodonnell/cardstage/pkg/game/actions"
	"github.com/cbodonnell/cardstage/pkg/game/turn"
	"github.com/cbodonnell/cardstage/pkg/game/types"
	"github.com/cbodonnell/cardstage/pkg/messages"
)

// State is the current stage of a session. Exactly one is active at a time:
// Waiting, GameSetup, GameStart, PlayerTurn or Done.
type State interface {
	Kind() types.StageKind
	state()
}

// Waiting waits for the participants to connect.
type Waiting struct{}

// GameSetup waits for every participant to signal ready.
type GameSetup struct{}

// GameStart deals the opening hands.
type GameStart struct{}

// PlayerTurn is one phase of one participant's turn.
type PlayerTurn struct {
	Turn turn.Turn
}

// Done is terminal.
type Done struct {
	Result types.Result
}

func (Waiting) Kind() types.StageKind    { return types.StageWaiting }
func (GameSetup) Kind() types.StageKind  { return types.StageGameSetup }
func (GameStart) Kind() types.StageKind  { return types.StageGameStart }
func (PlayerTurn) Kind() types.StageKind { return types.StagePlayerTurn }
func (Done) Kind() types.StageKind       { return types.StageDone }

func (Waiting) state()    {}
func (GameSetup) state()  {}
func (GameStart) state()  {}
func (PlayerTurn) state() {}
func (Done) state()       {}

func describe(st State) string {
	switch st := st.(type) {
	case PlayerTurn:
		return st.Turn.String()
	case Done:
		return "done(" + st.Result.String() + ")"
	default:
		return st.Kind().String()
	}
}

// duration is the time a state may last before its timeout transition.
func (s *Stage) duration(st State) time.Duration {
	switch st := st.(type) {
	case Waiting:
		return s.config.WaitingTimeout
	case GameSetup:
		return s.config.SetupTimeout
	case GameStart:
		return s.config.GameStartTimeout
	case PlayerTurn:
		return turn.Duration(st.Turn, s.turnConfig())
	default:
		return 0
	}
}

// enter runs the side effects of st. It is called exactly once per
// transition.
func (s *Stage) enter(st State) {
	switch st := st.(type) {
	case Waiting:
	case GameSetup:
		s.broadcast(&messages.SetupBegin{Session: s.id, Participants: s.config.Participants})
	case GameStart:
		s.started = true
		s.game.Shuffle(s.rng)
		if err := s.game.Deal(s.config.OpeningHandSize); err != nil {
			s.logger.Error("Failed to deal opening hands: %v", err)
		}
		for _, p := range s.game.Players {
			s.sendTo(p.Participant, &messages.HandUpdate{Participant: p.Participant, Cards: append([]types.Card(nil), p.Hand...)})
		}
		s.broadcast(&messages.GameStarted{Players: s.game.Views(), Battlefield: s.game.BattlefieldView()})
	case PlayerTurn:
		s.game.Turn = st.Turn
		if st.Turn.Phase == turn.PhaseStart {
			s.game.BeginTurn(st.Turn.Participant)
			s.turns++
		}
		mana := 0
		if p, ok := s.game.Player(st.Turn.Participant); ok {
			mana = p.Mana
		}
		s.broadcast(&messages.NewTurn{Turn: st.Turn, Mana: mana})
		if st.Turn.Phase == turn.PhaseDraw {
			s.enqueue(actions.System, &messages.DrawCard{Participant: st.Turn.Participant})
		}
	case Done:
	}
}

// timeout is the transition taken when the deadline of st elapses.
func (s *Stage) timeout(st State) State {
	switch st.(type) {
	case Waiting:
		return Done{Result: types.Result{Kind: types.ResultNotAllPlayersConnected}}
	case GameSetup:
		return Done{Result: types.Result{Kind: types.ResultNotAllPlayersReady}}
	case GameStart, PlayerTurn:
		return s.next(st)
	default:
		return st
	}
}

// next is the transition taken when the work of st is complete.
func (s *Stage) next(st State) State {
	switch st := st.(type) {
	case Waiting:
		return GameSetup{}
	case GameSetup:
		return GameStart{}
	case GameStart:
		return PlayerTurn{Turn: turn.First()}
	case PlayerTurn:
		t, ok := s.advance(st.Turn)
		if !ok {
			return Done{Result: types.Result{Kind: types.ResultOutOfTurns}}
		}
		return PlayerTurn{Turn: t}
	default:
		return st
	}
}

// advance computes the turn after t, skipping the turns of participants who
// are out of the game.
func (s *Stage) advance(t turn.Turn) (turn.Turn, bool) {
	cfg := s.turnConfig()
	next, ok := turn.Next(t, cfg)
	for ok && next.Phase == turn.PhaseStart && !s.alive(next.Participant) {
		next.Phase = turn.PhaseEnd
		next, ok = turn.Next(next, cfg)
	}
	return next, ok
}

func (s *Stage) alive(participant uint32) bool {
	p, ok := s.game.Player(participant)
	return ok && p.Life > 0
}

func (s *Stage) turnConfig() turn.Config {
	return turn.Config{
		ParticipantCount: s.config.Participants,
		TurnLimit:        s.config.TurnLimit,
		PlayDuration:     s.config.PlayDuration,
	}
}
