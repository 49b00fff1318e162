package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/cbodonnell/cardstage/pkg/game/actions"
	"github.com/cbodonnell/cardstage/pkg/game/types"
	"github.com/cbodonnell/cardstage/pkg/log"
	"github.com/cbodonnell/cardstage/pkg/messages"
	"github.com/cbodonnell/cardstage/pkg/registry"
	"github.com/cbodonnell/cardstage/pkg/workers"
)

// Config holds the rules and deadlines of a session.
type Config struct {
	Participants     uint32
	TurnLimit        uint32
	WaitingTimeout   time.Duration
	SetupTimeout     time.Duration
	GameStartTimeout time.Duration
	PlayDuration     time.Duration
	StartingLife     int
	OpeningHandSize  int
}

func (c Config) Validate() error {
	if c.Participants == 0 {
		return fmt.Errorf("a session needs at least one participant")
	}
	if c.TurnLimit == 0 {
		return fmt.Errorf("turn limit must be positive")
	}
	if c.OpeningHandSize < 0 {
		return fmt.Errorf("opening hand size cannot be negative")
	}
	return nil
}

// Stage is the authority of one session. Run owns every field: nothing else
// may touch them while it runs, all input arrives through the relay.
type Stage struct {
	id         string
	config     Config
	relay      *Relay
	logger     *log.Logger
	rng        *rand.Rand
	resultChan chan<- workers.MatchResult
	statusChan chan<- registry.SessionInfo

	state       State
	game        *types.GameState
	connections []Connection
	queue       []queuedAction
	deadline    time.Time
	started     bool
	turns       uint32
	startedAt   time.Time
	history     []workers.ActionRecord
}

type queuedAction struct {
	actor  actions.Actor
	action messages.Action
}

type NewStageOptions struct {
	ID     string
	Config Config
	Relay  *Relay
	Logger *log.Logger
	// Rand shuffles the decks. Defaults to a time seeded source.
	Rand *rand.Rand
	// GameState defaults to a fresh state for Config.Participants.
	GameState *types.GameState
	// ResultChan receives the result of a finished match. Sends never block.
	ResultChan chan<- workers.MatchResult
	// StatusChan receives the session status on every transition. Sends
	// never block.
	StatusChan chan<- registry.SessionInfo
}

func NewStage(opts NewStageOptions) (*Stage, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %v", err)
	}
	if opts.Relay == nil {
		return nil, fmt.Errorf("a session needs a relay")
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	game := opts.GameState
	if game == nil {
		game = types.NewGameState(types.NewGameStateOptions{
			Participants: opts.Config.Participants,
			StartingLife: opts.Config.StartingLife,
		})
	}

	connections := make([]Connection, opts.Config.Participants)
	for i := range connections {
		connections[i] = Empty{}
	}

	return &Stage{
		id:          opts.ID,
		config:      opts.Config,
		relay:       opts.Relay,
		logger:      logger.With("session", opts.ID),
		rng:         rng,
		resultChan:  opts.ResultChan,
		statusChan:  opts.StatusChan,
		game:        game,
		connections: connections,
	}, nil
}

// Run drives the session until it is done. It returns ErrRelayDisconnected
// if every sender of the relay went away first. Cancelling ctx shuts the
// session down.
func (s *Stage) Run(ctx context.Context) error {
	s.startedAt = time.Now()
	s.transition(Waiting{})

	var runErr error
	for !s.done() {
		s.drain()
		if s.done() {
			break
		}

		msg, err := s.receive(ctx)
		switch {
		case err == nil:
			s.handle(msg)
		case errors.Is(err, ErrRelayDisconnected):
			s.logger.Error("Relay disconnected in %s", describe(s.state))
			runErr = err
		case ctx.Err() != nil:
			s.logger.Info("Session cancelled: %v", ctx.Err())
			s.transition(Done{Result: types.Result{Kind: types.ResultStopAndExit}})
		case errors.Is(err, context.DeadlineExceeded):
			s.logger.Trace("Deadline of %s elapsed", describe(s.state))
			s.transition(s.timeout(s.state))
		default:
			runErr = fmt.Errorf("failed to receive relay message: %v", err)
		}
		if runErr != nil {
			break
		}
	}

	s.finish(runErr)
	return runErr
}

// State returns the current state. It must only be called from the goroutine
// running Run, or after Run returned.
func (s *Stage) State() State {
	return s.state
}

func (s *Stage) done() bool {
	_, ok := s.state.(Done)
	return ok
}

func (s *Stage) receive(ctx context.Context) (RelayMessage, error) {
	ctx, cancel := context.WithDeadline(ctx, s.deadline)
	defer cancel()
	return s.relay.receive(ctx)
}

func (s *Stage) transition(st State) {
	if s.state != nil {
		s.logger.Debug("Transition from %s to %s", describe(s.state), describe(st))
	}
	s.state = st
	s.game.Stage = st.Kind()
	s.deadline = time.Now().Add(s.duration(st))
	s.enter(st)
	s.reportStatus()
}

func (s *Stage) handle(msg RelayMessage) {
	switch msg := msg.(type) {
	case Open:
		s.open(msg)
	case Close:
		if !s.seated(msg.Participant) {
			s.logger.Warn("Close for unknown participant %d", msg.Participant)
			return
		}
		s.logger.Info("Participant %d disconnected", msg.Participant)
		s.connections[msg.Participant] = Empty{}
		s.reportStatus()
	case Act:
		s.act(msg)
	case Start:
		if _, ok := s.state.(Waiting); !ok {
			s.logger.Debug("Ignoring start in %s", describe(s.state))
			return
		}
		s.transition(s.next(s.state))
	case Shutdown:
		s.logger.Info("Shutdown requested by participant %d", msg.Participant)
		s.transition(Done{Result: types.Result{Kind: types.ResultStopAndExit}})
	default:
		s.logger.Error("Unknown relay message %T", msg)
	}
}

func (s *Stage) seated(participant uint32) bool {
	return int(participant) < len(s.connections)
}

func (s *Stage) open(msg Open) {
	if !s.seated(msg.Participant) {
		s.logger.Warn("Open for unknown participant %d", msg.Participant)
		if msg.Connection != nil {
			msg.Connection.Close(fmt.Sprintf("participant %d is not seated", msg.Participant))
		}
		return
	}
	if previous := s.connections[msg.Participant]; !isEmpty(previous) {
		previous.Close("replaced by a new connection")
	}
	if msg.Connection == nil {
		msg.Connection = Empty{}
	}
	s.connections[msg.Participant] = msg.Connection
	s.logger.Info("Participant %d connected", msg.Participant)

	// identity first, before any other traffic
	s.sendTo(msg.Participant, &messages.AssignID{Participant: msg.Participant, ReconnectToken: msg.ReconnectToken})
	s.resync(msg.Participant)
	s.reportStatus()
}

// resync brings a participant that connects mid-game up to date.
func (s *Stage) resync(participant uint32) {
	switch st := s.state.(type) {
	case GameSetup:
		s.sendTo(participant, &messages.SetupBegin{Session: s.id, Participants: s.config.Participants})
	case GameStart, PlayerTurn:
		s.sendTo(participant, &messages.GameStarted{Players: s.game.Views(), Battlefield: s.game.BattlefieldView()})
		if p, ok := s.game.Player(participant); ok {
			s.sendTo(participant, &messages.HandUpdate{Participant: participant, Cards: append([]types.Card(nil), p.Hand...)})
		}
		if pt, ok := st.(PlayerTurn); ok {
			mana := 0
			if p, ok := s.game.Player(pt.Turn.Participant); ok {
				mana = p.Mana
			}
			s.sendTo(participant, &messages.NewTurn{Turn: pt.Turn, Mana: mana})
		}
	}
}

func (s *Stage) act(msg Act) {
	if !s.seated(msg.Participant) || isEmpty(s.connections[msg.Participant]) {
		err := &actions.ValidationError{Action: msg.Action.Type(), Reason: fmt.Sprintf("participant %d is not connected", msg.Participant)}
		s.logger.Warn("Rejected action: %v", err)
		s.reject(msg.Participant, msg.Action, err)
		return
	}

	actor := actions.User(msg.Participant)
	if err := actions.Validate(actor, msg.Action, s.game); err != nil {
		s.logger.Debug("Rejected action from participant %d: %v", msg.Participant, err)
		s.reject(msg.Participant, msg.Action, err)
		return
	}
	s.enqueue(actor, msg.Action)
}

func (s *Stage) enqueue(actor actions.Actor, action messages.Action) {
	s.queue = append(s.queue, queuedAction{actor: actor, action: action})
}

// drain applies every queued action in order. An action that changes the
// state is the last one applied before the transition; anything still queued
// behind it is rejected.
func (s *Stage) drain() {
	for len(s.queue) > 0 && !s.done() {
		qa := s.queue[0]
		s.queue = s.queue[1:]

		code, err := actions.Perform(qa.action, s.game, qa.actor)
		if err != nil {
			s.logger.Debug("Action %s by %s failed: %v", qa.action.Type(), qa.actor, err)
			s.reject(owner(qa), qa.action, err)
			continue
		}
		s.record(qa)

		switch code {
		case actions.Nothing:
		case actions.Done:
			s.broadcast(outbound(qa))
		case actions.EchoAction:
			s.sendTo(owner(qa), qa.action)
		case actions.ChangeState:
			s.broadcast(outbound(qa))
			s.rejectQueued()
			if !s.checkWinner() {
				s.transition(s.next(s.state))
			}
			continue
		}
		s.checkWinner()
	}
}

func (s *Stage) rejectQueued() {
	pending := s.queue
	s.queue = nil
	for _, qa := range pending {
		s.reject(owner(qa), qa.action, &actions.ActionError{Kind: actions.KindGeneric, Detail: "state changed"})
	}
}

// checkWinner ends the session once at most one participant is alive.
func (s *Stage) checkWinner() bool {
	if _, ok := s.state.(PlayerTurn); !ok {
		return false
	}
	survivors := s.game.Survivors()
	switch {
	case len(survivors) == 1 && len(s.game.Players) > 1:
		s.transition(Done{Result: types.Result{Kind: types.ResultVictory, Winner: survivors[0]}})
		return true
	case len(survivors) == 0:
		s.transition(Done{Result: types.Result{Kind: types.ResultDraw}})
		return true
	default:
		return false
	}
}

// owner is the participant an action is reported back to.
func owner(qa queuedAction) uint32 {
	if participant, ok := qa.actor.Participant(); ok {
		return participant
	}
	if attributed, ok := qa.action.(messages.Attributed); ok {
		return attributed.ParticipantID()
	}
	return 0
}

// outbound is what the rest of the table sees of an applied action.
func outbound(qa queuedAction) messages.Action {
	if text, ok := qa.action.(*messages.Text); ok {
		return &messages.Chat{From: owner(qa), Body: text.Body}
	}
	return qa.action
}

func (s *Stage) reject(participant uint32, action messages.Action, err error) {
	result := &messages.ActionResult{
		Participant: participant,
		Action:      action.Type(),
		Detail:      err.Error(),
	}
	if actionErr, ok := actions.IsActionError(err); ok {
		result.Error = actionErr.Kind.String()
		result.Detail = actionErr.Detail
	} else {
		result.Error = "validation"
	}
	s.sendTo(participant, result)
}

func (s *Stage) record(qa queuedAction) {
	s.history = append(s.history, workers.ActionRecord{
		Actor:  qa.actor.String(),
		Type:   qa.action.Type().String(),
		Action: qa.action,
	})
}

func (s *Stage) sendTo(participant uint32, action messages.Action) {
	if !s.seated(participant) {
		return
	}
	conn := s.connections[participant]
	if err := conn.Send(action); err != nil {
		s.logger.Warn("Failed to send %s to participant %d: %v", action.Type(), participant, err)
		conn.Close("send failed")
		s.connections[participant] = Empty{}
	}
}

func (s *Stage) broadcast(action messages.Action) {
	for participant := range s.connections {
		s.sendTo(uint32(participant), action)
	}
}

func (s *Stage) finish(runErr error) {
	reason := "relay disconnected"
	var result types.Result
	if done, ok := s.state.(Done); ok {
		result = done.Result
		reason = result.String()
	}
	s.logger.Info("Session finished: %s", reason)

	for participant, conn := range s.connections {
		conn.Close(reason)
		s.connections[participant] = Empty{}
	}
	s.relay.close()
	s.reportStatus()

	if runErr != nil || !s.started || s.resultChan == nil {
		return
	}
	match := workers.MatchResult{
		SessionID:    s.id,
		Result:       result,
		Participants: s.config.Participants,
		Turns:        s.turns,
		StartedAt:    s.startedAt,
		EndedAt:      time.Now(),
		Actions:      s.history,
	}
	select {
	case s.resultChan <- match:
	default:
		s.logger.Error("Dropped the result of session %s: result channel is full", s.id)
	}
}

func (s *Stage) reportStatus() {
	if s.statusChan == nil {
		return
	}
	info := registry.SessionInfo{
		ID:           s.id,
		Stage:        s.state.Kind().String(),
		Participants: s.config.Participants,
		UpdatedAt:    time.Now(),
	}
	for participant, conn := range s.connections {
		if !isEmpty(conn) {
			info.Connected = append(info.Connected, uint32(participant))
		}
	}
	switch st := s.state.(type) {
	case PlayerTurn:
		t := st.Turn
		info.Turn = &t
	case Done:
		info.Result = st.Result.String()
	}
	select {
	case s.statusChan <- info:
	default:
		s.logger.Trace("Status channel full, skipping update")
	}
}
