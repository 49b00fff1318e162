package messages

import (
	"github.com/cbodonnell/cardstage/pkg/arena"
	"github.com/cbodonnell/cardstage/pkg/game/turn"
	"github.com/cbodonnell/cardstage/pkg/game/types"
)

const (
	// MessageBufferSize represents the maximum size of a frame
	MessageBufferSize = 64 * 1024
)

// ActionType identifies an Action on the wire
type ActionType uint8

// Action types
const (
	ActionTypeInvalid ActionType = iota
	ActionTypeText
	ActionTypeAssignID
	ActionTypeSetupBegin
	ActionTypeReady
	ActionTypeGameStarted
	ActionTypeHandUpdate
	ActionTypeNewTurn
	ActionTypeDrawCard
	ActionTypePlayCard
	ActionTypeAttack
	ActionTypeEndTurn
	ActionTypeChat
	ActionTypeActionResult
)

func (t ActionType) String() string {
	switch t {
	case ActionTypeInvalid:
		return "invalid"
	case ActionTypeText:
		return "text"
	case ActionTypeAssignID:
		return "assign_id"
	case ActionTypeSetupBegin:
		return "setup_begin"
	case ActionTypeReady:
		return "ready"
	case ActionTypeGameStarted:
		return "game_started"
	case ActionTypeHandUpdate:
		return "hand_update"
	case ActionTypeNewTurn:
		return "new_turn"
	case ActionTypeDrawCard:
		return "draw_card"
	case ActionTypePlayCard:
		return "play_card"
	case ActionTypeAttack:
		return "attack"
	case ActionTypeEndTurn:
		return "end_turn"
	case ActionTypeChat:
		return "chat"
	case ActionTypeActionResult:
		return "action_result"
	default:
		return "unknown"
	}
}

// Action is anything exchanged between the authority and a participant.
// Concrete actions are pointers to the structs below.
type Action interface {
	Type() ActionType
}

// Attributed is implemented by actions submitted on behalf of a participant.
type Attributed interface {
	Action
	ParticipantID() uint32
}

// Invalid is what a malformed frame decodes to.
type Invalid struct {
	Reason string `json:"reason"`
}

// Text is a chat line sent by a participant as a text frame.
type Text struct {
	Body string `json:"body"`
}

// AssignID is the first action every connection receives.
type AssignID struct {
	Participant    uint32 `json:"participant"`
	ReconnectToken string `json:"reconnectToken"`
}

type SetupBegin struct {
	Session      string `json:"session"`
	Participants uint32 `json:"participants"`
}

type Ready struct {
	Participant uint32 `json:"participant"`
}

// GameStarted carries the public table. It is sent again to participants
// that reconnect mid-game, so Battlefield may be non-empty.
type GameStarted struct {
	Players     []types.PlayerView    `json:"players"`
	Battlefield []types.PermanentView `json:"battlefield,omitempty"`
}

// HandUpdate carries the full private hand of one participant.
type HandUpdate struct {
	Participant uint32       `json:"participant"`
	Cards       []types.Card `json:"cards"`
}

type NewTurn struct {
	Turn turn.Turn `json:"turn"`
	Mana int       `json:"mana"`
}

// DrawCard is performed by the authority. Card is filled in when applied.
type DrawCard struct {
	Participant uint32      `json:"participant"`
	Card        *types.Card `json:"card,omitempty"`
}

// PlayCard plays a card from hand. The authority fills in the fields below
// Target when the action is applied so the broadcast carries the outcome.
type PlayCard struct {
	Participant uint32        `json:"participant"`
	CardID      string        `json:"cardId"`
	Target      *arena.Handle `json:"target,omitempty"`

	Card      *types.Card    `json:"card,omitempty"`
	Permanent *arena.Handle  `json:"permanent,omitempty"`
	Destroyed []arena.Handle `json:"destroyed,omitempty"`
}

// Attack with a permanent. A nil Target attacks the opposing participant.
type Attack struct {
	Participant uint32        `json:"participant"`
	Attacker    arena.Handle  `json:"attacker"`
	Target      *arena.Handle `json:"target,omitempty"`

	Defender   *uint32        `json:"defender,omitempty"`
	Destroyed  []arena.Handle `json:"destroyed,omitempty"`
	TargetLife *int           `json:"targetLife,omitempty"`
}

type EndTurn struct {
	Participant uint32 `json:"participant"`
}

// Chat is a Text relayed by the authority to every participant.
type Chat struct {
	From uint32 `json:"from"`
	Body string `json:"body"`
}

// ActionResult reports a rejected or failed action back to its submitter.
type ActionResult struct {
	Participant uint32     `json:"participant"`
	Action      ActionType `json:"action"`
	Error       string     `json:"error"`
	Detail      string     `json:"detail,omitempty"`
}

func (*Invalid) Type() ActionType      { return ActionTypeInvalid }
func (*Text) Type() ActionType         { return ActionTypeText }
func (*AssignID) Type() ActionType     { return ActionTypeAssignID }
func (*SetupBegin) Type() ActionType   { return ActionTypeSetupBegin }
func (*Ready) Type() ActionType        { return ActionTypeReady }
func (*GameStarted) Type() ActionType  { return ActionTypeGameStarted }
func (*HandUpdate) Type() ActionType   { return ActionTypeHandUpdate }
func (*NewTurn) Type() ActionType      { return ActionTypeNewTurn }
func (*DrawCard) Type() ActionType     { return ActionTypeDrawCard }
func (*PlayCard) Type() ActionType     { return ActionTypePlayCard }
func (*Attack) Type() ActionType       { return ActionTypeAttack }
func (*EndTurn) Type() ActionType      { return ActionTypeEndTurn }
func (*Chat) Type() ActionType         { return ActionTypeChat }
func (*ActionResult) Type() ActionType { return ActionTypeActionResult }

func (a *AssignID) ParticipantID() uint32     { return a.Participant }
func (a *Ready) ParticipantID() uint32        { return a.Participant }
func (a *HandUpdate) ParticipantID() uint32   { return a.Participant }
func (a *DrawCard) ParticipantID() uint32     { return a.Participant }
func (a *PlayCard) ParticipantID() uint32     { return a.Participant }
func (a *Attack) ParticipantID() uint32       { return a.Participant }
func (a *EndTurn) ParticipantID() uint32      { return a.Participant }
func (a *ActionResult) ParticipantID() uint32 { return a.Participant }

// newAction returns an empty action of the given type, or nil if the type is
// unknown.
func newAction(t ActionType) Action {
	switch t {
	case ActionTypeInvalid:
		return &Invalid{}
	case ActionTypeText:
		return &Text{}
	case ActionTypeAssignID:
		return &AssignID{}
	case ActionTypeSetupBegin:
		return &SetupBegin{}
	case ActionTypeReady:
		return &Ready{}
	case ActionTypeGameStarted:
		return &GameStarted{}
	case ActionTypeHandUpdate:
		return &HandUpdate{}
	case ActionTypeNewTurn:
		return &NewTurn{}
	case ActionTypeDrawCard:
		return &DrawCard{}
	case ActionTypePlayCard:
		return &PlayCard{}
	case ActionTypeAttack:
		return &Attack{}
	case ActionTypeEndTurn:
		return &EndTurn{}
	case ActionTypeChat:
		return &Chat{}
	case ActionTypeActionResult:
		return &ActionResult{}
	default:
		return nil
	}
}
