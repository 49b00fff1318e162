package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/cbodonnell/cardstage/pkg/arena"
	"github.com/cbodonnell/cardstage/pkg/game/cards"
	"github.com/cbodonnell/cardstage/pkg/game/turn"
	"github.com/cbodonnell/cardstage/pkg/game/types"
	"github.com/cbodonnell/cardstage/pkg/log"
	"github.com/cbodonnell/cardstage/pkg/messages"
	"nhooyr.io/websocket"
)

// Conn is the participant side of a websocket connection.
type Conn interface {
	Send(ctx context.Context, action messages.Action) error
	Receive(ctx context.Context) (messages.Action, error)
}

// Bot plays a session on its own: it readies up, plays the first creature it
// can afford, attacks the opponent with every rested creature and ends its
// turn.
type Bot struct {
	conn   Conn
	logger *log.Logger

	participant    uint32
	reconnectToken string
	hand           []types.Card
	permanents     map[arena.Handle]bool
}

func New(conn Conn, logger *log.Logger) *Bot {
	if logger == nil {
		logger = log.Default()
	}
	return &Bot{
		conn:       conn,
		logger:     logger,
		permanents: make(map[arena.Handle]bool),
	}
}

// Participant returns the seat assigned by the server.
func (b *Bot) Participant() uint32 {
	return b.participant
}

// ReconnectToken returns the token to reclaim the seat with.
func (b *Bot) ReconnectToken() string {
	return b.reconnectToken
}

// Run plays until the server closes the connection and returns the close
// reason, which is the result of the session.
func (b *Bot) Run(ctx context.Context) (string, error) {
	for {
		action, err := b.conn.Receive(ctx)
		if err != nil {
			var closeErr websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.StatusNormalClosure {
				b.logger.Info("Session finished: %s", closeErr.Reason)
				return closeErr.Reason, nil
			}
			return "", fmt.Errorf("failed to receive: %v", err)
		}
		if err := b.handle(ctx, action); err != nil {
			return "", err
		}
	}
}

func (b *Bot) handle(ctx context.Context, action messages.Action) error {
	switch a := action.(type) {
	case *messages.AssignID:
		b.participant = a.Participant
		b.reconnectToken = a.ReconnectToken
		b.logger.Info("Seated as participant %d", a.Participant)
	case *messages.SetupBegin:
		return b.conn.Send(ctx, &messages.Ready{Participant: b.participant})
	case *messages.GameStarted:
		// a reconnect resends the table, rebuild what we own from it
		b.permanents = make(map[arena.Handle]bool)
		for _, view := range a.Battlefield {
			if view.Permanent.Owner == b.participant {
				b.permanents[view.Handle] = !view.Permanent.Exhausted
			}
		}
	case *messages.HandUpdate:
		if a.Participant == b.participant {
			b.hand = append([]types.Card(nil), a.Cards...)
		}
	case *messages.DrawCard:
		if a.Participant == b.participant && a.Card != nil {
			b.hand = append(b.hand, *a.Card)
		}
	case *messages.PlayCard:
		if a.Participant == b.participant {
			b.removeFromHand(a.CardID)
			if a.Permanent != nil {
				b.permanents[*a.Permanent] = false
			}
		}
		b.forget(a.Destroyed)
	case *messages.Attack:
		b.forget(a.Destroyed)
	case *messages.NewTurn:
		if a.Turn.Participant != b.participant {
			return nil
		}
		switch a.Turn.Phase {
		case turn.PhaseStart:
			for h := range b.permanents {
				b.permanents[h] = true
			}
		case turn.PhasePlay:
			return b.play(ctx, a.Mana)
		}
	case *messages.ActionResult:
		b.logger.Debug("%s failed: %s %s", a.Action, a.Error, a.Detail)
	case *messages.Invalid:
		b.logger.Warn("Received an invalid action: %s", a.Reason)
	}
	return nil
}

func (b *Bot) play(ctx context.Context, mana int) error {
	for _, card := range b.hand {
		def, err := cards.Lookup(card.Name)
		if err != nil || def.Kind != cards.KindCreature || def.Cost > mana {
			continue
		}
		if err := b.conn.Send(ctx, &messages.PlayCard{Participant: b.participant, CardID: card.ID}); err != nil {
			return err
		}
		break
	}
	for h, rested := range b.permanents {
		if !rested {
			continue
		}
		if err := b.conn.Send(ctx, &messages.Attack{Participant: b.participant, Attacker: h}); err != nil {
			return err
		}
	}
	return b.conn.Send(ctx, &messages.EndTurn{Participant: b.participant})
}

func (b *Bot) removeFromHand(id string) {
	for i, card := range b.hand {
		if card.ID == id {
			b.hand = append(b.hand[:i], b.hand[i+1:]...)
			return
		}
	}
}

func (b *Bot) forget(destroyed []arena.Handle) {
	for _, h := range destroyed {
		delete(b.permanents, h)
	}
}
