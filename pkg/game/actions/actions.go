package actions

import (
	"github.com/cbodonnell/cardstage/pkg/arena"
	"github.com/cbodonnell/cardstage/pkg/game/cards"
	"github.com/cbodonnell/cardstage/pkg/game/types"
	"github.com/cbodonnell/cardstage/pkg/messages"
)

// Perform applies an action to the game state. Actions carrying an outcome
// (DrawCard, PlayCard, Attack) are filled in so they can be broadcast as is.
// A failed action leaves the state untouched. Outcome fields are always
// computed here, whatever the submitter put in them.
func Perform(action messages.Action, state *types.GameState, actor Actor) (OkCode, error) {
	clearOutcome(action)
	switch a := action.(type) {
	case *messages.Text:
		return Done, nil
	case *messages.Ready:
		return performReady(a, state)
	case *messages.DrawCard:
		return performDrawCard(a, state)
	case *messages.PlayCard:
		return performPlayCard(a, state)
	case *messages.Attack:
		return performAttack(a, state)
	case *messages.EndTurn:
		return ChangeState, nil
	default:
		return Nothing, newActionError(KindNotSupported, "%s cannot be performed by %s", action.Type(), actor)
	}
}

func clearOutcome(action messages.Action) {
	switch a := action.(type) {
	case *messages.DrawCard:
		a.Card = nil
	case *messages.PlayCard:
		a.Card = nil
		a.Permanent = nil
		a.Destroyed = nil
	case *messages.Attack:
		a.Defender = nil
		a.Destroyed = nil
		a.TargetLife = nil
	}
}

func player(state *types.GameState, participant uint32) (*types.PlayerState, error) {
	p, ok := state.Player(participant)
	if !ok {
		return nil, newActionError(KindInternal, "participant %d has no player state", participant)
	}
	return p, nil
}

func performReady(a *messages.Ready, state *types.GameState) (OkCode, error) {
	p, err := player(state, a.Participant)
	if err != nil {
		return Nothing, err
	}
	p.Ready = true
	if state.AllReady() {
		return ChangeState, nil
	}
	return Done, nil
}

func performDrawCard(a *messages.DrawCard, state *types.GameState) (OkCode, error) {
	p, err := player(state, a.Participant)
	if err != nil {
		return Nothing, err
	}
	card, err := p.Draw()
	if err != nil {
		return Nothing, newActionError(KindNoTarget, "%v", err)
	}
	a.Card = &card
	return EchoAction, nil
}

func performPlayCard(a *messages.PlayCard, state *types.GameState) (OkCode, error) {
	p, err := player(state, a.Participant)
	if err != nil {
		return Nothing, err
	}
	i := p.HandCard(a.CardID)
	if i < 0 {
		return Nothing, newActionError(KindInvalidTarget, "card %s is not in hand", a.CardID)
	}
	card := p.Hand[i]
	def, err := cards.Lookup(card.Name)
	if err != nil {
		return Nothing, newActionError(KindInternal, "%v", err)
	}
	if def.Cost > p.Mana {
		return Nothing, newActionError(KindCantPayCost, "%s costs %d, %d mana available", def.Name, def.Cost, p.Mana)
	}

	switch def.Kind {
	case cards.KindCreature:
		h, err := state.Battlefield.Spawn(types.Permanent{
			Card:       card,
			Definition: def,
			Owner:      p.Participant,
			Exhausted:  true,
		})
		if err != nil {
			return Nothing, newActionError(KindInternal, "failed to spawn %s: %v", def.Name, err)
		}
		a.Permanent = &h
	case cards.KindSpell:
		if a.Target == nil {
			if def.NeedsTarget {
				return Nothing, newActionError(KindNoTarget, "%s needs a target", def.Name)
			}
			break
		}
		target := state.Battlefield.GetMut(*a.Target)
		if target == nil {
			return Nothing, newActionError(KindInvalidTarget, "%s is not on the battlefield", a.Target)
		}
		target.Damage += def.Damage
		if target.Lethal() {
			state.Destroy(*a.Target)
			a.Destroyed = append(a.Destroyed, *a.Target)
		}
	default:
		return Nothing, newActionError(KindNotSupported, "%s cards cannot be played", def.Kind)
	}

	p.RemoveFromHand(i)
	if def.Kind == cards.KindSpell {
		p.Graveyard = append(p.Graveyard, card)
	}
	p.Mana -= def.Cost
	a.Card = &card
	return Done, nil
}

func performAttack(a *messages.Attack, state *types.GameState) (OkCode, error) {
	attacker := state.Battlefield.GetMut(a.Attacker)
	if attacker == nil || attacker.Owner != a.Participant {
		return Nothing, newActionError(KindInvalidTarget, "%s is not a permanent of participant %d", a.Attacker, a.Participant)
	}
	if attacker.Definition.Kind != cards.KindCreature {
		return Nothing, newActionError(KindInvalidTarget, "%s cannot attack", attacker.Definition.Name)
	}
	if attacker.Exhausted {
		return Nothing, newActionError(KindGeneric, "%s is exhausted", attacker.Definition.Name)
	}

	if a.Target == nil {
		defender, ok := opponent(state, a.Participant)
		if !ok {
			return Nothing, newActionError(KindNoTarget, "no opponent left to attack")
		}
		attacker.Exhausted = true
		defender.Life -= attacker.Definition.Power
		participant, life := defender.Participant, defender.Life
		a.Defender = &participant
		a.TargetLife = &life
		return Done, nil
	}

	target := state.Battlefield.GetMut(*a.Target)
	if target == nil {
		return Nothing, newActionError(KindInvalidTarget, "%s is not on the battlefield", a.Target)
	}
	if target.Owner == a.Participant {
		return Nothing, newActionError(KindInvalidTarget, "cannot attack your own %s", target.Definition.Name)
	}

	attacker.Exhausted = true
	target.Damage += attacker.Definition.Power
	attacker.Damage += target.Definition.Power
	defender := target.Owner
	a.Defender = &defender

	var destroyed []arena.Handle
	if target.Lethal() {
		destroyed = append(destroyed, *a.Target)
	}
	if attacker.Lethal() {
		destroyed = append(destroyed, a.Attacker)
	}
	for _, h := range destroyed {
		state.Destroy(h)
	}
	a.Destroyed = destroyed
	return Done, nil
}

// opponent returns the next participant after attacker in seat order that is
// still alive.
func opponent(state *types.GameState, attacker uint32) (*types.PlayerState, bool) {
	n := uint32(len(state.Players))
	for i := uint32(1); i < n; i++ {
		p := state.Players[(attacker+i)%n]
		if p.Life > 0 {
			return p, true
		}
	}
	return nil, false
}
