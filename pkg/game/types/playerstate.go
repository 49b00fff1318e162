package types

import (
	"fmt"

	"github.com/cbodonnell/cardstage/pkg/game/constants"
)

type PlayerState struct {
	Participant uint32
	Life        int
	Mana        int
	MaxMana     int
	Ready       bool
	Library     []Card
	Hand        []Card
	Graveyard   []Card
}

// ErrEmptyLibrary is returned when drawing from an empty library
type ErrEmptyLibrary struct {
	Participant uint32
}

func (e *ErrEmptyLibrary) Error() string {
	return fmt.Sprintf("library of participant %d is empty", e.Participant)
}

// Draw moves the top card of the library into the hand. A full hand sends
// the card to the graveyard instead.
func (p *PlayerState) Draw() (Card, error) {
	if len(p.Library) == 0 {
		return Card{}, &ErrEmptyLibrary{Participant: p.Participant}
	}
	card := p.Library[0]
	p.Library = p.Library[1:]
	if len(p.Hand) >= constants.MaxHandSize {
		p.Graveyard = append(p.Graveyard, card)
		return card, nil
	}
	p.Hand = append(p.Hand, card)
	return card, nil
}

// HandCard returns the index of the card in hand with the given ID, or -1.
func (p *PlayerState) HandCard(id string) int {
	for i, c := range p.Hand {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// RemoveFromHand removes and returns the card at index i.
func (p *PlayerState) RemoveFromHand(i int) Card {
	card := p.Hand[i]
	p.Hand = append(p.Hand[:i:i], p.Hand[i+1:]...)
	return card
}

// View returns the public information about the player
func (p *PlayerState) View() PlayerView {
	return PlayerView{
		Participant: p.Participant,
		Life:        p.Life,
		HandSize:    len(p.Hand),
		LibrarySize: len(p.Library),
	}
}

// Copy returns a deep copy of the player state
func (p *PlayerState) Copy() *PlayerState {
	return &PlayerState{
		Participant: p.Participant,
		Life:        p.Life,
		Mana:        p.Mana,
		MaxMana:     p.MaxMana,
		Ready:       p.Ready,
		Library:     append([]Card(nil), p.Library...),
		Hand:        append([]Card(nil), p.Hand...),
		Graveyard:   append([]Card(nil), p.Graveyard...),
	}
}
