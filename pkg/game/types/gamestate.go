package types

import (
	"fmt"
	"math/rand"

	"github.com/cbodonnell/cardstage/pkg/arena"
	"github.com/cbodonnell/cardstage/pkg/game/cards"
	"github.com/cbodonnell/cardstage/pkg/game/constants"
	"github.com/cbodonnell/cardstage/pkg/game/turn"
	"github.com/google/uuid"
)

// Permanent is a card on the battlefield. Clients refer to permanents only by
// their arena handle.
type Permanent struct {
	Card       Card             `json:"card"`
	Definition cards.Definition `json:"definition"`
	Owner      uint32           `json:"owner"`
	Damage     int              `json:"damage"`
	// Exhausted permanents cannot attack until their owner's next turn
	Exhausted bool `json:"exhausted"`
}

// Lethal reports whether the permanent has taken damage equal to its toughness.
func (p *Permanent) Lethal() bool {
	return p.Damage >= p.Definition.Toughness
}

type GameState struct {
	// Stage is the coordinator stage the state is currently in
	Stage StageKind
	// Turn is the active turn, only meaningful in StagePlayerTurn
	Turn turn.Turn
	// Players is indexed by participant ID
	Players []*PlayerState
	// Battlefield holds every permanent in play
	Battlefield *arena.Arena[Permanent]
}

type NewGameStateOptions struct {
	Participants uint32
	StartingLife int
	// DeckList returns the deck of a participant. Defaults to cards.DefaultDeck.
	DeckList func(participant uint32) []string
	// NewCardID generates card instance IDs. Defaults to uuid.NewString.
	NewCardID func() string
}

func NewGameState(opts NewGameStateOptions) *GameState {
	deckList := opts.DeckList
	if deckList == nil {
		deckList = func(uint32) []string { return cards.DefaultDeck() }
	}
	newCardID := opts.NewCardID
	if newCardID == nil {
		newCardID = uuid.NewString
	}
	life := opts.StartingLife
	if life <= 0 {
		life = constants.PlayerStartingLife
	}

	players := make([]*PlayerState, opts.Participants)
	for i := range players {
		participant := uint32(i)
		names := deckList(participant)
		library := make([]Card, 0, len(names))
		for _, name := range names {
			library = append(library, Card{ID: newCardID(), Name: name})
		}
		players[i] = &PlayerState{
			Participant: participant,
			Life:        life,
			Library:     library,
		}
	}

	return &GameState{
		Stage:       StageWaiting,
		Players:     players,
		Battlefield: arena.New[Permanent](),
	}
}

// Player returns the state of a participant
func (g *GameState) Player(participant uint32) (*PlayerState, bool) {
	if int(participant) >= len(g.Players) {
		return nil, false
	}
	return g.Players[participant], true
}

// Shuffle shuffles every library.
func (g *GameState) Shuffle(rng *rand.Rand) {
	for _, p := range g.Players {
		rng.Shuffle(len(p.Library), func(i, j int) {
			p.Library[i], p.Library[j] = p.Library[j], p.Library[i]
		})
	}
}

// Deal draws n cards for every participant.
func (g *GameState) Deal(n int) error {
	for _, p := range g.Players {
		for i := 0; i < n; i++ {
			if _, err := p.Draw(); err != nil {
				return fmt.Errorf("failed to deal to participant %d: %v", p.Participant, err)
			}
		}
	}
	return nil
}

// AllReady reports whether every participant signalled ready.
func (g *GameState) AllReady() bool {
	for _, p := range g.Players {
		if !p.Ready {
			return false
		}
	}
	return len(g.Players) > 0
}

// BeginTurn refreshes the mana of a participant and readies their permanents.
func (g *GameState) BeginTurn(participant uint32) {
	p, ok := g.Player(participant)
	if !ok {
		return
	}
	if p.MaxMana < constants.MaxMana {
		p.MaxMana++
	}
	p.Mana = p.MaxMana
	g.Battlefield.Each(func(_ arena.Handle, perm *Permanent) {
		if perm.Owner == participant {
			perm.Exhausted = false
		}
	})
}

// Destroy removes a permanent from the battlefield and puts its card into its
// owner's graveyard.
func (g *GameState) Destroy(h arena.Handle) bool {
	perm, ok := g.Battlefield.Despawn(h)
	if !ok {
		return false
	}
	if owner, ok := g.Player(perm.Owner); ok {
		owner.Graveyard = append(owner.Graveyard, perm.Card)
	}
	return true
}

// Survivors returns the participants whose life is above zero.
func (g *GameState) Survivors() []uint32 {
	var alive []uint32
	for _, p := range g.Players {
		if p.Life > 0 {
			alive = append(alive, p.Participant)
		}
	}
	return alive
}

// Views returns the public view of every participant.
func (g *GameState) Views() []PlayerView {
	views := make([]PlayerView, 0, len(g.Players))
	for _, p := range g.Players {
		views = append(views, p.View())
	}
	return views
}

// BattlefieldView returns every permanent in play in slot order.
func (g *GameState) BattlefieldView() []PermanentView {
	views := make([]PermanentView, 0, g.Battlefield.Len())
	g.Battlefield.Each(func(h arena.Handle, p *Permanent) {
		views = append(views, PermanentView{Handle: h, Permanent: *p})
	})
	return views
}
