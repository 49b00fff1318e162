package constants

const (
	// PlayerStartingLife is the life total every participant starts with
	PlayerStartingLife int = 20
	// OpeningHandSize is the number of cards dealt when the game starts
	OpeningHandSize int = 5
	// MaxHandSize caps the hand; draws beyond it are milled to the graveyard
	MaxHandSize int = 10
	// MaxMana caps the mana a participant refreshes to at the start of a turn
	MaxMana int = 10
)
