package game

import "errors"

var (
	// ErrGameNotFound reports an unknown game id.
	ErrGameNotFound = errors.New("game not found")

	// ErrPlayerNotFound reports an unknown player id within a game.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrInvalidTransition reports an operation that is not legal in the
	// game's current status, e.g. revealing twice or voting after a reveal.
	ErrInvalidTransition = errors.New("operation not allowed in current status")

	// ErrSpectator reports a vote attempt by a spectator.
	ErrSpectator = errors.New("spectators cannot vote")

	// ErrUnknownCard reports a vote value outside the game's deck.
	ErrUnknownCard = errors.New("card is not in the deck")
)
