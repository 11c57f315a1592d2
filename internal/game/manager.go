package game

import (
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/pointdeck/backend/internal/deck"
)

// DefaultGameName is used when a game is created without a usable name.
const DefaultGameName = "Planning Poker"

// gameIDLength is the number of uuid hex characters kept for a game id.
// Short ids are friendlier in invite links and still unique enough for a
// process-lifetime, in-memory room catalog.
const gameIDLength = 8

// Manager owns the game map and every transition on it. Each operation is
// atomic and total: it either applies fully or reports an error with no
// state change.
//
// Manager is not safe for concurrent use. The gateway serializes all
// commands onto a single dispatch loop, so no locking is needed here.
type Manager struct {
	games map[string]*Game
	clock clockwork.Clock
}

// NewManager creates an empty manager. Pass clockwork.NewRealClock() in
// production; tests can inject a fake clock.
func NewManager(clock clockwork.Clock) *Manager {
	return &Manager{
		games: make(map[string]*Game),
		clock: clock,
	}
}

// CreateGame creates a new game with a fresh id. Unknown deck types fall
// back to the default deck; an empty name falls back to DefaultGameName.
// CreateGame never fails.
func (m *Manager) CreateGame(name, deckType string) *Game {
	if name == "" {
		name = DefaultGameName
	}
	d, resolvedType := deck.Lookup(deckType)

	g := &Game{
		ID:        uuid.New().String()[:gameIDLength],
		Name:      name,
		Deck:      d,
		DeckType:  resolvedType,
		Status:    StatusVoting,
		CreatedAt: m.clock.Now(),
		players:   make(map[string]*Player),
	}
	m.games[g.ID] = g

	log.Info().
		Str("game_id", g.ID).
		Str("deck_type", resolvedType).
		Msg("game created")

	return g
}

// Game looks up a game by id.
func (m *Manager) Game(id string) (*Game, bool) {
	g, ok := m.games[id]
	return g, ok
}

// AddPlayer adds a player to a game. The first player to join becomes the
// facilitator; everyone after joins as a voter.
func (m *Manager) AddPlayer(gameID, name, playerID string) (*Player, error) {
	g, ok := m.games[gameID]
	if !ok {
		return nil, ErrGameNotFound
	}

	role := RolePlayer
	if len(g.players) == 0 {
		role = RoleFacilitator
	}

	p := &Player{
		ID:   playerID,
		Name: name,
		Role: role,
	}
	g.addPlayer(p)
	return p, nil
}

// RemovePlayer removes a player from a game. Removing the last player
// destroys the game, reported by destroyed=true; no further operations on
// that id succeed. If the removed player was the facilitator and others
// remain, the first remaining non-spectator (by join order) is promoted,
// or the first remaining player if all are spectators.
func (m *Manager) RemovePlayer(gameID, playerID string) (destroyed bool, err error) {
	g, ok := m.games[gameID]
	if !ok {
		return false, ErrGameNotFound
	}
	p, ok := g.players[playerID]
	if !ok {
		return false, ErrPlayerNotFound
	}

	wasFacilitator := p.Role == RoleFacilitator
	g.removePlayer(playerID)

	if len(g.players) == 0 {
		delete(m.games, gameID)
		log.Info().Str("game_id", gameID).Msg("last player left, game destroyed")
		return true, nil
	}

	if wasFacilitator {
		next := g.players[g.order[0]]
		for _, id := range g.order {
			if g.players[id].Role != RoleSpectator {
				next = g.players[id]
				break
			}
		}
		next.Role = RoleFacilitator
		log.Debug().
			Str("game_id", gameID).
			Str("player_id", next.ID).
			Msg("facilitator reassigned")
	}

	return false, nil
}

// SubmitVote records a vote. It fails if the game is not in the voting
// phase, the player is a spectator, or the value is not a card in the
// game's deck. Re-voting before the reveal overwrites the previous vote.
func (m *Manager) SubmitVote(gameID, playerID, value string) error {
	g, ok := m.games[gameID]
	if !ok {
		return ErrGameNotFound
	}
	if g.Status != StatusVoting {
		return ErrInvalidTransition
	}
	p, ok := g.players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	if p.Role == RoleSpectator {
		return ErrSpectator
	}
	if !g.Deck.Contains(value) {
		return ErrUnknownCard
	}

	p.Vote = &value
	p.HasVoted = true
	return nil
}

// RevealVotes flips the game from voting to revealed. Votes are not
// altered; only their visibility in snapshots changes.
func (m *Manager) RevealVotes(gameID string) (*Snapshot, error) {
	g, ok := m.games[gameID]
	if !ok {
		return nil, ErrGameNotFound
	}
	if g.Status != StatusVoting {
		return nil, ErrInvalidTransition
	}

	g.Status = StatusRevealed
	return buildSnapshot(g), nil
}

// ResetRound starts a fresh round: status back to voting, every vote
// cleared. The topic is preserved.
func (m *Manager) ResetRound(gameID string) (*Snapshot, error) {
	g, ok := m.games[gameID]
	if !ok {
		return nil, ErrGameNotFound
	}
	if g.Status != StatusRevealed {
		return nil, ErrInvalidTransition
	}

	g.Status = StatusVoting
	for _, p := range g.players {
		p.clearVote()
	}
	return buildSnapshot(g), nil
}

// ToggleSpectator flips a player between spectator and voter. Becoming a
// spectator clears any vote. The facilitator is never demoted: toggling a
// facilitator is a no-op that returns the unchanged player, so a single
// stray click cannot drop the room's only control-plane role.
func (m *Manager) ToggleSpectator(gameID, playerID string) (*Player, error) {
	g, ok := m.games[gameID]
	if !ok {
		return nil, ErrGameNotFound
	}
	p, ok := g.players[playerID]
	if !ok {
		return nil, ErrPlayerNotFound
	}

	switch p.Role {
	case RoleSpectator:
		p.Role = RolePlayer
	case RolePlayer:
		p.Role = RoleSpectator
		p.clearVote()
	}
	return p, nil
}

// SetTopic replaces the game's topic. Length limits are enforced by the
// gateway, not here.
func (m *Manager) SetTopic(gameID, topic string) error {
	g, ok := m.games[gameID]
	if !ok {
		return ErrGameNotFound
	}
	g.Topic = topic
	return nil
}

// GameCount reports the number of live games.
func (m *Manager) GameCount() int {
	return len(m.games)
}
