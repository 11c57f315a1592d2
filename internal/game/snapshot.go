package game

import "github.com/pointdeck/backend/internal/deck"

// Snapshot is the full serialized view of a game sent to clients. It is
// built fresh on every read; redaction is applied at build time and never
// stored back into the game.
type Snapshot struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Deck         deck.Deck    `json:"deck"`
	DeckType     string       `json:"deckType"`
	Players      []PlayerView `json:"players"`
	CurrentTopic string       `json:"currentTopic"`
	Status       Status       `json:"status"`
	Stats        *Stats       `json:"stats,omitempty"`
}

// PlayerView is a player as seen by clients. While the game is in the
// voting phase the vote value is redacted to nil; only HasVoted leaks.
type PlayerView struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Role     Role    `json:"role"`
	Vote     *string `json:"vote"`
	HasVoted bool    `json:"hasVoted"`
}

// Snapshot builds the client view of a game.
func (m *Manager) Snapshot(gameID string) (*Snapshot, error) {
	g, ok := m.games[gameID]
	if !ok {
		return nil, ErrGameNotFound
	}
	return buildSnapshot(g), nil
}

// PlayerSnapshot builds the client view of a single player, honoring the
// game's current redaction rules.
func (m *Manager) PlayerSnapshot(gameID, playerID string) (*PlayerView, error) {
	g, ok := m.games[gameID]
	if !ok {
		return nil, ErrGameNotFound
	}
	p, ok := g.players[playerID]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	v := viewPlayer(p, g.Status)
	return &v, nil
}

func buildSnapshot(g *Game) *Snapshot {
	players := make([]PlayerView, 0, len(g.order))
	for _, id := range g.order {
		players = append(players, viewPlayer(g.players[id], g.Status))
	}

	s := &Snapshot{
		ID:           g.ID,
		Name:         g.Name,
		Deck:         g.Deck,
		DeckType:     g.DeckType,
		Players:      players,
		CurrentTopic: g.Topic,
		Status:       g.Status,
	}
	if g.Status == StatusRevealed {
		s.Stats = computeStats(g)
	}
	return s
}

func viewPlayer(p *Player, status Status) PlayerView {
	v := PlayerView{
		ID:       p.ID,
		Name:     p.Name,
		Role:     p.Role,
		HasVoted: p.HasVoted,
	}
	if status == StatusRevealed && p.Vote != nil {
		vote := *p.Vote
		v.Vote = &vote
	}
	return v
}
