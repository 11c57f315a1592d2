package game

import (
	"time"

	"github.com/pointdeck/backend/internal/deck"
)

// Role is a player's role within a game. The first player to join a game
// becomes the facilitator; every non-empty game has exactly one.
type Role string

const (
	RoleFacilitator Role = "facilitator"
	RolePlayer      Role = "player"
	RoleSpectator   Role = "spectator"
)

// Status is the phase of the current round.
type Status string

const (
	StatusVoting   Status = "voting"
	StatusRevealed Status = "revealed"
)

// Player is a participant in exactly one game. Its id is the id of the
// underlying connection, so it is stable only for the connection's lifetime.
type Player struct {
	ID       string
	Name     string
	Role     Role
	Vote     *string
	HasVoted bool
}

// Game is one estimation room. Players are kept in join order so snapshots
// serialize deterministically.
type Game struct {
	ID        string
	Name      string
	Deck      deck.Deck
	DeckType  string
	Topic     string
	Status    Status
	CreatedAt time.Time

	players map[string]*Player
	order   []string
}

// Player looks up a player by id.
func (g *Game) Player(id string) (*Player, bool) {
	p, ok := g.players[id]
	return p, ok
}

// Players returns the players in join order.
func (g *Game) Players() []*Player {
	out := make([]*Player, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.players[id])
	}
	return out
}

func (g *Game) addPlayer(p *Player) {
	g.players[p.ID] = p
	g.order = append(g.order, p.ID)
}

func (g *Game) removePlayer(id string) {
	delete(g.players, id)
	for i, pid := range g.order {
		if pid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

func (p *Player) clearVote() {
	p.Vote = nil
	p.HasVoted = false
}
