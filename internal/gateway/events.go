package gateway

import (
	"encoding/json"

	"github.com/pointdeck/backend/internal/game"
)

// CommandType is the closed set of commands a client may send. Routing
// through one typed switch (see Hub.dispatch) keeps the client and server
// vocabularies from drifting apart.
type CommandType string

const (
	CmdCreateGame      CommandType = "create-game"
	CmdJoinGame        CommandType = "join-game"
	CmdSubmitVote      CommandType = "submit-vote"
	CmdRevealVotes     CommandType = "reveal-votes"
	CmdResetRound      CommandType = "reset-round"
	CmdToggleSpectator CommandType = "toggle-spectator"
	CmdSetTopic        CommandType = "set-topic"
)

// EventType names the messages the server pushes to clients.
type EventType string

const (
	EventAck           EventType = "ack"
	EventPlayerJoined  EventType = "player-joined"
	EventPlayerLeft    EventType = "player-left"
	EventPlayerUpdated EventType = "player-updated"
	EventVoteUpdated   EventType = "vote-updated"
	EventVotesRevealed EventType = "votes-revealed"
	EventRoundReset    EventType = "round-reset"
	EventTopicChanged  EventType = "topic-changed"
)

// Envelope is the wire frame for every message in both directions.
// AckID is set by the client on commands that expect a reply (create-game,
// join-game) and echoed back on the matching ack.
type Envelope struct {
	Event string          `json:"event"`
	AckID string          `json:"ackId,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Command payloads.

type CreateGameRequest struct {
	Name     string `json:"name"`
	DeckType string `json:"deckType"`
}

type JoinGameRequest struct {
	GameID     string `json:"gameId"`
	PlayerName string `json:"playerName"`
}

type SubmitVoteRequest struct {
	Value string `json:"value"`
}

type SetTopicRequest struct {
	Topic string `json:"topic"`
}

// Ack payloads. A non-empty Error means total failure with no state change.

type CreateGameAck struct {
	GameID string `json:"gameId,omitempty"`
	Error  string `json:"error,omitempty"`
}

type JoinGameAck struct {
	Game     *game.Snapshot `json:"game,omitempty"`
	PlayerID string         `json:"playerId,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Broadcast payloads.

type PlayerJoinedEvent struct {
	Player *game.PlayerView `json:"player"`
	Game   *game.Snapshot   `json:"game"`
}

type PlayerLeftEvent struct {
	PlayerID string         `json:"playerId"`
	Game     *game.Snapshot `json:"game"`
}

type PlayerUpdatedEvent struct {
	Player *game.PlayerView `json:"player"`
	Game   *game.Snapshot   `json:"game"`
}

type VoteUpdatedEvent struct {
	PlayerID string         `json:"playerId"`
	Game     *game.Snapshot `json:"game"`
}

type GameEvent struct {
	Game *game.Snapshot `json:"game"`
}

type TopicChangedEvent struct {
	Topic string `json:"topic"`
}
