package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/pointdeck/backend/internal/game"
)

// Hub bridges websocket connections to the game manager. All inbound
// traffic — registrations, commands, disconnects — funnels into one
// dispatch loop, so every game mutation runs to completion before the next
// command is looked at. That single-writer discipline is what lets the
// game manager go lock-free.
type Hub struct {
	games  *game.Manager
	config ConnectionConfig

	commands chan inbound

	// All three maps below are touched only by the dispatch loop.
	conns      map[string]*connection            // connection id -> connection
	rooms      map[string]map[string]*connection // game id -> connection id -> connection
	membership map[string]string                 // connection id -> game id
}

type inboundKind int

const (
	kindRegister inboundKind = iota
	kindCommand
	kindDisconnect
	kindStats
)

type inbound struct {
	kind       inboundKind
	conn       *connection
	env        Envelope
	statsReply chan ConnectionStats
}

// ConnectionStats describes the hub's live connection footprint.
type ConnectionStats struct {
	Connections int `json:"connections"`
	Games       int `json:"games"`
}

// NewHub creates a hub around a game manager.
func NewHub(games *game.Manager, config ConnectionConfig) *Hub {
	return &Hub{
		games:      games,
		config:     config,
		commands:   make(chan inbound, 256),
		conns:      make(map[string]*connection),
		rooms:      make(map[string]map[string]*connection),
		membership: make(map[string]string),
	}
}

// Run processes inbound traffic until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	log.Info().Msg("gateway hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("gateway hub shutting down")
			return
		case cmd := <-h.commands:
			h.dispatch(cmd)
		}
	}
}

func (h *Hub) register(c *connection) {
	h.commands <- inbound{kind: kindRegister, conn: c}
}

func (h *Hub) submit(c *connection, env Envelope) {
	h.commands <- inbound{kind: kindCommand, conn: c, env: env}
}

func (h *Hub) disconnect(c *connection) {
	h.commands <- inbound{kind: kindDisconnect, conn: c}
}

// Stats reports connection counts. The request rides the dispatch loop so
// the hub's maps are never read concurrently with a mutation.
func (h *Hub) Stats() ConnectionStats {
	reply := make(chan ConnectionStats, 1)
	h.commands <- inbound{kind: kindStats, statsReply: reply}
	return <-reply
}

func (h *Hub) dispatch(cmd inbound) {
	switch cmd.kind {
	case kindRegister:
		h.conns[cmd.conn.id] = cmd.conn
		log.Info().
			Str("connection_id", cmd.conn.id).
			Int("connections", len(h.conns)).
			Msg("connection registered")

	case kindDisconnect:
		h.handleDisconnect(cmd.conn)

	case kindStats:
		cmd.statsReply <- ConnectionStats{
			Connections: len(h.conns),
			Games:       h.games.GameCount(),
		}

	case kindCommand:
		h.handleCommand(cmd.conn, cmd.env)
	}
}

// handleCommand routes one client command. create-game and join-game are
// acknowledged; everything else is fire-and-forget, and failures there are
// swallowed with no broadcast and no state change.
func (h *Hub) handleCommand(c *connection, env Envelope) {
	switch CommandType(env.Event) {
	case CmdCreateGame:
		h.handleCreateGame(c, env)
	case CmdJoinGame:
		h.handleJoinGame(c, env)
	case CmdSubmitVote:
		h.handleSubmitVote(c, env)
	case CmdRevealVotes:
		h.handleRevealVotes(c)
	case CmdResetRound:
		h.handleResetRound(c)
	case CmdToggleSpectator:
		h.handleToggleSpectator(c)
	case CmdSetTopic:
		h.handleSetTopic(c, env)
	default:
		log.Debug().
			Str("connection_id", c.id).
			Str("event", env.Event).
			Msg("unknown command")
	}
}

func (h *Hub) handleCreateGame(c *connection, env Envelope) {
	var req CreateGameRequest
	if env.Data != nil {
		if err := json.Unmarshal(env.Data, &req); err != nil {
			c.sendEvent(EventAck, env.AckID, CreateGameAck{Error: "invalid payload"})
			return
		}
	}

	// An unusable name is substituted, not rejected: the manager falls
	// back to its default game name. Deck type falls back the same way.
	name, _ := sanitize(req.Name, maxNameLength)
	g := h.games.CreateGame(name, req.DeckType)

	c.sendEvent(EventAck, env.AckID, CreateGameAck{GameID: g.ID})
}

func (h *Hub) handleJoinGame(c *connection, env Envelope) {
	var req JoinGameRequest
	if env.Data != nil {
		if err := json.Unmarshal(env.Data, &req); err != nil {
			c.sendEvent(EventAck, env.AckID, JoinGameAck{Error: "invalid payload"})
			return
		}
	}

	name, ok := sanitize(req.PlayerName, maxNameLength)
	if !ok {
		c.sendEvent(EventAck, env.AckID, JoinGameAck{Error: "invalid player name"})
		return
	}
	if _, joined := h.membership[c.id]; joined {
		c.sendEvent(EventAck, env.AckID, JoinGameAck{Error: "already in a game"})
		return
	}

	if _, err := h.games.AddPlayer(req.GameID, name, c.id); err != nil {
		c.sendEvent(EventAck, env.AckID, JoinGameAck{Error: "game not found"})
		return
	}

	h.membership[c.id] = req.GameID
	if h.rooms[req.GameID] == nil {
		h.rooms[req.GameID] = make(map[string]*connection)
	}
	h.rooms[req.GameID][c.id] = c

	snap, err := h.games.Snapshot(req.GameID)
	if err != nil {
		c.sendEvent(EventAck, env.AckID, JoinGameAck{Error: "game not found"})
		return
	}
	c.sendEvent(EventAck, env.AckID, JoinGameAck{Game: snap, PlayerID: c.id})

	view, _ := h.games.PlayerSnapshot(req.GameID, c.id)
	h.broadcastExcept(req.GameID, c.id, EventPlayerJoined, PlayerJoinedEvent{Player: view, Game: snap})

	log.Info().
		Str("connection_id", c.id).
		Str("game_id", req.GameID).
		Msg("player joined")
}

func (h *Hub) handleSubmitVote(c *connection, env Envelope) {
	gameID, ok := h.membership[c.id]
	if !ok {
		return
	}
	var req SubmitVoteRequest
	if env.Data == nil || json.Unmarshal(env.Data, &req) != nil {
		return
	}

	if err := h.games.SubmitVote(gameID, c.id, req.Value); err != nil {
		h.logRejected(c, gameID, "submit-vote", err)
		return
	}

	snap, err := h.games.Snapshot(gameID)
	if err != nil {
		return
	}
	h.broadcast(gameID, EventVoteUpdated, VoteUpdatedEvent{PlayerID: c.id, Game: snap})
}

func (h *Hub) handleRevealVotes(c *connection) {
	gameID, ok := h.membership[c.id]
	if !ok {
		return
	}
	snap, err := h.games.RevealVotes(gameID)
	if err != nil {
		h.logRejected(c, gameID, "reveal-votes", err)
		return
	}
	h.broadcast(gameID, EventVotesRevealed, GameEvent{Game: snap})
}

func (h *Hub) handleResetRound(c *connection) {
	gameID, ok := h.membership[c.id]
	if !ok {
		return
	}
	snap, err := h.games.ResetRound(gameID)
	if err != nil {
		h.logRejected(c, gameID, "reset-round", err)
		return
	}
	h.broadcast(gameID, EventRoundReset, GameEvent{Game: snap})
}

func (h *Hub) handleToggleSpectator(c *connection) {
	gameID, ok := h.membership[c.id]
	if !ok {
		return
	}
	if _, err := h.games.ToggleSpectator(gameID, c.id); err != nil {
		h.logRejected(c, gameID, "toggle-spectator", err)
		return
	}

	view, err := h.games.PlayerSnapshot(gameID, c.id)
	if err != nil {
		return
	}
	snap, err := h.games.Snapshot(gameID)
	if err != nil {
		return
	}
	h.broadcast(gameID, EventPlayerUpdated, PlayerUpdatedEvent{Player: view, Game: snap})
}

func (h *Hub) handleSetTopic(c *connection, env Envelope) {
	gameID, ok := h.membership[c.id]
	if !ok {
		return
	}
	var req SetTopicRequest
	if env.Data != nil {
		if json.Unmarshal(env.Data, &req) != nil {
			return
		}
	}

	// The topic is non-critical: an empty or oversized value is replaced
	// with "" instead of failing the whole operation.
	topic, _ := sanitize(req.Topic, maxTopicLength)

	if err := h.games.SetTopic(gameID, topic); err != nil {
		h.logRejected(c, gameID, "set-topic", err)
		return
	}
	h.broadcast(gameID, EventTopicChanged, TopicChangedEvent{Topic: topic})
}

func (h *Hub) handleDisconnect(c *connection) {
	if _, ok := h.conns[c.id]; !ok {
		return
	}
	delete(h.conns, c.id)
	close(c.send)

	gameID, ok := h.membership[c.id]
	if !ok {
		log.Info().Str("connection_id", c.id).Msg("connection closed")
		return
	}
	delete(h.membership, c.id)
	if room := h.rooms[gameID]; room != nil {
		delete(room, c.id)
		if len(room) == 0 {
			delete(h.rooms, gameID)
		}
	}

	destroyed, err := h.games.RemovePlayer(gameID, c.id)
	if err != nil || destroyed {
		// Destroyed means nobody is left to notify.
		return
	}

	snap, err := h.games.Snapshot(gameID)
	if err != nil {
		return
	}
	h.broadcast(gameID, EventPlayerLeft, PlayerLeftEvent{PlayerID: c.id, Game: snap})
}

// broadcast sends one event to every member of a game.
func (h *Hub) broadcast(gameID string, event EventType, payload any) {
	h.broadcastExcept(gameID, "", event, payload)
}

// broadcastExcept sends one event to every member of a game except the
// named connection. The frame is marshaled once and fanned out.
func (h *Hub) broadcastExcept(gameID, exceptID string, event EventType, payload any) {
	room := h.rooms[gameID]
	if len(room) == 0 {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", string(event)).Msg("failed to marshal broadcast payload")
		return
	}
	frame, err := json.Marshal(Envelope{Event: string(event), Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", string(event)).Msg("failed to marshal broadcast envelope")
		return
	}

	sent := 0
	for id, conn := range room {
		if id == exceptID {
			continue
		}
		conn.enqueue(frame)
		sent++
	}

	log.Debug().
		Str("event", string(event)).
		Str("game_id", gameID).
		Int("connections", sent).
		Msg("event broadcast")
}

// logRejected records a swallowed fire-and-forget failure. Expected
// rejections (races against a reveal, spectator votes) log at debug;
// anything else is unexpected enough to warrant a warning.
func (h *Hub) logRejected(c *connection, gameID, op string, err error) {
	evt := log.Debug()
	if !errors.Is(err, game.ErrInvalidTransition) &&
		!errors.Is(err, game.ErrSpectator) &&
		!errors.Is(err, game.ErrUnknownCard) {
		evt = log.Warn()
	}
	evt.
		Err(err).
		Str("connection_id", c.id).
		Str("game_id", gameID).
		Str("op", op).
		Msg("command rejected")
}
