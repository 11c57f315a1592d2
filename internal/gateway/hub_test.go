package gateway

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/pointdeck/backend/internal/game"
)

func newTestHub() *Hub {
	return NewHub(game.NewManager(clockwork.NewFakeClock()), DefaultConnectionConfig())
}

// addConn registers a connection that has no real socket behind it; frames
// queue up on its send channel where tests can inspect them.
func addConn(h *Hub, id string) *connection {
	c := &connection{id: id, send: make(chan []byte, 16), hub: h}
	h.dispatch(inbound{kind: kindRegister, conn: c})
	return c
}

func sendCmd(t *testing.T, h *Hub, c *connection, cmd CommandType, ackID string, payload any) {
	t.Helper()
	var data json.RawMessage
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
	}
	h.dispatch(inbound{kind: kindCommand, conn: c, env: Envelope{Event: string(cmd), AckID: ackID, Data: data}})
}

// recvFrame pops one queued frame, or reports none pending.
func recvFrame(t *testing.T, c *connection) (Envelope, bool) {
	t.Helper()
	select {
	case data := <-c.send:
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return env, true
	default:
		return Envelope{}, false
	}
}

func mustRecv(t *testing.T, c *connection, wantEvent EventType) Envelope {
	t.Helper()
	env, ok := recvFrame(t, c)
	if !ok {
		t.Fatalf("no frame queued, want %q", wantEvent)
	}
	if env.Event != string(wantEvent) {
		t.Fatalf("event = %q, want %q", env.Event, wantEvent)
	}
	return env
}

func assertSilent(t *testing.T, conns ...*connection) {
	t.Helper()
	for _, c := range conns {
		if env, ok := recvFrame(t, c); ok {
			t.Errorf("connection %s received unexpected %q frame", c.id, env.Event)
		}
	}
}

// createAndJoin spins up a game and joins the given connections to it,
// draining all setup frames. The first connection is the facilitator.
func createAndJoin(t *testing.T, h *Hub, conns ...*connection) string {
	t.Helper()
	sendCmd(t, h, conns[0], CmdCreateGame, "a1", CreateGameRequest{Name: "sprint", DeckType: "fibonacci"})
	env := mustRecv(t, conns[0], EventAck)

	var ack CreateGameAck
	if err := json.Unmarshal(env.Data, &ack); err != nil {
		t.Fatalf("unmarshal create ack: %v", err)
	}
	if ack.GameID == "" || ack.Error != "" {
		t.Fatalf("create ack = %+v", ack)
	}

	for i, c := range conns {
		sendCmd(t, h, c, CmdJoinGame, "j1", JoinGameRequest{GameID: ack.GameID, PlayerName: "player" + c.id})
		mustRecv(t, c, EventAck)
		// earlier joiners each get a player-joined frame
		for j := 0; j < i; j++ {
			mustRecv(t, conns[j], EventPlayerJoined)
		}
	}
	return ack.GameID
}

func TestCreateGameAck(t *testing.T) {
	h := newTestHub()
	c := addConn(h, "c1")

	sendCmd(t, h, c, CmdCreateGame, "ack-1", CreateGameRequest{Name: "  sprint 42  ", DeckType: "tshirt"})

	env := mustRecv(t, c, EventAck)
	if env.AckID != "ack-1" {
		t.Errorf("ackId = %q, want ack-1", env.AckID)
	}
	var ack CreateGameAck
	json.Unmarshal(env.Data, &ack)
	if ack.GameID == "" {
		t.Fatal("create ack missing gameId")
	}

	g, ok := h.games.Game(ack.GameID)
	if !ok {
		t.Fatal("created game not in manager")
	}
	if g.Name != "sprint 42" {
		t.Errorf("game name = %q, want trimmed %q", g.Name, "sprint 42")
	}
	if g.DeckType != "tshirt" {
		t.Errorf("deck type = %q, want tshirt", g.DeckType)
	}
}

func TestCreateGameBlankNameSubstituted(t *testing.T) {
	h := newTestHub()
	c := addConn(h, "c1")

	sendCmd(t, h, c, CmdCreateGame, "a", CreateGameRequest{Name: "   "})
	env := mustRecv(t, c, EventAck)

	var ack CreateGameAck
	json.Unmarshal(env.Data, &ack)
	g, _ := h.games.Game(ack.GameID)
	if g.Name != game.DefaultGameName {
		t.Errorf("game name = %q, want default", g.Name)
	}
}

func TestJoinGameAckAndBroadcast(t *testing.T) {
	h := newTestHub()
	c1 := addConn(h, "c1")
	c2 := addConn(h, "c2")

	sendCmd(t, h, c1, CmdCreateGame, "a", CreateGameRequest{Name: "sprint"})
	env := mustRecv(t, c1, EventAck)
	var created CreateGameAck
	json.Unmarshal(env.Data, &created)

	sendCmd(t, h, c1, CmdJoinGame, "j", JoinGameRequest{GameID: created.GameID, PlayerName: "alice"})
	env = mustRecv(t, c1, EventAck)
	var ack JoinGameAck
	json.Unmarshal(env.Data, &ack)
	if ack.Error != "" {
		t.Fatalf("join failed: %s", ack.Error)
	}
	if ack.PlayerID != "c1" {
		t.Errorf("playerId = %q, want the connection id", ack.PlayerID)
	}
	if ack.Game == nil || len(ack.Game.Players) != 1 {
		t.Fatalf("join ack snapshot = %+v", ack.Game)
	}
	if ack.Game.Players[0].Role != game.RoleFacilitator {
		t.Errorf("first joiner role = %q, want facilitator", ack.Game.Players[0].Role)
	}
	// The joiner gets the ack only, no echo of player-joined.
	assertSilent(t, c1)

	sendCmd(t, h, c2, CmdJoinGame, "j", JoinGameRequest{GameID: created.GameID, PlayerName: "bob"})
	mustRecv(t, c2, EventAck)

	env = mustRecv(t, c1, EventPlayerJoined)
	var joined PlayerJoinedEvent
	json.Unmarshal(env.Data, &joined)
	if joined.Player == nil || joined.Player.ID != "c2" {
		t.Errorf("player-joined payload = %+v", joined.Player)
	}
	if joined.Game == nil || len(joined.Game.Players) != 2 {
		t.Errorf("player-joined snapshot has %d players, want 2", len(joined.Game.Players))
	}
	assertSilent(t, c2)
}

func TestJoinGameRejections(t *testing.T) {
	h := newTestHub()
	c1 := addConn(h, "c1")
	gameID := createAndJoin(t, h, c1)

	tests := []struct {
		name      string
		conn      *connection
		req       JoinGameRequest
		wantError string
	}{
		{
			name:      "blank player name",
			conn:      addConn(h, "c2"),
			req:       JoinGameRequest{GameID: gameID, PlayerName: "   "},
			wantError: "invalid player name",
		},
		{
			name:      "oversized player name",
			conn:      addConn(h, "c3"),
			req:       JoinGameRequest{GameID: gameID, PlayerName: strings.Repeat("x", maxNameLength+1)},
			wantError: "invalid player name",
		},
		{
			name:      "unknown game",
			conn:      addConn(h, "c4"),
			req:       JoinGameRequest{GameID: "nope1234", PlayerName: "bob"},
			wantError: "game not found",
		},
		{
			name:      "double join",
			conn:      c1,
			req:       JoinGameRequest{GameID: gameID, PlayerName: "again"},
			wantError: "already in a game",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sendCmd(t, h, tt.conn, CmdJoinGame, "j", tt.req)
			env := mustRecv(t, tt.conn, EventAck)
			var ack JoinGameAck
			json.Unmarshal(env.Data, &ack)
			if ack.Error != tt.wantError {
				t.Errorf("error = %q, want %q", ack.Error, tt.wantError)
			}
			if ack.Game != nil {
				t.Error("failed join ack carries a snapshot")
			}
			// No broadcast on failed joins.
			if tt.conn != c1 {
				assertSilent(t, c1)
			}
		})
	}
}

func TestSubmitVoteBroadcastsRedactedSnapshot(t *testing.T) {
	h := newTestHub()
	c1 := addConn(h, "c1")
	c2 := addConn(h, "c2")
	createAndJoin(t, h, c1, c2)

	sendCmd(t, h, c1, CmdSubmitVote, "", SubmitVoteRequest{Value: "5"})

	for _, c := range []*connection{c1, c2} {
		env := mustRecv(t, c, EventVoteUpdated)
		var evt VoteUpdatedEvent
		json.Unmarshal(env.Data, &evt)
		if evt.PlayerID != "c1" {
			t.Errorf("voting player = %q, want c1", evt.PlayerID)
		}
		for _, p := range evt.Game.Players {
			if p.Vote != nil {
				t.Errorf("vote value %q visible to %s before reveal", *p.Vote, c.id)
			}
			if p.ID == "c1" && !p.HasVoted {
				t.Error("hasVoted not set in broadcast")
			}
		}
	}
}

func TestSubmitVoteFailuresAreSilent(t *testing.T) {
	h := newTestHub()
	c1 := addConn(h, "c1")
	c2 := addConn(h, "c2")
	gameID := createAndJoin(t, h, c1, c2)

	// Card outside the deck: no broadcast, no state change.
	sendCmd(t, h, c1, CmdSubmitVote, "", SubmitVoteRequest{Value: "4"})
	assertSilent(t, c1, c2)

	g, _ := h.games.Game(gameID)
	p, _ := g.Player("c1")
	if p.HasVoted || p.Vote != nil {
		t.Error("rejected vote mutated player state")
	}

	// Vote racing a reveal: same silent outcome.
	sendCmd(t, h, c1, CmdRevealVotes, "", nil)
	mustRecv(t, c1, EventVotesRevealed)
	mustRecv(t, c2, EventVotesRevealed)

	sendCmd(t, h, c2, CmdSubmitVote, "", SubmitVoteRequest{Value: "5"})
	assertSilent(t, c1, c2)
}

func TestVoteWithoutJoining(t *testing.T) {
	h := newTestHub()
	c := addConn(h, "c1")
	sendCmd(t, h, c, CmdSubmitVote, "", SubmitVoteRequest{Value: "5"})
	assertSilent(t, c)
}

func TestRevealIdempotentGuard(t *testing.T) {
	h := newTestHub()
	c1 := addConn(h, "c1")
	createAndJoin(t, h, c1)
	sendCmd(t, h, c1, CmdSubmitVote, "", SubmitVoteRequest{Value: "8"})
	mustRecv(t, c1, EventVoteUpdated)

	sendCmd(t, h, c1, CmdRevealVotes, "", nil)
	env := mustRecv(t, c1, EventVotesRevealed)
	var evt GameEvent
	json.Unmarshal(env.Data, &evt)
	if evt.Game.Status != game.StatusRevealed {
		t.Errorf("status = %q, want revealed", evt.Game.Status)
	}
	if evt.Game.Players[0].Vote == nil || *evt.Game.Players[0].Vote != "8" {
		t.Error("vote not visible after reveal")
	}

	// Second reveal is rejected with no broadcast.
	sendCmd(t, h, c1, CmdRevealVotes, "", nil)
	assertSilent(t, c1)
}

func TestResetRoundBroadcast(t *testing.T) {
	h := newTestHub()
	c1 := addConn(h, "c1")
	c2 := addConn(h, "c2")
	createAndJoin(t, h, c1, c2)

	sendCmd(t, h, c1, CmdSubmitVote, "", SubmitVoteRequest{Value: "8"})
	mustRecv(t, c1, EventVoteUpdated)
	mustRecv(t, c2, EventVoteUpdated)

	// Reset while voting is rejected.
	sendCmd(t, h, c1, CmdResetRound, "", nil)
	assertSilent(t, c1, c2)

	sendCmd(t, h, c1, CmdRevealVotes, "", nil)
	mustRecv(t, c1, EventVotesRevealed)
	mustRecv(t, c2, EventVotesRevealed)

	sendCmd(t, h, c1, CmdResetRound, "", nil)
	for _, c := range []*connection{c1, c2} {
		env := mustRecv(t, c, EventRoundReset)
		var evt GameEvent
		json.Unmarshal(env.Data, &evt)
		if evt.Game.Status != game.StatusVoting {
			t.Errorf("status = %q, want voting", evt.Game.Status)
		}
		for _, p := range evt.Game.Players {
			if p.HasVoted {
				t.Error("hasVoted survived reset")
			}
		}
	}
}

func TestToggleSpectatorBroadcast(t *testing.T) {
	h := newTestHub()
	c1 := addConn(h, "c1")
	c2 := addConn(h, "c2")
	createAndJoin(t, h, c1, c2)

	sendCmd(t, h, c2, CmdToggleSpectator, "", nil)
	for _, c := range []*connection{c1, c2} {
		env := mustRecv(t, c, EventPlayerUpdated)
		var evt PlayerUpdatedEvent
		json.Unmarshal(env.Data, &evt)
		if evt.Player.ID != "c2" || evt.Player.Role != game.RoleSpectator {
			t.Errorf("player-updated payload = %+v", evt.Player)
		}
	}
}

func TestSetTopic(t *testing.T) {
	h := newTestHub()
	c1 := addConn(h, "c1")
	c2 := addConn(h, "c2")
	gameID := createAndJoin(t, h, c1, c2)

	sendCmd(t, h, c1, CmdSetTopic, "", SetTopicRequest{Topic: "  login flow  "})
	for _, c := range []*connection{c1, c2} {
		env := mustRecv(t, c, EventTopicChanged)
		var evt TopicChangedEvent
		json.Unmarshal(env.Data, &evt)
		if evt.Topic != "login flow" {
			t.Errorf("topic = %q, want trimmed", evt.Topic)
		}
	}

	g, _ := h.games.Game(gameID)
	if g.Topic != "login flow" {
		t.Errorf("stored topic = %q", g.Topic)
	}

	// Oversized topics are substituted with empty, not rejected.
	sendCmd(t, h, c1, CmdSetTopic, "", SetTopicRequest{Topic: strings.Repeat("x", maxTopicLength+1)})
	for _, c := range []*connection{c1, c2} {
		env := mustRecv(t, c, EventTopicChanged)
		var evt TopicChangedEvent
		json.Unmarshal(env.Data, &evt)
		if evt.Topic != "" {
			t.Errorf("oversized topic broadcast as %q, want empty", evt.Topic)
		}
	}
}

func TestDisconnectNotifiesAndPromotes(t *testing.T) {
	h := newTestHub()
	c1 := addConn(h, "c1")
	c2 := addConn(h, "c2")
	createAndJoin(t, h, c1, c2)

	h.dispatch(inbound{kind: kindDisconnect, conn: c1})

	env := mustRecv(t, c2, EventPlayerLeft)
	var evt PlayerLeftEvent
	json.Unmarshal(env.Data, &evt)
	if evt.PlayerID != "c1" {
		t.Errorf("playerId = %q, want c1", evt.PlayerID)
	}
	if len(evt.Game.Players) != 1 || evt.Game.Players[0].Role != game.RoleFacilitator {
		t.Errorf("remaining player not promoted: %+v", evt.Game.Players)
	}
}

func TestDisconnectLastPlayerDestroysGame(t *testing.T) {
	h := newTestHub()
	c1 := addConn(h, "c1")
	gameID := createAndJoin(t, h, c1)

	h.dispatch(inbound{kind: kindDisconnect, conn: c1})

	if _, ok := h.games.Game(gameID); ok {
		t.Error("game survived its last player")
	}
	if len(h.rooms) != 0 {
		t.Error("room map not cleaned up")
	}
	if len(h.membership) != 0 {
		t.Error("membership map not cleaned up")
	}

	// A later join to the destroyed id fails.
	c2 := addConn(h, "c2")
	sendCmd(t, h, c2, CmdJoinGame, "j", JoinGameRequest{GameID: gameID, PlayerName: "late"})
	env := mustRecv(t, c2, EventAck)
	var ack JoinGameAck
	json.Unmarshal(env.Data, &ack)
	if ack.Error != "game not found" {
		t.Errorf("error = %q, want game not found", ack.Error)
	}
}

func TestDisconnectWithoutJoin(t *testing.T) {
	h := newTestHub()
	c := addConn(h, "c1")
	h.dispatch(inbound{kind: kindDisconnect, conn: c})
	if len(h.conns) != 0 {
		t.Error("connection not removed")
	}
	// A second disconnect for the same connection is ignored.
	h.dispatch(inbound{kind: kindDisconnect, conn: c})
}

func TestUnknownCommandIgnored(t *testing.T) {
	h := newTestHub()
	c := addConn(h, "c1")
	h.dispatch(inbound{kind: kindCommand, conn: c, env: Envelope{Event: "launch-missiles"}})
	assertSilent(t, c)
}

func TestStatsCounts(t *testing.T) {
	h := newTestHub()
	c1 := addConn(h, "c1")
	c2 := addConn(h, "c2")
	createAndJoin(t, h, c1, c2)

	reply := make(chan ConnectionStats, 1)
	h.dispatch(inbound{kind: kindStats, statsReply: reply})
	stats := <-reply

	if stats.Connections != 2 {
		t.Errorf("Connections = %d, want 2", stats.Connections)
	}
	if stats.Games != 1 {
		t.Errorf("Games = %d, want 1", stats.Games)
	}
}
