package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionConfig holds per-connection websocket tuning.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns the default websocket tuning.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// connection is one client websocket. Its id doubles as the player id for
// whatever game the connection joins; both live exactly as long as the
// socket. Outbound messages go through a buffered send channel drained by
// writePump; inbound frames are parsed by readPump and handed to the hub's
// dispatch loop.
type connection struct {
	id   string
	sock *websocket.Conn
	send chan []byte
	hub  *Hub
}

// enqueue hands a marshaled frame to the connection's writer. A full send
// buffer marks the client as too slow and drops the frame; the hub will
// close the connection on the next write failure or read timeout.
func (c *connection) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		log.Warn().
			Str("connection_id", c.id).
			Msg("send buffer full, dropping frame")
	}
}

// sendEvent marshals an envelope onto the connection.
func (c *connection) sendEvent(event EventType, ackID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", string(event)).Msg("failed to marshal payload")
		return
	}
	frame, err := json.Marshal(Envelope{Event: string(event), AckID: ackID, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", string(event)).Msg("failed to marshal envelope")
		return
	}
	c.enqueue(frame)
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings. It owns all writes to the socket.
func (c *connection) writePump() {
	cfg := c.hub.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.sock.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.sock.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				c.sock.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.sock.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.id).
					Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			c.sock.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump parses inbound frames and forwards them to the hub. When the
// socket dies for any reason the hub receives a disconnect for this
// connection, which is what removes the player from its game.
func (c *connection) readPump() {
	cfg := c.hub.config
	defer func() {
		c.hub.disconnect(c)
		c.sock.Close()
	}()

	c.sock.SetReadLimit(cfg.MaxMessageSize)
	c.sock.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.sock.SetPongHandler(func(string) error {
		c.sock.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().
					Err(err).
					Str("connection_id", c.id).
					Msg("unexpected websocket close")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Debug().
				Str("connection_id", c.id).
				Msg("dropping malformed frame")
			continue
		}
		c.hub.submit(c, env)
		c.sock.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}
}
