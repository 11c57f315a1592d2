package gateway

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Handler exposes the hub over HTTP: the websocket upgrade endpoint plus
// small operational endpoints.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler creates the HTTP surface for a hub.
func NewHandler(hub *Hub) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  hub.config.ReadBufferSize,
			WriteBufferSize: hub.config.WriteBufferSize,
			CheckOrigin:     hub.config.CheckOrigin,
		},
	}
}

// RegisterRoutes attaches the gateway endpoints to a mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleWS)
	mux.HandleFunc("/stats", h.HandleStats)
	mux.HandleFunc("/health", h.HandleHealth)
}

// HandleWS upgrades the request and hands the connection to the hub. The
// fresh connection id doubles as the player id for the game this
// connection later joins.
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &connection{
		id:   uuid.New().String(),
		sock: sock,
		send: make(chan []byte, 64),
		hub:  h.hub,
	}
	h.hub.register(c)

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.id).
		Str("remote", r.RemoteAddr).
		Msg("websocket connection established")
}

// HandleStats reports live connection and game counts.
func (h *Handler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.hub.Stats())
}

// HandleHealth is a trivial liveness probe.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// OriginChecker builds a websocket origin check from an allowlist. With an
// empty allowlist only same-host and localhost origins pass, which covers
// local development without configuration.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	allowedOrigins := make(map[string]bool)
	for _, origin := range allowed {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			allowedOrigins[trimmed] = true
		}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if len(allowedOrigins) > 0 {
			return allowedOrigins[origin]
		}

		parsed, err := url.Parse(origin)
		if err != nil || parsed.Host == "" {
			return false
		}
		host := parsed.Host
		if host == r.Host {
			return true
		}
		return host == "localhost" || strings.HasPrefix(host, "localhost:") ||
			host == "127.0.0.1" || strings.HasPrefix(host, "127.0.0.1:")
	}
}
