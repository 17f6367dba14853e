package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arenachess/backend/internal/domain"
	"github.com/arenachess/backend/internal/service/game"
	"github.com/arenachess/backend/internal/service/matchmaking"
	"github.com/arenachess/backend/internal/service/rematch"
	"github.com/arenachess/backend/pkg/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Handler upgrades HTTP requests and runs the per-connection read loop.
type Handler struct {
	auth      *auth.Manager
	registry  *Registry
	queue     *matchmaking.Queue
	games     *game.Manager
	rematches *rematch.Negotiator
	upgrader  websocket.Upgrader
}

func NewHandler(authMgr *auth.Manager, registry *Registry, queue *matchmaking.Queue, games *game.Manager, rematches *rematch.Negotiator, allowedOrigins []string) *Handler {
	return &Handler{
		auth:      authMgr,
		registry:  registry,
		queue:     queue,
		games:     games,
		rematches: rematches,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, candidate := range allowed {
			if candidate == "*" || candidate == origin {
				return true
			}
		}
		log.Printf("[WS] Rejected connection from origin %s", origin)
		return false
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}
	go h.handleConnection(ws)
}

// handleConnection owns one socket from upgrade to close. The first message
// must be an auth carrying a valid JWT; everything before that is rejected
// without touching the engine.
func (h *Handler) handleConnection(ws *websocket.Conn) {
	defer ws.Close()

	conn := NewConn(ws)

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go h.pingLoop(conn, stopPing)

	var userID domain.UserID
	authenticated := false

	for {
		var msg domain.ClientMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if authenticated {
				log.Printf("[WS] Connection closed for user %d: %v", userID, err)
			} else {
				log.Printf("[WS] Unauthenticated connection closed: %v", err)
			}
			break
		}

		if !authenticated {
			if msg.Type != "auth" {
				h.sendError(conn, "not_authenticated", "Authenticate before sending other messages")
				continue
			}
			claims, err := h.auth.Validate(msg.JWT)
			if err != nil {
				log.Printf("[WS] JWT validation failed: %v", err)
				h.sendError(conn, "invalid_token", "Invalid or expired JWT token")
				return
			}

			userID = claims.UserID
			authenticated = true
			first := h.registry.Register(userID, conn)
			log.Printf("[WS] User %d (%s) authenticated and connected", userID, claims.Username)

			conn.Send(domain.ServerMessage{Type: "authenticated"})
			if first {
				// Coming back online within a grace window resumes the game.
				h.games.HandleReconnect(userID)
			}
			continue
		}

		h.route(conn, userID, msg)
	}

	if authenticated {
		if last := h.registry.Unregister(conn); last {
			h.queue.Dequeue(userID)
			h.games.HandleDisconnect(userID)
			h.rematches.HandleOffline(userID)
		}
	}
}

func (h *Handler) route(conn *Conn, userID domain.UserID, msg domain.ClientMessage) {
	switch msg.Type {
	case "seek_game":
		if msg.Criteria == nil {
			h.sendError(conn, "bad_request", "seek_game requires criteria")
			return
		}
		if err := h.queue.Enqueue(userID, *msg.Criteria); err != nil {
			h.sendError(conn, "seek_rejected", err.Error())
			return
		}
		conn.Send(domain.ServerMessage{Type: "seeking", Criteria: msg.Criteria})

	case "cancel_seek":
		h.queue.Dequeue(userID)
		conn.Send(domain.ServerMessage{Type: "seek_cancelled"})

	case "submit_move":
		if err := h.games.SubmitMove(msg.SessionID, userID, msg.Move, msg.Result); err != nil {
			h.sendError(conn, "move_rejected", err.Error())
		}

	case "resign":
		if err := h.games.Resign(msg.SessionID, userID); err != nil {
			h.sendError(conn, "resign_rejected", err.Error())
		}

	case "abandon":
		if err := h.games.Abandon(msg.SessionID, userID); err != nil {
			h.sendError(conn, "abandon_rejected", err.Error())
		}

	case "offer_draw":
		if err := h.games.OfferDraw(msg.SessionID, userID); err != nil {
			h.sendError(conn, "draw_rejected", err.Error())
		}

	case "respond_draw":
		if err := h.games.RespondDraw(msg.SessionID, userID, msg.Accept); err != nil {
			h.sendError(conn, "draw_rejected", err.Error())
		}

	case "propose_rematch":
		if _, err := h.rematches.Propose(msg.SessionID, userID); err != nil {
			h.sendError(conn, "rematch_rejected", err.Error())
		}

	case "respond_rematch":
		if err := h.rematches.Respond(msg.InvitationID, userID, msg.Accept); err != nil {
			h.sendError(conn, "rematch_rejected", err.Error())
		}

	default:
		h.sendError(conn, "unknown_message_type", "Unknown message type")
	}
}

func (h *Handler) sendError(conn *Conn, errType, message string) {
	conn.Send(domain.ServerMessage{Type: errType, Message: message})
}

// pingLoop keeps the connection alive; a peer that stops answering pings
// trips the read deadline and the read loop tears the connection down.
func (h *Handler) pingLoop(conn *Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}
