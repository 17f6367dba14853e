package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/arenachess/backend/internal/domain"
)

// wsWriter is the slice of *websocket.Conn the registry actually uses; tests
// substitute an in-memory recorder.
type wsWriter interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Conn is one socket. Writes are serialized by a per-connection mutex because
// gorilla connections allow only one concurrent writer. A Conn exists from the
// moment the socket is upgraded; it joins the registry only once its user has
// authenticated.
type Conn struct {
	userID  domain.UserID
	ws      wsWriter
	writeMu sync.Mutex
}

func NewConn(ws wsWriter) *Conn {
	return &Conn{ws: ws}
}

// Send marshals and writes a message to this socket only.
func (c *Conn) Send(msg domain.ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(messageType, data)
}

// Registry tracks which users are online and over which sockets. A user may
// hold several connections at once; presence is the union of them.
type Registry struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]map[*Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[domain.UserID]map[*Conn]struct{})}
}

// Register binds the socket to the user and reports whether it took them from
// offline to online.
func (r *Registry) Register(userID domain.UserID, conn *Conn) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn.userID = userID
	set, exists := r.byUser[userID]
	if !exists {
		set = make(map[*Conn]struct{})
		r.byUser[userID] = set
	}
	set[conn] = struct{}{}
	return !exists
}

// Unregister removes the socket and reports whether the user is now fully
// offline.
func (r *Registry) Unregister(conn *Conn) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, exists := r.byUser[conn.userID]
	if !exists {
		return false
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(r.byUser, conn.userID)
		return true
	}
	return false
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// Online returns the number of distinct users currently connected.
func (r *Registry) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Send delivers a message to every connection the user holds. An offline user
// is a silent no-op; a failed socket write is logged and skipped because the
// connection's own reader will notice the broken socket.
func (r *Registry) Send(userID domain.UserID, msg domain.ServerMessage) error {
	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.byUser[userID]))
	for conn := range r.byUser[userID] {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	for _, conn := range conns {
		if err := conn.write(websocket.TextMessage, data); err != nil {
			log.Printf("[WS] Write to user %d failed: %v", userID, err)
		}
	}
	return nil
}
