package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/zippy/go/internal/models"
	"github.com/mcdev12/zippy/go/internal/race/events"
	"github.com/mcdev12/zippy/go/internal/race/registry"
)

// Rooms is the part of the room registry the transport dispatches to.
type Rooms interface {
	CreateRoom(conn registry.ConnID, p models.Participant) string
	JoinRoom(conn registry.ConnID, roomID string, p models.Participant) error
	LeaveRoom(conn registry.ConnID, roomID string)
	Disconnect(conn registry.ConnID)
	StartRace(conn registry.ConnID, roomID, text string) error
	RecordProgress(conn registry.ConnID, roomID, playerID string, index, errCount int) error
	Stats() registry.Stats
}

// ConnectionManager manages WebSocket connections for race rooms and
// delivers registry events to them.
type ConnectionManager struct {
	connections map[registry.ConnID]*Connection
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	rooms Rooms
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      registry.ConnID
	UserID  string // empty for guests
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	// EnqueueTimeout bounds how long a roster or race-start event waits for
	// room in a full send buffer before the connection is dropped.
	EnqueueTimeout time.Duration
	CheckOrigin    func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096, // race text travels inside start-game
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		EnqueueTimeout:  2 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager. Rooms must
// be attached before the first connection is accepted.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[registry.ConnID]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// Attach sets the registry client messages are dispatched to.
func (cm *ConnectionManager) Attach(rooms Rooms) {
	cm.rooms = rooms
}

// UpgradeConnection upgrades an HTTP connection to WebSocket. userID is the
// verified account id or empty for a guest.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          registry.ConnID(uuid.New().String()),
		UserID:      userID,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
		done:        make(chan struct{}),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", string(connection.ID)).
		Str("user_id", userID).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[conn.ID] = conn

	log.Debug().
		Str("connection_id", string(conn.ID)).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection runs once per connection: it drops the connection from
// the pool and leaves every room it was in.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	conn.closeOnce.Do(func() {
		cm.mu.Lock()
		delete(cm.connections, conn.ID)
		cm.mu.Unlock()

		close(conn.done)
		conn.Conn.Close()

		if cm.rooms != nil {
			cm.rooms.Disconnect(conn.ID)
		}

		log.Info().
			Str("connection_id", string(conn.ID)).
			Str("user_id", conn.UserID).
			Dur("connected_for", time.Since(conn.ConnectedAt)).
			Msg("connection unregistered")
	})
}

// Send queues msg for one connection. It implements registry.Broadcaster and
// is called with the room lock held, so it never blocks beyond
// EnqueueTimeout and never calls back into the registry.
func (cm *ConnectionManager) Send(id registry.ConnID, msg events.ServerMessage) {
	cm.mu.RLock()
	conn, ok := cm.connections[id]
	cm.mu.RUnlock()
	if !ok {
		return
	}

	data, err := events.Encode(msg)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(msg.Type())).Msg("failed to encode event")
		return
	}

	if _, progress := msg.(events.PlayerProgress); progress {
		select {
		case conn.Send <- data:
		case <-conn.done:
		default:
			log.Debug().
				Str("connection_id", string(id)).
				Msg("send buffer full, dropping progress relay")
		}
		return
	}

	timer := time.NewTimer(cm.config.EnqueueTimeout)
	defer timer.Stop()
	select {
	case conn.Send <- data:
	case <-conn.done:
	case <-timer.C:
		// closing the socket ends readPump, which leaves the rooms on its own goroutine
		log.Warn().
			Str("connection_id", string(id)).
			Str("event_type", string(msg.Type())).
			Msg("connection send buffer full, closing connection")
		conn.Conn.Close()
	}
}

// ConnectionStats describes the live connection pool.
type ConnectionStats struct {
	TotalConnections int `json:"total_connections"`
	Guests           int `json:"guests"`
	registry.Stats
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	stats := ConnectionStats{TotalConnections: len(cm.connections)}
	for _, conn := range cm.connections {
		if conn.UserID == "" {
			stats.Guests++
		}
	}
	cm.mu.RUnlock()

	if cm.rooms != nil {
		stats.Stats = cm.rooms.Stats()
	}
	return stats
}

// CloseAll drops every connection. Used on shutdown.
func (cm *ConnectionManager) CloseAll(ctx context.Context) {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		if ctx.Err() != nil {
			return
		}
		deadline := time.Now().Add(cm.config.WriteTimeout)
		_ = conn.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		cm.unregisterConnection(conn)
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", string(c.ID)).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", string(c.ID)).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer c.Manager.unregisterConnection(c)

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", string(c.ID)).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage decodes one frame and dispatches it to the registry.
func (c *Connection) handleClientMessage(raw []byte) {
	msg, err := events.DecodeClient(raw)
	if err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", string(c.ID)).
			Msg("rejected client message")
		c.Manager.Send(c.ID, events.Error{Message: "Invalid message"})
		return
	}

	log.Debug().
		Str("connection_id", string(c.ID)).
		Str("event_type", string(msg.Type())).
		Msg("received client message")

	rooms := c.Manager.rooms
	switch m := msg.(type) {
	case events.CreateRoom:
		rooms.CreateRoom(c.ID, c.identify(m.Participant))
	case events.JoinRoom:
		_ = rooms.JoinRoom(c.ID, m.RoomID, c.identify(m.Participant))
	case events.StartGame:
		_ = rooms.StartRace(c.ID, m.RoomID, m.Text)
	case events.UpdateProgress:
		if err := rooms.RecordProgress(c.ID, m.RoomID, m.PlayerID, m.Index, m.Errors); err != nil {
			log.Debug().
				Err(err).
				Str("connection_id", string(c.ID)).
				Str("room_id", m.RoomID).
				Msg("progress relay dropped")
		}
	case events.LeaveRoom:
		rooms.LeaveRoom(c.ID, m.RoomID)
	}
}

// identify binds the participant to this connection's identity. A verified
// account id always wins over whatever the client claimed; a guest without
// an id gets one scoped to the connection.
func (c *Connection) identify(p models.Participant) models.Participant {
	switch {
	case c.UserID != "":
		p.ID = c.UserID
	case p.ID == "":
		p.ID = models.GuestID(string(c.ID))
	}
	p.IsBot = false
	p.IsGhost = false
	return p
}
