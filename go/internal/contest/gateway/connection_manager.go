package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/keyduel/keyduel/go/internal/contest/events"
)

// ConnectionManager tracks WebSocket connections per contest and fans
// contest events out to them.
type ConnectionManager struct {
	contestConnections map[uuid.UUID]map[*Connection]bool
	mu                 sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	router   *MessageRouter

	broadcastCh chan BroadcastMessage
}

// Connection represents one client's WebSocket link to a contest.
type Connection struct {
	ID         string
	IdentityID uuid.UUID
	ContestID  uuid.UUID
	Conn       *websocket.Conn
	Send       chan []byte
	Manager    *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds WebSocket tuning.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage targets every connection of a contest, or one identity
// when IdentityID is set.
type BroadcastMessage struct {
	ContestID  uuid.UUID
	Event      *events.Event
	IdentityID uuid.UUID
}

// DefaultConnectionConfig returns sensible WebSocket defaults. Message size
// is bounded by the longest passage plus envelope overhead.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  8192,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a connection manager routing inbound frames
// through the given router.
func NewConnectionManager(config ConnectionConfig, router *MessageRouter) *ConnectionManager {
	return &ConnectionManager{
		contestConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		router:      router,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start processes broadcasts until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a contest-scoped WebSocket.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, identityID, contestID uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		IdentityID:  identityID,
		ContestID:   contestID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("identity_id", identityID.String()).
		Str("contest_id", contestID.String()).
		Msg("WebSocket connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.contestConnections[conn.ContestID] == nil {
		cm.contestConnections[conn.ContestID] = make(map[*Connection]bool)
	}
	cm.contestConnections[conn.ContestID][conn] = true
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if connections, exists := cm.contestConnections[conn.ContestID]; exists {
		if _, exists := connections[conn]; exists {
			delete(connections, conn)
			close(conn.Send)
			if len(connections) == 0 {
				delete(cm.contestConnections, conn.ContestID)
			}
			log.Info().
				Str("connection_id", conn.ID).
				Str("identity_id", conn.IdentityID.String()).
				Str("contest_id", conn.ContestID.String()).
				Msg("connection unregistered")
		}
	}
}

// BroadcastToContest queues an event for every connection of a contest.
func (cm *ConnectionManager) BroadcastToContest(contestID uuid.UUID, event *events.Event) {
	select {
	case cm.broadcastCh <- BroadcastMessage{ContestID: contestID, Event: event}:
	default:
		log.Warn().Str("contest_id", contestID.String()).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastToIdentity queues an event for one participant only.
func (cm *ConnectionManager) BroadcastToIdentity(contestID, identityID uuid.UUID, event *events.Event) {
	select {
	case cm.broadcastCh <- BroadcastMessage{ContestID: contestID, Event: event, IdentityID: identityID}:
	default:
		log.Warn().
			Str("contest_id", contestID.String()).
			Str("identity_id", identityID.String()).
			Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.contestConnections[message.ContestID]
	if !exists {
		cm.mu.RUnlock()
		return
	}
	var targets []*Connection
	for conn := range connections {
		if message.IdentityID != uuid.Nil && conn.IdentityID != message.IdentityID {
			continue
		}
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- eventData:
		default:
			log.Warn().
				Str("connection_id", conn.ID).
				Str("identity_id", conn.IdentityID.String()).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}
}

// Stats returns counts of live connections per contest.
func (cm *ConnectionManager) Stats() (total int, contests map[string]int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	contests = make(map[string]int)
	for contestID, connections := range cm.contestConnections {
		contests[contestID.String()] = len(connections)
		total += len(connections)
	}
	return total, contests
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
			c.LastPing = time.Now()
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close")
			}
			break
		}

		if ack := c.Manager.router.Route(c, message); ack != nil {
			if data, err := json.Marshal(ack); err == nil {
				select {
				case c.Send <- data:
				default:
				}
			}
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
