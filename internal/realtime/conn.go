package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/brightlearn/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// TokenVerifier turns a bearer token into a verified identity.
type TokenVerifier func(token string) (userID uuid.UUID, role models.Role, err error)

// ActionHandler translates inbound frames on one channel into domain calls.
// HandleAction returns the ack frame sent back to the originating caller; it
// must not panic the connection on domain failures.
type ActionHandler interface {
	Channel() Channel
	OnConnect(ctx context.Context, c *Conn)
	HandleAction(ctx context.Context, c *Conn, f Frame) Frame
	OnDisconnect(ctx context.Context, c *Conn)
}

// Conn is a single websocket connection on one channel.
type Conn struct {
	id      uuid.UUID
	userID  uuid.UUID
	role    models.Role
	channel Channel
	ws      *websocket.Conn
	send    chan Frame
	logger  *zap.Logger
}

func (c *Conn) ID() uuid.UUID     { return c.id }
func (c *Conn) UserID() uuid.UUID { return c.userID }
func (c *Conn) Role() models.Role { return c.role }
func (c *Conn) Channel() Channel  { return c.channel }

// Push queues a frame for delivery. Non-blocking: returns false and drops
// the frame when the buffer is full.
func (c *Conn) Push(f Frame) bool {
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

// NewConn creates a connection with no websocket transport behind it.
// Pushed frames queue on the send buffer and are read back with Drain.
// It stands in for a live connection in tests and in-process callers.
func NewConn(userID uuid.UUID, role models.Role, channel Channel) *Conn {
	return &Conn{
		id:      uuid.New(),
		userID:  userID,
		role:    role,
		channel: channel,
		send:    make(chan Frame, sendBufferSize),
		logger:  zap.NewNop(),
	}
}

// Drain returns and clears the frames currently queued on the connection.
func (c *Conn) Drain() []Frame {
	var frames []Frame
	for {
		select {
		case f := <-c.send:
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

// ServeWS handles the websocket upgrade for one channel and runs the
// connection loop. The token travels in the query string because browsers
// cannot set headers on websocket requests.
func ServeWS(registry *Registry, logger *zap.Logger, verify TokenVerifier, handler ActionHandler) gin.HandlerFunc {
	return func(gc *gin.Context) {
		token := gc.Query("token")
		if token == "" {
			gc.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		userID, role, err := verify(token)
		if err != nil {
			gc.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ws, err := upgrader.Upgrade(gc.Writer, gc.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		conn := &Conn{
			id:      uuid.New(),
			userID:  userID,
			role:    role,
			channel: handler.Channel(),
			ws:      ws,
			send:    make(chan Frame, sendBufferSize),
			logger:  logger,
		}
		registry.Register(conn)
		handler.OnConnect(context.Background(), conn)
		go conn.writePump()
		conn.readPump(registry, handler)
	}
}

func (c *Conn) readPump(registry *Registry, handler ActionHandler) {
	defer func() {
		handler.OnDisconnect(context.Background(), c)
		registry.Unregister(c.id)
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(65536)
	_ = c.ws.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var frame Frame
		if err := c.ws.ReadJSON(&frame); err != nil {
			break
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		ack := handler.HandleAction(context.Background(), c, frame)
		c.sendAck(frame.Event, ack)
	}
}

// sendAck queues the ack for one inbound action. A full send buffer means
// the client is not draining its socket; the drop is logged because every
// inbound action is supposed to produce exactly one reply.
func (c *Conn) sendAck(action string, ack Frame) {
	if c.Push(ack) {
		return
	}
	c.logger.Warn("ack dropped, send buffer full",
		zap.String("conn_id", c.id.String()),
		zap.String("action", action))
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.ws.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
