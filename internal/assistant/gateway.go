package assistant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightlearn/backend/internal/domain"
	"github.com/brightlearn/backend/internal/models"
	"github.com/brightlearn/backend/internal/realtime"
)

// Inbound action names for the assistant channel.
const (
	ActionJoin       = "join"
	ActionMessage    = "message"
	ActionQuickReply = "quick-reply"
	ActionTyping     = "typing"
)

const roomPrefix = "support:"

type joinReq struct {
	SessionID string `json:"session_id"`
}

type messageReq struct {
	SessionID string            `json:"session_id"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context"`
}

type quickReplyReq struct {
	SessionID string            `json:"session_id"`
	Reply     string            `json:"reply"`
	Context   map[string]string `json:"context"`
}

type typingReq struct {
	SessionID string `json:"session_id"`
	IsTyping  bool   `json:"is_typing"`
}

// Directory resolves user display info for broadcast payloads.
type Directory interface {
	GetDisplayInfo(ctx context.Context, id uuid.UUID) (*models.DisplayInfo, error)
}

// Gateway is the assistant channel adapter. Support sessions are rooms
// shared by the user's devices and any human agent who joins; bot replies
// come from the external provider.
type Gateway struct {
	provider  Provider
	rooms     *realtime.Rooms
	fanout    *realtime.Fanout
	directory Directory
	timeout   time.Duration
	logger    *zap.Logger
}

// NewGateway creates the assistant gateway. timeout bounds one provider call.
func NewGateway(provider Provider, rooms *realtime.Rooms, fanout *realtime.Fanout, directory Directory, timeout time.Duration, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{provider: provider, rooms: rooms, fanout: fanout, directory: directory, timeout: timeout, logger: logger}
}

// Channel implements realtime.ActionHandler.
func (g *Gateway) Channel() realtime.Channel { return realtime.ChannelAssistant }

// OnConnect implements realtime.ActionHandler.
func (g *Gateway) OnConnect(ctx context.Context, c *realtime.Conn) {}

// OnDisconnect implements realtime.ActionHandler.
func (g *Gateway) OnDisconnect(ctx context.Context, c *realtime.Conn) {}

// HandleAction implements realtime.ActionHandler.
func (g *Gateway) HandleAction(ctx context.Context, c *realtime.Conn, f realtime.Frame) realtime.Frame {
	switch f.Event {
	case ActionJoin:
		return g.join(ctx, c, f.Data)
	case ActionMessage:
		var req messageReq
		if err := json.Unmarshal(f.Data, &req); err != nil || req.SessionID == "" {
			return realtime.AckErr(ActionMessage, domain.Validationf("session_id is required"))
		}
		return g.converse(ctx, c, ActionMessage, req.SessionID, req.Message, req.Context)
	case ActionQuickReply:
		var req quickReplyReq
		if err := json.Unmarshal(f.Data, &req); err != nil || req.SessionID == "" {
			return realtime.AckErr(ActionQuickReply, domain.Validationf("session_id is required"))
		}
		return g.converse(ctx, c, ActionQuickReply, req.SessionID, req.Reply, req.Context)
	case ActionTyping:
		return g.typing(ctx, c, f.Data)
	default:
		return realtime.AckErr(f.Event, domain.Validationf("unknown assistant action %q", f.Event))
	}
}

func (g *Gateway) join(ctx context.Context, c *realtime.Conn, data json.RawMessage) realtime.Frame {
	var req joinReq
	if err := json.Unmarshal(data, &req); err != nil || req.SessionID == "" {
		return realtime.AckErr(ActionJoin, domain.Validationf("session_id is required"))
	}
	room := roomPrefix + req.SessionID
	g.rooms.Join(c.ID(), room)

	if g.isAgent(c) {
		agent, err := g.directory.GetDisplayInfo(ctx, c.UserID())
		if err != nil {
			g.logger.Warn("agent lookup failed", zap.Error(err), zap.String("user_id", c.UserID().String()))
		}
		g.fanout.Publish(realtime.Event{
			Channel:     realtime.ChannelAssistant,
			Kind:        realtime.EventAgentJoined,
			TargetRooms: []string{room},
			Payload:     realtime.AgentJoinedPayload{SessionID: req.SessionID, Agent: agent},
		})
	}
	return realtime.AckOK(ActionJoin, map[string]string{"session_id": req.SessionID})
}

// converse handles message and quick-reply. An agent's message broadcasts to
// the room directly; a user's message goes to the provider. The bot typing
// indicator is raised before the provider call and always lowered once the
// call settles, success or failure, so it can never get stuck on.
func (g *Gateway) converse(ctx context.Context, c *realtime.Conn, action, sessionID, text string, rctx map[string]string) realtime.Frame {
	if text == "" {
		return realtime.AckErr(action, domain.Validationf("message must not be empty"))
	}
	room := roomPrefix + sessionID

	if g.isAgent(c) {
		agent, err := g.directory.GetDisplayInfo(ctx, c.UserID())
		if err != nil {
			g.logger.Warn("agent lookup failed", zap.Error(err), zap.String("user_id", c.UserID().String()))
		}
		g.fanout.Publish(realtime.Event{
			Channel:     realtime.ChannelAssistant,
			Kind:        realtime.EventAgentMessage,
			TargetRooms: []string{room},
			Payload:     realtime.AgentMessagePayload{SessionID: sessionID, Text: text, Agent: agent},
		})
		return realtime.AckOK(action, nil)
	}

	g.fanout.Publish(realtime.Event{
		Channel:     realtime.ChannelAssistant,
		Kind:        realtime.EventBotTyping,
		TargetRooms: []string{room},
		Payload:     realtime.BotTypingPayload{SessionID: sessionID, IsTyping: true},
	})
	defer g.fanout.Publish(realtime.Event{
		Channel:     realtime.ChannelAssistant,
		Kind:        realtime.EventBotTyping,
		TargetRooms: []string{room},
		Payload:     realtime.BotTypingPayload{SessionID: sessionID, IsTyping: false},
	})

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	reply, err := g.provider.Respond(callCtx, c.UserID(), sessionID, text, rctx)
	if err != nil {
		g.logger.Warn("assistant provider failed",
			zap.Error(err),
			zap.String("session_id", sessionID),
			zap.String("user_id", c.UserID().String()))
		return realtime.AckErr(action, err)
	}

	g.fanout.Publish(realtime.Event{
		Channel:     realtime.ChannelAssistant,
		Kind:        realtime.EventBotMessage,
		TargetRooms: []string{room},
		Payload: realtime.BotMessagePayload{
			SessionID:   sessionID,
			Text:        reply.Text,
			Suggestions: reply.Suggestions,
			Handoff:     reply.Handoff,
		},
	})
	return realtime.AckOK(action, reply)
}

func (g *Gateway) typing(ctx context.Context, c *realtime.Conn, data json.RawMessage) realtime.Frame {
	var req typingReq
	if err := json.Unmarshal(data, &req); err != nil || req.SessionID == "" {
		return realtime.AckErr(ActionTyping, domain.Validationf("session_id is required"))
	}
	g.fanout.Publish(realtime.Event{
		Channel:     realtime.ChannelAssistant,
		Kind:        realtime.EventUserTyping,
		TargetRooms: []string{roomPrefix + req.SessionID},
		SkipConn:    c.ID(),
		Payload: realtime.UserTypingPayload{
			RoomID:   roomPrefix + req.SessionID,
			UserID:   c.UserID(),
			IsTyping: req.IsTyping,
		},
	})
	return realtime.AckOK(ActionTyping, nil)
}

func (g *Gateway) isAgent(c *realtime.Conn) bool {
	return c.Role() == models.RoleAgent || c.Role() == models.RoleAdmin
}
