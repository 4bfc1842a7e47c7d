package chat

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightlearn/backend/internal/domain"
	"github.com/brightlearn/backend/internal/models"
	"github.com/brightlearn/backend/internal/realtime"
)

// Inbound action names for the chat channel.
const (
	ActionJoinConversation  = "join_conversation"
	ActionSendMessage       = "send_message"
	ActionStartConversation = "start_conversation"
	ActionTypingStart       = "typing_start"
	ActionTypingStop        = "typing_stop"
	ActionMarkMessagesRead  = "mark_messages_read"
)

type joinConversationReq struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

type sendMessageReq struct {
	ConversationID uuid.UUID  `json:"conversation_id"`
	Content        string     `json:"content"`
	Type           string     `json:"type"`
	ReplyToID      *uuid.UUID `json:"reply_to_id"`
}

type startConversationReq struct {
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
	Title          string      `json:"title"`
}

type typingReq struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

type markReadReq struct {
	ConversationID uuid.UUID   `json:"conversation_id"`
	MessageIDs     []uuid.UUID `json:"message_ids"`
}

// Directory resolves user display info for broadcast payloads.
type Directory interface {
	GetDisplayInfo(ctx context.Context, id uuid.UUID) (*models.DisplayInfo, error)
}

// Gateway is the chat channel adapter: it translates inbound frames into
// service calls and fans resulting events out to conversation rooms.
type Gateway struct {
	svc       *Service
	rooms     *realtime.Rooms
	fanout    *realtime.Fanout
	directory Directory
	logger    *zap.Logger
}

// NewGateway creates the chat gateway.
func NewGateway(svc *Service, rooms *realtime.Rooms, fanout *realtime.Fanout, directory Directory, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{svc: svc, rooms: rooms, fanout: fanout, directory: directory, logger: logger}
}

// Channel implements realtime.ActionHandler.
func (g *Gateway) Channel() realtime.Channel { return realtime.ChannelChat }

// OnConnect implements realtime.ActionHandler.
func (g *Gateway) OnConnect(ctx context.Context, c *realtime.Conn) {}

// OnDisconnect implements realtime.ActionHandler. Room membership is cleaned
// up by the registry's unregister cascade.
func (g *Gateway) OnDisconnect(ctx context.Context, c *realtime.Conn) {}

// HandleAction implements realtime.ActionHandler.
func (g *Gateway) HandleAction(ctx context.Context, c *realtime.Conn, f realtime.Frame) realtime.Frame {
	switch f.Event {
	case ActionJoinConversation:
		return g.joinConversation(ctx, c, f.Data)
	case ActionSendMessage:
		return g.sendMessage(ctx, c, f.Data)
	case ActionStartConversation:
		return g.startConversation(ctx, c, f.Data)
	case ActionTypingStart:
		return g.typing(ctx, c, f.Data, f.Event, true)
	case ActionTypingStop:
		return g.typing(ctx, c, f.Data, f.Event, false)
	case ActionMarkMessagesRead:
		return g.markRead(ctx, c, f.Data)
	default:
		return realtime.AckErr(f.Event, domain.Validationf("unknown chat action %q", f.Event))
	}
}

func (g *Gateway) joinConversation(ctx context.Context, c *realtime.Conn, data json.RawMessage) realtime.Frame {
	var req joinConversationReq
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == uuid.Nil {
		return realtime.AckErr(ActionJoinConversation, domain.Validationf("conversation_id is required"))
	}
	conv, err := g.svc.Conversation(ctx, c.UserID(), req.ConversationID)
	if err != nil {
		return realtime.AckErr(ActionJoinConversation, err)
	}
	g.rooms.Join(c.ID(), conv.ID.String())
	return realtime.AckOK(ActionJoinConversation, conv)
}

func (g *Gateway) sendMessage(ctx context.Context, c *realtime.Conn, data json.RawMessage) realtime.Frame {
	var req sendMessageReq
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == uuid.Nil {
		return realtime.AckErr(ActionSendMessage, domain.Validationf("conversation_id is required"))
	}
	msg, conv, err := g.svc.Append(ctx, c.UserID(), req.ConversationID, req.Content, models.MessageType(req.Type), req.ReplyToID)
	if err != nil {
		return realtime.AckErr(ActionSendMessage, err)
	}

	sender, err := g.directory.GetDisplayInfo(ctx, c.UserID())
	if err != nil {
		g.logger.Warn("sender lookup failed", zap.Error(err), zap.String("user_id", c.UserID().String()))
	}
	g.fanout.Publish(realtime.Event{
		Channel:     realtime.ChannelChat,
		Kind:        realtime.EventNewMessage,
		TargetRooms: []string{conv.ID.String()},
		Payload:     realtime.NewMessagePayload{Message: msg, Sender: sender},
	})
	g.fanout.Publish(realtime.Event{
		Channel:     realtime.ChannelChat,
		Kind:        realtime.EventConversationUpdated,
		TargetUsers: conv.Participants,
		Payload: realtime.ConversationUpdatedPayload{
			ConversationID: conv.ID,
			LastMessageID:  conv.LastMessageID,
			UpdatedAt:      conv.UpdatedAt,
		},
	})
	return realtime.AckOK(ActionSendMessage, msg)
}

func (g *Gateway) startConversation(ctx context.Context, c *realtime.Conn, data json.RawMessage) realtime.Frame {
	var req startConversationReq
	if err := json.Unmarshal(data, &req); err != nil {
		return realtime.AckErr(ActionStartConversation, domain.Validationf("participant_ids is required"))
	}
	conv, err := g.svc.StartConversation(ctx, c.UserID(), req.ParticipantIDs, req.Title)
	if err != nil {
		return realtime.AckErr(ActionStartConversation, err)
	}
	// the creating connection is in the room immediately; others join on
	// their own join_conversation
	g.rooms.Join(c.ID(), conv.ID.String())
	g.fanout.Publish(realtime.Event{
		Channel:     realtime.ChannelChat,
		Kind:        realtime.EventConversationUpdated,
		TargetUsers: conv.Participants,
		Payload: realtime.ConversationUpdatedPayload{
			ConversationID: conv.ID,
			UpdatedAt:      conv.UpdatedAt,
		},
	})
	return realtime.AckOK(ActionStartConversation, conv)
}

func (g *Gateway) typing(ctx context.Context, c *realtime.Conn, data json.RawMessage, action string, isTyping bool) realtime.Frame {
	var req typingReq
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == uuid.Nil {
		return realtime.AckErr(action, domain.Validationf("conversation_id is required"))
	}
	if _, err := g.svc.Conversation(ctx, c.UserID(), req.ConversationID); err != nil {
		return realtime.AckErr(action, err)
	}
	g.fanout.Publish(realtime.Event{
		Channel:     realtime.ChannelChat,
		Kind:        realtime.EventUserTyping,
		TargetRooms: []string{req.ConversationID.String()},
		SkipConn:    c.ID(),
		Payload: realtime.UserTypingPayload{
			RoomID:   req.ConversationID.String(),
			UserID:   c.UserID(),
			IsTyping: isTyping,
		},
	})
	return realtime.AckOK(action, nil)
}

func (g *Gateway) markRead(ctx context.Context, c *realtime.Conn, data json.RawMessage) realtime.Frame {
	var req markReadReq
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == uuid.Nil {
		return realtime.AckErr(ActionMarkMessagesRead, domain.Validationf("conversation_id is required"))
	}
	marked, err := g.svc.MarkRead(ctx, c.UserID(), req.ConversationID, req.MessageIDs)
	if err != nil {
		return realtime.AckErr(ActionMarkMessagesRead, err)
	}
	if len(marked) > 0 {
		g.fanout.Publish(realtime.Event{
			Channel:     realtime.ChannelChat,
			Kind:        realtime.EventMessagesRead,
			TargetRooms: []string{req.ConversationID.String()},
			Payload: realtime.MessagesReadPayload{
				ConversationID: req.ConversationID,
				MessageIDs:     marked,
				ReaderID:       c.UserID(),
			},
		})
	}
	return realtime.AckOK(ActionMarkMessagesRead, realtime.MessagesReadPayload{
		ConversationID: req.ConversationID,
		MessageIDs:     marked,
		ReaderID:       c.UserID(),
	})
}
