package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/brightlearn/backend/internal/domain"
	"github.com/brightlearn/backend/internal/models"
)

// Channel is an independent realtime namespace with its own connection
// registrations and event vocabulary.
type Channel string

const (
	ChannelChat          Channel = "chat"
	ChannelNotifications Channel = "notifications"
	ChannelAssistant     Channel = "assistant"
)

// Frame is the websocket message envelope.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshals payload into a frame for event.
func NewFrame(event string, payload interface{}) Frame {
	data, _ := json.Marshal(payload)
	return Frame{Event: event, Data: data}
}

// Outbound event kinds. This is the closed vocabulary; gateways never emit
// ad hoc event names.
const (
	EventAck                 = "ack"
	EventNewMessage          = "new_message"
	EventConversationUpdated = "conversation_updated"
	EventUserTyping          = "user_typing"
	EventMessagesRead        = "messages_read"
	EventNewNotification     = "new_notification"
	EventUnreadCount         = "unread_count"
	EventBotTyping           = "bot-typing"
	EventBotMessage          = "bot-message"
	EventAgentJoined         = "agent-joined"
	EventAgentMessage        = "agent-message"
)

// Ack is the reply payload for one inbound action. Every inbound action
// produces exactly one ack, success or failure.
type Ack struct {
	Action  string      `json:"action"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// AckOK builds a success ack frame for action.
func AckOK(action string, data interface{}) Frame {
	return NewFrame(EventAck, Ack{Action: action, Success: true, Data: data})
}

// AckErr builds a failure ack frame for action. Domain errors carry their
// wire code; anything else surfaces as a generic internal error.
func AckErr(action string, err error) Frame {
	msg := err.Error()
	if domain.KindOf(err) == domain.KindUnknown {
		msg = "internal error"
	}
	return NewFrame(EventAck, Ack{Action: action, Success: false, Error: msg, Code: domain.Code(err)})
}

// NewMessagePayload is the new_message event body.
type NewMessagePayload struct {
	Message *models.Message     `json:"message"`
	Sender  *models.DisplayInfo `json:"sender,omitempty"`
}

// ConversationUpdatedPayload is the conversation_updated event body.
type ConversationUpdatedPayload struct {
	ConversationID uuid.UUID  `json:"conversation_id"`
	LastMessageID  *uuid.UUID `json:"last_message_id,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// UserTypingPayload is the user_typing event body.
type UserTypingPayload struct {
	RoomID   string    `json:"room_id"`
	UserID   uuid.UUID `json:"user_id"`
	IsTyping bool      `json:"is_typing"`
}

// MessagesReadPayload is the messages_read event body.
type MessagesReadPayload struct {
	ConversationID uuid.UUID   `json:"conversation_id"`
	MessageIDs     []uuid.UUID `json:"message_ids"`
	ReaderID       uuid.UUID   `json:"reader_id"`
}

// NewNotificationPayload is the new_notification event body.
type NewNotificationPayload struct {
	Notification *models.Notification `json:"notification"`
}

// UnreadCountPayload is the unread_count event body.
type UnreadCountPayload struct {
	Count int `json:"count"`
}

// BotTypingPayload is the bot-typing event body.
type BotTypingPayload struct {
	SessionID string `json:"session_id"`
	IsTyping  bool   `json:"is_typing"`
}

// BotMessagePayload is the bot-message event body.
type BotMessagePayload struct {
	SessionID   string   `json:"session_id"`
	Text        string   `json:"text"`
	Suggestions []string `json:"suggestions,omitempty"`
	Handoff     bool     `json:"handoff,omitempty"`
}

// AgentJoinedPayload is the agent-joined event body.
type AgentJoinedPayload struct {
	SessionID string              `json:"session_id"`
	Agent     *models.DisplayInfo `json:"agent,omitempty"`
}

// AgentMessagePayload is the agent-message event body.
type AgentMessagePayload struct {
	SessionID string              `json:"session_id"`
	Text      string              `json:"text"`
	Agent     *models.DisplayInfo `json:"agent,omitempty"`
}
