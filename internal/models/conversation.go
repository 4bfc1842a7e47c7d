package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a durable messaging thread. A user may read or write in a
// conversation only if present in Participants.
type Conversation struct {
	ID            uuid.UUID   `json:"id"`
	Title         string      `json:"title,omitempty"`
	Participants  []uuid.UUID `json:"participants"`
	IsGroup       bool        `json:"is_group"`
	CreatedBy     uuid.UUID   `json:"created_by"`
	LastMessageID *uuid.UUID  `json:"last_message_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// HasParticipant reports whether userID is a conversation participant.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// MessageType classifies message content.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

// Message is one unit of conversation content. ReadBy only grows; a read is
// never retracted.
type Message struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	SenderID       uuid.UUID   `json:"sender_id"`
	Content        string      `json:"content"`
	Type           MessageType `json:"type"`
	ReadBy         []uuid.UUID `json:"read_by"`
	ReplyToID      *uuid.UUID  `json:"reply_to_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}
