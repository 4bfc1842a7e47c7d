package chat

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightlearn/backend/internal/domain"
	"github.com/brightlearn/backend/internal/models"
)

const maxMessageLength = 4000

// Store persists conversations and messages.
type Store interface {
	CreateConversation(ctx context.Context, c *models.Conversation) error
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
	InsertMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error)
	// MarkRead records that userID read the given messages of the
	// conversation and returns the IDs that were newly marked. Re-marking
	// is a no-op; the read set only grows.
	MarkRead(ctx context.Context, conversationID, userID uuid.UUID, messageIDs []uuid.UUID) ([]uuid.UUID, error)
}

// Service enforces conversation access rules over a Store.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a chat service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// StartConversation creates a thread between the creator and participants.
// The creator is always a participant.
func (s *Service) StartConversation(ctx context.Context, creatorID uuid.UUID, participantIDs []uuid.UUID, title string) (*models.Conversation, error) {
	seen := map[uuid.UUID]struct{}{creatorID: {}}
	participants := []uuid.UUID{creatorID}
	for _, id := range participantIDs {
		if id == uuid.Nil {
			return nil, domain.Validationf("participant id must not be empty")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		participants = append(participants, id)
	}
	if len(participants) < 2 {
		return nil, domain.Validationf("a conversation needs at least one other participant")
	}

	conv := &models.Conversation{
		Title:        title,
		Participants: participants,
		IsGroup:      len(participants) > 2,
		CreatedBy:    creatorID,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Conversation returns one conversation, verifying the caller participates.
func (s *Service) Conversation(ctx context.Context, callerID, conversationID uuid.UUID) (*models.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(callerID) {
		return nil, domain.AccessDeniedf("not a participant of this conversation")
	}
	return conv, nil
}

// ConversationsOf returns the caller's conversations.
func (s *Service) ConversationsOf(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	return s.store.ListConversations(ctx, userID)
}

// Append adds a message to a conversation. The sender must be a participant
// at send time.
func (s *Service) Append(ctx context.Context, senderID, conversationID uuid.UUID, content string, msgType models.MessageType, replyToID *uuid.UUID) (*models.Message, *models.Conversation, error) {
	if content == "" {
		return nil, nil, domain.Validationf("message content must not be empty")
	}
	if len(content) > maxMessageLength {
		return nil, nil, domain.Validationf("message exceeds %d characters", maxMessageLength)
	}
	if msgType == "" {
		msgType = models.MessageText
	}
	switch msgType {
	case models.MessageText, models.MessageImage, models.MessageFile, models.MessageSystem:
	default:
		return nil, nil, domain.Validationf("unknown message type %q", msgType)
	}

	conv, err := s.Conversation(ctx, senderID, conversationID)
	if err != nil {
		return nil, nil, err
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           msgType,
		ReplyToID:      replyToID,
		ReadBy:         []uuid.UUID{},
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, nil, err
	}
	conv.LastMessageID = &msg.ID
	conv.UpdatedAt = msg.CreatedAt
	return msg, conv, nil
}

// Messages lists recent messages of a conversation the caller participates in.
func (s *Service) Messages(ctx context.Context, callerID, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	if _, err := s.Conversation(ctx, callerID, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListMessages(ctx, conversationID, limit)
}

// MarkRead marks the given messages as read by the caller and returns the
// IDs newly marked. Reads are monotonic: nothing is ever unmarked.
func (s *Service) MarkRead(ctx context.Context, callerID, conversationID uuid.UUID, messageIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(messageIDs) == 0 {
		return nil, domain.Validationf("message_ids must not be empty")
	}
	if _, err := s.Conversation(ctx, callerID, conversationID); err != nil {
		return nil, err
	}
	return s.store.MarkRead(ctx, conversationID, callerID, messageIDs)
}
