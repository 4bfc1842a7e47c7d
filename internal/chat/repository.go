package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightlearn/backend/internal/domain"
	"github.com/brightlearn/backend/internal/models"
)

// Repository handles conversation and message persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a chat repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateConversation inserts a conversation and its participant rows in one
// transaction.
func (r *Repository) CreateConversation(ctx context.Context, c *models.Conversation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO conversations (title, is_group, created_by)
		VALUES ($1, $2, $3) RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, q, c.Title, c.IsGroup, c.CreatedBy).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return err
	}
	for _, userID := range c.Participants {
		if _, err := tx.Exec(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)`,
			c.ID, userID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// GetConversation returns a conversation with its participant set.
func (r *Repository) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	const q = `SELECT id, title, is_group, created_by, last_message_id, created_at, updated_at
		FROM conversations WHERE id = $1`
	var c models.Conversation
	err := r.pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.Title, &c.IsGroup, &c.CreatedBy, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFoundf("conversation %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT user_id FROM conversation_participants WHERE conversation_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	c.Participants = []uuid.UUID{}
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		c.Participants = append(c.Participants, userID)
	}
	return &c, rows.Err()
}

// ListConversations returns the conversations userID participates in, most
// recently updated first.
func (r *Repository) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	const q = `SELECT c.id, c.title, c.is_group, c.created_by, c.last_message_id, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.updated_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.IsGroup, &c.CreatedBy, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// InsertMessage inserts a message and bumps the conversation's last message
// pointer in one transaction.
func (r *Repository) InsertMessage(ctx context.Context, m *models.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO messages (conversation_id, sender_id, content, type, reply_to_id)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	if err := tx.QueryRow(ctx, q, m.ConversationID, m.SenderID, m.Content, m.Type, m.ReplyToID).Scan(&m.ID, &m.CreatedAt); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE conversations SET last_message_id = $1, updated_at = NOW() WHERE id = $2`,
		m.ID, m.ConversationID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListMessages returns up to limit most recent messages of a conversation,
// newest first, each with its read set.
func (r *Repository) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	const q = `SELECT id, conversation_id, sender_id, content, type, reply_to_id, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Type, &m.ReplyToID, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.ReadBy = []uuid.UUID{}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range list {
		readers, err := r.readersOf(ctx, list[i].ID)
		if err != nil {
			return nil, err
		}
		list[i].ReadBy = readers
	}
	return list, nil
}

// MarkRead inserts read marks for the given messages, skipping messages that
// do not belong to the conversation or are already marked. Returns the IDs
// newly marked.
func (r *Repository) MarkRead(ctx context.Context, conversationID, userID uuid.UUID, messageIDs []uuid.UUID) ([]uuid.UUID, error) {
	const q = `INSERT INTO message_reads (message_id, user_id)
		SELECT m.id, $1 FROM messages m
		WHERE m.id = ANY($2) AND m.conversation_id = $3
		ON CONFLICT (message_id, user_id) DO NOTHING
		RETURNING message_id`
	rows, err := r.pool.Query(ctx, q, userID, messageIDs, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	marked := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		marked = append(marked, id)
	}
	return marked, rows.Err()
}

func (r *Repository) readersOf(ctx context.Context, messageID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM message_reads WHERE message_id = $1`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	readers := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		readers = append(readers, id)
	}
	return readers, rows.Err()
}
