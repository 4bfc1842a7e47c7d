package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/brightlearn/backend/internal/domain"
	"github.com/brightlearn/backend/internal/models"
)

type fakeStore struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*models.Conversation
	messages      map[uuid.UUID]*models.Message
	reads         map[uuid.UUID]map[uuid.UUID]struct{} // messageID -> readers
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[uuid.UUID]*models.Conversation),
		messages:      make(map[uuid.UUID]*models.Message),
		reads:         make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

func (f *fakeStore) CreateConversation(_ context.Context, c *models.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	cp.Participants = append([]uuid.UUID(nil), c.Participants...)
	f.conversations[c.ID] = &cp
	return nil
}

func (f *fakeStore) GetConversation(_ context.Context, id uuid.UUID) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return nil, domain.NotFoundf("conversation %s not found", id)
	}
	cp := *c
	cp.Participants = append([]uuid.UUID(nil), c.Participants...)
	return &cp, nil
}

func (f *fakeStore) ListConversations(_ context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Conversation
	for _, c := range f.conversations {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertMessage(_ context.Context, m *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	cp := *m
	f.messages[m.ID] = &cp
	if c, ok := f.conversations[m.ConversationID]; ok {
		c.LastMessageID = &m.ID
		c.UpdatedAt = m.CreatedAt
	}
	return nil
}

func (f *fakeStore) ListMessages(_ context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID && len(out) < limit {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkRead(_ context.Context, conversationID, userID uuid.UUID, messageIDs []uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var marked []uuid.UUID
	for _, id := range messageIDs {
		m, ok := f.messages[id]
		if !ok || m.ConversationID != conversationID {
			continue
		}
		if f.reads[id] == nil {
			f.reads[id] = make(map[uuid.UUID]struct{})
		}
		if _, already := f.reads[id][userID]; already {
			continue
		}
		f.reads[id][userID] = struct{}{}
		marked = append(marked, id)
	}
	return marked, nil
}

func TestStartConversation(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	creator := uuid.New()
	other := uuid.New()
	ctx := context.Background()

	conv, err := svc.StartConversation(ctx, creator, []uuid.UUID{other, other, creator}, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(conv.Participants) != 2 {
		t.Fatalf("expected deduplicated participants, got %v", conv.Participants)
	}
	if !conv.HasParticipant(creator) {
		t.Fatalf("creator missing from participants")
	}
	if conv.IsGroup {
		t.Fatalf("two-party conversation flagged as group")
	}

	group, err := svc.StartConversation(ctx, creator, []uuid.UUID{other, uuid.New()}, "study group")
	if err != nil {
		t.Fatalf("start group: %v", err)
	}
	if !group.IsGroup {
		t.Fatalf("three-party conversation not flagged as group")
	}
}

func TestStartConversationValidation(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	creator := uuid.New()
	ctx := context.Background()

	// Only the creator after dedupe: no one to talk to.
	if _, err := svc.StartConversation(ctx, creator, []uuid.UUID{creator}, ""); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.StartConversation(ctx, creator, []uuid.UUID{uuid.Nil}, ""); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error for nil participant, got %v", err)
	}
}

func TestAppendRequiresParticipation(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	creator := uuid.New()
	other := uuid.New()
	stranger := uuid.New()
	ctx := context.Background()

	conv, err := svc.StartConversation(ctx, creator, []uuid.UUID{other}, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	_, _, err = svc.Append(ctx, stranger, conv.ID, "hi", models.MessageText, nil)
	if domain.KindOf(err) != domain.KindAccessDenied {
		t.Fatalf("stranger append: expected access_denied, got %v", err)
	}

	msg, updated, err := svc.Append(ctx, other, conv.ID, "hi", "", nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if msg.Type != models.MessageText {
		t.Fatalf("expected default type text, got %s", msg.Type)
	}
	if updated.LastMessageID == nil || *updated.LastMessageID != msg.ID {
		t.Fatalf("last_message_id not bumped")
	}
}

func TestAppendValidation(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	creator := uuid.New()
	ctx := context.Background()
	conv, err := svc.StartConversation(ctx, creator, []uuid.UUID{uuid.New()}, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, _, err := svc.Append(ctx, creator, conv.ID, "", models.MessageText, nil); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("empty content: expected validation error, got %v", err)
	}
	long := strings.Repeat("a", maxMessageLength+1)
	if _, _, err := svc.Append(ctx, creator, conv.ID, long, models.MessageText, nil); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("oversized content: expected validation error, got %v", err)
	}
	if _, _, err := svc.Append(ctx, creator, conv.ID, "x", "gif", nil); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("unknown type: expected validation error, got %v", err)
	}
}

func TestMarkReadMonotonic(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	creator := uuid.New()
	reader := uuid.New()
	ctx := context.Background()

	conv, err := svc.StartConversation(ctx, creator, []uuid.UUID{reader}, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	msg, _, err := svc.Append(ctx, creator, conv.ID, "hello", models.MessageText, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	marked, err := svc.MarkRead(ctx, reader, conv.ID, []uuid.UUID{msg.ID})
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if len(marked) != 1 || marked[0] != msg.ID {
		t.Fatalf("expected %s newly marked, got %v", msg.ID, marked)
	}

	// Re-marking is a no-op; the read set only grows.
	marked, err = svc.MarkRead(ctx, reader, conv.ID, []uuid.UUID{msg.ID})
	if err != nil {
		t.Fatalf("re-mark: %v", err)
	}
	if len(marked) != 0 {
		t.Fatalf("re-mark returned %v", marked)
	}

	if _, err := svc.MarkRead(ctx, uuid.New(), conv.ID, []uuid.UUID{msg.ID}); domain.KindOf(err) != domain.KindAccessDenied {
		t.Fatalf("stranger mark read: expected access_denied, got %v", err)
	}
	if _, err := svc.MarkRead(ctx, reader, conv.ID, nil); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("empty ids: expected validation error, got %v", err)
	}
}
