package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/aura-companion/gateway/internal/model/chat"
)

var ErrConversationRequired = errors.New("conversation id is required")

// Store is the append-only transcript collaborator. Seq values handed out by
// Append are strictly increasing and gap-free per conversation.
type Store interface {
	Append(ctx context.Context, conversationID string, role chat.Role, content string) (chat.Message, error)
	History(ctx context.Context, conversationID string) ([]chat.Message, error)
	Delete(ctx context.Context, conversationID string) error
	Close() error
}

// MemoryStore keeps transcripts in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string][]chat.Message
	now      func() time.Time
}

// NewMemoryStore bootstraps the in-memory transcript store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string][]chat.Message),
		now:      time.Now,
	}
}

// Append stores one message and returns it with its sequence id.
func (s *MemoryStore) Append(_ context.Context, conversationID string, role chat.Role, content string) (chat.Message, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return chat.Message{}, ErrConversationRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.messages[conversationID]
	msg := chat.Message{
		ConversationID: conversationID,
		Seq:            int64(len(history)) + 1,
		Role:           role,
		Content:        content,
		CreatedAt:      s.now().UTC(),
	}
	s.messages[conversationID] = append(history, msg)
	return msg, nil
}

// History returns a copy of the conversation in sequence order.
func (s *MemoryStore) History(_ context.Context, conversationID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := s.messages[conversationID]
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// Delete drops a whole conversation. Administrative only.
func (s *MemoryStore) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	delete(s.messages, conversationID)
	s.mu.Unlock()
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
