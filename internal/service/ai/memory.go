package ai

import (
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/aura-companion/gateway/internal/model/chat"
)

// Memory holds one bounded conversational buffer per persona id. Buffers are
// created on first use and live for the life of the process.
type Memory struct {
	mu      sync.Mutex
	limit   int
	buffers map[string]*buffer
}

type buffer struct {
	mu       sync.Mutex
	messages []*schema.Message
}

// NewMemory creates a Memory keeping at most limit messages per persona.
func NewMemory(limit int) *Memory {
	if limit < 2 {
		limit = 2
	}
	return &Memory{limit: limit, buffers: make(map[string]*buffer)}
}

// Key maps an optional persona id to its memory key.
func Key(personaID string) string {
	if personaID == "" {
		return chat.DefaultConversation
	}
	return personaID
}

func (m *Memory) buffer(key string) *buffer {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buffers[key]
	if !ok {
		b = &buffer{}
		m.buffers[key] = b
	}
	return b
}

// History returns a copy of the buffer for key.
func (m *Memory) History(key string) []*schema.Message {
	b := m.buffer(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*schema.Message(nil), b.messages...)
}

// Remember appends one exchange to the buffer for key, dropping the oldest
// messages past the limit.
func (m *Memory) Remember(key, user, assistant string) {
	b := m.buffer(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.messages = append(b.messages, schema.UserMessage(user), schema.AssistantMessage(assistant, nil))
	if over := len(b.messages) - m.limit; over > 0 {
		b.messages = b.messages[over:]
	}
	// history must open with a user turn
	for len(b.messages) > 0 && b.messages[0].Role != schema.User {
		b.messages = b.messages[1:]
	}
}

// Forget drops the buffer for key.
func (m *Memory) Forget(key string) {
	m.mu.Lock()
	delete(m.buffers, key)
	m.mu.Unlock()
}
