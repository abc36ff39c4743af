package chat

import "time"

// Role identifies who authored a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultConversation keys turns taken without a bound persona.
const DefaultConversation = "default"

// Message is one append-only transcript record. Seq starts at 1 and is
// gap-free within a conversation.
type Message struct {
	ConversationID string    `json:"conversationId"`
	Seq            int64     `json:"id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"timestamp"`
}
