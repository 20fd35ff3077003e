package chat

import "time"

// ConversationState tracks whether the assistant owes the conversation a
// response.
type ConversationState string

const (
	// StateIdle means every message is resolved and a new one may be sent.
	StateIdle ConversationState = "idle"

	// StateAwaiting means the latest user message has a pending assistant
	// reply. Sends are rejected until it resolves.
	StateAwaiting ConversationState = "awaiting"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Conversation is one assistant session. Its context is fixed at creation.
type Conversation struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Context   ContextTag        `json:"context"`
	State     ConversationState `json:"state"`
	CreatedAt time.Time         `json:"created_at"`
}

// Message is one entry in a conversation log. Seq is strictly increasing
// per conversation; a pending message holds the assistant's place until
// the generator resolves it.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Seq            int       `json:"seq"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Pending        bool      `json:"pending"`
	CreatedAt      time.Time `json:"created_at"`
}

// StartRequest is the payload for creating a conversation.
type StartRequest struct {
	Context string `json:"context" form:"context"`
}

// SendRequest is the payload for posting a user message.
type SendRequest struct {
	Content string `json:"content" form:"content"`
}

// ConversationView is a conversation together with its ordered log, as
// returned to clients.
type ConversationView struct {
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages"`
}
