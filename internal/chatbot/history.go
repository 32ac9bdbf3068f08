package chatbot

import "sync"

// Role identifies the sender of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultMaxHistory bounds the history sent with each question.
const DefaultMaxHistory = 20

// Message represents a single message in the conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History maintains an ordered history of conversation messages,
// dropping the oldest entries when the limit is reached.
type History struct {
	mu          sync.Mutex
	messages    []Message
	maxMessages int
}

// NewHistory creates a history holding at most max messages. A
// non-positive max uses DefaultMaxHistory.
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultMaxHistory
	}
	return &History{
		messages:    make([]Message, 0, max),
		maxMessages: max,
	}
}

// Add appends a message, trimming the oldest ones past the limit.
func (h *History) Add(role Role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages, Message{Role: role, Content: content})

	if excess := len(h.messages) - h.maxMessages; excess > 0 {
		trimmed := make([]Message, 0, h.maxMessages)
		trimmed = append(trimmed, h.messages[excess:]...)
		h.messages = trimmed
	}
}

// Messages returns a copy of the current conversation messages.
func (h *History) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]Message, len(h.messages))
	copy(result, h.messages)
	return result
}

// Reset clears all messages.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = h.messages[:0]
}

// Len returns the number of messages held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.messages)
}
