package model

import "time"

// Participant is the other side of a direct-message conversation.
type Participant struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// ConversationSummary is one row of the inbox. It is refetched whenever a
// realtime message-delivery event arrives.
type ConversationSummary struct {
	ID               string      `json:"_id"`
	OtherParticipant Participant `json:"otherParticipant"`
	LastMessage      string      `json:"lastMessage"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// ChatMessage is a single direct message.
type ChatMessage struct {
	// ID is assigned by the backend; empty until the server confirms.
	ID string `json:"_id,omitempty"`

	// ClientID is generated by the sender and echoed back by the server.
	// It is used to deduplicate the optimistic copy against the echo.
	ClientID string `json:"clientId,omitempty"`

	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	RecipientID    string    `json:"recipientId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Pending reports whether the message has not been confirmed by the server.
func (m ChatMessage) Pending() bool {
	return m.ID == ""
}
