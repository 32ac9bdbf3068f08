package model

import "time"

// NotificationType classifies a notification. The set is open-ended:
// the backend may add types the client does not know about.
type NotificationType string

const (
	NotificationFollow   NotificationType = "follow"
	NotificationReaction NotificationType = "reaction"
	NotificationComment  NotificationType = "comment"
	NotificationMention  NotificationType = "mention"
	NotificationMessage  NotificationType = "message"
)

// SenderInfo describes the user whose action produced a notification.
type SenderInfo struct {
	ID     string `json:"_id"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Notification is an activity item created by the backend. The client only
// flips Read through an explicit mark-read call and otherwise refetches.
type Notification struct {
	// ID is the backend identifier.
	ID string `json:"_id"`

	// Type selects rendering and link resolution.
	Type NotificationType `json:"type"`

	// Message is pre-rendered markup produced by the backend.
	Message string `json:"message"`

	// SenderInfo identifies who triggered the notification.
	SenderInfo SenderInfo `json:"senderInfo"`

	// EntityID is the post or product the notification refers to.
	EntityID string `json:"entityId,omitempty"`

	// CommentID is set for comment notifications.
	CommentID string `json:"commentId,omitempty"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read"`

	// CreatedAt is when the backend generated the notification.
	CreatedAt time.Time `json:"createdAt"`
}
