package model

import "time"

// DashboardStats is the opaque summary payload behind the role dashboards.
type DashboardStats struct {
	Users         int            `json:"users,omitempty"`
	Posts         int            `json:"posts,omitempty"`
	Products      int            `json:"products,omitempty"`
	Orders        int            `json:"orders,omitempty"`
	PendingReview int            `json:"pendingReview,omitempty"`
	Followers     int            `json:"followers,omitempty"`
	ReadingGoal   *ReadingGoal   `json:"readingGoal,omitempty"`
	ReadingLogs   []ReadingLog   `json:"readingLogs,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// ModerationItem is content waiting for an admin decision.
type ModerationItem struct {
	ID         string     `json:"_id"`
	EntityType string     `json:"entityType"`
	Title      string     `json:"title"`
	Reason     string     `json:"reason,omitempty"`
	Reporter   SenderInfo `json:"reporter"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// ModerationDecision values accepted by the backend.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// Application is a member's request to become a contributor.
type Application struct {
	ID         string    `json:"_id,omitempty"`
	Motivation string    `json:"motivation" validate:"required,min=20"`
	Expertise  string    `json:"expertise" validate:"required"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

// Settings holds account-level preferences stored on the backend.
type Settings struct {
	EmailNotifications bool   `json:"emailNotifications"`
	PrivateProfile     bool   `json:"privateProfile"`
	Language           string `json:"language,omitempty"`
}

// ReadingGoal is a target number of books or pages within a window.
type ReadingGoal struct {
	Target int       `json:"target"`
	Unit   string    `json:"unit"`
	Start  time.Time `json:"startDate"`
	End    time.Time `json:"endDate"`
}

// ReadingLog records reading done on a given day.
type ReadingLog struct {
	Date     time.Time `json:"date"`
	Pages    int       `json:"pages"`
	Finished bool      `json:"finishedBook"`
}
