package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nhle/agora/internal/model"
)

var validate = validator.New()

// LoginRequest is the sign-in form body.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued access token and the signed-in user.
type LoginResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Login exchanges credentials for an access token. The request is
// validated before anything is sent.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	var resp LoginResponse
	if err := c.Post(ctx, "/api/users/login", req, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("login response carried no token")
	}
	return &resp, nil
}

// Me returns the signed-in user's profile.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.Get(ctx, "/api/users/me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// === Notifications ===

// Notifications lists the current user's notifications, newest first.
func (c *Client) Notifications(ctx context.Context) ([]model.Notification, error) {
	return getList[model.Notification](ctx, c, "/api/notifications", "notifications")
}

// MarkAllNotificationsRead flips every notification to read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.Put(ctx, "/api/notifications/mark-all-read", struct{}{}, nil)
}

// MarkNotificationRead flips a single notification to read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.Put(ctx, "/api/notifications/"+url.PathEscape(id)+"/read", struct{}{}, nil)
}

// === Messages ===

// Conversations lists the inbox.
func (c *Client) Conversations(ctx context.Context) ([]model.ConversationSummary, error) {
	return getList[model.ConversationSummary](ctx, c, "/api/messages/conversations", "conversations")
}

// Messages returns a conversation's history, oldest first.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]model.ChatMessage, error) {
	return getList[model.ChatMessage](ctx, c, "/api/messages/"+url.PathEscape(conversationID), "messages")
}

// SendMessage persists a message and returns the stored copy.
func (c *Client) SendMessage(ctx context.Context, msg model.ChatMessage) (*model.ChatMessage, error) {
	var stored model.ChatMessage
	if err := c.Post(ctx, "/api/messages/send", msg, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// === Catalog ===

// Products lists the library/store items.
func (c *Client) Products(ctx context.Context) ([]model.Product, error) {
	return getList[model.Product](ctx, c, "/api/products", "products")
}

// Posts lists published community posts.
func (c *Client) Posts(ctx context.Context) ([]model.Post, error) {
	return getList[model.Post](ctx, c, "/api/posts", "posts")
}

// === Account ===

// Settings returns the account settings.
func (c *Client) Settings(ctx context.Context) (*model.Settings, error) {
	var s model.Settings
	if err := c.Get(ctx, "/api/settings", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSettings replaces the account settings.
func (c *Client) UpdateSettings(ctx context.Context, s model.Settings) error {
	return c.Put(ctx, "/api/settings", s, nil)
}

// === Dashboards ===

// DashboardStats returns the summary for the given role's dashboard.
func (c *Client) DashboardStats(ctx context.Context, role model.Role) (*model.DashboardStats, error) {
	var stats model.DashboardStats
	path := "/api/dashboard/" + strings.ToLower(string(role))
	if err := c.Get(ctx, path, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// PendingModeration lists content awaiting an admin decision.
func (c *Client) PendingModeration(ctx context.Context) ([]model.ModerationItem, error) {
	return getList[model.ModerationItem](ctx, c, "/api/moderation/pending", "items")
}

// DecideModeration records an approve/reject decision. The rules behind
// the decision live on the server.
func (c *Client) DecideModeration(ctx context.Context, id, decision string) error {
	body := map[string]string{"decision": decision}
	return c.Put(ctx, "/api/moderation/"+url.PathEscape(id), body, nil)
}

// SubmitApplication files a contributor application after validating it.
func (c *Client) SubmitApplication(ctx context.Context, app model.Application) (*model.Application, error) {
	if err := validate.Struct(app); err != nil {
		return nil, err
	}

	var stored model.Application
	if err := c.Post(ctx, "/api/applications", app, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// getList fetches path and decodes either a bare JSON array or an object
// wrapping the array under field (or "data").
func getList[T any](ctx context.Context, c *Client, path, field string) ([]T, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, path, &raw); err != nil {
		return nil, err
	}

	items, err := decodeList[T](raw, field)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return items, nil
}

func decodeList[T any](raw json.RawMessage, field string) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []T{}, nil
	}

	if raw[0] != '[' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, err
		}
		inner, ok := wrapper[field]
		if !ok {
			inner, ok = wrapper["data"]
		}
		if !ok {
			return nil, fmt.Errorf("no %q array in response", field)
		}
		raw = inner
	}

	items := []T{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}
