package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/agora/internal/api"
	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/tests/testutil"
)

func TestClient_SendsBearerTokenPerCall(t *testing.T) {
	backend := testutil.NewBackend(t)

	var seen []string
	backend.Router.Get("/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		testutil.WriteJSON(w, http.StatusOK, model.User{ID: "u1", Name: "Hypatia"})
	})

	token := ""
	client := api.NewClient(backend.URL()+"/", api.TokenFunc(func() (string, error) {
		return token, nil
	}))

	_, err := client.Me(context.Background())
	require.NoError(t, err)

	token = "abc"
	u, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hypatia", u.Name)

	assert.Equal(t, []string{"", "Bearer abc"}, seen)
}

func TestClient_UnauthorizedIsAuthError(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Router.Get("/api/notifications", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusUnauthorized, map[string]string{"message": "jwt expired"})
	})

	client := api.NewClient(backend.URL(), api.StaticToken("old"))
	_, err := client.Notifications(context.Background())

	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))

	var authErr *api.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "jwt expired", authErr.Message)
}

func TestClient_RateLimitIsNotRetried(t *testing.T) {
	backend := testutil.NewBackend(t)

	calls := 0
	backend.Router.Get("/api/posts", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "7")
		testutil.WriteJSON(w, http.StatusTooManyRequests, map[string]string{"error": "slow down"})
	})

	client := api.NewClient(backend.URL(), nil)
	_, err := client.Posts(context.Background())

	var statusErr *api.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Equal(t, 7*time.Second, statusErr.RetryAfter)
	assert.Equal(t, "slow down", statusErr.Message)
	assert.True(t, api.IsStatus(err, http.StatusTooManyRequests))
	assert.Equal(t, 1, calls)
}

func TestClient_TokenSourceError(t *testing.T) {
	client := api.NewClient("http://127.0.0.1:1", api.TokenFunc(func() (string, error) {
		return "", errors.New("keyring locked")
	}))

	_, err := client.Me(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keyring locked")
}

func TestClient_ListsAcceptBareAndWrappedArrays(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Router.Get("/api/notifications", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, []model.Notification{{ID: "n1"}, {ID: "n2", Read: true}})
	})
	backend.Router.Get("/api/products", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"products":[{"_id":"b1","title":"Meditations","price":"12.50","stock":3}]}`))
	})
	backend.Router.Get("/api/messages/{conversationID}", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, map[string]any{
			"data": []model.ChatMessage{{ID: "m1", ConversationID: chi.URLParam(r, "conversationID")}},
		})
	})

	client := api.NewClient(backend.URL(), nil)
	ctx := context.Background()

	items, err := client.Notifications(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	products, err := client.Products(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("12.5")))
	assert.True(t, products[0].InStock())

	msgs, err := client.Messages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "c1", msgs[0].ConversationID)
}

func TestClient_MarkReadEndpoints(t *testing.T) {
	backend := testutil.NewBackend(t)

	var hits []string
	backend.Router.Put("/api/notifications/mark-all-read", func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, "all")
		w.WriteHeader(http.StatusNoContent)
	})
	backend.Router.Put("/api/notifications/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, chi.URLParam(r, "id"))
		testutil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	client := api.NewClient(backend.URL(), nil)
	require.NoError(t, client.MarkAllNotificationsRead(context.Background()))
	require.NoError(t, client.MarkNotificationRead(context.Background(), "n7"))

	assert.Equal(t, []string{"all", "n7"}, hits)
}

func TestClient_LoginValidatesBeforeSending(t *testing.T) {
	backend := testutil.NewBackend(t)

	calls := 0
	backend.Router.Post("/api/users/login", func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req api.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		testutil.WriteJSON(w, http.StatusOK, api.LoginResponse{
			Token: "issued",
			User:  model.User{ID: "u1", Email: req.Email},
		})
	})

	client := api.NewClient(backend.URL(), nil)

	_, err := client.Login(context.Background(), api.LoginRequest{Email: "not-an-email"})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, 0, calls)

	resp, err := client.Login(context.Background(), api.LoginRequest{Email: "a@b.co", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "issued", resp.Token)
	assert.Equal(t, "a@b.co", resp.User.Email)
}

func TestClient_DashboardAndModeration(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Router.Get("/api/dashboard/{role}", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, model.DashboardStats{Users: len(chi.URLParam(r, "role"))})
	})

	var decision map[string]string
	backend.Router.Put("/api/moderation/{id}", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&decision))
		w.WriteHeader(http.StatusNoContent)
	})

	client := api.NewClient(backend.URL(), nil)

	stats, err := client.DashboardStats(context.Background(), model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, len("admin"), stats.Users)

	require.NoError(t, client.DecideModeration(context.Background(), "p1", model.DecisionReject))
	assert.Equal(t, model.DecisionReject, decision["decision"])
}

func TestClient_SubmitApplicationValidates(t *testing.T) {
	client := api.NewClient("http://127.0.0.1:1", nil)

	_, err := client.SubmitApplication(context.Background(), model.Application{Motivation: "too short"})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
}
