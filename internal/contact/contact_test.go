package contact

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/agora/internal/api"
	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/tests/testutil"
)

type recordingSender struct {
	contacts []Message
	subs     []Subscription
	err      error
}

func (r *recordingSender) SendContact(ctx context.Context, msg Message) error {
	r.contacts = append(r.contacts, msg)
	return r.err
}

func (r *recordingSender) SendSubscription(ctx context.Context, sub Subscription) error {
	r.subs = append(r.subs, sub)
	return r.err
}

func TestService_ContactValidates(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender)

	err := svc.Contact(context.Background(), Message{Name: " ", Email: "nope", Body: "short"})

	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Empty(t, sender.contacts)

	fields := FieldErrors(err)
	assert.Equal(t, "name is required", fields["name"])
	assert.Equal(t, "enter a valid email address", fields["email"])
	assert.Equal(t, "message must be at least 10 characters", fields["message"])
}

func TestService_ContactSends(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender)

	err := svc.Contact(context.Background(), Message{
		Name:  "Epictetus",
		Email: " e@stoa.gr ",
		Body:  "Some things are within our power.",
	})
	require.NoError(t, err)
	require.Len(t, sender.contacts, 1)
	assert.Equal(t, "e@stoa.gr", sender.contacts[0].Email)
}

func TestService_SubscribeWrapsSenderErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	svc := NewService(&recordingSender{err: boom})

	err := svc.Subscribe(context.Background(), "a@b.co")
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, FieldErrors(err))

	err = svc.Subscribe(context.Background(), "")
	assert.NotNil(t, FieldErrors(err))
}

func TestEmailJS_PostsTemplateRequest(t *testing.T) {
	backend := testutil.NewBackend(t)

	var got emailJSRequest
	backend.Router.Post(emailJSSendPath, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("OK"))
	})

	sender, err := NewEmailJS(backend.URL(), model.EmailConfig{
		ServiceID:            "svc",
		ContactTemplateID:    "tpl-contact",
		NewsletterTemplateID: "tpl-news",
		PublicKey:            "pk",
	})
	require.NoError(t, err)

	require.NoError(t, sender.SendContact(context.Background(), Message{
		Name: "Seneca", Email: "s@stoa.gr", Body: "Letters from a Stoic",
	}))
	assert.Equal(t, "svc", got.ServiceID)
	assert.Equal(t, "tpl-contact", got.TemplateID)
	assert.Equal(t, "pk", got.UserID)
	assert.Equal(t, "Seneca", got.TemplateParams["from_name"])

	require.NoError(t, sender.SendSubscription(context.Background(), Subscription{Email: "n@b.co"}))
	assert.Equal(t, "tpl-news", got.TemplateID)
	assert.Equal(t, "n@b.co", got.TemplateParams["user_email"])
}

func TestEmailJS_SurfacesRejection(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Router.Post(emailJSSendPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("The Public Key is invalid"))
	})

	sender, err := NewEmailJS(backend.URL(), model.EmailConfig{ServiceID: "svc", ContactTemplateID: "t", PublicKey: "bad"})
	require.NoError(t, err)

	err = sender.SendContact(context.Background(), Message{Name: "x", Email: "x@y.z", Body: "0123456789"})
	var statusErr *api.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "The Public Key is invalid", statusErr.Message)

	err = sender.SendSubscription(context.Background(), Subscription{Email: "x@y.z"})
	assert.Error(t, err)
}

func TestResend_SendsEmail(t *testing.T) {
	backend := testutil.NewBackend(t)

	var got map[string]any
	backend.Router.Post("/emails", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		testutil.WriteJSON(w, http.StatusOK, map[string]string{"id": "email-1"})
	})

	sender, err := NewResend(model.EmailConfig{ResendAPIKey: "re_test", From: "hello@agora.app", To: "team@agora.app"})
	require.NoError(t, err)
	base, err := url.Parse(backend.URL() + "/")
	require.NoError(t, err)
	sender.client.BaseURL = base

	require.NoError(t, sender.SendContact(context.Background(), Message{
		Name: "<Marcus>", Email: "m@rome.it", Body: "Waste no more time",
	}))
	assert.Equal(t, "Agora <hello@agora.app>", got["from"])
	assert.Equal(t, "New contact message", got["subject"])
	assert.Contains(t, got["html"], "&lt;Marcus&gt;")
}

func TestNewSender(t *testing.T) {
	s, err := NewSender(model.EmailConfig{ServiceID: "svc", PublicKey: "pk"})
	require.NoError(t, err)
	assert.IsType(t, &EmailJS{}, s)

	_, err = NewSender(model.EmailConfig{Provider: "resend"})
	assert.Error(t, err)

	_, err = NewSender(model.EmailConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}
