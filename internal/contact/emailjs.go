package contact

import (
	"context"
	"errors"

	"github.com/nhle/agora/internal/api"
	"github.com/nhle/agora/internal/model"
)

// DefaultEmailJSURL is the EmailJS REST host.
const DefaultEmailJSURL = "https://api.emailjs.com"

const emailJSSendPath = "/api/v1.0/email/send"

// EmailJS sends through EmailJS templates, as the web frontend does.
type EmailJS struct {
	client             *api.Client
	serviceID          string
	contactTemplateID  string
	newsletterTemplate string
	publicKey          string
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
}

// NewEmailJS creates an EmailJS sender. baseURL is normally DefaultEmailJSURL.
func NewEmailJS(baseURL string, cfg model.EmailConfig) (*EmailJS, error) {
	if cfg.ServiceID == "" || cfg.PublicKey == "" {
		return nil, errors.New("emailjs: service id and public key are required")
	}
	return &EmailJS{
		client:             api.NewClient(baseURL, nil),
		serviceID:          cfg.ServiceID,
		contactTemplateID:  cfg.ContactTemplateID,
		newsletterTemplate: cfg.NewsletterTemplateID,
		publicKey:          cfg.PublicKey,
	}, nil
}

// SendContact implements Sender.
func (e *EmailJS) SendContact(ctx context.Context, msg Message) error {
	return e.send(ctx, e.contactTemplateID, map[string]string{
		"from_name":  msg.Name,
		"from_email": msg.Email,
		"subject":    msg.Subject,
		"message":    msg.Body,
	})
}

// SendSubscription implements Sender.
func (e *EmailJS) SendSubscription(ctx context.Context, sub Subscription) error {
	return e.send(ctx, e.newsletterTemplate, map[string]string{
		"user_email": sub.Email,
	})
}

func (e *EmailJS) send(ctx context.Context, templateID string, params map[string]string) error {
	if templateID == "" {
		return errors.New("emailjs: template id not configured")
	}
	return e.client.Post(ctx, emailJSSendPath, emailJSRequest{
		ServiceID:      e.serviceID,
		TemplateID:     templateID,
		UserID:         e.publicKey,
		TemplateParams: params,
	}, nil)
}
