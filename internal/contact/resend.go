package contact

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/resend/resend-go/v3"

	"github.com/nhle/agora/internal/model"
)

// Resend sends through the Resend API.
type Resend struct {
	client *resend.Client
	from   string
	to     string
}

// NewResend creates a Resend sender from the email config.
func NewResend(cfg model.EmailConfig) (*Resend, error) {
	if cfg.ResendAPIKey == "" || cfg.From == "" || cfg.To == "" {
		return nil, errors.New("resend: api key, from and to are required")
	}
	return &Resend{
		client: resend.NewClient(cfg.ResendAPIKey),
		from:   cfg.From,
		to:     cfg.To,
	}, nil
}

// SendContact implements Sender.
func (r *Resend) SendContact(ctx context.Context, msg Message) error {
	subject := msg.Subject
	if subject == "" {
		subject = "New contact message"
	}

	body := fmt.Sprintf(
		"<p><strong>%s</strong> &lt;%s&gt; wrote:</p><p>%s</p>",
		html.EscapeString(msg.Name),
		html.EscapeString(msg.Email),
		html.EscapeString(msg.Body),
	)

	return r.send(ctx, &resend.SendEmailRequest{
		From:    fmt.Sprintf("Agora <%s>", r.from),
		To:      []string{r.to},
		Html:    body,
		Subject: subject,
	})
}

// SendSubscription implements Sender.
func (r *Resend) SendSubscription(ctx context.Context, sub Subscription) error {
	return r.send(ctx, &resend.SendEmailRequest{
		From:    fmt.Sprintf("Agora <%s>", r.from),
		To:      []string{r.to},
		Html:    fmt.Sprintf("<p>Newsletter sign-up: %s</p>", html.EscapeString(sub.Email)),
		Subject: "Newsletter sign-up",
	})
}

func (r *Resend) send(ctx context.Context, req *resend.SendEmailRequest) error {
	if _, err := r.client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

// NewSender picks the provider named in the config.
func NewSender(cfg model.EmailConfig) (Sender, error) {
	switch cfg.Provider {
	case "", "emailjs":
		return NewEmailJS(DefaultEmailJSURL, cfg)
	case "resend":
		return NewResend(cfg)
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}
