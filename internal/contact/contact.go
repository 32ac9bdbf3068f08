// Package contact delivers the contact form and newsletter sign-ups through
// a transactional email provider.
package contact

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Message is a submission of the contact form.
type Message struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject"`
	Body    string `json:"message" validate:"required,min=10"`
}

// Subscription is a newsletter sign-up.
type Subscription struct {
	Email string `json:"email" validate:"required,email"`
}

// Sender delivers validated submissions.
type Sender interface {
	SendContact(ctx context.Context, msg Message) error
	SendSubscription(ctx context.Context, sub Subscription) error
}

// Service validates submissions and hands them to a Sender.
type Service struct {
	sender   Sender
	validate *validator.Validate
}

// NewService creates a Service.
func NewService(sender Sender) *Service {
	return &Service{sender: sender, validate: validator.New()}
}

// Contact validates and sends a contact message.
func (s *Service) Contact(ctx context.Context, msg Message) error {
	msg.Name = strings.TrimSpace(msg.Name)
	msg.Email = strings.TrimSpace(msg.Email)
	msg.Body = strings.TrimSpace(msg.Body)

	if err := s.validate.Struct(msg); err != nil {
		return err
	}
	if err := s.sender.SendContact(ctx, msg); err != nil {
		return fmt.Errorf("sending contact message: %w", err)
	}
	return nil
}

// Subscribe validates and records a newsletter sign-up.
func (s *Service) Subscribe(ctx context.Context, email string) error {
	sub := Subscription{Email: strings.TrimSpace(email)}
	if err := s.validate.Struct(sub); err != nil {
		return err
	}
	if err := s.sender.SendSubscription(ctx, sub); err != nil {
		return fmt.Errorf("subscribing %s: %w", sub.Email, err)
	}
	return nil
}

// FieldErrors turns validation failures into one message per field,
// keyed by the JSON field name. It returns nil for other errors.
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if field == "body" {
			field = "message"
		}
		switch fe.Tag() {
		case "required":
			out[field] = field + " is required"
		case "email":
			out[field] = "enter a valid email address"
		case "min":
			out[field] = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		default:
			out[field] = field + " is invalid"
		}
	}
	return out
}
