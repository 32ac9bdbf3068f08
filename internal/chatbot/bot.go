// Package chatbot is the client for the community chatbot widget.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nhle/agora/internal/api"
)

// ErrNotConfigured is returned when no inference endpoint is set.
var ErrNotConfigured = errors.New("chatbot endpoint is not configured")

// ErrEmptyQuestion is returned for blank input.
var ErrEmptyQuestion = errors.New("question is empty")

// wordsPerChunk sets how much of the reply each chunk carries.
const wordsPerChunk = 4

// StreamChunk represents a piece of the reply being streamed back.
type StreamChunk struct {
	Text string
	Done bool
	Err  error
}

type askRequest struct {
	Message string    `json:"message"`
	History []Message `json:"history"`
}

// askResponse accepts the reply under any of the field names the
// endpoint has used.
type askResponse struct {
	Reply    string `json:"reply"`
	Response string `json:"response"`
	Message  string `json:"message"`
}

func (r askResponse) text() string {
	switch {
	case r.Reply != "":
		return r.Reply
	case r.Response != "":
		return r.Response
	default:
		return r.Message
	}
}

// Bot sends questions with the running history to the inference endpoint.
type Bot struct {
	client  *api.Client
	history *History
	logger  *zap.Logger
}

// New creates a Bot posting to endpoint. The endpoint is a full URL; the
// session token is attached when present.
func New(endpoint string, tokens api.TokenSource, maxHistory int, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bot{
		history: NewHistory(maxHistory),
		logger:  logger,
	}
	if endpoint != "" {
		b.client = api.NewClient(endpoint, tokens, api.WithLogger(logger))
	}
	return b
}

// History returns the conversation so far.
func (b *Bot) History() []Message {
	return b.history.Messages()
}

// Reset clears the conversation.
func (b *Bot) Reset() {
	b.history.Reset()
}

// Ask sends question and returns a channel that receives the reply in
// chunks. The channel is closed after the chunk marked Done. The question
// joins the history only once a reply arrives.
func (b *Bot) Ask(ctx context.Context, question string) (<-chan StreamChunk, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if b.client == nil {
		return nil, ErrNotConfigured
	}

	req := askRequest{Message: question, History: b.history.Messages()}
	ch := make(chan StreamChunk, 16)

	go func() {
		defer close(ch)

		var resp askResponse
		if err := b.client.Post(ctx, "", req, &resp); err != nil {
			b.logger.Warn("chatbot request failed", zap.Error(err))
			ch <- StreamChunk{Err: fmt.Errorf("asking chatbot: %w", err), Done: true}
			return
		}

		reply := resp.text()
		b.history.Add(RoleUser, question)
		b.history.Add(RoleAssistant, reply)

		chunks := split(reply)
		if len(chunks) == 0 {
			ch <- StreamChunk{Done: true}
			return
		}
		for i, c := range chunks {
			select {
			case ch <- StreamChunk{Text: c, Done: i == len(chunks)-1}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// split breaks text into chunks of a few words, keeping the original
// spacing so the chunks concatenate back to text.
func split(text string) []string {
	if text == "" {
		return nil
	}

	var chunks []string
	var sb strings.Builder
	words := 0
	inWord := false

	for _, r := range text {
		space := r == ' ' || r == '\n' || r == '\t'
		if !space && !inWord {
			if words == wordsPerChunk {
				chunks = append(chunks, sb.String())
				sb.Reset()
				words = 0
			}
			words++
		}
		inWord = !space
		sb.WriteRune(r)
	}
	if sb.Len() > 0 {
		chunks = append(chunks, sb.String())
	}
	return chunks
}
