package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/MegaGrindStone/avatar-chat-ui/internal/models"
	"github.com/ollama/ollama/api"
)

// Ollama answers user text with a locally served Ollama model. It never produces a video, so the chat page
// keeps showing the default avatar.
type Ollama struct {
	model        string
	systemPrompt string

	client *api.Client

	logger *slog.Logger
}

// NewOllama creates a new Ollama backend for the given host URL and model name.
func NewOllama(host, model, systemPrompt string, logger *slog.Logger) (Ollama, error) {
	u, err := url.Parse(host)
	if err != nil {
		return Ollama{}, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	return Ollama{
		model:        model,
		systemPrompt: systemPrompt,
		client:       api.NewClient(u, &http.Client{}),
		logger:       logger.With(slog.String("module", "ollama")),
	}, nil
}

// Process sends text as a single-turn chat to the model and returns the full answer as a succeeded reply.
func (o Ollama) Process(ctx context.Context, text string) (models.Reply, error) {
	var msgs []api.Message
	if o.systemPrompt != "" {
		msgs = append(msgs, api.Message{
			Role:    "system",
			Content: o.systemPrompt,
		})
	}
	msgs = append(msgs, api.Message{
		Role:    "user",
		Content: text,
	})

	f := false
	req := api.ChatRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   &f,
	}

	var sb strings.Builder
	if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
		sb.WriteString(res.Message.Content)
		return nil
	}); err != nil {
		return models.Reply{}, fmt.Errorf("error sending request: %w", err)
	}

	o.logger.Debug("Reply", slog.Int("length", sb.Len()))

	return models.Reply{
		Status: models.StatusSucceeded,
		Answer: sb.String(),
	}, nil
}
