package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/MegaGrindStone/avatar-chat-ui/internal/models"
	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI answers user text with an OpenAI chat model. Like Ollama, it never produces a video.
type OpenAI struct {
	model        string
	systemPrompt string

	client *goopenai.Client

	logger *slog.Logger
}

// Whisper transcribes recorded speech with OpenAI's audio transcription endpoint.
type Whisper struct {
	model    string
	language string

	client *goopenai.Client

	logger *slog.Logger
}

func newOpenAIClient(apiKey, baseURL string) *goopenai.Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return goopenai.NewClientWithConfig(cfg)
}

// NewOpenAI creates a new OpenAI backend. An empty baseURL uses the public OpenAI endpoint.
func NewOpenAI(apiKey, baseURL, model, systemPrompt string, logger *slog.Logger) OpenAI {
	return OpenAI{
		model:        model,
		systemPrompt: systemPrompt,
		client:       newOpenAIClient(apiKey, baseURL),
		logger:       logger.With(slog.String("module", "openai")),
	}
}

// Process is a wrapper around the OpenAI chat completion API.
func (o OpenAI) Process(ctx context.Context, text string) (models.Reply, error) {
	var msgs []goopenai.ChatCompletionMessage
	if o.systemPrompt != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: o.systemPrompt,
		})
	}
	msgs = append(msgs, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: text,
	})

	resp, err := o.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:    o.model,
		Messages: msgs,
	})
	if err != nil {
		return models.Reply{}, fmt.Errorf("error sending request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return models.Reply{}, errors.New("no choices found")
	}

	o.logger.Debug("Reply", slog.String("id", resp.ID))

	return models.Reply{
		Status: models.StatusSucceeded,
		Answer: resp.Choices[0].Message.Content,
		JobID:  resp.ID,
	}, nil
}

// NewWhisper creates a new Whisper transcriber. The locale is a BCP 47 tag such as "en-US"; only its
// language part is sent to the API.
func NewWhisper(apiKey, baseURL, model, locale string, logger *slog.Logger) Whisper {
	if model == "" {
		model = goopenai.Whisper1
	}
	return Whisper{
		model:    model,
		language: localeLanguage(locale),
		client:   newOpenAIClient(apiKey, baseURL),
		logger:   logger.With(slog.String("module", "whisper")),
	}
}

// Transcribe converts the recorded audio into text. The filename is only used by the API to detect the
// audio format.
func (w Whisper) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    w.model,
		Reader:   audio,
		FilePath: filename,
		Language: w.language,
	})
	if err != nil {
		return "", fmt.Errorf("error transcribing audio: %w", err)
	}

	w.logger.Debug("Transcript", slog.Int("length", len(resp.Text)))

	return strings.TrimSpace(resp.Text), nil
}

func localeLanguage(locale string) string {
	lang, _, _ := strings.Cut(locale, "-")
	return strings.ToLower(lang)
}
