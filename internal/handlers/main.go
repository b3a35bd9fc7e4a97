package handlers

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	avatarchat "github.com/MegaGrindStone/avatar-chat-ui"
	"github.com/MegaGrindStone/avatar-chat-ui/internal/models"
	"github.com/MegaGrindStone/avatar-chat-ui/internal/session"
	"github.com/tmaxmax/go-sse"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	highlighting "github.com/yuin/goldmark-highlighting"
)

// Page holds the settings that shape the chat page itself rather than the conversation.
type Page struct {
	Title string
	// AvatarURL is the image shown while no generated video is available.
	AvatarURL string
	// Locale is the speech recognition locale handed to the browser.
	Locale string
	// ServerTranscription enables the audio upload fallback for browsers without speech recognition.
	ServerTranscription bool
	// MaxRecording bounds how long the browser records audio for the upload fallback.
	MaxRecording time.Duration
}

// Main serves the chat page. It owns the session registry and pushes every state change of a session to
// that session's browser over server-sent events.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	sessions *session.Registry
	page     Page

	logger *slog.Logger
}

const (
	errLoggerKey = "error"

	defaultTitle     = "AI Chat with Avatar"
	defaultAvatarURL = "/static/avatar.svg"
	defaultLocale    = "en-US"
)

// NewMain creates a new Main. The session options are completed with a change hook that re-renders and
// publishes the conversation, then used for every session created from the home page. Templates are
// parsed from the embedded filesystem.
func NewMain(opts session.Options, sessionTTL time.Duration, page Page, logger *slog.Logger) (Main, error) {
	if page.Title == "" {
		page.Title = defaultTitle
	}
	if page.AvatarURL == "" {
		page.AvatarURL = defaultAvatarURL
	}
	if page.Locale == "" {
		page.Locale = defaultLocale
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(highlighting.WithStyle("github")),
		),
		goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
	)

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"markdown": func(src string) (template.HTML, error) {
			var buf bytes.Buffer
			if err := md.Convert([]byte(src), &buf); err != nil {
				return "", fmt.Errorf("failed to render markdown: %w", err)
			}
			// goldmark drops raw HTML unless WithUnsafe is set.
			return template.HTML(buf.String()), nil
		},
		"milliseconds": func(d time.Duration) int64 {
			return d.Milliseconds()
		},
	}).ParseFS(
		avatarchat.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	m := Main{
		templates: tmpl,
		page:      page,
		logger:    logger.With(slog.String("module", "main")),
	}
	sseLogger := logger.With(slog.String("module", "sse"))
	m.sseSrv = &sse.Server{
		Logger: func(r *http.Request) *slog.Logger {
			return sseLogger.With(slog.String("sessionID", r.URL.Query().Get("session_id")))
		},
	}
	opts.OnChange = m.publishState
	opts.Logger = logger
	m.sessions = session.NewRegistry(opts, sessionTTL)

	m.sseSrv.OnSession = func(w http.ResponseWriter, r *http.Request) ([]string, bool) {
		id := r.URL.Query().Get("session_id")
		if _, ok := m.sessions.Get(id); !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return nil, false
		}

		// Headers go out now so the page's open handler fires before the first state change.
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		if err := http.NewResponseController(w).Flush(); err != nil {
			m.logger.Warn("Failed to flush event stream headers",
				slog.String("sessionID", id),
				slog.String(errLoggerKey, err.Error()))
		}
		return []string{sse.DefaultTopic, sessionTopic(id)}, true
	}

	return m, nil
}

func sessionTopic(sessionID string) string {
	return fmt.Sprintf("session-%s", sessionID)
}

// Run expires idle sessions until ctx is done.
func (m Main) Run(ctx context.Context) {
	m.sessions.Run(ctx)
}

// Shutdown ends every session and gracefully terminates the SSE server. It broadcasts a close message to
// all connected clients and waits up to 5 seconds for connections to terminate.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeChat")}
	// SSE requires data on every event.
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	m.sessions.Close()

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

// publishState renders the conversation and pushes each part to the session's browser.
func (m Main) publishState(sessionID string, st models.ConversationState) {
	rs, err := m.renderState(sessionID, st)
	if err != nil {
		m.logger.Error("Failed to render state",
			slog.String("sessionID", sessionID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	for _, part := range rs.parts() {
		msg := sse.Message{
			Type: sse.Type(part.event),
		}
		msg.AppendData(part.html)
		if err := m.sseSrv.Publish(&msg, sessionTopic(sessionID)); err != nil {
			m.logger.Error("Failed to publish state",
				slog.String("sessionID", sessionID),
				slog.String("event", part.event),
				slog.String(errLoggerKey, err.Error()))
			return
		}
	}
}
