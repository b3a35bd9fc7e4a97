package handlers

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/MegaGrindStone/avatar-chat-ui/internal/models"
	"github.com/MegaGrindStone/avatar-chat-ui/internal/session"
)

func TestRenderState(t *testing.T) {
	m, err := NewMain(session.Options{}, time.Minute, Page{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}

	exchange := []models.Message{
		{ID: "u1", Origin: models.OriginUser, Text: "Hello <b>there</b>"},
		{ID: "a1", Origin: models.OriginAssistant, Text: "Hi\n\n**bold** <script>alert(1)</script>", JobID: "1", VideoURL: "v.mp4"},
	}

	tests := []struct {
		name         string
		state        models.ConversationState
		wantMessages []string
		denyMessages []string
		wantControls []string
		denyControls []string
		wantMedia    []string
		denyMedia    []string
	}{
		{
			name:         "Empty conversation shows only the avatar",
			state:        models.ConversationState{},
			wantMessages: []string{"data-autoscroll", `data-message-count="0"`},
			denyMessages: []string{"data-origin", "data-typing", "notice"},
			wantControls: []string{"Speak"},
			denyControls: []string{"disabled"},
			wantMedia:    []string{`<img src="/static/avatar.svg"`},
			denyMedia:    []string{"<video"},
		},
		{
			name:         "Awaiting reply",
			state:        models.ConversationState{Messages: exchange[:1], IsAwaitingReply: true},
			wantMessages: []string{`data-message-count="1"`, `data-origin="user"`, "data-typing", "Hello &lt;b&gt;there&lt;/b&gt;"},
			wantControls: []string{"disabled"},
			wantMedia:    []string{"<img"},
		},
		{
			name:         "Recording",
			state:        models.ConversationState{IsRecording: true},
			wantControls: []string{"Listening...", `data-recording="true"`, "disabled"},
		},
		{
			name:         "Reply with video",
			state:        models.ConversationState{Messages: exchange, LastVideoURL: "v.mp4"},
			wantMessages: []string{`data-message-count="2"`, `data-origin="assistant"`, `data-job-id="1"`, "<strong>bold</strong>", "<p>Hi</p>"},
			denyMessages: []string{"<script>", "data-typing"},
			wantMedia:    []string{`<video src="v.mp4"`, `data-video="v.mp4"`},
			denyMedia:    []string{"<img"},
		},
		{
			name:         "Failed reply",
			state:        models.ConversationState{Messages: exchange[:1], Notice: "The assistant is unreachable right now."},
			wantMessages: []string{`class="notice"`, "unreachable"},
			denyMessages: []string{"data-typing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := m.renderState("s1", tt.state)
			if err != nil {
				t.Fatalf("renderState() error = %v", err)
			}

			check(t, "messages", rs.Messages, tt.wantMessages, tt.denyMessages)
			check(t, "controls", rs.Controls, tt.wantControls, tt.denyControls)
			check(t, "media", rs.Media, tt.wantMedia, tt.denyMedia)
		})
	}
}

func TestRenderStateMessageOrder(t *testing.T) {
	m, err := NewMain(session.Options{}, time.Minute, Page{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}

	st := models.ConversationState{Messages: []models.Message{
		{ID: "1", Origin: models.OriginUser, Text: "first"},
		{ID: "2", Origin: models.OriginAssistant, Text: "second"},
		{ID: "3", Origin: models.OriginUser, Text: "third"},
	}}
	rs, err := m.renderState("s1", st)
	if err != nil {
		t.Fatal(err)
	}

	first := strings.Index(rs.Messages, "first")
	second := strings.Index(rs.Messages, "second")
	third := strings.Index(rs.Messages, "third")
	if first < 0 || first > second || second > third {
		t.Errorf("renderState() messages out of order: %v", rs.Messages)
	}
}

func TestRenderStateTrailingMarkers(t *testing.T) {
	m, err := NewMain(session.Options{}, time.Minute, Page{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}

	msgs := []models.Message{{ID: "1", Origin: models.OriginUser, Text: "Hello"}}
	tests := []struct {
		name   string
		state  models.ConversationState
		marker string
	}{
		{
			name:   "Typing",
			state:  models.ConversationState{Messages: msgs, IsAwaitingReply: true},
			marker: "data-typing",
		},
		{
			name:   "Notice",
			state:  models.ConversationState{Messages: msgs, Notice: "The assistant is unreachable"},
			marker: `class="notice"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := m.renderState("s1", tt.state)
			if err != nil {
				t.Fatal(err)
			}

			container := strings.Index(rs.Messages, "data-autoscroll")
			bubble := strings.Index(rs.Messages, `id="message-1"`)
			marker := strings.Index(rs.Messages, tt.marker)
			if container < 0 || bubble < container || marker < bubble {
				t.Errorf("renderState() %s should follow the last message inside the scroll container: %v",
					tt.marker, rs.Messages)
			}
		})
	}
}

func check(t *testing.T, part, got string, want, deny []string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(got, w) {
			t.Errorf("%s = %v, want to contain %v", part, got, w)
		}
	}
	for _, d := range deny {
		if strings.Contains(got, d) {
			t.Errorf("%s = %v, should not contain %v", part, got, d)
		}
	}
}
