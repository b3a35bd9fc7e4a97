package handlers

import (
	"fmt"
	"strings"

	"github.com/MegaGrindStone/avatar-chat-ui/internal/models"
)

type message struct {
	ID     string
	Origin string
	Text   string
	JobID  string
	Time   string
}

type messagesData struct {
	Messages []message
	Typing   bool
	Notice   string
}

type controlsData struct {
	Recording bool
	Awaiting  bool
}

type mediaData struct {
	VideoURL  string
	AvatarURL string
}

// chatData is everything the chat area renders for one conversation state.
type chatData struct {
	SessionID string
	Mode      string
	Draft     string

	Messages messagesData
	Controls controlsData
	Media    mediaData
}

// renderedState holds the HTML of each independently swapped part of the chat page.
type renderedState struct {
	Messages string
	Controls string
	Media    string
}

type statePart struct {
	event string
	html  string
}

// SSE event names, one per swapped part of the page.
const (
	messagesEvent = "messages"
	controlsEvent = "controls"
	mediaEvent    = "media"
)

func (rs renderedState) parts() []statePart {
	return []statePart{
		{event: messagesEvent, html: rs.Messages},
		{event: controlsEvent, html: rs.Controls},
		{event: mediaEvent, html: rs.Media},
	}
}

func (m Main) chatData(sessionID string, st models.ConversationState) chatData {
	msgs := make([]message, len(st.Messages))
	for i, msg := range st.Messages {
		msgs[i] = message{
			ID:     msg.ID,
			Origin: string(msg.Origin),
			Text:   msg.Text,
			JobID:  msg.JobID,
			Time:   msg.Timestamp.Format("15:04"),
		}
	}

	return chatData{
		SessionID: sessionID,
		Mode:      string(st.Mode()),
		Draft:     st.DraftInput,
		Messages: messagesData{
			Messages: msgs,
			Typing:   st.IsAwaitingReply,
			Notice:   st.Notice,
		},
		Controls: controlsData{
			Recording: st.IsRecording,
			Awaiting:  st.IsAwaitingReply,
		},
		Media: mediaData{
			VideoURL:  st.LastVideoURL,
			AvatarURL: m.page.AvatarURL,
		},
	}
}

// renderState renders the swappable parts of the chat page for st. It depends on nothing but its inputs.
func (m Main) renderState(sessionID string, st models.ConversationState) (renderedState, error) {
	data := m.chatData(sessionID, st)

	var rs renderedState
	for _, p := range []struct {
		name string
		data any
		out  *string
	}{
		{name: "messages", data: data.Messages, out: &rs.Messages},
		{name: "controls", data: data.Controls, out: &rs.Controls},
		{name: "media", data: data.Media, out: &rs.Media},
	} {
		var sb strings.Builder
		if err := m.templates.ExecuteTemplate(&sb, p.name, p.data); err != nil {
			return renderedState{}, fmt.Errorf("failed to execute %s template: %w", p.name, err)
		}
		*p.out = sb.String()
	}
	return rs, nil
}
