package handlers

import (
	"log/slog"
	"net/http"
	"time"
)

type homePageData struct {
	Title               string
	Locale              string
	ServerTranscription bool
	MaxRecording        time.Duration

	Chat chatData
}

// HandleHome renders the chat page. Every page load starts a new session with an empty conversation;
// nothing from an earlier load is carried over.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s := m.sessions.New()

	data := homePageData{
		Title:               m.page.Title,
		Locale:              m.page.Locale,
		ServerTranscription: m.page.ServerTranscription,
		MaxRecording:        m.page.MaxRecording,
		Chat:                m.chatData(s.ID(), s.State()),
	}

	w.Header().Set("Cache-Control", "no-store")
	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to render home page", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
