package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/avatar-chat-ui/internal/session"
)

// HandleMessages submits the "message" form field of the session named by "session_id" to the backend.
//
// The handler answers 202 once the message is appended and the request is on its way; the reply reaches the
// page over SSE. Whitespace-only messages change nothing and get 204. A message sent while a reply is still
// pending gets 409.
func (m Main) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s, ok := m.session(w, r)
	if !ok {
		return
	}

	err := s.SendMessage(r.FormValue("message"))
	if errors.Is(err, session.ErrEmptyMessage) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		m.sessionError(w, "Failed to send message", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleDraft records the text currently typed in the input box.
func (m Main) HandleDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s, ok := m.session(w, r)
	if !ok {
		return
	}

	if err := s.SetDraft(r.FormValue("message")); err != nil {
		m.sessionError(w, "Failed to update draft", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleState returns the rendered chat parts of a session as JSON, keyed by SSE event name. The page uses
// it to resynchronise after its event stream reconnects.
func (m Main) HandleState(w http.ResponseWriter, r *http.Request) {
	s, ok := m.session(w, r)
	if !ok {
		return
	}

	rs, err := m.renderState(s.ID(), s.State())
	if err != nil {
		m.logger.Error("Failed to render state", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	res := make(map[string]string, 3)
	for _, p := range rs.parts() {
		res[p.event] = p.html
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		m.logger.Error("Failed to encode state", slog.String(errLoggerKey, err.Error()))
	}
}

// HandleSessionEnd tears down the session named by "session_id". The page calls it when it unloads.
func (m Main) HandleSessionEnd(w http.ResponseWriter, r *http.Request) {
	id := r.FormValue("session_id")
	if m.sessions.End(id) {
		m.logger.Debug("Session ended by client", slog.String("sessionID", id))
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSSE streams the state changes of the session named by the "session_id" query parameter. The
// session does not expire while the stream is open.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	s, ok := m.session(w, r)
	if !ok {
		return
	}
	detach := s.Attach()
	defer detach()

	m.sseSrv.ServeHTTP(w, r)
}

func (m Main) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.FormValue("session_id")
	if id == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return nil, false
	}
	s, ok := m.sessions.Get(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return s, true
}

// sessionError maps session errors to HTTP status codes.
func (m Main) sessionError(w http.ResponseWriter, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrAwaitingReply),
		errors.Is(err, session.ErrAlreadyRecording),
		errors.Is(err, session.ErrNotRecording):
		status = http.StatusConflict
	case errors.Is(err, session.ErrSessionClosed):
		status = http.StatusGone
	case errors.Is(err, session.ErrNoTranscriber):
		status = http.StatusNotImplemented
	}

	if status == http.StatusInternalServerError {
		m.logger.Error(msg, slog.String(errLoggerKey, err.Error()))
	} else {
		m.logger.Debug(msg, slog.String(errLoggerKey, err.Error()))
	}
	http.Error(w, err.Error(), status)
}
