package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/avatar-chat-ui/internal/session"
)

const maxAudioBytes = 10 << 20

// HandleSpeechStart opens a recording session. It fails with 409 while another recording is active or a
// reply is pending, so a second recognition never runs concurrently.
func (m Main) HandleSpeechStart(w http.ResponseWriter, r *http.Request) {
	s, ok := m.session(w, r)
	if !ok {
		return
	}
	if err := s.StartRecording(); err != nil {
		m.sessionError(w, "Failed to start recording", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleSpeechTranscript completes the recording session with the transcript recognised by the browser.
func (m Main) HandleSpeechTranscript(w http.ResponseWriter, r *http.Request) {
	s, ok := m.session(w, r)
	if !ok {
		return
	}
	if err := s.CompleteRecording(r.FormValue("transcript")); err != nil {
		m.sessionError(w, "Failed to complete recording", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleSpeechError fails the recording session with the error reported by the browser's recogniser.
func (m Main) HandleSpeechError(w http.ResponseWriter, r *http.Request) {
	s, ok := m.session(w, r)
	if !ok {
		return
	}

	reason := r.FormValue("error")
	if reason == "" {
		reason = "unknown"
	}
	if err := s.FailRecording(reason); err != nil {
		m.sessionError(w, "Failed to fail recording", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleSpeechAudio completes the recording session by transcribing the uploaded "audio" file on the
// server. It is the fallback for browsers without a speech recognition API.
func (m Main) HandleSpeechAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		http.Error(w, "invalid audio upload", http.StatusBadRequest)
		return
	}

	s, ok := m.session(w, r)
	if !ok {
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "audio is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	err = s.TranscribeAudio(file, header.Filename)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, session.ErrNoTranscriber),
		errors.Is(err, session.ErrNotRecording),
		errors.Is(err, session.ErrSessionClosed):
		m.sessionError(w, "Failed to transcribe audio", err)
	default:
		// The recording has already been resolved as failed.
		m.logger.Warn("Transcription failed", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "transcription failed", http.StatusBadGateway)
	}
}
