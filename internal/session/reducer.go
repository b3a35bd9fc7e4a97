package session

import (
	"errors"
	"strings"

	"github.com/MegaGrindStone/avatar-chat-ui/internal/models"
)

// Action is a state transition applied by Reduce. The concrete actions below are the only ways a
// ConversationState changes.
type Action interface {
	action()
}

// DraftChanged mirrors the text currently typed in the input box.
type DraftChanged struct {
	Text string
}

// Submitted appends a user message and marks the conversation as awaiting a reply.
type Submitted struct {
	Message models.Message
}

// RecordingStarted opens a recording session.
type RecordingStarted struct{}

// RecordingFinished closes the recording session, whatever its outcome.
type RecordingFinished struct{}

// ReplyReceived appends a successful assistant reply.
type ReplyReceived struct {
	Message models.Message
}

// ReplyFailed ends the wait for a reply that will never come, leaving a notice for the user.
type ReplyFailed struct {
	Notice string
}

func (DraftChanged) action()      {}
func (Submitted) action()         {}
func (RecordingStarted) action()  {}
func (RecordingFinished) action() {}
func (ReplyReceived) action()     {}
func (ReplyFailed) action()       {}

var (
	// ErrEmptyMessage is returned when a submitted text is empty after trimming. Nothing changes.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrAwaitingReply is returned when a new request is attempted while one is still outstanding.
	ErrAwaitingReply = errors.New("a reply is still pending")
	// ErrAlreadyRecording is returned when a recording session is started while another one is active.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNotRecording is returned when a recording result arrives without an active recording session.
	ErrNotRecording = errors.New("not recording")
	// ErrNotAwaitingReply is returned when a reply arrives for no outstanding request.
	ErrNotAwaitingReply = errors.New("no reply is pending")
)

// Reduce applies a to s and returns the resulting state. When the action is rejected, s is returned
// unchanged together with the reason. Reduce never mutates the Messages slice of s.
func Reduce(s models.ConversationState, a Action) (models.ConversationState, error) {
	switch a := a.(type) {
	case DraftChanged:
		s.DraftInput = a.Text
		return s, nil

	case Submitted:
		if s.IsAwaitingReply {
			return s, ErrAwaitingReply
		}
		if strings.TrimSpace(a.Message.Text) == "" {
			return s, ErrEmptyMessage
		}
		s.DraftInput = ""
		s.Notice = ""
		s.Messages = appendMessage(s.Messages, a.Message)
		s.IsAwaitingReply = true
		return s, nil

	case RecordingStarted:
		if s.IsRecording {
			return s, ErrAlreadyRecording
		}
		if s.IsAwaitingReply {
			return s, ErrAwaitingReply
		}
		s.IsRecording = true
		return s, nil

	case RecordingFinished:
		if !s.IsRecording {
			return s, ErrNotRecording
		}
		s.IsRecording = false
		return s, nil

	case ReplyReceived:
		if !s.IsAwaitingReply {
			return s, ErrNotAwaitingReply
		}
		s.Messages = appendMessage(s.Messages, a.Message)
		s.LastVideoURL = a.Message.VideoURL
		s.IsAwaitingReply = false
		s.Notice = ""
		return s, nil

	case ReplyFailed:
		if !s.IsAwaitingReply {
			return s, ErrNotAwaitingReply
		}
		s.IsAwaitingReply = false
		s.Notice = a.Notice
		return s, nil
	}

	return s, errors.New("unknown action")
}

func appendMessage(msgs []models.Message, msg models.Message) []models.Message {
	out := make([]models.Message, len(msgs), len(msgs)+1)
	copy(out, msgs)
	return append(out, msg)
}
