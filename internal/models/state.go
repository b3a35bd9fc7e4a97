package models

// ConversationState is everything the chat page renders. It is owned by exactly one session and is
// never persisted.
type ConversationState struct {
	Messages []Message

	IsRecording     bool
	IsAwaitingReply bool
	DraftInput      string
	LastVideoURL    string

	// Notice is a user-facing line describing why the last request produced no answer.
	Notice string
}

// Mode is the session-level UI mode derived from the state flags.
type Mode string

const (
	ModeIdle          Mode = "idle"
	ModeRecording     Mode = "recording"
	ModeAwaitingReply Mode = "awaiting_reply"
)

// Mode reports the current UI mode. Recording wins over AwaitingReply.
func (s ConversationState) Mode() Mode {
	switch {
	case s.IsRecording:
		return ModeRecording
	case s.IsAwaitingReply:
		return ModeAwaitingReply
	default:
		return ModeIdle
	}
}

// Clone returns a copy of the state that shares no mutable memory with the receiver.
func (s ConversationState) Clone() ConversationState {
	c := s
	if s.Messages != nil {
		c.Messages = make([]Message, len(s.Messages))
		copy(c.Messages, s.Messages)
	}
	return c
}
