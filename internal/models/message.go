package models

import "time"

// Message represents an individual entry in a conversation. A message is created for every user
// submission and for every successful backend reply, and is never modified after it has been appended.
type Message struct {
	ID        string
	Origin    Origin
	Text      string
	Timestamp time.Time

	// JobID is an opaque identifier returned by the backend alongside an assistant reply.
	JobID string
	// VideoURL is the generated avatar video for an assistant reply, empty when none was produced.
	VideoURL string
}

// Origin identifies who authored a message.
type Origin string

const (
	// OriginUser marks a message typed or spoken by the end user.
	OriginUser Origin = "user"
	// OriginAssistant marks a message produced by the remote conversational backend.
	OriginAssistant Origin = "assistant"
)
