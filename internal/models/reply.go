package models

// StatusSucceeded is the only backend status treated as a successful reply.
const StatusSucceeded = "Succeeded"

// Reply is the answer of a conversational backend to one user text.
type Reply struct {
	Status    string
	Answer    string
	JobID     string
	VideoFile string
}

// Succeeded reports whether the reply carries a usable answer.
func (r Reply) Succeeded() bool {
	return r.Status == StatusSucceeded
}
