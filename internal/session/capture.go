package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNoSpeech is the outcome of a recording session that produced no transcript in time.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrRecognition wraps failures reported by the speech recognizer.
	ErrRecognition = errors.New("speech recognition failed")
)

// Outcome is the single result of a recording session: either a transcript or an error.
type Outcome struct {
	Transcript string
	Err        error
}

// Capture is one recording session. It resolves exactly once; later results are dropped. Its context is
// cancelled when the capture is stopped, its maximum duration elapses, or the owning session is torn down.
type Capture struct {
	done chan Outcome
	once sync.Once

	ctx    context.Context
	cancel context.CancelFunc
}

func newCapture(parent context.Context, maxDuration time.Duration) *Capture {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if maxDuration > 0 {
		ctx, cancel = context.WithTimeout(parent, maxDuration)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	return &Capture{
		done:   make(chan Outcome, 1),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Resolve delivers o as the outcome of the capture. It reports false if the capture was already resolved.
func (c *Capture) Resolve(o Outcome) bool {
	resolved := false
	c.once.Do(func() {
		c.done <- o
		resolved = true
	})
	return resolved
}

// Done returns a channel that receives the outcome once.
func (c *Capture) Done() <-chan Outcome {
	return c.done
}

// Context returns the context bounding work done on behalf of the capture, such as server-side
// transcription.
func (c *Capture) Context() context.Context {
	return c.ctx
}

// Stop releases the capture's resources.
func (c *Capture) Stop() {
	c.cancel()
}
