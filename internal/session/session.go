package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/MegaGrindStone/avatar-chat-ui/internal/metrics"
	"github.com/MegaGrindStone/avatar-chat-ui/internal/models"
	"github.com/google/uuid"
)

// Backend answers one user text. Implementations return a reply with a non-"Succeeded" status together
// with an error, or a zero reply with an error when the request itself failed.
type Backend interface {
	Process(ctx context.Context, text string) (models.Reply, error)
}

// Transcriber converts recorded audio into text on the server side.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Options configures the sessions created by a Registry.
type Options struct {
	Backend Backend
	// Transcriber is optional. Without it only browser-side recognition is available.
	Transcriber Transcriber

	// RequestTimeout bounds a single backend request. Zero means no timeout.
	RequestTimeout time.Duration
	// MaxRecording bounds a recording session. Zero means it stays open until a result arrives.
	MaxRecording time.Duration

	// OnChange is called with a snapshot after every committed state change, in commit order.
	OnChange func(id string, state models.ConversationState)

	Logger *slog.Logger
}

const (
	sourceTyped  = "typed"
	sourceSpoken = "spoken"

	errLoggerKey = "error"
)

var (
	// ErrSessionClosed is returned by every operation on a session that has been torn down.
	ErrSessionClosed = errors.New("session is closed")
	// ErrNoTranscriber is returned when audio is uploaded but no server-side transcriber is configured.
	ErrNoTranscriber = errors.New("server-side transcription is not configured")
)

// Session owns the conversation of one loaded chat page. All state changes go through Reduce while holding
// the session lock; backend requests and recording sessions run in goroutines bound to the session's
// context, so Close aborts them.
type Session struct {
	id   string
	opts Options

	mu       sync.Mutex
	notifyMu sync.Mutex
	state    models.ConversationState
	capture  *Capture
	closed   bool
	lastSeen time.Time
	// streams counts the open event streams of the page. The session is never idle while one is open.
	streams int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *slog.Logger
}

// New creates a session with the given id.
func New(id string, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:       id,
		opts:     opts,
		lastSeen: time.Now(),
		ctx:      ctx,
		cancel:   cancel,
		logger:   opts.Logger.With(slog.String("module", "session"), slog.String("sessionID", id)),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns a snapshot of the conversation.
func (s *Session) State() models.ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// SetDraft records the text currently typed in the input box.
func (s *Session) SetDraft(text string) error {
	return s.apply(nil, DraftChanged{Text: text})
}

// SendMessage submits text to the backend. Whitespace-only text is rejected with ErrEmptyMessage and
// leaves the conversation untouched. The reply is applied asynchronously.
func (s *Session) SendMessage(text string) error {
	return s.submit(text, sourceTyped)
}

// StartRecording opens a recording session. Only one may be active; a second call returns
// ErrAlreadyRecording and does not start another.
func (s *Session) StartRecording() error {
	var c *Capture
	err := s.apply(func() {
		c = newCapture(s.ctx, s.opts.MaxRecording)
		s.capture = c
		s.wg.Add(1)
	}, RecordingStarted{})
	if err != nil {
		return err
	}

	s.logger.Debug("Recording started")
	go s.awaitCapture(c)
	return nil
}

// CompleteRecording resolves the active recording session with a transcript produced by the browser.
func (s *Session) CompleteRecording(transcript string) error {
	c, err := s.activeCapture()
	if err != nil {
		return err
	}
	if !c.Resolve(Outcome{Transcript: transcript}) {
		return ErrNotRecording
	}
	return nil
}

// FailRecording resolves the active recording session with an error reported by the browser.
func (s *Session) FailRecording(reason string) error {
	c, err := s.activeCapture()
	if err != nil {
		return err
	}
	if !c.Resolve(Outcome{Err: fmt.Errorf("%w: %s", ErrRecognition, reason)}) {
		return ErrNotRecording
	}
	return nil
}

// TranscribeAudio resolves the active recording session by transcribing audio on the server. A
// transcription failure resolves the recording as failed and is also returned.
func (s *Session) TranscribeAudio(audio io.Reader, filename string) error {
	if s.opts.Transcriber == nil {
		return ErrNoTranscriber
	}
	c, err := s.activeCapture()
	if err != nil {
		return err
	}

	text, err := s.opts.Transcriber.Transcribe(c.Context(), audio, filename)
	if err != nil {
		c.Resolve(Outcome{Err: fmt.Errorf("%w: %w", ErrRecognition, err)})
		return err
	}
	if !c.Resolve(Outcome{Transcript: text}) {
		return ErrNotRecording
	}
	return nil
}

// Close tears the session down: pending backend requests and recordings are cancelled and their results
// discarded. Close blocks until they have returned.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.logger.Debug("Session closed")
}

// Attach marks the session as watched by an open event stream until the returned func is called.
func (s *Session) Attach() (detach func()) {
	s.mu.Lock()
	s.streams++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.streams--
			s.lastSeen = time.Now()
			s.mu.Unlock()
		})
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// idleSince reports when the session was last used. A session with an open stream is in use now.
func (s *Session) idleSince(now time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streams > 0 {
		return now
	}
	return s.lastSeen
}

func (s *Session) activeCapture() (*Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.capture == nil {
		return nil, ErrNotRecording
	}
	return s.capture, nil
}

// apply reduces actions in order, committing each one that is accepted. It stops at the first rejected
// action and returns its error. onCommit runs under the lock only when every action was accepted.
// Subscribers are notified once, after the lock is released, if anything changed.
func (s *Session) apply(onCommit func(), actions ...Action) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}

	var err error
	changed := false
	for _, a := range actions {
		var next models.ConversationState
		next, err = Reduce(s.state, a)
		if err != nil {
			break
		}
		s.state = next
		changed = true
	}
	if err == nil && onCommit != nil {
		onCommit()
	}

	if !changed || s.opts.OnChange == nil {
		s.mu.Unlock()
		return err
	}

	// Taking notifyMu before releasing mu keeps notifications in commit order.
	snapshot := s.state.Clone()
	s.notifyMu.Lock()
	s.mu.Unlock()
	s.opts.OnChange(s.id, snapshot)
	s.notifyMu.Unlock()

	return err
}

func (s *Session) submit(text, source string, before ...Action) error {
	msg := models.Message{
		ID:        uuid.New().String(),
		Origin:    models.OriginUser,
		Text:      text,
		Timestamp: time.Now(),
	}
	actions := append(before, Submitted{Message: msg})
	if err := s.apply(func() { s.wg.Add(1) }, actions...); err != nil {
		return err
	}

	metrics.MessagesSubmitted.WithLabelValues(source).Inc()
	go s.dispatch(text)
	return nil
}

func (s *Session) dispatch(text string) {
	defer s.wg.Done()

	ctx := s.ctx
	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := s.opts.Backend.Process(ctx, text)
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())

	if err == nil && !reply.Succeeded() {
		err = fmt.Errorf("backend status %q", reply.Status)
	}
	if err != nil {
		if s.ctx.Err() != nil {
			metrics.Dispatches.WithLabelValues(metrics.OutcomeCanceled).Inc()
			return
		}
		outcome := metrics.OutcomeError
		if reply.Status != "" {
			outcome = metrics.OutcomeUnsuccessful
		}
		metrics.Dispatches.WithLabelValues(outcome).Inc()
		s.logger.Error("Backend request failed",
			slog.String("status", reply.Status),
			slog.String(errLoggerKey, err.Error()))

		if err := s.apply(nil, ReplyFailed{Notice: failureNotice(reply, err)}); err != nil {
			s.logger.Warn("Failed to apply reply failure", slog.String(errLoggerKey, err.Error()))
		}
		return
	}

	metrics.Dispatches.WithLabelValues(metrics.OutcomeSucceeded).Inc()
	msg := models.Message{
		ID:        uuid.New().String(),
		Origin:    models.OriginAssistant,
		Text:      reply.Answer,
		JobID:     reply.JobID,
		VideoURL:  reply.VideoFile,
		Timestamp: time.Now(),
	}
	if err := s.apply(nil, ReplyReceived{Message: msg}); err != nil {
		s.logger.Warn("Failed to apply reply", slog.String(errLoggerKey, err.Error()))
	}
}

func (s *Session) awaitCapture(c *Capture) {
	defer s.wg.Done()
	defer c.Stop()

	var o Outcome
	select {
	case o = <-c.Done():
	case <-c.Context().Done():
		if s.ctx.Err() != nil {
			metrics.SpeechCaptures.WithLabelValues(metrics.OutcomeCanceled).Inc()
			return
		}
		// A result that raced the deadline still wins.
		c.Resolve(Outcome{Err: fmt.Errorf("%w within %s", ErrNoSpeech, s.opts.MaxRecording)})
		o = <-c.Done()
	}

	s.mu.Lock()
	if s.capture == c {
		s.capture = nil
	}
	s.mu.Unlock()

	if o.Err != nil {
		metrics.SpeechCaptures.WithLabelValues(metrics.OutcomeError).Inc()
		s.logger.Warn("Speech recognition failed", slog.String(errLoggerKey, o.Err.Error()))
		if err := s.apply(nil, RecordingFinished{}); err != nil && !errors.Is(err, ErrSessionClosed) {
			s.logger.Warn("Failed to finish recording", slog.String(errLoggerKey, err.Error()))
		}
		return
	}

	metrics.SpeechCaptures.WithLabelValues(metrics.OutcomeSucceeded).Inc()
	err := s.submit(o.Transcript, sourceSpoken, RecordingFinished{})
	switch {
	case err == nil:
	case errors.Is(err, ErrEmptyMessage):
		s.logger.Debug("Empty transcript ignored")
	case errors.Is(err, ErrSessionClosed):
	default:
		s.logger.Warn("Transcript dropped", slog.String(errLoggerKey, err.Error()))
	}
}

func failureNotice(reply models.Reply, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "The assistant took too long to answer. Please try again."
	case reply.Status != "":
		return fmt.Sprintf("The assistant could not answer (status %s). Please try again.", reply.Status)
	default:
		return "The assistant is unreachable right now. Please try again."
	}
}
