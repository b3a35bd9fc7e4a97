package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MegaGrindStone/avatar-chat-ui/internal/metrics"
	"github.com/google/uuid"
)

// Registry holds the live sessions, one per loaded chat page. Sessions end when the page says goodbye or
// after they have been idle for longer than the configured TTL.
type Registry struct {
	opts Options
	ttl  time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session

	logger *slog.Logger
}

// NewRegistry creates a registry whose sessions share opts. A zero ttl disables idle expiry.
func NewRegistry(opts Options, ttl time.Duration) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
		opts.Logger = logger
	}
	return &Registry{
		opts:     opts,
		ttl:      ttl,
		sessions: make(map[string]*Session),
		logger:   logger.With(slog.String("module", "registry")),
	}
}

// New creates and registers a fresh session with an empty conversation.
func (r *Registry) New() *Session {
	s := New(uuid.New().String(), r.opts)

	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	metrics.ActiveSessions.Inc()
	r.logger.Debug("Session created", slog.String("sessionID", s.ID()))
	return s
}

// Get returns the session with the given id and marks it as recently used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		s.touch(time.Now())
	}
	return s, ok
}

// End removes and closes the session with the given id. It reports whether such a session existed.
func (r *Registry) End(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	metrics.ActiveSessions.Dec()
	s.Close()
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep ends every session idle since before now minus the TTL and returns how many were ended. Sessions
// with an open event stream are never idle.
func (r *Registry) Sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}

	var expired []string
	r.mu.RLock()
	for id, s := range r.sessions {
		if now.Sub(s.idleSince(now)) > r.ttl {
			expired = append(expired, id)
		}
	}
	r.mu.RUnlock()

	n := 0
	for _, id := range expired {
		if r.End(id) {
			n++
		}
	}
	if n > 0 {
		r.logger.Info("Expired idle sessions", slog.Int("count", n))
	}
	return n
}

// Run sweeps idle sessions until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	if r.ttl <= 0 {
		return
	}

	interval := r.ttl / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

// Close ends every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		metrics.ActiveSessions.Dec()
		s.Close()
	}
}
