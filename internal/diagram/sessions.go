package diagram

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownViewer is returned for a viewer id that was never created or
// has already been released.
var ErrUnknownViewer = errors.New("unknown viewer")

// Session is a viewer mounted on behalf of a remote client.
type Session struct {
	ID     string  `json:"id"`
	Slug   string  `json:"slug"`
	Viewer *Viewer `json:"-"`

	mu       sync.Mutex
	lastUsed time.Time
	navigate string
}

// TakeNavigation returns the anchor of the last selected hotspot since the
// previous call and clears it.
func (s *Session) TakeNavigation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.navigate
	s.navigate = ""
	return n
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Sessions tracks live viewers by id.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
	onChange func(n int)
	now      func() time.Time
}

// NewSessions creates an empty registry. onChange, if set, receives the
// live viewer count after every create or release.
func NewSessions(onChange func(n int)) *Sessions {
	return &Sessions{
		sessions: make(map[string]*Session),
		onChange: onChange,
		now:      time.Now,
	}
}

// Create mounts a viewer for cfg under a fresh id.
func (s *Sessions) Create(slug string, cfg *Config) *Session {
	sess := &Session{ID: uuid.NewString(), Slug: slug, lastUsed: s.now()}
	sess.Viewer = NewViewer(cfg, func(h Hotspot) {
		sess.mu.Lock()
		sess.navigate = h.Target()
		sess.mu.Unlock()
	})

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	s.changed(n)
	return sess
}

// Get returns the session for id and marks it as used.
func (s *Sessions) Get(id string) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrUnknownViewer
	}
	sess.touch(s.now())
	return sess, nil
}

// Release closes and forgets the viewer for id.
func (s *Sessions) Release(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return ErrUnknownViewer
	}
	sess.Viewer.Close()
	s.changed(n)
	return nil
}

// Sweep releases viewers idle for longer than maxIdle and returns how many
// were released.
func (s *Sessions) Sweep(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	var stale []*Session
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			stale = append(stale, sess)
			delete(s.sessions, id)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range stale {
		sess.Viewer.Close()
	}
	if len(stale) > 0 {
		s.changed(n)
	}
	return len(stale)
}

// Run sweeps idle viewers every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval, maxIdle time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep(maxIdle)
		}
	}
}

// Len returns the number of live viewers.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// CloseAll releases every viewer.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()
	for _, sess := range all {
		sess.Viewer.Close()
	}
	s.changed(0)
}

func (s *Sessions) changed(n int) {
	if s.onChange != nil {
		s.onChange(n)
	}
}
