package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/mentor"
	"github.com/hay-kot/mentor/internal/metrics"
)

const (
	DefaultMaxSessions = 1000
	DefaultSessionIdle = 30 * time.Minute
)

var ErrInvalidUser = chat.ErrInvalidUser

// ControllerFactory builds the controller for one user.
type ControllerFactory func(userID string) (*mentor.Controller, error)

type session struct {
	ctl      *mentor.Controller
	err      error
	ready    chan struct{}
	lastUsed time.Time
}

// inUse reports whether the session has a request in flight or an open
// event stream. Sessions still opening count as in use.
func (s *session) inUse() bool {
	select {
	case <-s.ready:
	default:
		return true
	}
	if s.ctl == nil {
		return false
	}
	return s.ctl.Status() == mentor.StatusSending || s.ctl.Watchers() > 0
}

// SessionsOptions configures a Sessions registry.
type SessionsOptions struct {
	// HistorySize bounds hydration.
	HistorySize int
	// HydrateWait bounds how long the first read may take.
	HydrateWait time.Duration

	// MaxSessions caps open sessions; the least recently used one is closed
	// to make room.
	MaxSessions int
	// IdleTimeout closes sessions unused for this long. Zero disables it.
	IdleTimeout time.Duration

	Now func() time.Time
}

// Sessions lazily creates one controller per user and hydrates it from the
// store on first use.
type Sessions struct {
	factory ControllerFactory
	opts    SessionsOptions
	log     zerolog.Logger

	mu      sync.Mutex
	cache   *lru.Cache
	evicted []*session
}

// NewSessions creates a registry.
func NewSessions(factory ControllerFactory, opts SessionsOptions, log zerolog.Logger) (*Sessions, error) {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.HydrateWait <= 0 {
		opts.HydrateWait = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Sessions{
		factory: factory,
		opts:    opts,
		log:     log.With().Str("component", "sessions").Logger(),
	}

	// Evictions only happen inside calls made while holding s.mu.
	cache, err := lru.NewWithEvict(opts.MaxSessions, func(_, value interface{}) {
		s.evicted = append(s.evicted, value.(*session))
	})
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	s.cache = cache

	return s, nil
}

// ValidUser reports whether userID is safe to use as a session key.
func ValidUser(userID string) bool {
	return chat.ValidateUserID(userID) == nil
}

// Get returns the controller for userID, creating it on first use.
func (s *Sessions) Get(ctx context.Context, userID string) (*mentor.Controller, error) {
	if !ValidUser(userID) {
		return nil, ErrInvalidUser
	}

	s.mu.Lock()
	var (
		sess *session
		ok   bool
	)
	if v, found := s.cache.Get(userID); found {
		sess, ok = v.(*session), true
	} else {
		sess = &session{ready: make(chan struct{})}
		s.cache.Add(userID, sess)
	}
	sess.lastUsed = s.opts.Now()
	evicted := s.takeEvicted()
	s.mu.Unlock()

	s.release(evicted)

	if !ok {
		s.open(sess, userID)
	}

	select {
	case <-sess.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if sess.err != nil {
		return nil, sess.err
	}
	return sess.ctl, nil
}

func (s *Sessions) open(sess *session, userID string) {
	if err := s.start(sess, userID); err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("create session")

		s.mu.Lock()
		if v, found := s.cache.Peek(userID); found && v.(*session) == sess {
			s.cache.Remove(userID)
		}
		evicted := s.takeEvicted()
		s.mu.Unlock()

		s.release(evicted)
	}
}

func (s *Sessions) start(sess *session, userID string) error {
	defer close(sess.ready)

	ctl, err := s.factory(userID)
	if err != nil {
		sess.err = err
		return err
	}
	sess.ctl = ctl
	metrics.ActiveSessions.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.HydrateWait)
	defer cancel()

	// A session that cannot read its history still works; it starts empty.
	if err := ctl.Hydrate(ctx, s.opts.HistorySize); err != nil {
		s.log.Warn().Err(err).Str("user", userID).Msg("hydrate session")
		return nil
	}
	s.log.Debug().Str("user", userID).Int("messages", len(ctl.Messages())).Msg("session opened")
	return nil
}

// Sweep closes sessions idle since before now minus the idle timeout and
// returns how many it closed. Sessions in use are kept.
func (s *Sessions) Sweep(now time.Time) int {
	if s.opts.IdleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-s.opts.IdleTimeout)

	s.mu.Lock()
	// Keys run from least to most recently used.
	for _, key := range s.cache.Keys() {
		v, found := s.cache.Peek(key)
		if !found {
			continue
		}
		sess := v.(*session)
		if sess.lastUsed.After(cutoff) {
			break
		}
		if sess.inUse() {
			continue
		}
		s.cache.Remove(key)
	}
	evicted := s.takeEvicted()
	s.mu.Unlock()

	s.release(evicted)
	return len(evicted)
}

// RunSweeper calls Sweep periodically until ctx ends.
func (s *Sessions) RunSweeper(ctx context.Context) {
	if s.opts.IdleTimeout <= 0 {
		return
	}

	every := min(max(s.opts.IdleTimeout/4, time.Second), time.Minute)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(s.opts.Now()); n > 0 {
				s.log.Debug().Int("closed", n).Int("open", s.Len()).Msg("idle sessions closed")
			}
		}
	}
}

// Len returns the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

// Close flushes every controller's pending writes.
func (s *Sessions) Close() {
	s.mu.Lock()
	s.cache.Purge()
	evicted := s.takeEvicted()
	s.mu.Unlock()

	s.release(evicted)
}

func (s *Sessions) takeEvicted() []*session {
	evicted := s.evicted
	s.evicted = nil
	return evicted
}

// release cancels and closes evicted controllers, waiting for queued writes.
func (s *Sessions) release(evicted []*session) {
	for _, sess := range evicted {
		<-sess.ready
		if sess.ctl == nil {
			continue
		}
		sess.ctl.Cancel()
		sess.ctl.Close()
		metrics.ActiveSessions.Dec()
	}
}
