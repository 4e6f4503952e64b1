// Package memory provides an in-process chat.Store. History is lost when
// the process exits.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/hay-kot/mentor/internal/core/chat"
)

type record struct {
	msg chat.Message
	seq uint64
}

type userLog struct {
	records []record
	ids     map[string]int
	subs    map[int]chan struct{}
}

// Store keeps per-user logs in memory and pushes changes to subscribers.
type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	seq     uint64
	nextSub int
	users   map[string]*userLog
}

// New creates an empty store.
func New() *Store {
	return &Store{
		now:   time.Now,
		users: make(map[string]*userLog),
	}
}

// WithClock sets the clock used for store timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) userLocked(userID string) *userLog {
	u, ok := s.users[userID]
	if !ok {
		u = &userLog{
			ids:  make(map[string]int),
			subs: make(map[int]chan struct{}),
		}
		s.users[userID] = u
	}
	return u
}

// Append implements chat.Store.
func (s *Store) Append(ctx context.Context, userID string, m chat.Message) (chat.Message, error) {
	if err := chat.CheckAppend(userID, m); err != nil {
		return chat.Message{}, err
	}
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.userLocked(userID)
	if i, ok := u.ids[m.ID]; ok {
		return u.records[i].msg, nil
	}

	s.seq++
	m.CreatedAt = s.now()
	m.Pending = false

	u.ids[m.ID] = len(u.records)
	u.records = append(u.records, record{msg: m, seq: s.seq})

	for _, ch := range u.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}

	return m, nil
}

// Subscribe implements chat.Store.
func (s *Store) Subscribe(ctx context.Context, userID string, limit int) (<-chan chat.Snapshot, error) {
	if err := chat.ValidateUserID(userID); err != nil {
		return nil, err
	}
	limit = chat.NormalizeLimit(limit)

	changed := make(chan struct{}, 1)
	changed <- struct{}{}

	s.mu.Lock()
	u := s.userLocked(userID)
	id := s.nextSub
	s.nextSub++
	u.subs[id] = changed
	s.mu.Unlock()

	out := make(chan chat.Snapshot)
	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			delete(u.subs, id)
			s.mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-changed:
			}

			snap := chat.Snapshot{Messages: s.latest(userID, limit)}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// latest returns the final limit records ordered by store time then sequence.
func (s *Store) latest(userID string, limit int) []chat.Message {
	s.mu.Lock()
	recs := slices.Clone(s.userLocked(userID).records)
	s.mu.Unlock()

	slices.SortStableFunc(recs, func(a, b record) int {
		if c := a.msg.CreatedAt.Compare(b.msg.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	if len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}

	out := make([]chat.Message, len(recs))
	for i, r := range recs {
		out[i] = r.msg
	}
	return out
}
