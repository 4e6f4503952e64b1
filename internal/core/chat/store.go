package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

// DefaultHistoryLimit is the number of messages read back on hydration.
const DefaultHistoryLimit = 50

var (
	ErrEmptyUser          = errors.New("user id is empty")
	ErrSubscriptionClosed = errors.New("subscription closed before first snapshot")
)

// Snapshot is one observation of the persisted conversation. When Err is
// set the read failed and Messages is nil; the subscription keeps going.
type Snapshot struct {
	Messages []Message
	Err      error
}

// Store is the durable, per-user, append-only message log.
type Store interface {
	// Append persists m under userID and returns the record as stored, with
	// the store's own timestamp. Appending an id that already exists is
	// acknowledged without writing a second record.
	Append(ctx context.Context, userID string, m Message) (Message, error)

	// Subscribe emits the most recent limit messages for userID, oldest
	// first, each time they change. The channel is closed once ctx ends.
	Subscribe(ctx context.Context, userID string, limit int) (<-chan Snapshot, error)
}

// Latest reads a single snapshot and releases the subscription.
func Latest(ctx context.Context, s Store, userID string, limit int) ([]Message, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := s.Subscribe(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	select {
	case snap, ok := <-ch:
		if !ok {
			return nil, ErrSubscriptionClosed
		}
		return snap.Messages, snap.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// FetchFunc reads the current most recent messages for a polling subscription.
type FetchFunc func(ctx context.Context) ([]Message, error)

// Poll runs fetch immediately and then on every tick, emitting a snapshot
// whenever the result differs from the last one emitted. The returned
// channel is closed when ctx ends.
func Poll(ctx context.Context, interval time.Duration, fetch FetchFunc) <-chan Snapshot {
	ch := make(chan Snapshot)

	go func() {
		defer close(ch)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var (
			last    []Message
			emitted bool
		)

		for {
			msgs, err := fetch(ctx)
			switch {
			case ctx.Err() != nil:
				return
			case err != nil:
				if !send(ctx, ch, Snapshot{Err: err}) {
					return
				}
			case !emitted || !sameMessages(last, msgs):
				if !send(ctx, ch, Snapshot{Messages: slices.Clone(msgs)}) {
					return
				}
				last, emitted = msgs, true
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return ch
}

func send(ctx context.Context, ch chan<- Snapshot, snap Snapshot) bool {
	select {
	case ch <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}

func sameMessages(a, b []Message) bool {
	return slices.EqualFunc(a, b, func(x, y Message) bool {
		return x.ID == y.ID && x.CreatedAt.Equal(y.CreatedAt)
	})
}

// NormalizeLimit clamps limit to a positive value.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}

// CheckAppend validates the arguments common to every Store.Append.
func CheckAppend(userID string, m Message) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	return nil
}
