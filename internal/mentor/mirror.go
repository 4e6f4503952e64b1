package mentor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/metrics"
)

// ErrPersistence wraps store failures from the mirror. It is logged, never
// returned from Submit.
var ErrPersistence = errors.New("persistence failure")

const (
	defaultQueueSize    = 64
	defaultStoreTimeout = 10 * time.Second
)

// Mirror copies messages into a Store on a background worker. Enqueue never
// blocks; jobs are written in the order they were enqueued.
type Mirror struct {
	store   chat.Store
	userID  string
	timeout time.Duration
	log     zerolog.Logger
	onAck   func(chat.Message)

	mu     sync.RWMutex
	closed bool
	jobs   chan chat.Message
	done   chan struct{}
}

// NewMirror starts a mirror worker for userID. onAck, when non-nil, receives
// each record as stored.
func NewMirror(store chat.Store, userID string, queueSize int, timeout time.Duration, log zerolog.Logger, onAck func(chat.Message)) *Mirror {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}

	m := &Mirror{
		store:   store,
		userID:  userID,
		timeout: timeout,
		log:     log,
		onAck:   onAck,
		jobs:    make(chan chat.Message, queueSize),
		done:    make(chan struct{}),
	}

	go m.run()
	return m
}

// Enqueue schedules msg for persistence. It returns false when the queue is
// full or the mirror is closed; the message is then dropped and logged.
func (m *Mirror) Enqueue(msg chat.Message) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		m.log.Warn().Str("message_id", msg.ID).Msg("mirror closed, message not persisted")
		return false
	}

	select {
	case m.jobs <- msg:
		return true
	default:
		metrics.PersistenceFailuresTotal.Inc()
		m.log.Warn().Str("message_id", msg.ID).Msg("mirror queue full, message not persisted")
		return false
	}
}

// Close stops accepting messages and waits for queued ones to be written.
func (m *Mirror) Close() {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.jobs)
	}
	m.mu.Unlock()

	<-m.done
}

func (m *Mirror) run() {
	defer close(m.done)

	for msg := range m.jobs {
		stored, err := m.append(msg)
		if err != nil {
			metrics.PersistenceFailuresTotal.Inc()
			m.log.Warn().
				Err(fmt.Errorf("%w: %w", ErrPersistence, err)).
				Str("message_id", msg.ID).
				Str("sender", string(msg.Sender)).
				Msg("failed to persist message")
			continue
		}

		m.log.Debug().
			Str("message_id", stored.ID).
			Time("stored_at", stored.CreatedAt).
			Msg("message persisted")

		if m.onAck != nil {
			m.onAck(stored)
		}
	}
}

func (m *Mirror) append(msg chat.Message) (chat.Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	msg.Pending = false
	return m.store.Append(ctx, m.userID, msg)
}
