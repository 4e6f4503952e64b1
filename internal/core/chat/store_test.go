package chat

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoll_EmitsOnlyOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	a := Message{ID: "a", Content: "a", Sender: SenderUser, Category: CategoryGeneral}
	b := Message{ID: "b", Content: "b", Sender: SenderAssistant, Category: CategoryGeneral}

	ch := Poll(ctx, time.Millisecond, func(context.Context) ([]Message, error) {
		switch n := calls.Add(1); {
		case n < 3:
			return []Message{a}, nil
		default:
			return []Message{a, b}, nil
		}
	})

	first := <-ch
	require.NoError(t, first.Err)
	assert.Len(t, first.Messages, 1)

	second := <-ch
	require.NoError(t, second.Err)
	assert.Len(t, second.Messages, 2)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestPoll_ErrorsDoNotEndSubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	boom := errors.New("disk unavailable")

	ch := Poll(ctx, time.Millisecond, func(context.Context) ([]Message, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}
		return []Message{}, nil
	})

	snap := <-ch
	assert.ErrorIs(t, snap.Err, boom)

	snap = <-ch
	assert.NoError(t, snap.Err)
}

func TestPoll_ClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	ch := Poll(ctx, time.Millisecond, func(context.Context) ([]Message, error) {
		return nil, nil
	})
	<-ch
	cancel()

	select {
	case _, ok := <-ch:
		for ok {
			_, ok = <-ch
		}
	case <-time.After(time.Second):
		t.Fatal("subscription did not close after cancel")
	}
}

type staticStore struct {
	msgs []Message
}

func (s staticStore) Append(_ context.Context, _ string, m Message) (Message, error) {
	return m, nil
}

func (s staticStore) Subscribe(ctx context.Context, _ string, _ int) (<-chan Snapshot, error) {
	return Poll(ctx, time.Hour, func(context.Context) ([]Message, error) {
		return s.msgs, nil
	}), nil
}

func TestLatest(t *testing.T) {
	store := staticStore{msgs: []Message{{ID: "1", Content: "hi", Sender: SenderUser, Category: CategoryGeneral}}}

	got, err := Latest(context.Background(), store, "u1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
}

func TestCheckAppend(t *testing.T) {
	m := Message{ID: "1", Content: "hi", Sender: SenderUser, Category: CategoryGeneral}

	assert.NoError(t, CheckAppend("u1", m))
	assert.ErrorIs(t, CheckAppend("", m), ErrEmptyUser)
	assert.ErrorIs(t, CheckAppend("a/b", m), ErrInvalidUser)
	assert.NoError(t, CheckAppend("a_b", m))

	m.Sender = "robot"
	assert.ErrorIs(t, CheckAppend("u1", m), ErrInvalidSender)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultHistoryLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultHistoryLimit, NormalizeLimit(-3))
	assert.Equal(t, 7, NormalizeLimit(7))
}
