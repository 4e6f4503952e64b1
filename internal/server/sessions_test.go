package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/gateway/canned"
	"github.com/hay-kot/mentor/internal/mentor"
	"github.com/hay-kot/mentor/internal/store/memory"
)

func newSessions(t *testing.T, gw chat.Gateway, store chat.Store) *Sessions {
	t.Helper()
	return newSessionsWith(t, gw, store, SessionsOptions{HistorySize: 50, HydrateWait: time.Second})
}

func newSessionsWith(t *testing.T, gw chat.Gateway, store chat.Store, opts SessionsOptions) *Sessions {
	t.Helper()
	s, err := NewSessions(func(userID string) (*mentor.Controller, error) {
		return mentor.New(mentor.Options{
			Gateway: gw,
			Store:   store,
			UserID:  userID,
			Timeout: time.Second,
			Logger:  discard(),
		})
	}, opts, discard())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestValidUser(t *testing.T) {
	tests := []struct {
		user string
		want bool
	}{
		{user: "ada", want: true},
		{user: "user_1@example.com", want: true},
		{user: "", want: false},
		{user: "..", want: false},
		{user: "a/b", want: false},
		{user: strings.Repeat("x", 129), want: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidUser(tt.user), tt.user)
	}
}

func TestSessions_SubmitAndGet(t *testing.T) {
	sessions := newSessions(t, canned.New(0), memory.New())
	h := newTestServer(t, canned.New(0), sessions).Handler()

	rec := do(t, h, http.MethodPost, "/api/sessions/ada/messages", submitRequest{Text: "I need career advice"})
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[submitResponse](t, rec)
	assert.Equal(t, mentor.OutcomeReplied, res.Outcome)
	require.NotNil(t, res.Message)
	require.NotNil(t, res.Reply)
	assert.Equal(t, chat.CategoryCareer, res.Message.Category)
	assert.Equal(t, chat.SenderAssistant, res.Reply.Sender)
	assert.Equal(t, mentor.StatusIdle, res.State.Status)
	assert.Len(t, res.State.Messages, 2)

	rec = do(t, h, http.MethodGet, "/api/sessions/ada", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[stateView](t, rec)
	assert.Len(t, view.Messages, 2)
	assert.Nil(t, view.Error)

	rec = do(t, h, http.MethodGet, "/api/sessions/ada?category=health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[stateView](t, rec)
	assert.Empty(t, view.Messages)

	rec = do(t, h, http.MethodGet, "/api/sessions/ada?category=career", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[stateView](t, rec)
	assert.Len(t, view.Messages, 2)
}

func TestSessions_SeparateUsers(t *testing.T) {
	sessions := newSessions(t, canned.New(0), nil)
	h := newTestServer(t, canned.New(0), sessions).Handler()

	do(t, h, http.MethodPost, "/api/sessions/ada/messages", submitRequest{Text: "hello"})

	view := decode[stateView](t, do(t, h, http.MethodGet, "/api/sessions/grace", nil))
	assert.Empty(t, view.Messages)
	assert.Equal(t, 2, sessions.Len())
}

func TestSessions_HydratesFromStore(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	for _, text := range []string{"first", "second"} {
		m, err := chat.NewMessage(chat.SenderUser, text, chat.CategoryGeneral, time.Now())
		require.NoError(t, err)
		_, err = store.Append(ctx, "ada", m)
		require.NoError(t, err)
	}

	sessions := newSessions(t, canned.New(0), store)
	h := newTestServer(t, canned.New(0), sessions).Handler()

	view := decode[stateView](t, do(t, h, http.MethodGet, "/api/sessions/ada", nil))
	require.Len(t, view.Messages, 2)
	assert.Equal(t, "first", view.Messages[0].Content)
	assert.Equal(t, "second", view.Messages[1].Content)
}

func TestSessions_BadRequests(t *testing.T) {
	sessions := newSessions(t, canned.New(0), nil)
	h := newTestServer(t, canned.New(0), sessions).Handler()

	rec := do(t, h, http.MethodPost, "/api/sessions/ada/messages", submitRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	res := decode[submitResponse](t, rec)
	assert.Equal(t, mentor.OutcomeIgnored, res.Outcome)
	assert.Equal(t, mentor.ReasonEmpty, res.Reason)
	assert.Empty(t, res.State.Messages)

	rec = do(t, h, http.MethodGet, "/api/sessions/a.b..c@@/events?category=weather", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/sessions/a%20b", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessions_FailureIsReported(t *testing.T) {
	gw := chat.GatewayFunc(func(context.Context, chat.Request) (string, error) {
		return "", chat.Unconfigured("gemini", "API key not configured")
	})
	sessions := newSessions(t, gw, nil)
	h := newTestServer(t, gw, sessions).Handler()

	rec := do(t, h, http.MethodPost, "/api/sessions/ada/messages", submitRequest{Text: "hello"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	res := decode[submitResponse](t, rec)
	assert.Equal(t, mentor.OutcomeFailed, res.Outcome)
	require.NotNil(t, res.State.Error)
	assert.Equal(t, string(chat.KindUnconfigured), res.State.Error.Kind)
	assert.Len(t, res.State.Messages, 1)
}

func TestSessions_BusyAndCancel(t *testing.T) {
	started := make(chan struct{}, 1)
	gw := chat.GatewayFunc(func(ctx context.Context, _ chat.Request) (string, error) {
		started <- struct{}{}
		<-ctx.Done()
		return "", ctx.Err()
	})
	sessions := newSessions(t, gw, nil)
	h := newTestServer(t, gw, sessions).Handler()

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/api/sessions/ada/messages", strings.NewReader(`{"text":"hello"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		first <- rec
	}()
	<-started

	rec := do(t, h, http.MethodPost, "/api/sessions/ada/messages", submitRequest{Text: "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, mentor.ReasonBusy, decode[submitResponse](t, rec).Reason)

	rec = do(t, h, http.MethodPost, "/api/sessions/ada/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]bool](t, rec)["canceled"])

	select {
	case rec := <-first:
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[submitResponse](t, rec)
		assert.Equal(t, mentor.OutcomeCanceled, res.Outcome)
		assert.Equal(t, mentor.StatusIdle, res.State.Status)
		assert.Nil(t, res.State.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("submit did not return after cancel")
	}
}

func TestSessions_DisconnectCancels(t *testing.T) {
	started := make(chan struct{}, 1)
	gw := chat.GatewayFunc(func(ctx context.Context, _ chat.Request) (string, error) {
		started <- struct{}{}
		<-ctx.Done()
		return "", ctx.Err()
	})
	sessions := newSessions(t, gw, nil)
	h := newTestServer(t, gw, sessions).Handler()

	ctx, disconnect := context.WithCancel(context.Background())
	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		req := httptest.NewRequestWithContext(ctx, http.MethodPost, "/api/sessions/ada/messages", strings.NewReader(`{"text":"hello"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		done <- rec
	}()
	<-started
	disconnect()

	select {
	case rec := <-done:
		res := decode[submitResponse](t, rec)
		assert.Equal(t, mentor.OutcomeCanceled, res.Outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("submit did not return after disconnect")
	}

	rec := do(t, h, http.MethodGet, "/api/sessions/ada", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[stateView](t, rec)
	assert.Equal(t, mentor.StatusIdle, state.Status)
	assert.Nil(t, state.Error)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, "hello", state.Messages[0].Content)
}

func TestSessions_Clear(t *testing.T) {
	sessions := newSessions(t, canned.New(0), nil)
	h := newTestServer(t, canned.New(0), sessions).Handler()

	do(t, h, http.MethodPost, "/api/sessions/ada/messages", submitRequest{Text: "hello"})

	rec := do(t, h, http.MethodDelete, "/api/sessions/ada/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[stateView](t, rec).Messages)
}

func TestSessions_Events(t *testing.T) {
	sessions := newSessions(t, canned.New(0), nil)
	ts := httptest.NewServer(newTestServer(t, canned.New(0), sessions).Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/sessions/ada/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	states := make(chan stateView, 16)
	go func() {
		defer close(states)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			data, ok := strings.CutPrefix(line, "data:")
			if !ok {
				continue
			}
			var view stateView
			if json.Unmarshal([]byte(data), &view) == nil {
				states <- view
			}
		}
	}()

	initial := <-states
	assert.Empty(t, initial.Messages)

	submit, err := http.Post(ts.URL+"/api/sessions/ada/messages", "application/json", strings.NewReader(`{"text":"hello"}`))
	require.NoError(t, err)
	_ = submit.Body.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case view, ok := <-states:
			require.True(t, ok, "stream ended early")
			if len(view.Messages) == 2 && view.Status == mentor.StatusIdle {
				return
			}
		case <-deadline:
			t.Fatal("no state with the reply arrived")
		}
	}
}

func TestSessions_EvictsLeastRecentlyUsed(t *testing.T) {
	store := memory.New()
	sessions := newSessionsWith(t, canned.New(0), store, SessionsOptions{MaxSessions: 2})
	ctx := context.Background()

	first, err := sessions.Get(ctx, "u0")
	require.NoError(t, err)
	res := first.Submit(ctx, "I need a job")
	require.Equal(t, mentor.OutcomeReplied, res.Outcome)

	_, err = sessions.Get(ctx, "u1")
	require.NoError(t, err)
	_, err = sessions.Get(ctx, "u2")
	require.NoError(t, err)

	assert.Equal(t, 2, sessions.Len())

	// Closing the evicted controller flushed its writes.
	persisted, err := chat.Latest(ctx, store, "u0", 10)
	require.NoError(t, err)
	assert.Len(t, persisted, 2)

	// A returning user gets a fresh controller hydrated from the store.
	again, err := sessions.Get(ctx, "u0")
	require.NoError(t, err)
	assert.NotSame(t, first, again)
	assert.Len(t, again.Messages(), 2)
	assert.Equal(t, 2, sessions.Len())
}

func TestSessions_GetRefreshesRecency(t *testing.T) {
	sessions := newSessionsWith(t, canned.New(0), nil, SessionsOptions{MaxSessions: 2})
	ctx := context.Background()

	a, err := sessions.Get(ctx, "a")
	require.NoError(t, err)
	_, err = sessions.Get(ctx, "b")
	require.NoError(t, err)

	// Touching "a" makes "b" the eviction candidate.
	_, err = sessions.Get(ctx, "a")
	require.NoError(t, err)
	_, err = sessions.Get(ctx, "c")
	require.NoError(t, err)

	again, err := sessions.Get(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, a, again)
}

func TestSessions_Sweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	gw := chat.GatewayFunc(func(ctx context.Context, _ chat.Request) (string, error) {
		started <- struct{}{}
		select {
		case <-release:
			return "reply", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	sessions := newSessionsWith(t, gw, nil, SessionsOptions{
		IdleTimeout: time.Minute,
		Now:         clock,
	})
	ctx := context.Background()

	_, err := sessions.Get(ctx, "idle")
	require.NoError(t, err)
	busy, err := sessions.Get(ctx, "busy")
	require.NoError(t, err)

	done := make(chan mentor.Result, 1)
	go func() { done <- busy.Submit(ctx, "hello") }()
	<-started

	assert.Equal(t, 0, sessions.Sweep(now.Add(30*time.Second)))
	assert.Equal(t, 2, sessions.Len())

	assert.Equal(t, 1, sessions.Sweep(now.Add(2*time.Minute)), "sessions in use are kept")
	assert.Equal(t, 1, sessions.Len())

	close(release)
	assert.Equal(t, mentor.OutcomeReplied, (<-done).Outcome)

	assert.Equal(t, 1, sessions.Sweep(now.Add(2*time.Minute)))
	assert.Equal(t, 0, sessions.Len())
}

func TestSessions_SweepKeepsWatchedSessions(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sessions := newSessionsWith(t, canned.New(0), nil, SessionsOptions{
		IdleTimeout: time.Minute,
		Now:         func() time.Time { return now },
	})

	ctl, err := sessions.Get(context.Background(), "watched")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	states := ctl.Watch(ctx)
	<-states

	assert.Equal(t, 0, sessions.Sweep(now.Add(time.Hour)))

	cancel()
	for range states {
	}
	assert.Eventually(t, func() bool { return ctl.Watchers() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, sessions.Sweep(now.Add(time.Hour)))
}
