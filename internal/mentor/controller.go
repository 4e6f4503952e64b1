// Package mentor implements the chat session controller. A Controller owns
// one conversation, serializes requests to the reply gateway and mirrors
// every message into an optional store without waiting on it.
package mentor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/metrics"
)

const defaultTimeout = 30 * time.Second

var (
	ErrNoGateway     = errors.New("gateway is required")
	ErrNoUser        = errors.New("user id is required when a store is configured")
	ErrBusy          = errors.New("a request is in flight")
	ErrHydrateStale  = errors.New("conversation changed while reading history")
	ErrEmptyResponse = errors.New("gateway returned an empty reply")
)

// Status is the request lifecycle state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSending Status = "sending"
)

// Outcome describes how a Submit call ended.
type Outcome string

const (
	OutcomeIgnored  Outcome = "ignored"
	OutcomeReplied  Outcome = "replied"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Reason explains an ignored submit.
type Reason string

const (
	ReasonEmpty Reason = "empty_input"
	ReasonBusy  Reason = "already_sending"
)

// Result is returned by Submit. Failures are reported here and in State,
// never as a panic or returned error.
type Result struct {
	Outcome Outcome
	Reason  Reason
	User    chat.Message
	Reply   chat.Message
	Err     error
}

// State is an immutable view of the controller.
type State struct {
	Messages []chat.Message
	Status   Status
	Err      error
}

// Options configures a Controller.
type Options struct {
	Gateway chat.Gateway

	// Store is optional. When nil messages stay local.
	Store  chat.Store
	UserID string

	// HistoryTurns is how many prior messages are sent to the gateway with
	// each query. Zero sends the query alone.
	HistoryTurns int

	// Timeout bounds each gateway call.
	Timeout time.Duration

	StoreTimeout time.Duration
	QueueSize    int

	Logger zerolog.Logger
	Now    func() time.Time

	// OnChange is called with the new state after every change, in order.
	// It must not call Submit, Clear, Cancel or Hydrate.
	OnChange func(State)
}

type request struct {
	id       string
	cancel   context.CancelFunc
	canceled bool
}

// Controller is the chat session controller.
type Controller struct {
	gateway      chat.Gateway
	store        chat.Store
	mirror       *Mirror
	userID       string
	historyTurns int
	timeout      time.Duration
	now          func() time.Time
	onChange     func(State)
	log          zerolog.Logger

	conv *chat.Conversation

	notifyMu sync.Mutex

	mu        sync.Mutex
	status    Status
	lastErr   error
	inflight  *request
	watchers  map[int]chan State
	nextWatch int
}

// New creates a Controller.
func New(opts Options) (*Controller, error) {
	if opts.Gateway == nil {
		return nil, ErrNoGateway
	}
	if opts.Store != nil {
		if opts.UserID == "" {
			return nil, ErrNoUser
		}
		if err := chat.ValidateUserID(opts.UserID); err != nil {
			return nil, err
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Controller{
		gateway:      opts.Gateway,
		store:        opts.Store,
		userID:       opts.UserID,
		historyTurns: opts.HistoryTurns,
		timeout:      opts.Timeout,
		now:          opts.Now,
		onChange:     opts.OnChange,
		log:          opts.Logger.With().Str("component", "controller").Str("user_id", opts.UserID).Logger(),
		conv:         chat.NewConversation(),
		status:       StatusIdle,
		watchers:     make(map[int]chan State),
	}

	if opts.Store != nil {
		mlog := opts.Logger.With().Str("component", "mirror").Str("user_id", opts.UserID).Logger()
		c.mirror = NewMirror(opts.Store, opts.UserID, opts.QueueSize, opts.StoreTimeout, mlog, c.acknowledge)
	}

	return c, nil
}

// Classify returns the category Submit would assign to text.
func (c *Controller) Classify(text string) chat.Category {
	return chat.Classify(text)
}

// Submit sends raw to the gateway and records the outcome. Empty input and
// calls made while another request is in flight are ignored.
func (c *Controller) Submit(ctx context.Context, raw string) Result {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Result{Outcome: OutcomeIgnored, Reason: ReasonEmpty}
	}

	c.mu.Lock()
	if c.status == StatusSending {
		c.mu.Unlock()
		return Result{Outcome: OutcomeIgnored, Reason: ReasonBusy}
	}

	category := chat.Classify(text)
	user, err := chat.NewMessage(chat.SenderUser, text, category, c.now())
	if err != nil {
		c.mu.Unlock()
		return Result{Outcome: OutcomeIgnored, Reason: ReasonEmpty}
	}
	user.Pending = c.mirror != nil

	history := c.conv.Last(c.historyTurns)
	if err := c.conv.Append(user); err != nil {
		c.mu.Unlock()
		c.log.Error().Err(err).Msg("append user message")
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	reqCtx, cancel := context.WithCancel(ctx)
	req := &request{id: user.ID, cancel: cancel}
	c.inflight = req
	c.status = StatusSending
	c.lastErr = nil
	c.mu.Unlock()

	defer cancel()
	c.notify()
	c.persist(user)

	c.log.Debug().
		Str("message_id", user.ID).
		Str("category", string(category)).
		Int("history", len(history)).
		Msg("submitting")

	started := time.Now()
	reply, err := c.complete(reqCtx, chat.Request{
		Query:    text,
		Category: category,
		History:  chat.TurnsFrom(history),
	})
	metrics.GatewayDuration.Observe(time.Since(started).Seconds())

	res := c.settle(reqCtx, req, user, reply, err)
	metrics.SubmitsTotal.WithLabelValues(string(res.Outcome)).Inc()
	c.notify()

	if res.Outcome == OutcomeReplied {
		c.persist(res.Reply)
	}

	return res
}

func (c *Controller) settle(ctx context.Context, req *request, user chat.Message, reply string, err error) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A canceled request already gave up the slot; a newer request may own
	// it by now.
	if c.inflight == req {
		c.inflight = nil
		c.status = StatusIdle
	}

	if req.canceled || ctx.Err() != nil {
		c.log.Debug().Str("message_id", user.ID).Msg("request canceled")
		return Result{Outcome: OutcomeCanceled, User: user}
	}

	if err != nil {
		ge := chat.AsGatewayError("complete", err)
		metrics.GatewayErrorsTotal.WithLabelValues(string(ge.Kind)).Inc()
		c.lastErr = ge
		c.log.Warn().Err(ge).Str("message_id", user.ID).Str("kind", string(ge.Kind)).Msg("gateway failed")
		return Result{Outcome: OutcomeFailed, User: user, Err: ge}
	}

	assistant, err := chat.NewMessage(chat.SenderAssistant, reply, user.Category, c.now())
	if err == nil {
		assistant.Pending = c.mirror != nil
		err = c.conv.Append(assistant)
	}
	if err != nil {
		ge := chat.AsGatewayError("complete", err)
		c.lastErr = ge
		return Result{Outcome: OutcomeFailed, User: user, Err: ge}
	}

	return Result{Outcome: OutcomeReplied, User: user, Reply: assistant}
}

// complete calls the gateway, returning no later than the configured
// timeout even if the gateway ignores ctx.
func (c *Controller) complete(ctx context.Context, req chat.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		reply string
		err   error
	}

	done := make(chan result, 1)
	go func() {
		reply, err := c.gateway.Complete(ctx, req)
		done <- result{reply: reply, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		if strings.TrimSpace(r.reply) == "" {
			return "", chat.Upstream("complete", ErrEmptyResponse)
		}
		return r.reply, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", chat.Upstream("complete", fmt.Errorf("no reply within %s: %w", c.timeout, ctx.Err()))
		}
		return "", ctx.Err()
	}
}

// Cancel aborts the in-flight request. Status is idle when Cancel returns,
// so the next Submit is accepted at once; the aborted request records no
// error or assistant message.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	canceled := c.cancelLocked()
	c.mu.Unlock()

	if canceled {
		c.log.Debug().Msg("request canceled by caller")
		c.notify()
	}
	return canceled
}

func (c *Controller) cancelLocked() bool {
	if c.inflight == nil || c.inflight.canceled {
		return false
	}
	c.inflight.canceled = true
	c.inflight.cancel()
	c.inflight = nil
	c.status = StatusIdle
	return true
}

// Clear empties the local conversation and cancels any in-flight request.
// Persisted history is not touched.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.cancelLocked()
	c.conv.Reset()
	c.lastErr = nil
	c.mu.Unlock()

	c.log.Debug().Msg("conversation cleared")
	c.notify()
}

// Hydrate replaces the local conversation with the most recent persisted
// messages. It does nothing without a store and fails with ErrBusy or
// ErrHydrateStale if the conversation is in use.
func (c *Controller) Hydrate(ctx context.Context, limit int) error {
	if c.store == nil {
		return nil
	}

	c.mu.Lock()
	busy := c.status == StatusSending
	c.mu.Unlock()
	if busy {
		return ErrBusy
	}

	before := c.conv.Version()
	msgs, err := chat.Latest(ctx, c.store, c.userID, chat.NormalizeLimit(limit))
	if err != nil {
		return fmt.Errorf("hydrate: %w", err)
	}

	c.mu.Lock()
	switch {
	case c.status == StatusSending:
		err = ErrBusy
	case c.conv.Version() != before:
		err = ErrHydrateStale
	default:
		err = c.conv.Replace(msgs)
	}
	c.mu.Unlock()

	if err != nil {
		return err
	}

	c.log.Debug().Int("messages", len(msgs)).Msg("hydrated from store")
	c.notify()
	return nil
}

// State returns the current conversation, status and last error.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	return State{
		Messages: c.conv.Snapshot(),
		Status:   c.status,
		Err:      c.lastErr,
	}
}

// Messages returns a snapshot of the conversation.
func (c *Controller) Messages() []chat.Message {
	return c.conv.Snapshot()
}

// Status returns the request lifecycle state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Err returns the error of the last failed request, or nil.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Watch returns a channel that receives the current state and then every
// later change. Slow readers only see the newest state. The channel is
// closed when ctx ends.
func (c *Controller) Watch(ctx context.Context) <-chan State {
	ch := make(chan State, 1)

	c.mu.Lock()
	id := c.nextWatch
	c.nextWatch++
	c.watchers[id] = ch
	offer(ch, c.stateLocked())
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.watchers, id)
		close(ch)
		c.mu.Unlock()
	}()

	return ch
}

// Watchers returns the number of open Watch channels.
func (c *Controller) Watchers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.watchers)
}

// Close waits for queued messages to reach the store.
func (c *Controller) Close() {
	if c.mirror != nil {
		c.mirror.Close()
	}
}

func (c *Controller) persist(m chat.Message) {
	if c.mirror == nil {
		return
	}
	c.mirror.Enqueue(m)
}

func (c *Controller) acknowledge(stored chat.Message) {
	if c.conv.Acknowledge(stored.ID, stored.CreatedAt) {
		c.notify()
	}
}

func (c *Controller) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	st := c.stateLocked()
	for _, ch := range c.watchers {
		offer(ch, st)
	}
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(st)
	}
}

// offer replaces any unread state in ch with st.
func offer(ch chan State, st State) {
	select {
	case ch <- st:
		return
	default:
	}

	select {
	case <-ch:
	default:
	}

	select {
	case ch <- st:
	default:
	}
}
