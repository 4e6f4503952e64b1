package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Turn is a prior exchange passed to a gateway as context.
type Turn struct {
	Sender  Sender
	Content string
}

// Request is a single call to a Gateway.
type Request struct {
	Query    string
	Category Category
	History  []Turn
}

// Gateway produces one reply for a user query.
type Gateway interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, req Request) (string, error)

func (f GatewayFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// TurnsFrom converts messages into gateway context turns.
func TurnsFrom(msgs []Message) []Turn {
	if len(msgs) == 0 {
		return nil
	}

	turns := make([]Turn, len(msgs))
	for i, m := range msgs {
		turns[i] = Turn{Sender: m.Sender, Content: m.Content}
	}
	return turns
}

// ErrorKind classifies gateway failures.
type ErrorKind string

const (
	KindUnconfigured ErrorKind = "unconfigured"
	KindInvalidInput ErrorKind = "invalid_input"
	KindUpstream     ErrorKind = "upstream_failure"
)

// Sentinels for errors.Is; they match any GatewayError of the same kind.
var (
	ErrUnconfigured = &GatewayError{Kind: KindUnconfigured}
	ErrInvalidInput = &GatewayError{Kind: KindInvalidInput}
	ErrUpstream     = &GatewayError{Kind: KindUpstream}
)

// GatewayError is the typed failure returned by gateways.
type GatewayError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *GatewayError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(" (")
		b.WriteString(e.Op)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Is matches another GatewayError with the same Kind.
func (e *GatewayError) Is(target error) bool {
	t, ok := target.(*GatewayError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Unconfigured reports missing credentials or setup.
func Unconfigured(op, msg string) error {
	return &GatewayError{Kind: KindUnconfigured, Op: op, Err: errors.New(msg)}
}

// InvalidInput reports a request the gateway refused to send.
func InvalidInput(op, msg string) error {
	return &GatewayError{Kind: KindInvalidInput, Op: op, Err: errors.New(msg)}
}

// Upstream wraps a transport, timeout or provider failure.
func Upstream(op string, err error) error {
	return &GatewayError{Kind: KindUpstream, Op: op, Err: err}
}

// AsGatewayError returns err as a *GatewayError. Untyped errors, including
// deadline expiry, become upstream failures.
func AsGatewayError(op string, err error) *GatewayError {
	if err == nil {
		return nil
	}

	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge
	}

	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("request timed out: %w", err)
	}
	return &GatewayError{Kind: KindUpstream, Op: op, Err: err}
}

// KindOf returns the error kind of err, treating untyped errors as upstream.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return AsGatewayError("", err).Kind
}

// ValidateQuery rejects empty queries with an InvalidInput error.
func ValidateQuery(op string, req Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return InvalidInput(op, "query is empty")
	}
	return nil
}
