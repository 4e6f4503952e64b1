// Package remote is a chat.Gateway that forwards queries to another mentor
// server (or any service speaking the same JSON contract) over HTTP.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hay-kot/mentor/internal/core/chat"
)

const op = "remote"

// Error messages written by the server for each failure kind.
const (
	MsgMessageRequired = "Message is required"
	MsgUnconfigured    = "API key not configured"
	MsgFailed          = "Failed to process request"
)

// ReplyRequest is the request body of the reply endpoint.
type ReplyRequest struct {
	Message string `json:"message"`
}

// ReplyResponse is the success body.
type ReplyResponse struct {
	Response string `json:"response"`
}

// ErrorResponse is the failure body. Code carries the gateway error kind.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Gateway posts each query to URL. Prior turns are not sent; the contract
// carries a single message.
type Gateway struct {
	url    string
	client *resty.Client
}

// New creates a Gateway for url. A zero timeout leaves the request bounded
// only by the caller's context.
func New(url string, timeout time.Duration) *Gateway {
	client := resty.New().
		SetHeader("User-Agent", "mentor-remote/1.0").
		SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &Gateway{
		url:    strings.TrimSpace(url),
		client: client,
	}
}

// Complete implements chat.Gateway.
func (g *Gateway) Complete(ctx context.Context, req chat.Request) (string, error) {
	if err := chat.ValidateQuery(op, req); err != nil {
		return "", err
	}
	if g.url == "" {
		return "", chat.Unconfigured(op, "remote url not configured")
	}

	var (
		ok     ReplyResponse
		failed ErrorResponse
	)

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(ReplyRequest{Message: req.Query}).
		SetResult(&ok).
		SetError(&failed).
		Post(g.url)
	if err != nil {
		return "", chat.Upstream(op, fmt.Errorf("post %s: %w", g.url, err))
	}

	if resp.IsError() {
		return "", responseError(resp.StatusCode(), failed)
	}

	if strings.TrimSpace(ok.Response) == "" {
		return "", chat.Upstream(op, errors.New("response body has no reply"))
	}
	return ok.Response, nil
}

func responseError(status int, body ErrorResponse) error {
	msg := body.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	if body.Details != "" {
		msg += ": " + body.Details
	}
	cause := fmt.Errorf("status %d: %s", status, msg)

	kind := chat.ErrorKind(body.Code)
	switch kind {
	case chat.KindUnconfigured, chat.KindInvalidInput, chat.KindUpstream:
	default:
		kind = chat.KindUpstream
		if status >= 400 && status < 500 {
			kind = chat.KindInvalidInput
		}
	}

	return &chat.GatewayError{Kind: kind, Op: op, Err: cause}
}
