package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/gateway/canned"
	"github.com/hay-kot/mentor/internal/gateway/remote"
)

func TestReply_Success(t *testing.T) {
	var got chat.Request
	gw := chat.GatewayFunc(func(ctx context.Context, req chat.Request) (string, error) {
		got = req
		return "See a doctor if it persists.", nil
	})
	srv := newTestServer(t, gw, nil)

	for _, path := range []string{"/api/gemini", "/api/reply"} {
		t.Run(path, func(t *testing.T) {
			rec := do(t, srv.Handler(), http.MethodPost, path, remote.ReplyRequest{Message: "  I have a headache  "})
			require.Equal(t, http.StatusOK, rec.Code)

			body := decode[remote.ReplyResponse](t, rec)
			assert.Equal(t, "See a doctor if it persists.", body.Response)
			assert.Equal(t, "I have a headache", got.Query)
			assert.Equal(t, chat.CategoryHealth, got.Category)
		})
	}
}

func TestReply_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    any
		err     error
		status  int
		message string
		code    chat.ErrorKind
		details string
	}{
		{
			name:    "missing message",
			body:    map[string]string{},
			status:  http.StatusBadRequest,
			message: remote.MsgMessageRequired,
			code:    chat.KindInvalidInput,
		},
		{
			name:    "blank message",
			body:    remote.ReplyRequest{Message: "   "},
			status:  http.StatusBadRequest,
			message: remote.MsgMessageRequired,
			code:    chat.KindInvalidInput,
		},
		{
			name:    "unconfigured",
			body:    remote.ReplyRequest{Message: "hi"},
			err:     chat.Unconfigured("gemini", "API key not configured"),
			status:  http.StatusInternalServerError,
			message: remote.MsgUnconfigured,
			code:    chat.KindUnconfigured,
		},
		{
			name:    "invalid input",
			body:    remote.ReplyRequest{Message: "hi"},
			err:     chat.InvalidInput("openai", "prompt too long"),
			status:  http.StatusBadRequest,
			message: remote.MsgFailed,
			code:    chat.KindInvalidInput,
			details: "prompt too long",
		},
		{
			name:    "untyped upstream",
			body:    remote.ReplyRequest{Message: "hi"},
			err:     errors.New("connection reset"),
			status:  http.StatusInternalServerError,
			message: remote.MsgFailed,
			code:    chat.KindUpstream,
			details: "connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := chat.GatewayFunc(func(context.Context, chat.Request) (string, error) {
				return "unused", tt.err
			})
			srv := newTestServer(t, gw, nil)

			rec := do(t, srv.Handler(), http.MethodPost, "/api/gemini", tt.body)
			require.Equal(t, tt.status, rec.Code)

			body := decode[remote.ErrorResponse](t, rec)
			assert.Equal(t, tt.message, body.Error)
			assert.Equal(t, string(tt.code), body.Code)
			if tt.details != "" {
				assert.Contains(t, body.Details, tt.details)
			}
		})
	}
}

func TestReply_Timeout(t *testing.T) {
	gw := chat.GatewayFunc(func(ctx context.Context, _ chat.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	srv := New(Options{
		Config:         testServerConfig(),
		Gateway:        gw,
		GatewayTimeout: 20 * time.Millisecond,
		Logger:         discard(),
	})

	rec := do(t, srv.Handler(), http.MethodPost, "/api/gemini", remote.ReplyRequest{Message: "hi"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decode[remote.ErrorResponse](t, rec)
	assert.Equal(t, string(chat.KindUpstream), body.Code)
	assert.Contains(t, body.Details, "timed out")
}

// The remote gateway speaking to this server must reproduce each error kind.
func TestReply_RemoteRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		gw    chat.Gateway
		reply string
		want  error
	}{
		{
			name:  "canned reply",
			gw:    canned.New(0),
			reply: canned.New(0).Match("hello there"),
		},
		{
			name: "unconfigured",
			gw: chat.GatewayFunc(func(context.Context, chat.Request) (string, error) {
				return "", chat.Unconfigured("gemini", "API key not configured")
			}),
			want: chat.ErrUnconfigured,
		},
		{
			name: "upstream",
			gw: chat.GatewayFunc(func(context.Context, chat.Request) (string, error) {
				return "", errors.New("model overloaded")
			}),
			want: chat.ErrUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(newTestServer(t, tt.gw, nil).Handler())
			defer ts.Close()

			client := remote.New(ts.URL+"/api/gemini", time.Second)
			reply, err := client.Complete(context.Background(), chat.Request{Query: "hello there"})

			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.reply, reply)
		})
	}
}
