package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayError_Is(t *testing.T) {
	err := fmt.Errorf("calling model: %w", Unconfigured("gemini", "GEMINI_API_KEY is not set"))

	assert.ErrorIs(t, err, ErrUnconfigured)
	assert.NotErrorIs(t, err, ErrUpstream)
	assert.Equal(t, KindUnconfigured, KindOf(err))
	assert.Contains(t, err.Error(), "unconfigured (gemini): GEMINI_API_KEY is not set")
}

func TestAsGatewayError(t *testing.T) {
	assert.Nil(t, AsGatewayError("op", nil))

	cause := errors.New("connection refused")
	ge := AsGatewayError("remote", cause)
	require.NotNil(t, ge)
	assert.Equal(t, KindUpstream, ge.Kind)
	assert.ErrorIs(t, ge, cause)

	ge = AsGatewayError("remote", context.DeadlineExceeded)
	assert.Equal(t, KindUpstream, ge.Kind)
	assert.Contains(t, ge.Error(), "timed out")

	typed := InvalidInput("remote", "query is empty")
	assert.Same(t, typed, AsGatewayError("other", typed))
}

func TestValidateQuery(t *testing.T) {
	assert.NoError(t, ValidateQuery("op", Request{Query: "hi"}))
	assert.ErrorIs(t, ValidateQuery("op", Request{Query: "  "}), ErrInvalidInput)
}

func TestTurnsFrom(t *testing.T) {
	assert.Nil(t, TurnsFrom(nil))

	turns := TurnsFrom([]Message{
		{Sender: SenderUser, Content: "hi"},
		{Sender: SenderAssistant, Content: "hello"},
	})
	assert.Equal(t, []Turn{
		{Sender: SenderUser, Content: "hi"},
		{Sender: SenderAssistant, Content: "hello"},
	}, turns)
}
