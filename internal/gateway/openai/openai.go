// Package openai is a chat.Gateway for OpenAI-compatible chat completion
// endpoints.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/gateway/prompt"
)

const op = "openai"

const DefaultModel = "gpt-4o-mini"

// Config selects the endpoint and model.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	// Stream reads the reply incrementally; Complete still returns the
	// whole text.
	Stream bool

	Prompt prompt.Builder
	Params prompt.Params
}

// Gateway calls CreateChatCompletion once per query.
type Gateway struct {
	client *openai.Client
	cfg    Config
}

// New creates a Gateway. Without an API key every call returns an
// unconfigured error.
func New(cfg Config) *Gateway {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	g := &Gateway{cfg: cfg}
	if cfg.APIKey == "" {
		return g
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	g.client = openai.NewClientWithConfig(clientConfig)

	return g
}

// Complete implements chat.Gateway.
func (g *Gateway) Complete(ctx context.Context, req chat.Request) (string, error) {
	if err := chat.ValidateQuery(op, req); err != nil {
		return "", err
	}
	if g.client == nil {
		return "", chat.Unconfigured(op, "API key not configured")
	}

	messages, err := g.messages(req)
	if err != nil {
		return "", chat.Unconfigured(op, err.Error())
	}

	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Messages:    messages,
		Temperature: g.cfg.Params.Temperature,
		TopP:        g.cfg.Params.TopP,
		MaxTokens:   int(g.cfg.Params.MaxOutputTokens),
	}

	var text string
	if g.cfg.Stream {
		text, err = g.stream(ctx, request)
	} else {
		text, err = g.complete(ctx, request)
	}
	if err != nil {
		return "", classify(err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", chat.Upstream(op, errors.New("model returned empty text"))
	}
	return text, nil
}

func (g *Gateway) complete(ctx context.Context, request openai.ChatCompletionRequest) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *Gateway) stream(ctx context.Context, request openai.ChatCompletionRequest) (string, error) {
	request.Stream = true

	stream, err := g.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		return "", err
	}
	defer stream.Close() //nolint:errcheck

	var b strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
		for _, choice := range resp.Choices {
			b.WriteString(choice.Delta.Content)
		}
	}
}

func (g *Gateway) messages(req chat.Request) ([]openai.ChatCompletionMessage, error) {
	system, err := g.cfg.Prompt.System(req)
	if err != nil {
		return nil, err
	}

	turns := g.cfg.Prompt.Turns(req)
	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, t := range turns {
		role := openai.ChatMessageRoleUser
		if t.Sender == chat.SenderAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}

	return messages, nil
}

// classify maps provider errors onto gateway error kinds.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &chat.GatewayError{Kind: chat.KindUnconfigured, Op: op, Err: err}
		case http.StatusBadRequest:
			return &chat.GatewayError{Kind: chat.KindInvalidInput, Op: op, Err: err}
		}
	}
	return chat.Upstream(op, fmt.Errorf("chat completion: %w", err))
}
