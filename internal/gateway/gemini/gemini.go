// Package gemini is a chat.Gateway backed by Google's Gemini models, either
// through the Gemini API or Vertex AI.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/gateway/prompt"
)

const op = "gemini"

const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"

	DefaultModel = "gemini-2.0-flash"
)

// Config selects the backend and model.
type Config struct {
	Backend  string
	APIKey   string
	Project  string
	Location string
	Model    string

	// BaseURL overrides the API endpoint.
	BaseURL string

	Prompt prompt.Builder
	Params prompt.Params
}

// Gateway calls GenerateContent once per query.
type Gateway struct {
	client  *genai.Client
	missing string
	model   string
	prompt  prompt.Builder
	params  prompt.Params
}

// New creates a Gateway. Missing credentials do not fail construction;
// every call then returns an unconfigured error.
func New(ctx context.Context, cfg Config) (*Gateway, error) {
	g := &Gateway{
		model:  cfg.Model,
		prompt: cfg.Prompt,
		params: cfg.Params,
	}
	if g.model == "" {
		g.model = DefaultModel
	}

	cc := &genai.ClientConfig{}
	switch cfg.Backend {
	case "", BackendGemini:
		if cfg.APIKey == "" {
			g.missing = "API key not configured"
			return g, nil
		}
		cc.APIKey = cfg.APIKey
		cc.Backend = genai.BackendGeminiAPI
	case BackendVertex:
		if cfg.Project == "" || cfg.Location == "" {
			g.missing = "vertex project and location are required"
			return g, nil
		}
		cc.Project = cfg.Project
		cc.Location = cfg.Location
		cc.Backend = genai.BackendVertexAI
	default:
		return nil, fmt.Errorf("unknown gemini backend %q", cfg.Backend)
	}

	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	g.client = client

	return g, nil
}

// Complete implements chat.Gateway.
func (g *Gateway) Complete(ctx context.Context, req chat.Request) (string, error) {
	if err := chat.ValidateQuery(op, req); err != nil {
		return "", err
	}
	if g.client == nil {
		return "", chat.Unconfigured(op, g.missing)
	}

	system, err := g.prompt.System(req)
	if err != nil {
		return "", chat.Unconfigured(op, err.Error())
	}

	res, err := g.client.Models.GenerateContent(ctx, g.model, Contents(g.prompt.Turns(req)), g.generateConfig(system))
	if err != nil {
		return "", chat.Upstream(op, fmt.Errorf("generate content: %w", err))
	}

	text := strings.TrimSpace(res.Text())
	if text == "" {
		return "", chat.Upstream(op, errors.New("model returned empty text"))
	}

	return text, nil
}

func (g *Gateway) generateConfig(system string) *genai.GenerateContentConfig {
	temp := g.params.Temperature
	topP := g.params.TopP
	topK := float32(g.params.TopK)

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: g.params.MaxOutputTokens,
	}
	if g.params.TopK > 0 {
		cfg.TopK = &topK
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return cfg
}

// Contents converts turns into genai contents, mapping the assistant to the
// model role.
func Contents(turns []chat.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.RoleUser
		if t.Sender == chat.SenderAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Content, role))
	}
	return contents
}
