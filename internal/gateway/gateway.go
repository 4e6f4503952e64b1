// Package gateway selects the chat.Gateway implementation named by the
// configuration.
package gateway

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/core/config"
	"github.com/hay-kot/mentor/internal/gateway/canned"
	"github.com/hay-kot/mentor/internal/gateway/gemini"
	"github.com/hay-kot/mentor/internal/gateway/openai"
	"github.com/hay-kot/mentor/internal/gateway/remote"
)

// New builds the configured gateway. Missing API keys are not an error
// here; the gateway reports them as unconfigured on each call.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (chat.Gateway, error) {
	g := cfg.Gateway
	log = log.With().Str("component", "gateway").Str("provider", g.Provider).Logger()

	switch g.Provider {
	case config.ProviderGemini:
		gw, err := gemini.New(ctx, gemini.Config{
			Backend:  g.Gemini.Backend,
			APIKey:   cfg.GeminiAPIKey(),
			Project:  g.Gemini.Project,
			Location: g.Gemini.Location,
			Model:    g.Gemini.Model,
			BaseURL:  g.Gemini.BaseURL,
			Prompt:   cfg.Prompt(),
			Params:   cfg.Params(),
		})
		if err != nil {
			return nil, err
		}
		log.Debug().Str("model", g.Gemini.Model).Str("backend", g.Gemini.Backend).Msg("gateway ready")
		return gw, nil

	case config.ProviderOpenAI:
		log.Debug().Str("model", g.OpenAI.Model).Bool("stream", g.OpenAI.Stream).Msg("gateway ready")
		return openai.New(openai.Config{
			APIKey:  cfg.OpenAIAPIKey(),
			BaseURL: g.OpenAI.BaseURL,
			Model:   g.OpenAI.Model,
			Stream:  g.OpenAI.Stream,
			Prompt:  cfg.Prompt(),
			Params:  cfg.Params(),
		}), nil

	case config.ProviderRemote:
		log.Debug().Str("url", g.Remote.URL).Msg("gateway ready")
		return remote.New(g.Remote.URL, g.Timeout), nil

	case config.ProviderCanned:
		log.Debug().Dur("delay", g.Canned.Delay).Msg("gateway ready")
		return canned.New(g.Canned.Delay), nil

	default:
		return nil, fmt.Errorf("unknown gateway provider %q", g.Provider)
	}
}
