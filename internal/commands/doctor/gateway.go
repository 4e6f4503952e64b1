package doctor

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/core/config"
	"github.com/hay-kot/mentor/internal/gateway"
	"github.com/hay-kot/mentor/internal/gateway/gemini"
)

const pingQuery = "Reply with the single word: ok"

// GatewayCheck verifies the reply provider is configured. With ping set it
// also sends one short query.
type GatewayCheck struct {
	config *config.Config
	ping   bool
}

// NewGatewayCheck creates a gateway check.
func NewGatewayCheck(cfg *config.Config, ping bool) *GatewayCheck {
	return &GatewayCheck{config: cfg, ping: ping}
}

func (c *GatewayCheck) Name() string {
	return "Gateway"
}

func (c *GatewayCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if c.config == nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "Config loaded",
			Status: StatusFail,
			Detail: "configuration not loaded",
		})
		return result
	}

	provider := c.config.Gateway.Provider
	providerItem := CheckItem{Label: "Provider", Status: StatusPass, Detail: provider}
	if provider == config.ProviderCanned {
		providerItem.Status = StatusWarn
		providerItem.Detail = "canned replies only"
	}
	result.Items = append(result.Items, providerItem)

	if item, ok := c.credentials(); ok {
		result.Items = append(result.Items, item)
		if item.Status == StatusFail {
			return result
		}
	}

	gw, err := gateway.New(ctx, c.config, zerolog.Nop())
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "Client",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	if !c.ping {
		return result
	}

	result.Items = append(result.Items, c.ask(ctx, gw))
	return result
}

// credentials reports on the API key for providers that need one.
func (c *GatewayCheck) credentials() (CheckItem, bool) {
	var key, env string
	switch c.config.Gateway.Provider {
	case config.ProviderGemini:
		if c.config.Gateway.Gemini.Backend == gemini.BackendVertex {
			return CheckItem{}, false
		}
		key, env = c.config.GeminiAPIKey(), c.config.Gateway.Gemini.APIKeyEnv
	case config.ProviderOpenAI:
		key, env = c.config.OpenAIAPIKey(), c.config.Gateway.OpenAI.APIKeyEnv
	default:
		return CheckItem{}, false
	}

	item := CheckItem{Label: "API key", Status: StatusPass}
	if key == "" {
		item.Status = StatusFail
		item.Detail = "not set"
		if env != "" {
			item.Detail = "not set (checked $" + env + ")"
		}
	}
	return item, true
}

func (c *GatewayCheck) ask(ctx context.Context, gw chat.Gateway) CheckItem {
	item := CheckItem{Label: "Ping reply"}

	timeout := c.config.Gateway.Timeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	reply, err := gw.Complete(ctx, chat.Request{Query: pingQuery, Category: chat.CategoryGeneral})
	if err != nil {
		item.Status = StatusFail
		item.Detail = err.Error()
		var ge *chat.GatewayError
		if errors.As(err, &ge) {
			item.Detail = string(ge.Kind) + ": " + err.Error()
		}
		return item
	}

	item.Status = StatusPass
	item.Detail = truncate(reply, 60)
	return item
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
