package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/hay-kot/criterio"

	"github.com/hay-kot/mentor/internal/core/chat"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration.
// Unlike Validate(), this checks the preamble template, URLs, generation
// ranges, and file access. Problems are returned as criterio.FieldErrors.
func (c *Config) ValidateDeep(configPath string) error {
	var errs criterio.FieldErrorsBuilder

	errs = c.validateFileAccess(errs, configPath)
	if err := chat.ValidateUserID(c.UserID); err != nil {
		errs = errs.Append("user_id", err)
	}
	errs = c.validateGateway(errs)
	errs = c.validateGeneration(errs)
	errs = c.validateStorage(errs)
	errs = c.validateServer(errs)

	return errs.ToError()
}

// Warnings returns non-fatal issues, such as a provider with no API key.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	switch c.Gateway.Provider {
	case ProviderGemini:
		if c.Gateway.Gemini.Backend != "vertex" && c.GeminiAPIKey() == "" {
			warnings = append(warnings, ValidationWarning{
				Category: "Gateway",
				Item:     "gateway.gemini.api_key",
				Message:  fmt.Sprintf("no API key set and $%s is empty; replies will fail as unconfigured", c.Gateway.Gemini.APIKeyEnv),
			})
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey() == "" {
			warnings = append(warnings, ValidationWarning{
				Category: "Gateway",
				Item:     "gateway.openai.api_key",
				Message:  fmt.Sprintf("no API key set and $%s is empty; replies will fail as unconfigured", c.Gateway.OpenAI.APIKeyEnv),
			})
		}
	case ProviderCanned:
		warnings = append(warnings, ValidationWarning{
			Category: "Gateway",
			Item:     "gateway.provider",
			Message:  "canned provider answers from a fixed keyword table",
		})
	}

	if c.Storage.Backend == BackendMemory {
		warnings = append(warnings, ValidationWarning{
			Category: "Storage",
			Item:     "storage.backend",
			Message:  "memory backend does not survive restarts",
		})
	}

	if c.Gateway.HistoryTurns > c.Storage.HistoryLimit {
		warnings = append(warnings, ValidationWarning{
			Category: "Gateway",
			Item:     "gateway.history_turns",
			Message:  fmt.Sprintf("exceeds storage.history_limit (%d); only loaded messages are sent", c.Storage.HistoryLimit),
		})
	}

	return warnings
}

// validateFileAccess checks the config file and data directory.
func (c *Config) validateFileAccess(errs criterio.FieldErrorsBuilder, configPath string) criterio.FieldErrorsBuilder {
	if configPath != "" {
		info, err := os.Stat(configPath)
		switch {
		case err == nil && info.IsDir():
			errs = errs.Append("config", fmt.Errorf("%s is a directory, not a file", configPath))
		case err != nil && !os.IsNotExist(err):
			errs = errs.Append("config", fmt.Errorf("cannot access %s: %w", configPath, err))
		}
	}

	if c.DataDir == "" {
		return errs.Append("data_dir", fmt.Errorf("data directory cannot be empty"))
	}

	if info, err := os.Stat(c.DataDir); err == nil {
		if !info.IsDir() {
			errs = errs.Append("data_dir", fmt.Errorf("%s exists but is not a directory", c.DataDir))
		}
	} else if !os.IsNotExist(err) {
		errs = errs.Append("data_dir", fmt.Errorf("cannot access %s: %w", c.DataDir, err))
	}

	return errs
}

func (c *Config) validateGateway(errs criterio.FieldErrorsBuilder) criterio.FieldErrorsBuilder {
	g := c.Gateway

	if !isValidProvider(g.Provider) {
		errs = errs.Append("gateway.provider", fmt.Errorf("invalid provider %q, use gemini, openai, remote, or canned", g.Provider))
	}
	if g.Timeout < 0 {
		errs = errs.Append("gateway.timeout", fmt.Errorf("cannot be negative"))
	}
	if g.HistoryTurns < 0 {
		errs = errs.Append("gateway.history_turns", fmt.Errorf("cannot be negative"))
	}

	switch g.Provider {
	case ProviderGemini:
		switch g.Gemini.Backend {
		case "gemini":
		case "vertex":
			if g.Gemini.Project == "" {
				errs = errs.Append("gateway.gemini.project", fmt.Errorf("required for the vertex backend"))
			}
			if g.Gemini.Location == "" {
				errs = errs.Append("gateway.gemini.location", fmt.Errorf("required for the vertex backend"))
			}
		default:
			errs = errs.Append("gateway.gemini.backend", fmt.Errorf("invalid backend %q, use gemini or vertex", g.Gemini.Backend))
		}
		if g.Gemini.BaseURL != "" {
			errs = appendURL(errs, "gateway.gemini.base_url", g.Gemini.BaseURL)
		}
	case ProviderOpenAI:
		if g.OpenAI.BaseURL != "" {
			errs = appendURL(errs, "gateway.openai.base_url", g.OpenAI.BaseURL)
		}
	case ProviderRemote:
		if g.Remote.URL == "" {
			errs = errs.Append("gateway.remote.url", fmt.Errorf("required for the remote provider"))
		} else {
			errs = appendURL(errs, "gateway.remote.url", g.Remote.URL)
		}
	case ProviderCanned:
		if g.Canned.Delay < 0 {
			errs = errs.Append("gateway.canned.delay", fmt.Errorf("cannot be negative"))
		}
	}

	return errs
}

func (c *Config) validateGeneration(errs criterio.FieldErrorsBuilder) criterio.FieldErrorsBuilder {
	g := c.Gateway.Generation

	if err := c.Prompt().Check(); err != nil {
		errs = errs.Append("gateway.generation.preamble", fmt.Errorf("template error: %w", err))
	}
	if g.Temperature < 0 || g.Temperature > 2 {
		errs = errs.Append("gateway.generation.temperature", fmt.Errorf("must be between 0 and 2, got %v", g.Temperature))
	}
	if g.TopP < 0 || g.TopP > 1 {
		errs = errs.Append("gateway.generation.top_p", fmt.Errorf("must be between 0 and 1, got %v", g.TopP))
	}
	if g.TopK < 0 {
		errs = errs.Append("gateway.generation.top_k", fmt.Errorf("cannot be negative"))
	}
	if g.MaxOutputTokens <= 0 {
		errs = errs.Append("gateway.generation.max_output_tokens", fmt.Errorf("must be positive"))
	}

	return errs
}

func (c *Config) validateStorage(errs criterio.FieldErrorsBuilder) criterio.FieldErrorsBuilder {
	s := c.Storage

	if !isValidBackend(s.Backend) {
		errs = errs.Append("storage.backend", fmt.Errorf("invalid backend %q, use memory, jsonfile, sqlite, or firestore", s.Backend))
	}
	if s.HistoryLimit <= 0 {
		errs = errs.Append("storage.history_limit", fmt.Errorf("must be positive"))
	}
	if s.QueueSize <= 0 {
		errs = errs.Append("storage.queue_size", fmt.Errorf("must be positive"))
	}
	if s.Timeout < 0 {
		errs = errs.Append("storage.timeout", fmt.Errorf("cannot be negative"))
	}
	if s.PollInterval <= 0 {
		errs = errs.Append("storage.poll_interval", fmt.Errorf("must be positive"))
	}

	switch s.Backend {
	case BackendFirestore:
		if s.Firestore.ProjectID == "" {
			errs = errs.Append("storage.firestore.project_id", fmt.Errorf("required for the firestore backend"))
		}
	case BackendSQLite:
		dir := filepath.Dir(c.SQLitePath())
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			errs = errs.Append("storage.sqlite.path", fmt.Errorf("%s is not a directory", dir))
		}
	}

	return errs
}

func (c *Config) validateServer(errs criterio.FieldErrorsBuilder) criterio.FieldErrorsBuilder {
	if c.Server.Addr == "" {
		errs = errs.Append("server.addr", fmt.Errorf("cannot be empty"))
	}
	if c.Server.ReadTimeout < 0 {
		errs = errs.Append("server.read_timeout", fmt.Errorf("cannot be negative"))
	}
	if c.Server.MaxSessions < 0 {
		errs = errs.Append("server.max_sessions", fmt.Errorf("cannot be negative"))
	}
	if c.Server.SessionIdle < 0 {
		errs = errs.Append("server.session_idle", fmt.Errorf("cannot be negative"))
	}
	if c.Server.WriteTimeout < 0 {
		errs = errs.Append("server.write_timeout", fmt.Errorf("cannot be negative"))
	}
	return errs
}

func appendURL(errs criterio.FieldErrorsBuilder, field, raw string) criterio.FieldErrorsBuilder {
	u, err := url.Parse(raw)
	if err != nil {
		return errs.Append(field, fmt.Errorf("invalid URL: %w", err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errs.Append(field, fmt.Errorf("URL must use http or https, got %q", raw))
	}
	return errs
}
