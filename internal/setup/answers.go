// Package setup collects first-run answers and turns them into a config file.
package setup

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/core/config"
	"github.com/hay-kot/mentor/internal/gateway/gemini"
)

// Keys accepted by ParseSetValues and Answers.Apply.
const (
	KeyUserID    = "user_id"
	KeyProvider  = "provider"
	KeyBackend   = "backend"
	KeyProject   = "project"
	KeyAPIKeyEnv = "api_key_env"
	KeyServer    = "server"
)

var (
	Providers = []string{config.ProviderGemini, config.ProviderOpenAI, config.ProviderRemote, config.ProviderCanned}
	Backends  = []string{config.BackendJSONFile, config.BackendSQLite, config.BackendFirestore, config.BackendMemory}
)

// Answers are the choices made during setup.
type Answers struct {
	UserID   string
	Provider string
	Backend  string

	// Project is the Google Cloud project for Firestore or Vertex AI.
	Project string

	// APIKeyEnv names the environment variable holding the provider key.
	APIKeyEnv string

	// Server is the remote reply endpoint for the remote provider.
	Server string
}

// Defaults derives answers from an existing configuration.
func Defaults(cfg *config.Config) Answers {
	a := Answers{
		UserID:   cfg.UserID,
		Provider: cfg.Gateway.Provider,
		Backend:  cfg.Storage.Backend,
		Project:  cfg.Storage.Firestore.ProjectID,
		Server:   cfg.Gateway.Remote.URL,
	}

	switch cfg.Gateway.Provider {
	case config.ProviderGemini:
		a.APIKeyEnv = cfg.Gateway.Gemini.APIKeyEnv
		if a.Project == "" {
			a.Project = cfg.Gateway.Gemini.Project
		}
	case config.ProviderOpenAI:
		a.APIKeyEnv = cfg.Gateway.OpenAI.APIKeyEnv
	}

	return a
}

// Apply sets the answers named in values.
func (a *Answers) Apply(values map[string]string) error {
	for key, value := range values {
		switch key {
		case KeyUserID:
			a.UserID = value
		case KeyProvider:
			a.Provider = value
		case KeyBackend:
			a.Backend = value
		case KeyProject:
			a.Project = value
		case KeyAPIKeyEnv:
			a.APIKeyEnv = value
		case KeyServer:
			a.Server = value
		default:
			return fmt.Errorf("unknown setting %q", key)
		}
	}
	return nil
}

// Validate reports the first answer that cannot produce a working config.
func (a Answers) Validate() error {
	if strings.TrimSpace(a.UserID) == "" {
		return fmt.Errorf("%s is required", KeyUserID)
	}
	if err := chat.ValidateUserID(strings.TrimSpace(a.UserID)); err != nil {
		return fmt.Errorf("%s: %w", KeyUserID, err)
	}
	if !slices.Contains(Providers, a.Provider) {
		return fmt.Errorf("%s must be one of %s", KeyProvider, strings.Join(Providers, ", "))
	}
	if !slices.Contains(Backends, a.Backend) {
		return fmt.Errorf("%s must be one of %s", KeyBackend, strings.Join(Backends, ", "))
	}
	if a.Backend == config.BackendFirestore && strings.TrimSpace(a.Project) == "" {
		return fmt.Errorf("%s is required for the firestore backend", KeyProject)
	}
	if a.Provider == config.ProviderRemote && strings.TrimSpace(a.Server) == "" {
		return fmt.Errorf("%s is required for the remote provider", KeyServer)
	}
	return nil
}

// ApplyTo writes the answers into cfg.
func (a Answers) ApplyTo(cfg *config.Config) {
	cfg.UserID = strings.TrimSpace(a.UserID)
	cfg.Gateway.Provider = a.Provider
	cfg.Storage.Backend = a.Backend

	switch a.Provider {
	case config.ProviderGemini:
		if a.APIKeyEnv != "" {
			cfg.Gateway.Gemini.APIKeyEnv = a.APIKeyEnv
		}
		if cfg.Gateway.Gemini.Backend == gemini.BackendVertex && cfg.Gateway.Gemini.Project == "" {
			cfg.Gateway.Gemini.Project = a.Project
		}
	case config.ProviderOpenAI:
		if a.APIKeyEnv != "" {
			cfg.Gateway.OpenAI.APIKeyEnv = a.APIKeyEnv
		}
	case config.ProviderRemote:
		cfg.Gateway.Remote.URL = a.Server
	}

	if a.Backend == config.BackendFirestore {
		cfg.Storage.Firestore.ProjectID = a.Project
	}
}

// ParseSetValues parses --set flag values into a map.
// Format: "name=value".
func ParseSetValues(sets []string) (map[string]string, error) {
	result := make(map[string]string, len(sets))

	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set format %q: expected name=value", s)
		}

		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid --set format %q: empty name", s)
		}

		result[name] = strings.TrimSpace(value)
	}

	return result, nil
}
