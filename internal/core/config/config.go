// Package config handles configuration loading and validation for mentor.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/gateway/prompt"
)

// Gateway providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderRemote = "remote"
	ProviderCanned = "canned"
)

// Storage backends.
const (
	BackendMemory    = "memory"
	BackendJSONFile  = "jsonfile"
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

// Config holds the application configuration.
type Config struct {
	UserID  string        `yaml:"user_id"`
	Gateway GatewayConfig `yaml:"gateway"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
	DataDir string        `yaml:"-"` // set by caller, not from config file
}

// GatewayConfig selects and configures the reply provider.
type GatewayConfig struct {
	Provider string        `yaml:"provider"`
	Timeout  time.Duration `yaml:"timeout"`
	// HistoryTurns is how many prior messages accompany each query.
	HistoryTurns int              `yaml:"history_turns"`
	Gemini       GeminiConfig     `yaml:"gemini"`
	OpenAI       OpenAIConfig     `yaml:"openai"`
	Remote       RemoteConfig     `yaml:"remote"`
	Canned       CannedConfig     `yaml:"canned"`
	Generation   GenerationConfig `yaml:"generation"`
}

type GeminiConfig struct {
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	Backend   string `yaml:"backend"` // gemini, vertex
	Project   string `yaml:"project"`
	Location  string `yaml:"location"`
	BaseURL   string `yaml:"base_url"`
}

type OpenAIConfig struct {
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Stream    bool   `yaml:"stream"`
}

type RemoteConfig struct {
	URL string `yaml:"url"`
}

type CannedConfig struct {
	Delay time.Duration `yaml:"delay"`
}

// GenerationConfig is passed through to the model untouched.
type GenerationConfig struct {
	Preamble        string  `yaml:"preamble"`
	Greeting        string  `yaml:"greeting"`
	Temperature     float32 `yaml:"temperature"`
	TopP            float32 `yaml:"top_p"`
	TopK            int32   `yaml:"top_k"`
	MaxOutputTokens int32   `yaml:"max_output_tokens"`
}

// StorageConfig selects where conversation history is kept.
type StorageConfig struct {
	Backend      string          `yaml:"backend"`
	HistoryLimit int             `yaml:"history_limit"`
	Timeout      time.Duration   `yaml:"timeout"`
	QueueSize    int             `yaml:"queue_size"`
	PollInterval time.Duration   `yaml:"poll_interval"`
	SQLite       SQLiteConfig    `yaml:"sqlite"`
	Firestore    FirestoreConfig `yaml:"firestore"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type FirestoreConfig struct {
	ProjectID  string `yaml:"project_id"`
	Collection string `yaml:"collection"`
}

// ServerConfig configures `mentor serve`.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	// MaxSessions caps per-user sessions held in memory.
	MaxSessions int `yaml:"max_sessions"`
	// SessionIdle closes sessions unused for this long.
	SessionIdle time.Duration `yaml:"session_idle"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	params := prompt.DefaultParams()

	return Config{
		UserID: "local",
		Gateway: GatewayConfig{
			Provider: ProviderGemini,
			Timeout:  30 * time.Second,
			Gemini: GeminiConfig{
				APIKeyEnv: "GEMINI_API_KEY",
				Model:     "gemini-2.0-flash",
				Backend:   "gemini",
			},
			OpenAI: OpenAIConfig{
				APIKeyEnv: "OPENAI_API_KEY",
				Model:     "gpt-4o-mini",
			},
			Remote: RemoteConfig{
				URL: "http://localhost:8080/api/gemini",
			},
			Canned: CannedConfig{
				Delay: time.Second,
			},
			Generation: GenerationConfig{
				Preamble:        prompt.DefaultPreamble,
				Greeting:        prompt.DefaultGreeting,
				Temperature:     params.Temperature,
				TopP:            params.TopP,
				TopK:            params.TopK,
				MaxOutputTokens: params.MaxOutputTokens,
			},
		},
		Storage: StorageConfig{
			Backend:      BackendJSONFile,
			HistoryLimit: 50,
			Timeout:      10 * time.Second,
			QueueSize:    64,
			PollInterval: 500 * time.Millisecond,
			Firestore: FirestoreConfig{
				Collection: "ai_chat",
			},
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			ReadTimeout:    15 * time.Second,
			MaxSessions:    1000,
			SessionIdle:    30 * time.Minute,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.UserID == "" {
		c.UserID = defaults.UserID
	}
	if c.Gateway.Provider == "" {
		c.Gateway.Provider = defaults.Gateway.Provider
	}
	if c.Gateway.Timeout == 0 {
		c.Gateway.Timeout = defaults.Gateway.Timeout
	}
	if c.Gateway.Gemini.APIKeyEnv == "" {
		c.Gateway.Gemini.APIKeyEnv = defaults.Gateway.Gemini.APIKeyEnv
	}
	if c.Gateway.Gemini.Model == "" {
		c.Gateway.Gemini.Model = defaults.Gateway.Gemini.Model
	}
	if c.Gateway.Gemini.Backend == "" {
		c.Gateway.Gemini.Backend = defaults.Gateway.Gemini.Backend
	}
	if c.Gateway.OpenAI.APIKeyEnv == "" {
		c.Gateway.OpenAI.APIKeyEnv = defaults.Gateway.OpenAI.APIKeyEnv
	}
	if c.Gateway.OpenAI.Model == "" {
		c.Gateway.OpenAI.Model = defaults.Gateway.OpenAI.Model
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}
	if c.Storage.HistoryLimit == 0 {
		c.Storage.HistoryLimit = defaults.Storage.HistoryLimit
	}
	if c.Storage.Timeout == 0 {
		c.Storage.Timeout = defaults.Storage.Timeout
	}
	if c.Storage.QueueSize == 0 {
		c.Storage.QueueSize = defaults.Storage.QueueSize
	}
	if c.Storage.PollInterval == 0 {
		c.Storage.PollInterval = defaults.Storage.PollInterval
	}
	if c.Storage.Firestore.Collection == "" {
		c.Storage.Firestore.Collection = defaults.Storage.Firestore.Collection
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = defaults.Server.AllowedOrigins
	}
	if c.Server.MaxSessions == 0 {
		c.Server.MaxSessions = defaults.Server.MaxSessions
	}
	if c.Server.SessionIdle == 0 {
		c.Server.SessionIdle = defaults.Server.SessionIdle
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if err := chat.ValidateUserID(c.UserID); err != nil {
		return fmt.Errorf("user_id %q: %w", c.UserID, err)
	}

	if !isValidProvider(c.Gateway.Provider) {
		return fmt.Errorf("gateway.provider %q is not one of gemini, openai, remote, canned", c.Gateway.Provider)
	}

	if !isValidBackend(c.Storage.Backend) {
		return fmt.Errorf("storage.backend %q is not one of memory, jsonfile, sqlite, firestore", c.Storage.Backend)
	}

	if c.Gateway.Timeout < 0 {
		return fmt.Errorf("gateway.timeout cannot be negative")
	}

	if c.Gateway.HistoryTurns < 0 {
		return fmt.Errorf("gateway.history_turns cannot be negative")
	}

	return nil
}

// GeminiAPIKey returns the configured key, falling back to the environment.
func (c *Config) GeminiAPIKey() string {
	return keyOrEnv(c.Gateway.Gemini.APIKey, c.Gateway.Gemini.APIKeyEnv)
}

// OpenAIAPIKey returns the configured key, falling back to the environment.
func (c *Config) OpenAIAPIKey() string {
	return keyOrEnv(c.Gateway.OpenAI.APIKey, c.Gateway.OpenAI.APIKeyEnv)
}

// ChatsDir returns the path of the JSON file store.
func (c *Config) ChatsDir() string {
	return filepath.Join(c.DataDir, "chats")
}

// SQLitePath returns the database path, defaulting into the data directory.
func (c *Config) SQLitePath() string {
	if c.Storage.SQLite.Path != "" {
		return c.Storage.SQLite.Path
	}
	return filepath.Join(c.DataDir, "mentor.db")
}

// Prompt returns the prompt builder described by the generation settings.
func (c *Config) Prompt() prompt.Builder {
	return prompt.Builder{
		Preamble: c.Gateway.Generation.Preamble,
		Greeting: c.Gateway.Generation.Greeting,
	}
}

// Params returns the generation parameters.
func (c *Config) Params() prompt.Params {
	g := c.Gateway.Generation
	return prompt.Params{
		Temperature:     g.Temperature,
		TopP:            g.TopP,
		TopK:            g.TopK,
		MaxOutputTokens: g.MaxOutputTokens,
	}
}

func keyOrEnv(key, env string) string {
	if key != "" {
		return key
	}
	if env == "" {
		return ""
	}
	return os.Getenv(env)
}

func isValidProvider(p string) bool {
	switch p {
	case ProviderGemini, ProviderOpenAI, ProviderRemote, ProviderCanned:
		return true
	default:
		return false
	}
}

func isValidBackend(b string) bool {
	switch b {
	case BackendMemory, BackendJSONFile, BackendSQLite, BackendFirestore:
		return true
	default:
		return false
	}
}
