package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dataDir := t.TempDir()

	cfg, err := Load("", dataDir)
	require.NoError(t, err)

	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, "local", cfg.UserID)
	assert.Equal(t, ProviderGemini, cfg.Gateway.Provider)
	assert.Equal(t, 30*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, BackendJSONFile, cfg.Storage.Backend)
	assert.Equal(t, 50, cfg.Storage.HistoryLimit)
	assert.Equal(t, 500*time.Millisecond, cfg.Storage.PollInterval)
	assert.Equal(t, "ai_chat", cfg.Storage.Firestore.Collection)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.InDelta(t, 0.7, cfg.Gateway.Generation.Temperature, 0.0001)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
user_id: ada
gateway:
  provider: openai
  timeout: 5s
  history_turns: 6
  openai:
    model: gpt-4o
  generation:
    temperature: 0.2
storage:
  backend: sqlite
  history_limit: 20
server:
  addr: 127.0.0.1:9000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, dir)
	require.NoError(t, err)

	assert.Equal(t, "ada", cfg.UserID)
	assert.Equal(t, ProviderOpenAI, cfg.Gateway.Provider)
	assert.Equal(t, 5*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 6, cfg.Gateway.HistoryTurns)
	assert.Equal(t, "gpt-4o", cfg.Gateway.OpenAI.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Gateway.OpenAI.APIKeyEnv)
	assert.InDelta(t, 0.2, cfg.Gateway.Generation.Temperature, 0.0001)
	assert.Equal(t, int32(40), cfg.Gateway.Generation.TopK)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, 20, cfg.Storage.HistoryLimit)
	assert.Equal(t, filepath.Join(dir, "mentor.db"), cfg.SQLitePath())
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, dir, cfg.DataDir)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: redis\n"), 0o644))

	_, err := Load(path, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.backend")
}

func TestSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.UserID = "grace"
	cfg.Gateway.Provider = ProviderCanned
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path, dir)
	require.NoError(t, err)
	assert.Equal(t, "grace", loaded.UserID)
	assert.Equal(t, ProviderCanned, loaded.Gateway.Provider)
}
