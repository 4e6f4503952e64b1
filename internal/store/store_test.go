package store

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/core/config"
)

func TestOpen_LocalBackends(t *testing.T) {
	for _, backend := range []string{config.BackendMemory, config.BackendJSONFile, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.DataDir = t.TempDir()
			cfg.Storage.Backend = backend
			cfg.Storage.PollInterval = 10 * time.Millisecond

			ctx := context.Background()
			opened, err := Open(ctx, &cfg, zerolog.New(io.Discard))
			require.NoError(t, err)
			t.Cleanup(func() { _ = opened.Close() })

			m, err := chat.NewMessage(chat.SenderUser, "hello", chat.CategoryGeneral, time.Now())
			require.NoError(t, err)

			stored, err := opened.Append(ctx, "ada", m)
			require.NoError(t, err)
			assert.Equal(t, m.ID, stored.ID)

			msgs, err := chat.Latest(ctx, opened, "ada", 10)
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			assert.Equal(t, "hello", msgs[0].Content)
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	cfg.Storage.Backend = "redis"
	_, err := Open(context.Background(), &cfg, zerolog.New(io.Discard))
	assert.Error(t, err)

	cfg.Storage.Backend = config.BackendFirestore
	cfg.Storage.Firestore.ProjectID = ""
	_, err = Open(context.Background(), &cfg, zerolog.New(io.Discard))
	assert.Error(t, err)
}
