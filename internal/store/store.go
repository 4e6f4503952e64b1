// Package store opens the chat.Store backend named by the configuration.
package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/core/config"
	"github.com/hay-kot/mentor/internal/store/firestore"
	"github.com/hay-kot/mentor/internal/store/jsonfile"
	"github.com/hay-kot/mentor/internal/store/memory"
	"github.com/hay-kot/mentor/internal/store/sqlite"
)

// Opened is a store plus the function that releases it.
type Opened struct {
	chat.Store
	close func() error
}

// Close releases the backend. It is safe to call on backends that hold
// nothing open.
func (o *Opened) Close() error {
	if o.close == nil {
		return nil
	}
	return o.close()
}

// Open returns the configured backend.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Opened, error) {
	s := cfg.Storage
	log = log.With().Str("component", "store").Str("backend", s.Backend).Logger()

	switch s.Backend {
	case config.BackendMemory:
		log.Debug().Msg("store opened")
		return &Opened{Store: memory.New()}, nil

	case config.BackendJSONFile:
		dir := cfg.ChatsDir()
		log.Debug().Str("dir", dir).Msg("store opened")
		return &Opened{Store: jsonfile.NewChatStore(dir).WithPollInterval(s.PollInterval)}, nil

	case config.BackendSQLite:
		path := cfg.SQLitePath()
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("path", path).Msg("store opened")
		db.WithPollInterval(s.PollInterval)
		return &Opened{Store: db, close: db.Close}, nil

	case config.BackendFirestore:
		fs, err := firestore.New(ctx, s.Firestore.ProjectID, s.Firestore.Collection)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("project", s.Firestore.ProjectID).Msg("store opened")
		return &Opened{Store: fs, close: fs.Close}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", s.Backend)
	}
}
