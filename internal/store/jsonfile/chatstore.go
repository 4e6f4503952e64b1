package jsonfile

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hay-kot/mentor/internal/core/chat"
)

const defaultPollInterval = 500 * time.Millisecond

// record is the on-disk form of a message. Field names follow the
// persisted document layout: content, sender, timestamp, category.
type record struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}

// userFile holds every record for one user.
type userFile struct {
	UserID    string    `json:"user_id"`
	NextSeq   uint64    `json:"next_seq"`
	Records   []record  `json:"records"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatStore implements chat.Store using one JSON file per user. Writes take
// an exclusive flock so several processes can share the directory.
type ChatStore struct {
	dir      string
	interval time.Duration
	now      func() time.Time
	mu       sync.RWMutex
}

// NewChatStore creates a store rooted at dir
// (e.g., $XDG_DATA_HOME/mentor/chats).
func NewChatStore(dir string) *ChatStore {
	return &ChatStore{
		dir:      dir,
		interval: defaultPollInterval,
		now:      time.Now,
	}
}

// WithPollInterval sets how often subscriptions re-read the file.
func (s *ChatStore) WithPollInterval(d time.Duration) *ChatStore {
	if d > 0 {
		s.interval = d
	}
	return s
}

// WithClock sets the clock used for store timestamps.
func (s *ChatStore) WithClock(now func() time.Time) *ChatStore {
	s.now = now
	return s
}

// userPath returns the file path for a user. userID must already have
// passed chat.ValidateUserID, so it maps to exactly one file.
func (s *ChatStore) userPath(userID string) string {
	return filepath.Join(s.dir, userID+".json")
}

// withFileLock acquires a file lock, executes fn, then releases the lock.
func (s *ChatStore) withFileLock(userID string, lockType int, fn func() error) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create chats directory: %w", err)
	}

	f, err := os.OpenFile(s.userPath(userID)+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if err := syscall.Flock(int(f.Fd()), lockType); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN) //nolint:errcheck

	return fn()
}

// Append implements chat.Store.
func (s *ChatStore) Append(ctx context.Context, userID string, m chat.Message) (chat.Message, error) {
	if err := chat.CheckAppend(userID, m); err != nil {
		return chat.Message{}, err
	}
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var stored chat.Message
	err := s.withFileLock(userID, syscall.LOCK_EX, func() error {
		uf, err := s.load(userID)
		if err != nil {
			return err
		}

		for _, r := range uf.Records {
			if r.ID == m.ID {
				stored, err = r.message()
				return err
			}
		}

		uf.NextSeq++
		rec := record{
			ID:        m.ID,
			Seq:       uf.NextSeq,
			Content:   m.Content,
			Sender:    string(m.Sender),
			Category:  string(m.Category),
			Timestamp: s.now().UTC(),
		}
		uf.Records = append(uf.Records, rec)
		uf.UpdatedAt = rec.Timestamp

		if err := s.save(uf); err != nil {
			return err
		}

		stored, err = rec.message()
		return err
	})
	if err != nil {
		return chat.Message{}, err
	}

	return stored, nil
}

// Subscribe implements chat.Store by polling the user's file.
func (s *ChatStore) Subscribe(ctx context.Context, userID string, limit int) (<-chan chat.Snapshot, error) {
	if err := chat.ValidateUserID(userID); err != nil {
		return nil, err
	}
	limit = chat.NormalizeLimit(limit)

	return chat.Poll(ctx, s.interval, func(context.Context) ([]chat.Message, error) {
		return s.Recent(userID, limit)
	}), nil
}

// Recent returns the last limit messages ordered by timestamp then sequence.
func (s *ChatStore) Recent(userID string, limit int) ([]chat.Message, error) {
	if err := chat.ValidateUserID(userID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var recs []record
	err := s.withFileLock(userID, syscall.LOCK_SH, func() error {
		uf, err := s.load(userID)
		if err != nil {
			return err
		}
		recs = uf.Records
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(recs, func(a, b record) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})

	if limit > 0 && len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}

	out := make([]chat.Message, 0, len(recs))
	for _, r := range recs {
		m, err := r.message()
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", r.ID, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Users returns every user with a history file.
func (s *ChatStore) Users() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read chats directory: %w", err)
	}

	var users []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		users = append(users, strings.TrimSuffix(name, ".json"))
	}

	slices.Sort(users)
	return users, nil
}

func (r record) message() (chat.Message, error) {
	sender, err := chat.ParseSender(r.Sender)
	if err != nil {
		return chat.Message{}, err
	}
	category, err := chat.ParseCategory(r.Category)
	if err != nil {
		return chat.Message{}, err
	}

	return chat.Message{
		ID:        r.ID,
		Content:   r.Content,
		Sender:    sender,
		Category:  category,
		CreatedAt: r.Timestamp,
	}, nil
}

// load reads a user file from disk.
// Returns an empty file if it doesn't exist.
func (s *ChatStore) load(userID string) (userFile, error) {
	data, err := os.ReadFile(s.userPath(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return userFile{UserID: userID}, nil
		}
		return userFile{}, fmt.Errorf("read chat file: %w", err)
	}

	if len(data) == 0 {
		return userFile{UserID: userID}, nil
	}

	var uf userFile
	if err := json.Unmarshal(data, &uf); err != nil {
		return userFile{}, fmt.Errorf("parse chat file: %w", err)
	}

	return uf, nil
}

// save writes a user file to disk atomically.
func (s *ChatStore) save(uf userFile) error {
	data, err := json.MarshalIndent(uf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal chat file: %w", err)
	}

	path := s.userPath(uf.UserID)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
