// Package sqlite implements chat.Store on a local SQLite database using
// gorm and the pure-Go glebarez driver.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/hay-kot/mentor/internal/core/chat"
)

const defaultPollInterval = 500 * time.Millisecond

// messageRow is one persisted message. Seq breaks timestamp ties.
type messageRow struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    string    `gorm:"size:128;not null;uniqueIndex:idx_user_message;index:idx_user_created"`
	MessageID string    `gorm:"size:64;not null;uniqueIndex:idx_user_message"`
	Content   string    `gorm:"not null"`
	Sender    string    `gorm:"size:16;not null"`
	Category  string    `gorm:"size:16"`
	CreatedAt time.Time `gorm:"not null;index:idx_user_created"`
}

func (messageRow) TableName() string { return "chat_messages" }

// Store is a gorm-backed chat.Store.
type Store struct {
	db       *gorm.DB
	interval time.Duration
	now      func() time.Time
}

// Open opens (creating if needed) the database at path and migrates the
// schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&messageRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{
		db:       db,
		interval: defaultPollInterval,
		now:      time.Now,
	}, nil
}

// WithPollInterval sets how often subscriptions query for changes.
func (s *Store) WithPollInterval(d time.Duration) *Store {
	if d > 0 {
		s.interval = d
	}
	return s
}

// WithClock sets the clock used for store timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Close releases the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Append implements chat.Store.
func (s *Store) Append(ctx context.Context, userID string, m chat.Message) (chat.Message, error) {
	if err := chat.CheckAppend(userID, m); err != nil {
		return chat.Message{}, err
	}

	row := messageRow{
		UserID:    userID,
		MessageID: m.ID,
		Content:   m.Content,
		Sender:    string(m.Sender),
		Category:  string(m.Category),
		CreatedAt: s.now().UTC(),
	}

	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}

	var stored messageRow
	if err := db.Where("user_id = ? AND message_id = ?", userID, m.ID).Take(&stored).Error; err != nil {
		return chat.Message{}, fmt.Errorf("read back message: %w", err)
	}

	return stored.message()
}

// Subscribe implements chat.Store by polling.
func (s *Store) Subscribe(ctx context.Context, userID string, limit int) (<-chan chat.Snapshot, error) {
	if err := chat.ValidateUserID(userID); err != nil {
		return nil, err
	}
	limit = chat.NormalizeLimit(limit)

	return chat.Poll(ctx, s.interval, func(ctx context.Context) ([]chat.Message, error) {
		return s.Recent(ctx, userID, limit)
	}), nil
}

// Recent returns the last limit messages for userID, oldest first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]chat.Message, error) {
	var rows []messageRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Order("seq desc").
		Limit(chat.NormalizeLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	slices.Reverse(rows)

	out := make([]chat.Message, 0, len(rows))
	for _, r := range rows {
		m, err := r.message()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r messageRow) message() (chat.Message, error) {
	sender, err := chat.ParseSender(r.Sender)
	if err != nil {
		return chat.Message{}, fmt.Errorf("message %s: %w", r.MessageID, err)
	}
	category, err := chat.ParseCategory(r.Category)
	if err != nil {
		return chat.Message{}, fmt.Errorf("message %s: %w", r.MessageID, err)
	}

	return chat.Message{
		ID:        r.MessageID,
		Content:   r.Content,
		Sender:    sender,
		Category:  category,
		CreatedAt: r.CreatedAt,
	}, nil
}
