// Package chat defines the conversation domain: messages, categories,
// the reply gateway contract and the persistence contract.
package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyContent    = errors.New("message content is empty")
	ErrInvalidSender   = errors.New("invalid sender")
	ErrInvalidCategory = errors.New("invalid category")
	ErrMissingID       = errors.New("message id is empty")
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// senderLegacyAI is how older persisted records name the assistant.
const senderLegacyAI = "ai"

// ParseSender converts a stored or wire value into a Sender.
func ParseSender(s string) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(SenderUser):
		return SenderUser, nil
	case string(SenderAssistant), senderLegacyAI:
		return SenderAssistant, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSender, s)
	}
}

// IsValid reports whether s is one of the known senders.
func (s Sender) IsValid() bool {
	return s == SenderUser || s == SenderAssistant
}

// Message is a single conversation turn. Content, Sender and Category are
// fixed at creation; CreatedAt may be replaced once by the store's timestamp.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Category  Category  `json:"category"`
	CreatedAt time.Time `json:"created_at"`

	// Pending is true while CreatedAt is a local placeholder awaiting the
	// store's acknowledgement.
	Pending bool `json:"pending,omitempty"`
}

// NewMessage builds a message with a fresh id. The content is trimmed and
// must not be empty.
func NewMessage(sender Sender, content string, category Category, now time.Time) (Message, error) {
	m := Message{
		ID:        uuid.NewString(),
		Content:   strings.TrimSpace(content),
		Sender:    sender,
		Category:  category,
		CreatedAt: now,
	}

	if err := m.Validate(); err != nil {
		return Message{}, err
	}

	return m, nil
}

// Validate checks the message against the closed sender and category sets.
func (m Message) Validate() error {
	if m.ID == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(m.Content) == "" {
		return ErrEmptyContent
	}
	if !m.Sender.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidSender, m.Sender)
	}
	if !m.Category.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, m.Category)
	}
	return nil
}

// FromUser reports whether the message was written by the user.
func (m Message) FromUser() bool {
	return m.Sender == SenderUser
}
