package chat

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

var ErrDuplicateMessage = errors.New("message already in conversation")

// Conversation is the ordered, append-only log of messages for one session.
// Order is insertion order and never changes once a message is appended.
// It is safe for concurrent use; readers always receive copies.
type Conversation struct {
	mu       sync.RWMutex
	messages []Message
	index    map[string]int
	version  uint64
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{index: make(map[string]int)}
}

// Append adds m to the end of the conversation.
func (c *Conversation) Append(m Message) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index[m.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMessage, m.ID)
	}

	c.index[m.ID] = len(c.messages)
	c.messages = append(c.messages, m)
	c.version++
	return nil
}

// Acknowledge replaces the placeholder timestamp of message id with the
// store-assigned one. Position is unchanged. It returns false when the
// message is no longer in the conversation.
func (c *Conversation) Acknowledge(id string, createdAt time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok {
		return false
	}

	c.messages[i].CreatedAt = createdAt
	c.messages[i].Pending = false
	c.version++
	return true
}

// Snapshot returns a copy of all messages in order.
func (c *Conversation) Snapshot() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.messages)
}

// Last returns a copy of the final n messages. n <= 0 returns nil.
func (c *Conversation) Last(n int) []Message {
	if n <= 0 {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if n > len(c.messages) {
		n = len(c.messages)
	}
	return slices.Clone(c.messages[len(c.messages)-n:])
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Version increases on every mutation.
func (c *Conversation) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Reset empties the conversation.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = nil
	c.index = make(map[string]int)
	c.version++
}

// Replace swaps the contents for msgs, typically history read back from a
// store. Invalid messages are rejected and duplicates keep their first
// occurrence.
func (c *Conversation) Replace(msgs []Message) error {
	index := make(map[string]int, len(msgs))
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("replace conversation: %w", err)
		}
		if _, ok := index[m.ID]; ok {
			continue
		}
		index[m.ID] = len(out)
		out = append(out, m)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = out
	c.index = index
	c.version++
	return nil
}
