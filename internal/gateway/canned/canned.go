// Package canned is an offline chat.Gateway that answers from a fixed
// keyword table after a short delay. It is used in tests, demos and when no
// model provider is configured.
package canned

import (
	"context"
	"strings"
	"time"

	"github.com/hay-kot/mentor/internal/core/chat"
)

// DefaultDelay simulates model latency.
const DefaultDelay = time.Second

// Reply maps a keyword to a response.
type Reply struct {
	Keyword  string
	Response string
}

// DefaultFallback is used when no keyword matches.
const DefaultFallback = "I'm here to help with questions about health, education, careers, business, your rights or safety. What would you like to know more about?"

// DefaultReplies are checked in order; the first keyword contained in the
// lowercased query wins. Short keywords like "hi" also match inside longer
// words.
var DefaultReplies = []Reply{
	{"hello", "Hello! How can I help you today?"},
	{"hi", "Hi there! I'm your AI mentor. What would you like to learn about today?"},
	{"help", "I can help with health, education, career guidance and more. What do you need a hand with?"},
	{"health", "Looking after your health matters. Eat well, stay active and get enough rest. Do you have a specific health question?"},
	{"education", "Education opens doors. Which topics would you like to learn about?"},
	{"career", "Let's explore career paths that fit your interests and skills. What kind of work interests you?"},
	{"business", "Starting a business takes planning and commitment. What kind of business are you thinking about?"},
	{"rights", "Knowing your rights is important. Everyone has rights to education, health and safety. Is there an area you'd like to know more about?"},
	{"safety", "Your safety comes first. Stay aware of your surroundings, keep emergency contacts close and ask for help when you need it. Do you have a specific concern?"},
	{"marriage", "Child marriage is illegal in many countries. You have the right to finish your education and make your own choices about marriage. Would you like to know more about your rights?"},
	{"period", "Menstrual health is important and regular periods are normal. If you have pain or irregular cycles, a healthcare provider can help. Do you have a specific question?"},
	{"sad", "I'm sorry you're feeling sad. Ups and downs are normal. Would you like to talk about what's bothering you? Sharing with someone you trust can help."},
	{"scared", "It's okay to feel scared sometimes, and your feelings are valid. Can you tell me more about what's making you feel this way? I'm here to listen."},
}

// Gateway answers from a keyword table.
type Gateway struct {
	Replies  []Reply
	Fallback string
	Delay    time.Duration
}

// New returns a Gateway with the default table and the given delay.
func New(delay time.Duration) *Gateway {
	return &Gateway{
		Replies:  DefaultReplies,
		Fallback: DefaultFallback,
		Delay:    delay,
	}
}

// Complete implements chat.Gateway.
func (g *Gateway) Complete(ctx context.Context, req chat.Request) (string, error) {
	if err := chat.ValidateQuery("canned", req); err != nil {
		return "", err
	}

	if g.Delay > 0 {
		timer := time.NewTimer(g.Delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	return g.Match(req.Query), nil
}

// Match returns the reply for query without waiting.
func (g *Gateway) Match(query string) string {
	lower := strings.ToLower(query)
	for _, r := range g.Replies {
		if strings.Contains(lower, r.Keyword) {
			return r.Response
		}
	}
	return g.Fallback
}
