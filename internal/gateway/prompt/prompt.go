// Package prompt turns a chat request into the ordered turns and system
// instruction sent to a language model.
package prompt

import (
	"fmt"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/pkg/tmpl"
)

const (
	DefaultPreamble = `You are an AI Mentor. You give clear, kind and practical guidance on health, legal rights, careers and emotional wellbeing.
Keep answers short and easy to follow. Use simple language and bullet points where they help.
If someone may be in danger, encourage them to contact local emergency services or a trusted adult.
You are not a doctor or lawyer; suggest a professional when a question needs one.`

	// IntroRequest opens the priming exchange that precedes every query.
	IntroRequest = "Please introduce yourself as my AI Mentor."

	DefaultGreeting = "Hello! I'm your AI Mentor. I can help with questions about health, your rights, careers, or just talk things through. What's on your mind?"
)

// Params are generation settings passed through to the provider.
type Params struct {
	Temperature     float32
	TopP            float32
	TopK            int32
	MaxOutputTokens int32
}

// DefaultParams mirror the settings the web client shipped with.
func DefaultParams() Params {
	return Params{
		Temperature:     0.7,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 1000,
	}
}

// Data is available to the preamble template.
type Data struct {
	Query    string
	Category string
}

// Builder renders system instructions and conversation turns.
type Builder struct {
	// Preamble is a template rendered with Data.
	Preamble string
	// Greeting is the assistant half of the priming exchange. Empty
	// disables priming.
	Greeting string
}

// Default returns a Builder with the stock preamble and greeting.
func Default() Builder {
	return Builder{Preamble: DefaultPreamble, Greeting: DefaultGreeting}
}

// System renders the preamble for req.
func (b Builder) System(req chat.Request) (string, error) {
	if b.Preamble == "" {
		return "", nil
	}

	out, err := tmpl.Render(b.Preamble, Data{Query: req.Query, Category: string(req.Category)})
	if err != nil {
		return "", fmt.Errorf("render preamble: %w", err)
	}
	return out, nil
}

// Turns returns the priming exchange, then req.History, then the query.
func (b Builder) Turns(req chat.Request) []chat.Turn {
	turns := make([]chat.Turn, 0, len(req.History)+3)
	if b.Greeting != "" {
		turns = append(turns,
			chat.Turn{Sender: chat.SenderUser, Content: IntroRequest},
			chat.Turn{Sender: chat.SenderAssistant, Content: b.Greeting},
		)
	}
	turns = append(turns, req.History...)
	return append(turns, chat.Turn{Sender: chat.SenderUser, Content: req.Query})
}

// Check renders the preamble against sample data so template errors
// surface at startup instead of on the first request.
func (b Builder) Check() error {
	_, err := b.System(chat.Request{Query: "sample", Category: chat.CategoryGeneral})
	return err
}
