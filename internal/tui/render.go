package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/mentor/internal/core/chat"
)

// glamourGutter is the margin glamour adds on each side.
const glamourGutter = 2

// markdown renders assistant replies, caching output per message.
type markdown struct {
	width    int
	renderer *glamour.TermRenderer
	cache    map[string]string
}

func newMarkdown(width int) *markdown {
	md := &markdown{cache: make(map[string]string)}
	md.resize(width)
	return md
}

// resize rebuilds the renderer for a new wrap width and drops the cache.
func (md *markdown) resize(width int) {
	if width == md.width && md.renderer != nil {
		return
	}
	md.width = width
	md.cache = make(map[string]string)

	wrap := max(width-glamourGutter*2, 20)
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("tokyo-night"),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		md.renderer = nil
		return
	}
	md.renderer = renderer
}

// Render returns content as terminal markdown, falling back to plain text.
func (md *markdown) Render(id, content string) string {
	if out, ok := md.cache[id]; ok {
		return out
	}

	out := content
	if md.renderer != nil {
		if rendered, err := md.renderer.Render(content); err == nil {
			out = strings.Trim(rendered, "\n")
		}
	}

	md.cache[id] = out
	return out
}

// renderMessage formats a single message with its header line.
func renderMessage(md *markdown, m chat.Message, width int) string {
	var name string
	if m.Sender == chat.SenderUser {
		name = userNameStyle.Render("You")
	} else {
		name = mentorNameStyle.Render("Mentor")
	}

	header := fmt.Sprintf("%s %s %s", name, timeStyle.Render(iconDot), timeStyle.Render(m.CreatedAt.Local().Format("15:04")))
	if badge, ok := categoryStyles[m.Category]; ok && m.Category != chat.CategoryGeneral {
		header += " " + badge.Render("["+string(m.Category)+"]")
	}
	if m.Pending {
		header += " " + pendingStyle.Render("saving")
	}

	var body string
	if m.Sender == chat.SenderUser {
		body = userTextStyle.Width(max(width-2, 10)).Render(m.Content)
	} else {
		body = md.Render(m.ID, m.Content)
	}

	return lipgloss.JoinVertical(lipgloss.Left, " "+header, body)
}

// renderConversation renders msgs separated by blank lines.
func renderConversation(md *markdown, msgs []chat.Message, width int) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, renderMessage(md, m, width))
	}
	return strings.Join(parts, "\n\n")
}
