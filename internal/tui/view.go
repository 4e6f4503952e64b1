package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/mentor"
	"github.com/hay-kot/mentor/internal/styles"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return statusStyle.Render(m.spinner.View() + " loading")
	}

	sections := []string{
		titleStyle.Render(m.opts.Title),
		m.tabsView(),
		m.bodyView(),
		m.statusView(),
		" " + m.input.View(),
		helpStyle.Render(HelpString(m.keys.ShortHelp(m.showSuggestions()))),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) tabsView() string {
	tabs := make([]string, len(Filters))
	for i, f := range Filters {
		label := strings.ToUpper(f[:1]) + f[1:]
		if i == m.filter {
			tabs[i] = tabActiveStyle.Render(label)
		} else {
			tabs[i] = tabStyle.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) bodyView() string {
	if !m.showSuggestions() {
		if len(m.Visible()) == 0 {
			return lipgloss.Place(m.viewport.Width, m.viewport.Height, lipgloss.Center, lipgloss.Center,
				statusStyle.Render("No "+m.Filter()+" messages yet"))
		}
		return m.viewport.View()
	}

	lines := []string{}
	if m.opts.Banner {
		lines = append(lines, bannerStyle.Render(styles.Banner))
	}
	lines = append(lines, statusStyle.Render("Try one of these:"))
	for i, s := range Suggestions {
		if i == m.suggestion {
			lines = append(lines, suggestionActiveStyle.Render(iconCursor+" "+s))
		} else {
			lines = append(lines, suggestionStyle.Render(s))
		}
	}

	return lipgloss.NewStyle().Height(m.viewport.Height).Render(strings.Join(lines, "\n"))
}

func (m Model) statusView() string {
	switch {
	case m.state.Status == mentor.StatusSending:
		return statusStyle.Render(m.spinner.View() + " Mentor is thinking…")
	case m.state.Err != nil:
		return errorStyle.Render(errorText(m.state.Err))
	default:
		return statusStyle.Render(countText(len(m.state.Messages)))
	}
}

// errorText describes a failed request for the status line.
func errorText(err error) string {
	switch chat.KindOf(err) {
	case chat.KindUnconfigured:
		return "Mentor is not configured: " + err.Error()
	case chat.KindInvalidInput:
		return "That message could not be sent: " + err.Error()
	default:
		return "Something went wrong, please try again: " + err.Error()
	}
}

func countText(n int) string {
	switch n {
	case 0:
		return "Start a conversation"
	case 1:
		return "1 message"
	default:
		return strconv.Itoa(n) + " messages"
	}
}
