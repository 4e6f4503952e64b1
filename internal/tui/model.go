package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/mentor"
)

// Layout rows outside the conversation viewport: title, tabs, status,
// input, help.
const chromeHeight = 6

// filterAll shows every category.
const filterAll = "all"

// Filters are the category tabs in display order.
var Filters = []string{
	filterAll,
	string(chat.CategoryHealth),
	string(chat.CategoryLegal),
	string(chat.CategoryCareer),
	string(chat.CategorySupport),
}

// Suggestions are offered on an empty conversation.
var Suggestions = []string{
	"Tell me about health",
	"Career advice",
	"My rights",
	"I'm feeling sad",
}

// Options configures the chat model.
type Options struct {
	// Title is shown in the header.
	Title string
	// Banner shows the ASCII banner above an empty conversation.
	Banner bool
}

// Model is the Bubble Tea chat model. It drives a mentor.Controller and
// renders the states it publishes.
type Model struct {
	ctx    context.Context
	ctl    *mentor.Controller
	states <-chan mentor.State
	opts   Options

	state mentor.State

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	md       *markdown
	keys     keyMap

	filter     int
	suggestion int // -1 when no idea is selected
	width      int
	height     int
	ready      bool
	follow     bool
	quitting   bool
}

// New creates a chat model for ctl. State changes are read until ctx ends.
func New(ctx context.Context, ctl *mentor.Controller, opts Options) Model {
	if opts.Title == "" {
		opts.Title = "AI Mentor"
	}

	ti := textinput.New()
	ti.Placeholder = "Ask about health, your rights, careers, or how you feel"
	ti.Prompt = iconArrow + " "
	ti.PromptStyle = spinnerStyle
	ti.CharLimit = 4000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		ctx:        ctx,
		ctl:        ctl,
		states:     ctl.Watch(ctx),
		opts:       opts,
		state:      ctl.State(),
		input:      ti,
		spinner:    sp,
		md:         newMarkdown(80),
		keys:       defaultKeyMap(),
		suggestion: -1,
		follow:     true,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForState(m.states))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case stateMsg:
		m.setState(msg.state)
		return m, waitForState(m.states)

	case watchClosedMsg:
		return m, nil

	case submitDoneMsg:
		// The watch channel coalesces, so read the final state directly.
		m.setState(m.ctl.State())
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.ctl.Cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.state.Status == mentor.StatusSending {
			return m, nil
		}
		m.input.Reset()
		m.suggestion = -1
		m.follow = true
		return m, submit(m.ctx, m.ctl, text)

	case key.Matches(msg, m.keys.Cancel):
		m.ctl.Cancel()
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		m.ctl.Clear()
		m.setState(m.ctl.State())
		return m, nil

	case key.Matches(msg, m.keys.NextFilter):
		m.filter = (m.filter + 1) % len(Filters)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.PrevFilter):
		m.filter = (m.filter + len(Filters) - 1) % len(Filters)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.PrevIdea, m.keys.NextIdea) && m.showSuggestions():
		step := 1
		if key.Matches(msg, m.keys.PrevIdea) {
			step = len(Suggestions) - 1
		}
		if m.suggestion < 0 {
			m.suggestion = 0
		} else {
			m.suggestion = (m.suggestion + step) % len(Suggestions)
		}
		m.input.SetValue(Suggestions[m.suggestion])
		m.input.CursorEnd()
		return m, nil

	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown, m.keys.PrevIdea, m.keys.NextIdea):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.follow = m.viewport.AtBottom()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.input.Width = max(width-4, 10)
	m.md.resize(width)

	vpHeight := max(height-chromeHeight, 3)
	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.refresh()
}

func (m *Model) setState(st mentor.State) {
	if len(st.Messages) > len(m.state.Messages) {
		m.follow = true
	}
	m.state = st
	m.refresh()
}

// refresh re-renders the conversation into the viewport.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(renderConversation(m.md, m.Visible(), m.width))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

// Visible returns the messages that pass the active category filter.
func (m Model) Visible() []chat.Message {
	return chat.Filter(m.state.Messages, Filters[m.filter])
}

// Filter returns the active category tab.
func (m Model) Filter() string {
	return Filters[m.filter]
}

func (m Model) showSuggestions() bool {
	return len(m.state.Messages) == 0
}
