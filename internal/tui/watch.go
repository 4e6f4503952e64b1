package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hay-kot/mentor/internal/mentor"
)

// stateMsg carries a controller state change.
type stateMsg struct {
	state mentor.State
}

// watchClosedMsg is sent when the state channel closes.
type watchClosedMsg struct{}

// submitDoneMsg is sent when a Submit call returns.
type submitDoneMsg struct {
	result mentor.Result
}

// waitForState returns a command that blocks for the next state change.
// The model re-issues it after every stateMsg.
func waitForState(states <-chan mentor.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-states
		if !ok {
			return watchClosedMsg{}
		}
		return stateMsg{state: st}
	}
}

// submit runs Submit off the update loop. The controller reports progress
// through the watch channel while this is pending.
func submit(ctx context.Context, ctl *mentor.Controller, text string) tea.Cmd {
	return func() tea.Msg {
		return submitDoneMsg{result: ctl.Submit(ctx, text)}
	}
}
