// Package styles provides shared lipgloss styles for CLI and TUI components.
package styles

import (
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Tokyo Night color palette.
var (
	ColorGreen  = lipgloss.Color("#9ece6a")
	ColorYellow = lipgloss.Color("#e0af68")
	ColorBlue   = lipgloss.Color("#7aa2f7")
	ColorGray   = lipgloss.Color("#565f89")
	ColorWhite  = lipgloss.Color("#c0caf5")
)

// Banner ASCII art for the header.
const Banner = `
 ╔╦╗╔═╗╔╗╔╔╦╗╔═╗╦═╗
 ║║║║╣ ║║║ ║ ║ ║╠╦╝
 ╩ ╩╚═╝╝╚╝ ╩ ╚═╝╩╚═`

// BannerStyle styles the ASCII art banner.
var BannerStyle = lipgloss.NewStyle().
	Foreground(ColorBlue).
	Bold(true)

// UserStyle styles the user's name in printed transcripts.
var UserStyle = lipgloss.NewStyle().
	Foreground(ColorGreen).
	Bold(true)

// MentorStyle styles the assistant's name in printed transcripts.
var MentorStyle = lipgloss.NewStyle().
	Foreground(ColorBlue).
	Bold(true)

// ContentStyle styles message text.
var ContentStyle = lipgloss.NewStyle().
	Foreground(ColorWhite)

// DividerStyle styles horizontal dividers and metadata.
var DividerStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// FormTheme returns the huh theme used by interactive prompts.
func FormTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = t.Focused.Title.Foreground(ColorBlue).Bold(true)
	t.Focused.Description = t.Focused.Description.Foreground(ColorGray)
	t.Focused.SelectSelector = t.Focused.SelectSelector.Foreground(ColorBlue)
	t.Focused.SelectedOption = t.Focused.SelectedOption.Foreground(ColorGreen)
	t.Focused.ErrorIndicator = t.Focused.ErrorIndicator.Foreground(ColorYellow)
	t.Focused.ErrorMessage = t.Focused.ErrorMessage.Foreground(ColorYellow)
	t.Blurred.Title = t.Blurred.Title.Foreground(ColorGray)

	return t
}
