// Package tui implements the Bubble Tea chat interface for mentor.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/styles"
)

// Tokyo Night color palette.
var (
	colorGreen  = styles.ColorGreen
	colorYellow = styles.ColorYellow
	colorBlue   = styles.ColorBlue
	colorGray   = styles.ColorGray
	colorWhite  = styles.ColorWhite
	colorRed    = lipgloss.Color("#f7768e")
	colorPurple = lipgloss.Color("#bb9af7")
	colorCyan   = lipgloss.Color("#7dcfff")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue).
			PaddingLeft(1)

	tabStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			Padding(0, 1)

	tabActiveStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true).
			Underline(true).
			Padding(0, 1)

	userNameStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	mentorNameStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true)

	timeStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	userTextStyle = lipgloss.NewStyle().
			Foreground(colorWhite).
			PaddingLeft(2)

	pendingStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			PaddingLeft(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			PaddingLeft(1)

	suggestionStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			PaddingLeft(3)

	suggestionActiveStyle = lipgloss.NewStyle().
				Foreground(colorBlue).
				PaddingLeft(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			PaddingLeft(1)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(colorBlue)

	bannerStyle = styles.BannerStyle.
			PaddingLeft(1).
			PaddingBottom(1)
)

// categoryStyles colors the category badge on each message.
var categoryStyles = map[chat.Category]lipgloss.Style{
	chat.CategoryHealth:  lipgloss.NewStyle().Foreground(colorGreen),
	chat.CategoryLegal:   lipgloss.NewStyle().Foreground(colorPurple),
	chat.CategoryCareer:  lipgloss.NewStyle().Foreground(colorYellow),
	chat.CategorySupport: lipgloss.NewStyle().Foreground(colorCyan),
	chat.CategoryGeneral: lipgloss.NewStyle().Foreground(colorGray),
}

// Icons and symbols.
const (
	iconDot    = "•"
	iconArrow  = "›"
	iconCursor = "▸"
)
