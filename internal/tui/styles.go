// Package tui implements the Bubble Tea TUI for dtfchat.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/dtfchat/internal/styles"
)

// Pane sizes.
const (
	channelPaneWidth = 34
	composerHeight   = 3
)

// Styles used for rendering the TUI.
var (
	// Title style for pane headers.
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.ColorBlue).
			PaddingLeft(1)

	// Selected channel style.
	selectedStyle = lipgloss.NewStyle().
			Foreground(styles.ColorBlue).
			Bold(true)

	// Normal item style (no color, uses terminal default).
	normalStyle = lipgloss.NewStyle()

	// Preview style for the last message under a channel title.
	previewStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray)

	// Typing indicator.
	typingStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray).
			Italic(true).
			PaddingLeft(1)

	// Pane borders.
	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(styles.ColorGray)

	focusedPaneStyle = paneStyle.
				BorderForeground(styles.ColorBlue)

	// Status line at the bottom of the screen.
	statusStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray).
			PaddingLeft(1)

	// Spinner style.
	spinnerStyle = lipgloss.NewStyle().
			Foreground(styles.ColorBlue)
)

// Notification styles.
var (
	toastErrorStyle = lipgloss.NewStyle().
			Foreground(styles.ColorRed).
			PaddingLeft(1)

	toastWarnStyle = lipgloss.NewStyle().
			Foreground(styles.ColorYellow).
			PaddingLeft(1)

	toastInfoStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGreen).
			PaddingLeft(1)
)

// Modal styles.
var (
	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(styles.ColorBlue).
			Padding(1, 2)

	modalTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.ColorWhite)

	modalHelpStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray).
			MarginTop(1)

	modalButtonStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(lipgloss.Color("#3b4261")).
				Foreground(lipgloss.Color("#a9b1d6"))

	modalButtonSelectedStyle = lipgloss.NewStyle().
					Padding(0, 1).
					Background(styles.ColorBlue).
					Foreground(lipgloss.Color("#1a1b26")).
					Bold(true)
)

// Icons and symbols.
const (
	iconDot     = "•"
	iconPending = "◌"
	iconFailed  = "✘"
)
