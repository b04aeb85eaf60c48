// Package styles provides shared lipgloss styles for CLI and TUI components.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Tokyo Night color palette.
var (
	ColorGreen  = lipgloss.Color("#9ece6a")
	ColorYellow = lipgloss.Color("#e0af68")
	ColorBlue   = lipgloss.Color("#7aa2f7")
	ColorRed    = lipgloss.Color("#f7768e")
	ColorGray   = lipgloss.Color("#565f89")
	ColorWhite  = lipgloss.Color("#c0caf5")
)

// Banner ASCII art for the header.
const Banner = `
 ╔╦╗╔╦╗╔═╗  ┌─┐┬ ┬┌─┐┌┬┐
  ║║ ║ ╠╣   │  ├─┤├─┤ │
 ═╩╝ ╩ ╚    └─┘┴ ┴┴ ┴ ┴ `

// BannerStyle styles the ASCII art banner.
var BannerStyle = lipgloss.NewStyle().
	Foreground(ColorBlue).
	Bold(true)

// AuthorStyle styles message author names.
var AuthorStyle = lipgloss.NewStyle().
	Foreground(ColorBlue).
	Bold(true)

// SelfStyle styles the author name of the current user.
var SelfStyle = lipgloss.NewStyle().
	Foreground(ColorGreen).
	Bold(true)

// TimestampStyle styles message timestamps.
var TimestampStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// PendingStyle styles messages that are not yet confirmed by the server.
var PendingStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// FailedStyle styles messages that could not be sent.
var FailedStyle = lipgloss.NewStyle().
	Foreground(ColorRed)

// UnreadStyle styles unread counters.
var UnreadStyle = lipgloss.NewStyle().
	Foreground(ColorYellow).
	Bold(true)

// DividerStyle styles horizontal dividers.
var DividerStyle = lipgloss.NewStyle().
	Foreground(ColorGray)
