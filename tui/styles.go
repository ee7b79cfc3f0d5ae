package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// ANSI 256 palette; it renders the same locally and over the bastion.
var (
	colorText   = lipgloss.Color("252")
	colorMuted  = lipgloss.Color("244")
	colorFrame  = lipgloss.Color("238")
	colorAccent = lipgloss.Color("75")
	colorOK     = lipgloss.Color("78")
	colorFail   = lipgloss.Color("203")
	colorAlert  = lipgloss.Color("221")
	colorYou    = lipgloss.Color("177")
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

var (
	StyleDimmed  = fg(colorMuted)
	StyleBold    = fg(colorText).Bold(true)
	StyleSuccess = fg(colorOK)
	StyleError   = fg(colorFail).Bold(true)
	StyleWarning = fg(colorAlert)
	StyleTitle   = fg(colorAccent).Bold(true).MarginBottom(1)
	StylePrompt  = fg(colorAccent).Bold(true)

	// Transcript speakers: the user, and the relay or agent answering.
	styleYou = fg(colorYou).Bold(true)
	styleBot = fg(colorOK).Bold(true)

	styleFrame    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorFrame)
	styleTabOn    = fg(colorAccent).Bold(true).Padding(0, 1)
	styleTabOff   = fg(colorMuted).Padding(0, 1)
	styleSelected = fg(colorAccent).Bold(true)
	styleFooter   = fg(colorFrame)
	styleKey      = fg(colorAccent).Bold(true)
)
