package ui

import "github.com/charmbracelet/lipgloss"

var (
	accent  = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#34D399"}
	muted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	danger  = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	warn    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	inertBg = lipgloss.AdaptiveColor{Light: "#E5E7EB", Dark: "#374151"}

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(accent)
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(accent)
	mutedStyle    = lipgloss.NewStyle().Foreground(muted)
	errorStyle    = lipgloss.NewStyle().Foreground(danger)
	noticeStyle   = lipgloss.NewStyle().Foreground(warn).Bold(true)
	statusStyle   = lipgloss.NewStyle().Foreground(accent)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	buttonStyle   = lipgloss.NewStyle().Padding(0, 2).Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(accent)
	disabledStyle = lipgloss.NewStyle().Padding(0, 2).Foreground(muted).Background(inertBg)
	bodyStyle     = lipgloss.NewStyle().Padding(1, 2)
)
