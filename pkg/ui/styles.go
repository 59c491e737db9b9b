package ui

import "github.com/charmbracelet/lipgloss"

var (
	brandColor  = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#14B8A6"}
	userColor   = lipgloss.Color("#00BCBD")
	mutedColor  = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	errorColor  = lipgloss.Color("196")
	okColor     = lipgloss.Color("42")
	bubbleWidth = 0.8
)

type styles struct {
	Header        lipgloss.Style
	Session       lipgloss.Style
	Greeting      lipgloss.Style
	QuickReply    lipgloss.Style
	QuickSelected lipgloss.Style
	UserBubble    lipgloss.Style
	BotBubble     lipgloss.Style
	BotMarker     lipgloss.Style
	Meta          lipgloss.Style
	Typing        lipgloss.Style
	Status        lipgloss.Style
	Error         lipgloss.Style
	Success       lipgloss.Style
	Launcher      lipgloss.Style
	InputBox      lipgloss.Style
	Title         lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Header:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(brandColor).Padding(0, 1),
		Session:       lipgloss.NewStyle().Foreground(mutedColor),
		Greeting:      lipgloss.NewStyle().Bold(true).Align(lipgloss.Center).MarginTop(1).MarginBottom(1),
		QuickReply:    lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(mutedColor),
		QuickSelected: lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(brandColor).Bold(true),
		UserBubble:    lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("#FFFFFF")).Background(userColor),
		BotBubble:     lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(mutedColor),
		BotMarker:     lipgloss.NewStyle().Bold(true).Foreground(brandColor),
		Meta:          lipgloss.NewStyle().Foreground(mutedColor),
		Typing:        lipgloss.NewStyle().Foreground(brandColor),
		Status:        lipgloss.NewStyle().Foreground(mutedColor).Italic(true),
		Error:         lipgloss.NewStyle().Foreground(errorColor),
		Success:       lipgloss.NewStyle().Foreground(okColor),
		Launcher:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(brandColor).Padding(0, 2),
		InputBox:      lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true, false, false, false).BorderForeground(mutedColor),
		Title:         lipgloss.NewStyle().Bold(true).Underline(true),
	}
}
