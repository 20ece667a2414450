package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorPurple = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StylePurple = lipgloss.NewStyle().Foreground(ColorPurple)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleFg     = lipgloss.NewStyle().Foreground(ColorFg)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

func StatusStyle(s domain.TaskStatus) lipgloss.Style {
	switch s {
	case domain.TaskOverdue:
		return StyleRed
	case domain.TaskInProgress:
		return StyleYellow
	case domain.TaskScheduled:
		return StyleBlue
	case domain.TaskCompleted:
		return StyleGreen
	default:
		return StyleDim
	}
}

// StatusIndicator renders a colored dot and the status name.
func StatusIndicator(s domain.TaskStatus) string {
	return StatusStyle(s).Render("● " + strings.ReplaceAll(string(s), "_", " "))
}

func PriorityLabel(p domain.Priority) string {
	switch p {
	case domain.PriorityUrgent:
		return StyleRed.Render("urgent")
	case domain.PriorityHigh:
		return StyleYellow.Render("high")
	case domain.PriorityLow:
		return StyleDim.Render("low")
	default:
		return StyleFg.Render(string(p))
	}
}

func OutcomeLabel(o domain.CompletionOutcome) string {
	switch o {
	case domain.OutcomeLate:
		return StyleRed.Render(string(o))
	case domain.OutcomeEarly:
		return StyleBlue.Render(string(o))
	default:
		return StyleGreen.Render(string(o))
	}
}

// Header renders an upper-cased section title over a rule.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", lipgloss.Width(upper))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

func Dim(text string) string { return StyleDim.Render(text) }

func Bold(text string) string { return StyleBold.Render(text) }

func Warn(text string) string { return StyleYellow.Render("! " + text) }
