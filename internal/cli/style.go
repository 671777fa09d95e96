package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/sourcekit/extmgr/internal/extension"
)

var (
	faintStyle   = lipgloss.NewStyle().Faint(true)
	boldStyle    = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// Faint returns text with faint styling.
func Faint(text string) string { return faintStyle.Render(text) }

// Bold returns text with bold styling.
func Bold(text string) string { return boldStyle.Render(text) }

// Success returns text in green.
func Success(text string) string { return successStyle.Render(text) }

// Error returns text in red.
func Error(text string) string { return errorStyle.Render(text) }

// Warning returns text in yellow.
func Warning(text string) string { return warningStyle.Render(text) }

// Info returns text in cyan.
func Info(text string) string { return infoStyle.Render(text) }

// stepLabel renders an install step for terminal output.
func stepLabel(step extension.InstallStep) string {
	switch step {
	case extension.StepInstalled:
		return Success(step.String())
	case extension.StepError:
		return Error(step.String())
	case extension.StepIdle:
		return ""
	default:
		return Info(step.String() + "...")
	}
}
