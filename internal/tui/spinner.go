package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var brailleSpinner = spinner.Spinner{
	Frames: []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"},
	FPS:    100 * time.Millisecond,
}

// LoadingIndicator is a spinner with a message
type LoadingIndicator struct {
	spinner spinner.Model
	message string
}

// NewLoadingIndicator creates a new loading indicator
func NewLoadingIndicator(message string) *LoadingIndicator {
	s := spinner.New(spinner.WithSpinner(brailleSpinner))
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	return &LoadingIndicator{spinner: s, message: message}
}

// SetMessage updates the loading message
func (l *LoadingIndicator) SetMessage(message string) {
	l.message = message
}

// Tick starts the animation
func (l *LoadingIndicator) Tick() tea.Cmd {
	return l.spinner.Tick
}

// Update advances the animation
func (l *LoadingIndicator) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	l.spinner, cmd = l.spinner.Update(msg)
	return cmd
}

// View renders the loading indicator
func (l *LoadingIndicator) View() string {
	messageStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))
	return fmt.Sprintf("%s %s", l.spinner.View(), messageStyle.Render(l.message))
}

// renderProgressBar renders a bar filled to progress percent
func renderProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	filled := int(float64(width) * progress / 100)
	empty := width - filled

	barStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))
	emptyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("238"))

	return barStyle.Render(strings.Repeat("█", filled)) +
		emptyStyle.Render(strings.Repeat("░", empty))
}

// LoadingOverlay centers the indicator in a width x height box
func LoadingOverlay(width, height int, indicator *LoadingIndicator) string {
	cancelHint := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render("[q to quit]")

	style := lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center)

	return style.Render(fmt.Sprintf("%s\n\n%s", indicator.View(), cancelHint))
}
