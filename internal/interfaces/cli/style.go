package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	labelStyle = lipgloss.NewStyle().Width(18)
)

func printTitle(w io.Writer, title string) {
	fmt.Fprintln(w, titleStyle.Render(title))
	fmt.Fprintln(w, mutedStyle.Render(strings.Repeat("─", lipgloss.Width(title))))
}

func printField(w io.Writer, label string, value any) {
	fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label+":"), fmt.Sprint(value)))
}
