package style

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Shared style primitives used by the table renderer and by the thin
// CLI entrypoint's status output. Grove's core never prints directly;
// only cmd/grove renders operation results through these helpers.
var (
	Bold    = lipgloss.NewStyle().Bold(true)
	Dim     = lipgloss.NewStyle().Faint(true)
	Red     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	Green   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	Yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	Blue    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

// PrintWarning writes a dimmed, yellow-tagged warning to stderr. Used for
// best-effort operations (such as AutoLink) whose failures must not
// abort the containing task operation.
func PrintWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, Yellow.Render("warning:")+" "+fmt.Sprintf(format, args...))
}

// PrintError writes a red-tagged error to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, Red.Render("error:")+" "+fmt.Sprintf(format, args...))
}
