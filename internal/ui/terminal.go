// Package ui provides terminal styling for claudia CLI output.
package ui

import (
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ShouldUseColor reports whether output should carry ANSI color.
// NO_COLOR always wins; FORCE_COLOR overrides the TTY check so piped
// output can keep styling when a caller asks for it.
func ShouldUseColor() bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	if v := os.Getenv("FORCE_COLOR"); v != "" && v != "0" {
		return true
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return false
	}
	return termenv.EnvColorProfile() != termenv.Ascii
}

// maxReadableWidth caps wrapping; wider lines are hard to scan.
const maxReadableWidth = 100

// Width returns the terminal width for wrapping. Falls back to 80
// columns when the size cannot be detected.
func Width() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	if w > maxReadableWidth {
		return maxReadableWidth
	}
	return w
}

// IsInteractive reports whether both stdin and stdout are terminals, the
// precondition for prompting with a form instead of failing on missing
// arguments.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
