package ui

import (
	"github.com/charmbracelet/glamour"
)

// RenderMarkdown renders markdown for terminal display, word-wrapped at
// the detected width. Returns the input unchanged when color is off or
// rendering fails, so piped output stays parseable.
func RenderMarkdown(markdown string) string {
	if !ShouldUseColor() {
		return markdown
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(Width()),
	)
	if err != nil {
		return markdown
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return rendered
}
