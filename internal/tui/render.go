package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer renders assistant replies for the given width.
type MarkdownRenderer func(content string, width int) string

// GlamourRenderer renders markdown with glamour, falling back to the raw
// text on error. Renderers are cached per width.
func GlamourRenderer() MarkdownRenderer {
	cache := map[int]*glamour.TermRenderer{}
	return func(content string, width int) string {
		r, ok := cache[width]
		if !ok {
			var err error
			r, err = glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(width),
			)
			if err != nil {
				return content
			}
			cache[width] = r
		}

		out, err := r.Render(content)
		if err != nil {
			return content
		}
		return strings.Trim(out, "\n")
	}
}
