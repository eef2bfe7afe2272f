// Package display renders documents and answers for the user interfaces.
package display

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"plower/internal/domain"
	"plower/internal/prompt"
)

const (
	previewCount = 5
	previewChars = 300
)

// Preview returns the latest documents, newest first, with content cut to a
// short excerpt.
func Preview(docs []domain.Document) []domain.Document {
	n := min(len(docs), previewCount)
	out := make([]domain.Document, 0, n)
	for i := len(docs) - 1; i >= len(docs)-n; i-- {
		out = append(out, domain.Document{Name: docs[i].Name, Content: Excerpt(docs[i].Content, previewChars)})
	}
	return out
}

// Excerpt cuts s to n runes and marks the cut with "...".
func Excerpt(s string, n int) string {
	cut := prompt.Truncate(s, n)
	if cut == s {
		return s
	}
	return cut + "..."
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// Markup renders answer text as HTML. Single newlines become line breaks and
// raw HTML in the answer is escaped.
func Markup(text string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("render answer: %w", err)
	}
	return buf.String(), nil
}

// Level is the severity of a user notice.
type Level int

const (
	Info Level = iota
	Success
	Warning
	Failure
)

var palette = map[Level]*color.Color{
	Info:    color.New(color.FgCyan),
	Success: color.New(color.FgGreen),
	Warning: color.New(color.FgYellow),
	Failure: color.New(color.FgRed, color.Bold),
}

// Notice writes msg to w in the colour of its level. Colour is dropped when w
// is not a terminal.
func Notice(w io.Writer, level Level, msg string) {
	c, ok := palette[level]
	if !ok {
		c = palette[Info]
	}
	c.Fprintln(w, strings.TrimRight(msg, "\n"))
}
