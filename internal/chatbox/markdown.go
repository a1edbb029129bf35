package chatbox

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Raw HTML in answers is omitted from the output: goldmark is not given
// html.WithUnsafe.
var answerMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// RenderAnswer converts a markdown answer to HTML.
func RenderAnswer(md string) (string, error) {
	var buf bytes.Buffer
	if err := answerMarkdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("rendering answer: %w", err)
	}
	return buf.String(), nil
}
