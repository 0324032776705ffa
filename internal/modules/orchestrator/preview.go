package orchestrator

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

var markdownEngine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Table,
		extension.Strikethrough,
		extension.Typographer,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithHardWraps(),
		htmlrenderer.WithXHTML(),
	),
)

// renderMarkdownPreview converts generated Markdown to HTML for the desktop
// preview pane.
func renderMarkdownPreview(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// attachPreview adds an "html" field next to "markdown" in a document
// generation payload. Payloads without a markdown field pass through.
func attachPreview(payload json.RawMessage) json.RawMessage {
	var doc struct {
		Markdown string `json:"markdown"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil || strings.TrimSpace(doc.Markdown) == "" {
		return payload
	}
	html, err := renderMarkdownPreview(doc.Markdown)
	if err != nil {
		return payload
	}
	out, err := json.Marshal(struct {
		Markdown string `json:"markdown"`
		HTML     string `json:"html"`
	}{Markdown: doc.Markdown, HTML: html})
	if err != nil {
		return payload
	}
	return out
}
