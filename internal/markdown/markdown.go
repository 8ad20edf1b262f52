// Package markdown renders the markdown found in dataset descriptions and
// content pages into sanitised HTML.
package markdown

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Renderer converts markdown to HTML safe for direct inclusion in pages.
// It is safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// New returns a renderer with GitHub-flavoured extensions and heading IDs
func New() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Typographer),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre", "table")
	return &Renderer{md: md, policy: policy}
}

// ToHTML renders src. Whitespace-only input yields an empty result.
func (r *Renderer) ToHTML(src string) (template.HTML, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	// #nosec G203 -- sanitised by bluemonday above
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes())), nil
}

var (
	plainMD     = goldmark.New(goldmark.WithExtensions(extension.GFM))
	plainPolicy = bluemonday.StrictPolicy()
)

// Summary returns the first paragraph of src as plain text, used when a
// page has no explicit summary. Markdown syntax is rendered away.
func Summary(src string) string {
	for _, block := range strings.Split(strings.TrimSpace(src), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" || strings.HasPrefix(block, "#") {
			continue
		}
		if text := plainText(block); text != "" {
			return text
		}
	}
	return ""
}

func plainText(block string) string {
	var buf bytes.Buffer
	if err := plainMD.Convert([]byte(block), &buf); err != nil {
		return strings.Join(strings.Fields(block), " ")
	}
	text := html.UnescapeString(plainPolicy.Sanitize(buf.String()))
	return strings.Join(strings.Fields(text), " ")
}
