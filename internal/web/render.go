package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sanctions-web/sanctions-web/internal/index"
)

//go:embed templates/*.html templates/pages/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Views holds one parsed template set per page. Each set is the shared
// layout cloned and extended with the page's "content" block.
type Views struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"number": func(n int) string { return humanize.Comma(int64(n)) },
	"bytes": func(n int64) string {
		if n <= 0 {
			return ""
		}
		return humanize.Bytes(uint64(n))
	},
	"date":     formatDate,
	"datetime": formatDateTime,
	"join":     strings.Join,
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case index.Timestamp:
		return t.Time, !t.IsZero()
	case *index.Timestamp:
		if t == nil {
			return time.Time{}, false
		}
		return t.Time, !t.IsZero()
	case string:
		ts, err := index.ParseTimestamp(t)
		if err != nil {
			return time.Time{}, false
		}
		return ts.Time, !ts.IsZero()
	}
	return time.Time{}, false
}

func formatDate(v any) string {
	t, ok := asTime(v)
	if !ok {
		return "-"
	}
	return t.Format("2 January 2006")
}

func formatDateTime(v any) string {
	t, ok := asTime(v)
	if !ok {
		return "-"
	}
	return t.Format("2 Jan 2006, 15:04 MST")
}

// NewViews parses the embedded templates
func NewViews() (*Views, error) {
	return parseViews(templateFS)
}

func parseViews(fsys fs.FS) (*Views, error) {
	base, err := template.New("base.html").Funcs(funcs).ParseFS(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse base templates: %w", err)
	}

	files, err := fs.Glob(fsys, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		tmpl, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone base template for %s: %w", file, err)
		}
		if _, err := tmpl.ParseFS(fsys, file); err != nil {
			return nil, fmt.Errorf("failed to parse page template %s: %w", file, err)
		}
		pages[strings.TrimSuffix(path.Base(file), ".html")] = tmpl
	}
	return &Views{pages: pages}, nil
}

// Render executes the named page into w. The page is rendered into a buffer
// first so that a template error never leaves a half-written response.
func (v *Views) Render(w io.Writer, page string, data any) error {
	tmpl, ok := v.pages[page]
	if !ok {
		return fmt.Errorf("unknown page template %q", page)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
