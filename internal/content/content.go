// Package content loads the articles and documentation pages that are
// authored as markdown files with YAML front matter:
//
//	---
//	title: Frequently asked questions
//	summary: Answers to common questions about the data.
//	section: about
//	date: 2024-03-01
//	---
//	Markdown body...
//
// Articles live under articles/, documentation under docs/. A file's path
// below its directory, without the .md extension, is its slug.
package content

import (
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sanctions-web/sanctions-web/internal/markdown"
)

// ErrNotFound is returned when no page has the requested slug
var ErrNotFound = errors.New("content not found")

// Renderer turns markdown into HTML
type Renderer interface {
	ToHTML(src string) (template.HTML, error)
}

const (
	articlesDir = "articles"
	docsDir     = "docs"
)

// Page is one rendered markdown document
type Page struct {
	Slug     string
	Path     string
	Title    string
	Summary  string
	Section  string
	Date     time.Time
	ImageURL string
	Draft    bool
	Body     template.HTML
}

// IsArticle reports whether the page was loaded from the articles directory
func (p *Page) IsArticle() bool {
	return strings.HasPrefix(p.Path, "/articles/")
}

type frontMatter struct {
	Title    string    `yaml:"title"`
	Summary  string    `yaml:"summary"`
	Section  string    `yaml:"section"`
	Date     time.Time `yaml:"date"`
	ImageURL string    `yaml:"image_url"`
	Draft    bool      `yaml:"draft"`
}

// Set holds every loaded page. It is immutable after Load.
type Set struct {
	articles map[string]*Page
	docs     map[string]*Page
	ordered  []*Page
}

// Load reads and renders all pages below fsys. Missing articles/ or docs/
// directories are treated as empty.
func Load(fsys fs.FS, md Renderer) (*Set, error) {
	s := &Set{
		articles: map[string]*Page{},
		docs:     map[string]*Page{},
	}
	if err := s.loadDir(fsys, md, articlesDir, s.articles); err != nil {
		return nil, err
	}
	if err := s.loadDir(fsys, md, docsDir, s.docs); err != nil {
		return nil, err
	}

	for _, p := range s.articles {
		if !p.Draft {
			s.ordered = append(s.ordered, p)
		}
	}
	sort.Slice(s.ordered, func(i, j int) bool {
		a, b := s.ordered[i], s.ordered[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.Slug < b.Slug
	})
	return s, nil
}

func (s *Set) loadDir(fsys fs.FS, md Renderer, dir string, into map[string]*Page) error {
	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".md" {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		slug := strings.TrimSuffix(strings.TrimPrefix(p, dir+"/"), ".md")
		if path.Base(slug) == "index" {
			slug = strings.TrimSuffix(strings.TrimSuffix(slug, "index"), "/")
		}
		page, err := parsePage(string(data), md)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		page.Slug = slug
		page.Path = "/" + dir + "/"
		if slug != "" {
			page.Path += slug + "/"
		}
		into[slug] = page
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// splitFrontMatter separates a leading --- delimited YAML block from the body
func splitFrontMatter(doc string) (string, string) {
	s := strings.ReplaceAll(strings.TrimPrefix(doc, "\ufeff"), "\r\n", "\n")
	first, rest, ok := strings.Cut(s, "\n")
	if !ok || strings.TrimSpace(first) != "---" {
		return "", doc
	}
	// the closing delimiter must sit on a line of its own
	var fm []string
	for {
		line, next, more := strings.Cut(rest, "\n")
		if strings.TrimSpace(line) == "---" {
			return strings.TrimSpace(strings.Join(fm, "\n")), next
		}
		if !more {
			return "", doc
		}
		fm = append(fm, line)
		rest = next
	}
}

func parsePage(doc string, md Renderer) (*Page, error) {
	fmText, body := splitFrontMatter(doc)

	var fm frontMatter
	if fmText != "" {
		if err := yaml.Unmarshal([]byte(fmText), &fm); err != nil {
			return nil, fmt.Errorf("invalid front matter: %w", err)
		}
	}
	if fm.Title == "" {
		return nil, fmt.Errorf("front matter has no title")
	}

	html, err := md.ToHTML(body)
	if err != nil {
		return nil, err
	}
	if fm.Summary == "" {
		fm.Summary = markdown.Summary(body)
	}
	return &Page{
		Title:    fm.Title,
		Summary:  fm.Summary,
		Section:  fm.Section,
		Date:     fm.Date,
		ImageURL: fm.ImageURL,
		Draft:    fm.Draft,
		Body:     html,
	}, nil
}

// ContentBySlug returns a documentation page. The empty slug is docs/index.md.
func (s *Set) ContentBySlug(slug string) (*Page, error) {
	if p, ok := s.docs[strings.Trim(slug, "/")]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: docs/%s", ErrNotFound, slug)
}

// ArticleBySlug returns an article, drafts included
func (s *Set) ArticleBySlug(slug string) (*Page, error) {
	if p, ok := s.articles[strings.Trim(slug, "/")]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: articles/%s", ErrNotFound, slug)
}

// Articles returns the published articles, newest first
func (s *Set) Articles() []*Page {
	return append([]*Page(nil), s.ordered...)
}

// Docs returns the documentation pages in the section, ordered by path. An
// empty section returns every page.
func (s *Set) Docs(section string) []*Page {
	var out []*Page
	for _, p := range s.docs {
		if section == "" || p.Section == section {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
