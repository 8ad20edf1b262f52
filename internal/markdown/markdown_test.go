package markdown

import (
	"strings"
	"testing"
)

func TestToHTML_Empty(t *testing.T) {
	r := New()
	for _, in := range []string{"", "   ", "\n\n"} {
		got, err := r.ToHTML(in)
		if err != nil {
			t.Fatalf("ToHTML(%q) error: %v", in, err)
		}
		if got != "" {
			t.Errorf("ToHTML(%q) = %q, want empty", in, got)
		}
	}
}

func TestToHTML_Basic(t *testing.T) {
	got, err := New().ToHTML("# Sanctions list\n\nThe **OFAC** list.")
	if err != nil {
		t.Fatalf("ToHTML() error: %v", err)
	}
	html := string(got)
	if !strings.Contains(html, `<h1 id="sanctions-list">Sanctions list</h1>`) {
		t.Errorf("missing heading with auto ID: %s", html)
	}
	if !strings.Contains(html, "<strong>OFAC</strong>") {
		t.Errorf("missing emphasis: %s", html)
	}
}

func TestToHTML_GFMTable(t *testing.T) {
	src := "| a | b |\n|---|---|\n| 1 | 2 |\n"
	got, err := New().ToHTML(src)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(got), "<table>") {
		t.Errorf("GFM table not rendered: %s", got)
	}
}

func TestToHTML_StripsScripts(t *testing.T) {
	src := "Hello <script>alert(1)</script>\n\n[x](javascript:alert(1))"
	got, err := New().ToHTML(src)
	if err != nil {
		t.Fatal(err)
	}
	html := string(got)
	if strings.Contains(html, "<script") {
		t.Errorf("script tag survived sanitising: %s", html)
	}
	if strings.Contains(html, "javascript:") {
		t.Errorf("javascript URL survived sanitising: %s", html)
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"# Title\n\nFirst  paragraph\ncontinues.\n\nSecond.", "First paragraph continues."},
		{"Only one.", "Only one."},
		{"**Bold** and [a link](https://example.org) & `code`.", "Bold and a link & code."},
		{"![logo](/logo.png)\n\nAfter the image.", "After the image."},
		{"It's <em>fine</em>", "It's fine"},
	}
	for _, tt := range tests {
		if got := Summary(tt.in); got != tt.want {
			t.Errorf("Summary(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
