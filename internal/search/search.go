// Package search turns page query strings into upstream search queries and
// computes the pagination and link state the search pages render.
package search

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/sanctions-web/sanctions-web/internal/upstream"
)

// MaxOffset is the deepest result offset a page can request. The API does
// not page past it either.
const MaxOffset = 10000

// Defaults are the values used when the query string leaves a parameter out
type Defaults struct {
	Limit    int
	MinLimit int
	MaxLimit int
	Schema   string
}

// Params is a parsed search page query string
type Params struct {
	Query  string
	Offset int
	Limit  int
	Schema string
	// Scope narrows the search to one dataset; empty means the site default
	Scope string
	// Entity is the ID of the entity shown in the detail panel
	Entity  string
	Filters map[string][]string
}

// ParseParams reads the search parameters from values. Offsets that are
// negative or not numbers become 0 and are capped at MaxOffset; limits are
// clamped to [MinLimit, MaxLimit].
func ParseParams(values url.Values, d Defaults) Params {
	p := Params{
		Query:   strings.TrimSpace(values.Get("q")),
		Offset:  atoiOr(values.Get("offset"), 0),
		Limit:   atoiOr(values.Get("limit"), d.Limit),
		Schema:  values.Get("schema"),
		Scope:   values.Get("scope"),
		Entity:  values.Get("entity"),
		Filters: map[string][]string{},
	}
	p.Offset = min(max(p.Offset, 0), MaxOffset)
	p.Limit = max(p.Limit, d.MinLimit, 0)
	if d.MaxLimit > 0 && p.Limit > d.MaxLimit {
		p.Limit = d.MaxLimit
	}
	if p.Schema == "" {
		p.Schema = d.Schema
	}
	for _, field := range upstream.FacetFields {
		for _, v := range values[field] {
			if v != "" {
				p.Filters[field] = append(p.Filters[field], v)
			}
		}
	}
	return p
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// Upstream converts the parameters into the query sent to the API
func (p Params) Upstream() upstream.SearchQuery {
	return upstream.SearchQuery{
		Query:   p.Query,
		Schema:  p.Schema,
		Limit:   p.Limit,
		Offset:  p.Offset,
		Filters: p.Filters,
	}
}

// Filtered reports whether any facet filter is active
func (p Params) Filtered() bool {
	return len(p.Filters) > 0
}

// Pagination is the state of the previous/next controls
type Pagination struct {
	Total      int
	Lower      int
	Upper      int
	HasPrev    bool
	HasNext    bool
	PrevOffset int
	NextOffset int
}

// Visible reports whether pagination should be shown at all
func (p Pagination) Visible() bool {
	return p.Total > 0 && p.Upper > 0
}

// NewPagination computes the pager for a result window. Lower is the
// one-based index of the first result shown. A window without a limit has
// no pages and is never visible.
func NewPagination(total, offset, limit int) Pagination {
	if total <= 0 || limit <= 0 {
		return Pagination{Total: max(total, 0)}
	}
	offset = min(max(offset, 0), MaxOffset)
	limit = min(limit, MaxOffset)
	next := offset + limit
	return Pagination{
		Total:      total,
		Lower:      offset + 1,
		Upper:      min(total, next),
		HasPrev:    offset > 0,
		HasNext:    total > next && next <= MaxOffset,
		PrevOffset: max(offset-limit, 0),
		NextOffset: next,
	}
}

// WithParam returns the encoded query string of values with key set to
// value. values itself is not modified.
func WithParam(values url.Values, key, value string) string {
	out := cloneValues(values)
	out.Set(key, value)
	return out.Encode()
}

// WithoutParam returns the encoded query string of values without key
func WithoutParam(values url.Values, key string) string {
	out := cloneValues(values)
	out.Del(key)
	return out.Encode()
}

// Toggle adds value to the key's list, or removes it if already present.
// The offset is reset so the new result set starts at its first page.
func Toggle(values url.Values, key, value string) string {
	out := cloneValues(values)
	current := out[key]
	kept := make([]string, 0, len(current)+1)
	found := false
	for _, v := range current {
		if v == value {
			found = true
			continue
		}
		kept = append(kept, v)
	}
	if !found {
		kept = append(kept, value)
	}
	if len(kept) == 0 {
		out.Del(key)
	} else {
		out[key] = kept
	}
	out.Del("offset")
	return out.Encode()
}

func cloneValues(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for k, v := range values {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// HiddenField is a name/value pair rendered as a hidden form input
type HiddenField struct {
	Name  string
	Value string
}

// CarryOver returns the parameters a new search should keep: everything but
// the query text and the offset, sorted by name for stable output.
func CarryOver(values url.Values) []HiddenField {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "q" || k == "offset" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var fields []HiddenField
	for _, k := range keys {
		for _, v := range values[k] {
			fields = append(fields, HiddenField{Name: k, Value: v})
		}
	}
	return fields
}
