package upstream

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Issue levels used in the issues feed
const (
	LevelError   = "error"
	LevelWarning = "warning"
)

// Entity is an entity record as returned by the API's entity endpoint.
// Property values are strings, or nested entity objects when the API
// inlines adjacent entities.
type Entity struct {
	ID         string           `json:"id"`
	Caption    string           `json:"caption"`
	Schema     string           `json:"schema"`
	Properties map[string][]any `json:"properties"`
	Datasets   []string         `json:"datasets"`
	Referents  []string         `json:"referents"`
	Target     bool             `json:"target"`
	FirstSeen  string           `json:"first_seen,omitempty"`
	LastSeen   string           `json:"last_seen,omitempty"`
	LastChange string           `json:"last_change,omitempty"`
}

// Values returns the string values of a property, skipping nested entities
func (e *Entity) Values(prop string) []string {
	var out []string
	for _, v := range e.Properties[prop] {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// DatasetRef is the dataset an issue is attributed to. Set is false only
// when the feed leaves the field out; an explicit null or "" is still set.
type DatasetRef struct {
	Name string
	Set  bool
}

// DatasetOf returns a reference to the named dataset
func DatasetOf(name string) DatasetRef {
	return DatasetRef{Name: name, Set: true}
}

// UnmarshalJSON is only called when the field is present, including null
func (d *DatasetRef) UnmarshalJSON(data []byte) error {
	d.Set = true
	if string(data) == "null" {
		d.Name = ""
		return nil
	}
	return json.Unmarshal(data, &d.Name)
}

func (d DatasetRef) MarshalJSON() ([]byte, error) {
	if !d.Set {
		return []byte("null"), nil
	}
	return json.Marshal(d.Name)
}

// Issue is one data-quality finding from the issues feed
type Issue struct {
	ID        int64          `json:"id"`
	Level     string         `json:"level"`
	Module    string         `json:"module"`
	Timestamp string         `json:"timestamp"`
	Message   string         `json:"message"`
	EntityID  string         `json:"entity_id,omitempty"`
	Schema    string         `json:"entity_schema,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Dataset   DatasetRef     `json:"dataset"`
}

// IssueIndex is the document served at the issues URL
type IssueIndex struct {
	Issues []Issue `json:"issues"`
}

// FacetValue is one bucket of a search facet
type FacetValue struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Facet is an aggregation over one field of the search results
type Facet struct {
	Label  string       `json:"label"`
	Values []FacetValue `json:"values"`
}

// SearchResponse is the body returned by the search endpoint
type SearchResponse struct {
	Results []Entity         `json:"results"`
	Facets  map[string]Facet `json:"facets"`
	Total   int              `json:"total"`
	Offset  int              `json:"offset"`
	Limit   int              `json:"limit"`
}

// FacetFields are the facet filters the search endpoint accepts
var FacetFields = []string{"topics", "datasets", "countries"}

// SearchQuery holds the parameters forwarded to the search endpoint
type SearchQuery struct {
	Query  string
	Schema string
	Limit  int
	Offset int
	// Filters maps a facet field to the values results must match
	Filters map[string][]string
}

// Values encodes the query string. limit and offset are always sent so that
// a zero limit asks for facets only.
func (q SearchQuery) Values() url.Values {
	v := url.Values{}
	if q.Query != "" {
		v.Set("q", q.Query)
	}
	v.Set("limit", strconv.Itoa(q.Limit))
	v.Set("offset", strconv.Itoa(q.Offset))
	if q.Schema != "" {
		v.Set("schema", q.Schema)
	}
	for _, field := range FacetFields {
		for _, value := range q.Filters[field] {
			v.Add(field, value)
		}
	}
	return v
}

// Session is the result of a checkout session lookup
type Session struct {
	Secret string `json:"secret"`
}

// StatusError reports a non-2xx response from the API
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}
