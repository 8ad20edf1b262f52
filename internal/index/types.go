package index

import (
	"html/template"
)

// DatasetType discriminates the three kinds of dataset in the index
type DatasetType string

const (
	// TypeCollection groups other datasets
	TypeCollection DatasetType = "collection"
	// TypeSource is crawled from a publisher's data
	TypeSource DatasetType = "source"
	// TypeExternal is linked in from a third party and not crawled
	TypeExternal DatasetType = "external"
)

// Valid reports whether t is one of the known dataset types
func (t DatasetType) Valid() bool {
	switch t {
	case TypeCollection, TypeSource, TypeExternal:
		return true
	}
	return false
}

// Publisher describes the organisation behind a source or external dataset
type Publisher struct {
	Name         string `json:"name"`
	URL          string `json:"url,omitempty"`
	Description  string `json:"description,omitempty"`
	Country      string `json:"country,omitempty"`
	CountryLabel string `json:"country_label,omitempty"`
	Official     bool   `json:"official"`
	LogoURL      string `json:"logo_url,omitempty"`
}

// SourceData points at the upstream file a source dataset is crawled from
type SourceData struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

// CountryCount is one entry of a per-country breakdown
type CountryCount struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
	Label string `json:"label"`
}

// SchemaCount is one entry of a per-schema breakdown
type SchemaCount struct {
	Name   string `json:"name"`
	Count  int    `json:"count"`
	Label  string `json:"label"`
	Plural string `json:"plural"`
}

// Things summarises the searchable entities in a dataset
type Things struct {
	Total     int            `json:"total"`
	Countries []CountryCount `json:"countries"`
	Schemata  []SchemaCount  `json:"schemata"`
}

// Dataset is one entry of the index. Which of Publisher, Data, Collections
// and Sources are populated depends on Type: Data is only kept for sources,
// Publisher and Collections for sources and externals, Sources for
// collections.
type Dataset struct {
	Name        string      `json:"name"`
	Title       string      `json:"title"`
	Summary     string      `json:"summary,omitempty"`
	Type        DatasetType `json:"type"`
	URL         string      `json:"url,omitempty"`
	UpdatedAt   Timestamp   `json:"updated_at,omitzero"`
	LastChange  Timestamp   `json:"last_change,omitzero"`
	LastExport  Timestamp   `json:"last_export,omitzero"`
	EntityCount int         `json:"entity_count"`
	TargetCount int         `json:"target_count"`
	IssueCount  int         `json:"issue_count"`
	Things      Things      `json:"things"`

	Publisher   *Publisher  `json:"publisher,omitempty"`
	Data        *SourceData `json:"data,omitempty"`
	Collections []string    `json:"collections,omitempty"`
	Sources     []string    `json:"sources,omitempty"`

	// Link is the site-relative path of the dataset page
	Link string `json:"link"`
	// PublicURL is Link on the configured public origin
	PublicURL string `json:"public_url"`
}

// IsCollection reports whether the dataset is a collection
func (d *Dataset) IsCollection() bool { return d.Type == TypeCollection }

// IsSource reports whether the dataset is crawled by the pipeline
func (d *Dataset) IsSource() bool { return d.Type == TypeSource }

// IsExternal reports whether the dataset is an external enrichment source
func (d *Dataset) IsExternal() bool { return d.Type == TypeExternal }

// Resource is a downloadable export of a dataset
type Resource struct {
	URL           string    `json:"url"`
	Name          string    `json:"name,omitempty"`
	Title         string    `json:"title,omitempty"`
	Checksum      string    `json:"checksum,omitempty"`
	Timestamp     Timestamp `json:"timestamp,omitzero"`
	MimeType      string    `json:"mime_type,omitempty"`
	MimeTypeLabel string    `json:"mime_type_label,omitempty"`
	Size          int64     `json:"size,omitempty"`
}

// DatasetDetails holds the heavy fields split off each dataset at load time
type DatasetDetails struct {
	// Description is the rendered, sanitised HTML of the markdown description
	Description template.HTML `json:"description"`
	Targets     *Things       `json:"targets,omitempty"`
	Resources   []Resource    `json:"resources"`
}

// DatasetExport is the JSON shape served for a single dataset
type DatasetExport struct {
	*Dataset
	Details *DatasetDetails `json:"details,omitempty"`
}
