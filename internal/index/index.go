// Package index loads the prebuilt JSON index that describes every dataset
// published on the site.
//
// The index is decoded once, before the server starts, into an immutable
// *Index which is handed to the page handlers through the router's
// dependencies. There is no package-level state and the index is never
// refreshed while the process runs; deploying a new snapshot means restarting.
package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"slices"
	"strings"

	"github.com/sanctions-web/sanctions-web/internal/markdown"
	"github.com/sanctions-web/sanctions-web/pkg/checksum"
)

var (
	// ErrMissingName is returned when a dataset record has no name
	ErrMissingName = errors.New("dataset has no name")
	// ErrDuplicateDataset is returned when two records share a name
	ErrDuplicateDataset = errors.New("duplicate dataset name")
	// ErrUnknownType is returned when a record's type is not collection, source or external
	ErrUnknownType = errors.New("unknown dataset type")
)

// Renderer turns a markdown description into HTML
type Renderer interface {
	ToHTML(src string) (template.HTML, error)
}

// Options control how raw records are turned into datasets
type Options struct {
	// BaseURL is prefixed to each dataset link to form its public URL
	BaseURL string
	// Markdown renders descriptions; nil means markdown.New()
	Markdown Renderer
}

// Index is the decoded snapshot. It is safe for concurrent reads and must
// not be modified after Decode returns.
type Index struct {
	app      string
	version  string
	model    json.RawMessage
	datasets []*Dataset
	byName   map[string]*Dataset
	details  map[string]*DatasetDetails
	raw      []byte
	checksum string
}

type rawIndex struct {
	App      string            `json:"app"`
	Version  string            `json:"version"`
	Model    json.RawMessage   `json:"model"`
	Datasets []json.RawMessage `json:"datasets"`
}

// rawDataset is a dataset record as it appears in the snapshot, before the
// heavy fields are split into the details table.
type rawDataset struct {
	Dataset
	Description string     `json:"description"`
	Targets     *Things    `json:"targets"`
	Resources   []Resource `json:"resources"`
}

// Decode reads a complete snapshot from r
func Decode(r io.Reader, opts Options) (*Index, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	return DecodeBytes(data, opts)
}

// DecodeBytes decodes a snapshot held in memory. data is retained and must
// not be modified by the caller afterwards.
func DecodeBytes(data []byte, opts Options) (*Index, error) {
	if opts.Markdown == nil {
		opts.Markdown = markdown.New()
	}

	var ri rawIndex
	if err := json.Unmarshal(data, &ri); err != nil {
		return nil, fmt.Errorf("failed to parse index: %w", err)
	}

	idx := &Index{
		app:      ri.App,
		version:  ri.Version,
		model:    ri.Model,
		datasets: make([]*Dataset, 0, len(ri.Datasets)),
		byName:   make(map[string]*Dataset, len(ri.Datasets)),
		details:  make(map[string]*DatasetDetails, len(ri.Datasets)),
		raw:      data,
		checksum: checksum.SumBytes(data),
	}
	base := strings.TrimRight(opts.BaseURL, "/")

	for i, msg := range ri.Datasets {
		ds, details, err := decodeDataset(msg, base, opts.Markdown)
		if err != nil {
			return nil, fmt.Errorf("dataset #%d: %w", i, err)
		}
		if _, dup := idx.byName[ds.Name]; dup {
			return nil, fmt.Errorf("dataset #%d: %w: %s", i, ErrDuplicateDataset, ds.Name)
		}
		idx.datasets = append(idx.datasets, ds)
		idx.byName[ds.Name] = ds
		idx.details[ds.Name] = details
	}

	return idx, nil
}

func decodeDataset(msg json.RawMessage, base string, md Renderer) (*Dataset, *DatasetDetails, error) {
	var raw rawDataset
	if err := json.Unmarshal(msg, &raw); err != nil {
		return nil, nil, fmt.Errorf("invalid record: %w", err)
	}
	ds := raw.Dataset
	if ds.Name == "" {
		return nil, nil, ErrMissingName
	}
	if !ds.Type.Valid() {
		return nil, nil, fmt.Errorf("%w: %s has type %q", ErrUnknownType, ds.Name, ds.Type)
	}

	// keep only the fields that belong to the variant
	switch ds.Type {
	case TypeCollection:
		ds.Publisher = nil
		ds.Data = nil
		ds.Collections = nil
	case TypeSource:
		ds.Sources = nil
	case TypeExternal:
		ds.Data = nil
		ds.Sources = nil
	}

	description, err := md.ToHTML(raw.Description)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: description: %w", ds.Name, err)
	}

	ds.Link = "/datasets/" + ds.Name + "/"
	ds.PublicURL = base + ds.Link

	details := &DatasetDetails{
		Description: description,
		Targets:     raw.Targets,
		Resources:   raw.Resources,
	}
	if details.Resources == nil {
		details.Resources = []Resource{}
	}
	return &ds, details, nil
}

// App returns the name of the application that produced the snapshot
func (idx *Index) App() string { return idx.app }

// Version returns the snapshot version string
func (idx *Index) Version() string { return idx.version }

// Model returns the raw entity model JSON shipped with the snapshot
func (idx *Index) Model() json.RawMessage { return idx.model }

// Checksum returns the hex SHA-256 of the raw snapshot
func (idx *Index) Checksum() string { return idx.checksum }

// Raw returns a reader over the snapshot exactly as it was loaded
func (idx *Index) Raw() io.Reader { return bytes.NewReader(idx.raw) }

// Size returns the snapshot size in bytes
func (idx *Index) Size() int { return len(idx.raw) }

// Datasets returns every dataset in snapshot order
func (idx *Index) Datasets() []*Dataset {
	return slices.Clone(idx.datasets)
}

// DatasetByName returns the dataset with exactly this name, or nil
func (idx *Index) DatasetByName(name string) *Dataset {
	return idx.byName[name]
}

// DatasetDetails returns the details split off the named dataset, or nil if
// the name was not in the snapshot.
func (idx *Index) DatasetDetails(name string) *DatasetDetails {
	return idx.details[name]
}

// Export combines a dataset with its details, or returns nil for unknown names
func (idx *Index) Export(name string) *DatasetExport {
	ds := idx.byName[name]
	if ds == nil {
		return nil
	}
	return &DatasetExport{Dataset: ds, Details: idx.details[name]}
}

func (idx *Index) filter(keep func(*Dataset) bool) []*Dataset {
	var out []*Dataset
	for _, ds := range idx.datasets {
		if keep(ds) {
			out = append(out, ds)
		}
	}
	return out
}

// Collections returns the collection datasets in snapshot order
func (idx *Index) Collections() []*Dataset {
	return idx.filter((*Dataset).IsCollection)
}

// Sources returns source and external datasets in snapshot order
func (idx *Index) Sources() []*Dataset {
	return idx.filter(func(ds *Dataset) bool { return !ds.IsCollection() })
}

// CollectionsOf returns the collections that include ds. Membership is read
// from each collection's source list; when no collection lists ds, the
// dataset's own collections field is used instead.
func (idx *Index) CollectionsOf(ds *Dataset) []*Dataset {
	if ds == nil {
		return nil
	}
	out := idx.filter(func(c *Dataset) bool {
		return c.IsCollection() && slices.Contains(c.Sources, ds.Name)
	})
	if len(out) > 0 {
		return out
	}
	return idx.resolve(ds.Collections, (*Dataset).IsCollection)
}

// SourcesOf returns the known members of a collection, in the order the
// collection lists them. Unknown names are skipped.
func (idx *Index) SourcesOf(collection *Dataset) []*Dataset {
	if collection == nil || !collection.IsCollection() {
		return nil
	}
	return idx.resolve(collection.Sources, func(ds *Dataset) bool { return !ds.IsCollection() })
}

// Resolve maps dataset names to datasets, dropping unknown names and
// keeping the given order.
func (idx *Index) Resolve(names []string) []*Dataset {
	return idx.resolve(names, func(*Dataset) bool { return true })
}

func (idx *Index) resolve(names []string, keep func(*Dataset) bool) []*Dataset {
	var out []*Dataset
	for _, name := range names {
		if ds := idx.byName[name]; ds != nil && keep(ds) {
			out = append(out, ds)
		}
	}
	return out
}

// TypeCounts returns the number of datasets of each type
func (idx *Index) TypeCounts() map[string]int {
	counts := map[string]int{}
	for _, ds := range idx.datasets {
		counts[string(ds.Type)]++
	}
	return counts
}
