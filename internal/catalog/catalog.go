// Package catalog is the data access layer the pages are written against. It
// answers dataset questions from the loaded index and forwards entity and
// issue lookups to the upstream API.
package catalog

import (
	"context"

	"github.com/sanctions-web/sanctions-web/internal/index"
	"github.com/sanctions-web/sanctions-web/internal/upstream"
)

// API is the subset of the upstream client the catalog depends on
type API interface {
	GetEntityByID(ctx context.Context, id string) (*upstream.Entity, error)
	GetIssues(ctx context.Context) ([]upstream.Issue, error)
}

// Catalog joins the immutable index with live upstream data
type Catalog struct {
	idx *index.Index
	api API
}

// New creates a catalog over a loaded index
func New(idx *index.Index, api API) *Catalog {
	return &Catalog{idx: idx, api: api}
}

// Index returns the underlying index
func (c *Catalog) Index() *index.Index {
	return c.idx
}

// GetDatasets returns every dataset in index order
func (c *Catalog) GetDatasets() []*index.Dataset {
	return c.idx.Datasets()
}

// GetDatasetByName returns the dataset with exactly this name, or nil
func (c *Catalog) GetDatasetByName(name string) *index.Dataset {
	return c.idx.DatasetByName(name)
}

// GetDatasetDetails returns the details of a dataset, or nil
func (c *Catalog) GetDatasetDetails(name string) *index.DatasetDetails {
	return c.idx.DatasetDetails(name)
}

// GetIssues fetches the issues feed
func (c *Catalog) GetIssues(ctx context.Context) ([]upstream.Issue, error) {
	return c.api.GetIssues(ctx)
}

// GetDatasetIssues returns the issues attributed to ds, in feed order. A nil
// dataset selects the issues whose feed entry has no dataset field; entries
// with "dataset": null belong to neither.
func (c *Catalog) GetDatasetIssues(ctx context.Context, ds *index.Dataset) ([]upstream.Issue, error) {
	issues, err := c.api.GetIssues(ctx)
	if err != nil {
		return nil, err
	}
	out := []upstream.Issue{}
	for _, issue := range issues {
		if ds == nil && !issue.Dataset.Set || ds != nil && issue.Dataset.Set && issue.Dataset.Name == ds.Name {
			out = append(out, issue)
		}
	}
	return out, nil
}

// GetEntityByID looks up an entity. Absent entities are (nil, nil).
func (c *Catalog) GetEntityByID(ctx context.Context, id string) (*upstream.Entity, error) {
	return c.api.GetEntityByID(ctx, id)
}

// EntityDatasets resolves the datasets an entity was sourced from. Names the
// index does not know are dropped.
func (c *Catalog) EntityDatasets(entity *upstream.Entity) []*index.Dataset {
	if entity == nil {
		return nil
	}
	return c.idx.Resolve(entity.Datasets)
}

// IssueCounts tallies issues by severity
type IssueCounts struct {
	Errors   int
	Warnings int
	Total    int
}

// IssueSummary counts errors and warnings in issues
func IssueSummary(issues []upstream.Issue) IssueCounts {
	counts := IssueCounts{Total: len(issues)}
	for _, issue := range issues {
		switch issue.Level {
		case upstream.LevelError:
			counts.Errors++
		case upstream.LevelWarning:
			counts.Warnings++
		}
	}
	return counts
}
