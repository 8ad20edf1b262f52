package web

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/sanctions-web/sanctions-web/internal/catalog"
	"github.com/sanctions-web/sanctions-web/internal/content"
	"github.com/sanctions-web/sanctions-web/internal/index"
	"github.com/sanctions-web/sanctions-web/internal/middleware"
	"github.com/sanctions-web/sanctions-web/internal/upstream"
	"github.com/sanctions-web/sanctions-web/pkg/checksum"
)

type homeView struct {
	Page
	Collections []*index.Dataset
	SourceCount int
	EntityCount int
	Articles    []*content.Page
}

// Home renders the landing page
func (h *Handler) Home(c *gin.Context) {
	idx := h.catalog.Index()
	view := homeView{
		Page:        h.page(c, h.settings.SiteName, "home"),
		Collections: idx.Collections(),
		SourceCount: len(idx.Sources()),
	}
	if ds := idx.DatasetByName(h.settings.SearchDataset); ds != nil {
		view.EntityCount = ds.EntityCount
	}
	articles := h.content.Articles()
	if len(articles) > 3 {
		articles = articles[:3]
	}
	view.Articles = articles
	h.render(c, http.StatusOK, "home", view)
}

type datasetsView struct {
	Page
	Collections []*index.Dataset
	Sources     []*index.Dataset
}

// Datasets lists collections and sources
func (h *Handler) Datasets(c *gin.Context) {
	idx := h.catalog.Index()
	h.render(c, http.StatusOK, "datasets", datasetsView{
		Page:        h.page(c, "Datasets", "datasets"),
		Collections: idx.Collections(),
		Sources:     idx.Sources(),
	})
}

// SchemaLink is an entity type row with a link to search it
type SchemaLink struct {
	index.SchemaCount
	SearchURL string
}

type datasetView struct {
	Page
	Dataset     *index.Dataset
	Details     *index.DatasetDetails
	Collections []*index.Dataset
	Sources     []*index.Dataset
	Schemata    []SchemaLink
	SearchURL   string
	Issues      catalog.IssueCounts
	// IssuesLoaded is false for collections and when the issues feed could
	// not be fetched
	IssuesLoaded bool
}

func scopedSearchURL(scope, schema string) string {
	v := url.Values{}
	v.Set("scope", scope)
	if schema != "" {
		v.Set("schema", schema)
	}
	return "/search/?" + v.Encode()
}

// Dataset renders the metadata page of one dataset
func (h *Handler) Dataset(c *gin.Context) {
	ds := h.catalog.GetDatasetByName(c.Param("name"))
	if ds == nil {
		h.NotFound(c)
		return
	}
	idx := h.catalog.Index()

	view := datasetView{
		Page:        h.page(c, ds.Title, "datasets"),
		Dataset:     ds,
		Details:     h.catalog.GetDatasetDetails(ds.Name),
		Collections: idx.CollectionsOf(ds),
		SearchURL:   scopedSearchURL(ds.Name, ""),
	}
	view.Summary = ds.Summary
	if ds.IsCollection() {
		view.Sources = idx.SourcesOf(ds)
	}
	for _, s := range ds.Things.Schemata {
		view.Schemata = append(view.Schemata, SchemaLink{SchemaCount: s, SearchURL: scopedSearchURL(ds.Name, s.Name)})
	}

	if !ds.IsCollection() {
		issues, err := h.catalog.GetDatasetIssues(c.Request.Context(), ds)
		if err != nil {
			slog.Warn("failed to load issues for dataset page",
				"dataset", ds.Name,
				"error", err,
				"request_id", middleware.GetRequestID(c))
		} else {
			view.Issues = catalog.IssueSummary(issues)
			view.IssuesLoaded = true
		}
	}

	h.render(c, http.StatusOK, "dataset", view)
}

type issuesView struct {
	Page
	Dataset *index.Dataset
	Issues  []upstream.Issue
	Counts  catalog.IssueCounts
}

// Issues lists the data-quality issues of a dataset
func (h *Handler) Issues(c *gin.Context) {
	ds := h.catalog.GetDatasetByName(c.Param("name"))
	if ds == nil {
		h.NotFound(c)
		return
	}
	issues, err := h.catalog.GetDatasetIssues(c.Request.Context(), ds)
	if err != nil {
		h.unavailable(c, err, "the issues list")
		return
	}
	h.render(c, http.StatusOK, "issues", issuesView{
		Page:    h.page(c, "Data issues: "+ds.Title, "datasets"),
		Dataset: ds,
		Issues:  issues,
		Counts:  catalog.IssueSummary(issues),
	})
}

// DatasetJSON serves one dataset with its details
func (h *Handler) DatasetJSON(c *gin.Context) {
	export := h.catalog.Index().Export(c.Param("name"))
	if export == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "dataset not found"})
		return
	}
	c.JSON(http.StatusOK, export)
}

// IndexJSON serves the raw index snapshot. The snapshot checksum is the
// ETag, so clients can revalidate with If-None-Match.
func (h *Handler) IndexJSON(c *gin.Context) {
	idx := h.catalog.Index()
	etag := checksum.ETag(idx.Checksum())

	c.Header("ETag", etag)
	c.Header("Cache-Control", "public, max-age=300")
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.DataFromReader(http.StatusOK, int64(idx.Size()), "application/json", idx.Raw(), nil)
}
