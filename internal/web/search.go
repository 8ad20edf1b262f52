package web

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/sanctions-web/sanctions-web/internal/index"
	"github.com/sanctions-web/sanctions-web/internal/middleware"
	"github.com/sanctions-web/sanctions-web/internal/search"
	"github.com/sanctions-web/sanctions-web/internal/upstream"
)

const maxSearchLimit = 100

// FacetOption is a facet bucket with the link that toggles it
type FacetOption struct {
	upstream.FacetValue
	Active    bool
	ToggleURL string
}

// FacetView is one facet box on a search page
type FacetView struct {
	Field   string
	Label   string
	Options []FacetOption
}

// SearchResult is a result row; PanelURL opens the entity in the side panel
// while keeping the current search.
type SearchResult struct {
	upstream.Entity
	PanelURL string
}

type searchView struct {
	Page
	Params     search.Params
	Scope      *index.Dataset
	Response   *upstream.SearchResponse
	Results    []SearchResult
	Failed     bool
	Facets     []FacetView
	Pagination search.Pagination
	PrevURL    string
	NextURL    string
	Hidden     []search.HiddenField
	// Entity is shown in the side panel when ?entity= is set
	Entity      *upstream.Entity
	EntityProps []Property
	CloseURL    string
}

func buildFacets(values url.Values, params search.Params, resp *upstream.SearchResponse) []FacetView {
	if resp == nil || resp.Total == 0 {
		return nil
	}
	var out []FacetView
	for _, field := range upstream.FacetFields {
		facet, ok := resp.Facets[field]
		if !ok || len(facet.Values) == 0 {
			continue
		}
		active := map[string]bool{}
		for _, v := range params.Filters[field] {
			active[v] = true
		}
		fv := FacetView{Field: field, Label: facet.Label}
		for _, v := range facet.Values {
			fv.Options = append(fv.Options, FacetOption{
				FacetValue: v,
				Active:     active[v.Name],
				ToggleURL:  "?" + search.Toggle(values, field, v.Name),
			})
		}
		out = append(out, fv)
	}
	return out
}

func (h *Handler) scope(params search.Params) (string, *index.Dataset) {
	if params.Scope != "" {
		if ds := h.catalog.GetDatasetByName(params.Scope); ds != nil {
			return ds.Name, ds
		}
	}
	return h.settings.SearchDataset, h.catalog.GetDatasetByName(h.settings.SearchDataset)
}

// Search renders the search page. A failed search renders the page with an
// empty result state rather than an error page.
func (h *Handler) Search(c *gin.Context) {
	values := c.Request.URL.Query()
	params := search.ParseParams(values, search.Defaults{
		Limit:    h.settings.PageSize,
		MinLimit: 1,
		MaxLimit: maxSearchLimit,
		Schema:   h.settings.SearchSchema,
	})
	dataset, scope := h.scope(params)
	ctx := c.Request.Context()

	view := searchView{
		Page:   h.page(c, "Search", "search"),
		Params: params,
		Scope:  scope,
		Hidden: search.CarryOver(values),
	}

	resp, err := h.api.Search(ctx, dataset, params.Upstream())
	if err != nil {
		slog.Warn("search failed",
			"dataset", dataset,
			"error", err,
			"request_id", middleware.GetRequestID(c))
		view.Failed = true
	} else {
		view.Response = resp
		view.Facets = buildFacets(values, params, resp)
		for _, r := range resp.Results {
			view.Results = append(view.Results, SearchResult{
				Entity:   r,
				PanelURL: "?" + search.WithParam(values, "entity", r.ID),
			})
		}
		view.Pagination = search.NewPagination(resp.Total, resp.Offset, resp.Limit)
		if view.Pagination.HasPrev {
			view.PrevURL = "?" + search.WithParam(values, "offset", itoa(view.Pagination.PrevOffset))
		}
		if view.Pagination.HasNext {
			view.NextURL = "?" + search.WithParam(values, "offset", itoa(view.Pagination.NextOffset))
		}
	}

	if params.Entity != "" {
		entity, err := h.catalog.GetEntityByID(ctx, params.Entity)
		if err != nil {
			slog.Warn("failed to load entity preview",
				"entity_id", params.Entity,
				"error", err,
				"request_id", middleware.GetRequestID(c))
		}
		if entity != nil {
			view.Entity = entity
			view.EntityProps = entityProperties(entity)
		}
		view.CloseURL = "?" + search.WithoutParam(values, "entity")
	}

	h.render(c, http.StatusOK, "search", view)
}

type researchView struct {
	Page
	Params   search.Params
	Scope    *index.Dataset
	Response *upstream.SearchResponse
	Failed   bool
	Facets   []FacetView
	Hidden   []search.HiddenField
}

// Research renders the facet browser. It asks the API for facets only and
// submits its query form to the search page.
func (h *Handler) Research(c *gin.Context) {
	values := c.Request.URL.Query()
	params := search.ParseParams(values, search.Defaults{Schema: h.settings.SearchSchema})
	params.Limit = 0
	params.Offset = 0
	dataset, scope := h.scope(params)

	view := researchView{
		Page:   h.page(c, "Research", "research"),
		Params: params,
		Scope:  scope,
		Hidden: search.CarryOver(values),
	}
	resp, err := h.api.Search(c.Request.Context(), dataset, params.Upstream())
	if err != nil {
		slog.Warn("research facets failed",
			"dataset", dataset,
			"error", err,
			"request_id", middleware.GetRequestID(c))
		view.Failed = true
	} else {
		view.Response = resp
		view.Facets = buildFacets(values, params, resp)
	}
	h.render(c, http.StatusOK, "research", view)
}
