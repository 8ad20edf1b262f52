// Package web serves the site's server-rendered pages. Handlers read dataset
// metadata from the catalog, fetch live data (entities, search results,
// issues) from the upstream API per request, and render html/template views
// embedded in the binary.
package web

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sanctions-web/sanctions-web/internal/catalog"
	"github.com/sanctions-web/sanctions-web/internal/content"
	"github.com/sanctions-web/sanctions-web/internal/middleware"
	"github.com/sanctions-web/sanctions-web/internal/upstream"
)

// API is the upstream client surface the pages use
type API interface {
	catalog.API
	Search(ctx context.Context, dataset string, q upstream.SearchQuery) (*upstream.SearchResponse, error)
	CheckoutSession(ctx context.Context, query url.Values) *upstream.Session
}

// Settings configure the page handlers
type Settings struct {
	SiteName string
	// BaseURL is the public origin used for canonical links
	BaseURL       string
	SearchDataset string
	SearchSchema  string
	PageSize      int
}

// Handler serves the site pages
type Handler struct {
	catalog  *catalog.Catalog
	api      API
	content  *content.Set
	views    *Views
	settings Settings
}

// NewHandler creates the page handler. pages may be nil when no content
// directory is configured.
func NewHandler(cat *catalog.Catalog, api API, pages *content.Set, settings Settings) (*Handler, error) {
	views, err := NewViews()
	if err != nil {
		return nil, err
	}
	if settings.SiteName == "" {
		settings.SiteName = "OpenSanctions"
	}
	if settings.PageSize <= 0 {
		settings.PageSize = 25
	}
	if settings.SearchSchema == "" {
		settings.SearchSchema = "Thing"
	}
	if pages == nil {
		pages = &content.Set{}
	}
	return &Handler{
		catalog:  cat,
		api:      api,
		content:  pages,
		views:    views,
		settings: settings,
	}, nil
}

// Register mounts the page routes on r. The upstream middleware (typically
// the rate limiter) is applied only to pages that call the API.
func (h *Handler) Register(r *gin.Engine, upstreamMW ...gin.HandlerFunc) {
	assets, _ := fs.Sub(staticFS, "static")
	r.StaticFS("/static", http.FS(assets))

	r.GET("/", h.Home)
	r.GET("/datasets/", h.Datasets)
	r.GET("/datasets/index.json", h.IndexJSON)
	r.GET("/datasets/:name/index.json", h.DatasetJSON)
	r.GET("/articles/", h.Articles)
	r.GET("/articles/:slug/", h.Article)
	r.GET("/docs/*path", h.Docs)

	live := r.Group("/", upstreamMW...)
	live.GET("/datasets/:name/", h.Dataset)
	live.GET("/issues/:name/", h.Issues)
	live.GET("/entities/:id/", h.Entity)
	live.GET("/search/", h.Search)
	live.GET("/research/", h.Research)
	live.GET("/service/checkout-session", h.Checkout)

	r.NoRoute(h.NotFound)
}

// Page carries the fields every view shares with the layout
type Page struct {
	SiteName  string
	Title     string
	Summary   string
	Canonical string
	// Section selects the highlighted navigation entry
	Section string
	// Status is the HTTP status the page is rendered with
	Status int
	// NoIndex asks search engines to skip the page
	NoIndex bool
}

func (h *Handler) page(c *gin.Context, title, section string) Page {
	return Page{
		SiteName:  h.settings.SiteName,
		Title:     title,
		Canonical: strings.TrimSuffix(h.settings.BaseURL, "/") + c.Request.URL.Path,
		Section:   section,
		Status:    http.StatusOK,
	}
}

// render writes a page with the given status
func (h *Handler) render(c *gin.Context, status int, view string, data any) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := h.views.Render(c.Writer, view, data); err != nil {
		slog.Error("failed to render page",
			"view", view,
			"error", err,
			"request_id", middleware.GetRequestID(c))
		// headers are not flushed until the body is written
		c.String(http.StatusInternalServerError, "Internal server error")
	}
}

type messageView struct {
	Page
	Message string
}

// NotFound renders the "Page not found" page with status 404
func (h *Handler) NotFound(c *gin.Context) {
	p := h.page(c, "Page not found", "")
	p.Status = http.StatusNotFound
	h.render(c, http.StatusNotFound, "notfound", messageView{
		Page:    p,
		Message: "The page you have requested cannot be found. Try visiting the dataset listing to explore the material published on this site.",
	})
}

// unavailable renders the "no data" page shown when the API fails
func (h *Handler) unavailable(c *gin.Context, err error, what string) {
	slog.Warn("upstream request failed",
		"path", c.Request.URL.Path,
		"what", what,
		"error", err,
		"request_id", middleware.GetRequestID(c))
	p := h.page(c, "Service unavailable", "")
	p.Status = http.StatusBadGateway
	h.render(c, http.StatusBadGateway, "error", messageView{
		Page:    p,
		Message: "Could not load " + what + ". Please try again in a moment.",
	})
}
