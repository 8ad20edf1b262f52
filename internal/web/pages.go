package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sanctions-web/sanctions-web/internal/content"
)

func itoa(n int) string { return strconv.Itoa(n) }

type articlesView struct {
	Page
	Articles []*content.Page
}

// Articles lists published articles, newest first
func (h *Handler) Articles(c *gin.Context) {
	h.render(c, http.StatusOK, "articles", articlesView{
		Page:     h.page(c, "Articles", "articles"),
		Articles: h.content.Articles(),
	})
}

type contentView struct {
	Page
	Content *content.Page
	// Menu lists the pages of the same section for the side navigation
	Menu []*content.Page
}

// Article renders one article
func (h *Handler) Article(c *gin.Context) {
	article, err := h.content.ArticleBySlug(c.Param("slug"))
	if err != nil {
		h.NotFound(c)
		return
	}
	p := h.page(c, article.Title, "articles")
	p.Summary = article.Summary
	h.render(c, http.StatusOK, "content", contentView{Page: p, Content: article})
}

// Docs renders a documentation page. Pages in the "about" section get the
// about menu, everything else the documentation menu.
func (h *Handler) Docs(c *gin.Context) {
	slug := strings.Trim(c.Param("path"), "/")
	doc, err := h.content.ContentBySlug(slug)
	if err != nil {
		h.NotFound(c)
		return
	}
	section := "docs"
	if doc.Section == "about" {
		section = "about"
	}
	p := h.page(c, doc.Title, section)
	p.Summary = doc.Summary
	h.render(c, http.StatusOK, "content", contentView{
		Page:    p,
		Content: doc,
		Menu:    h.content.Docs(doc.Section),
	})
}
