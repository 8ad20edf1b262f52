package web

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/sanctions-web/sanctions-web/internal/index"
	"github.com/sanctions-web/sanctions-web/internal/upstream"
)

// Property is one row of an entity's property table
type Property struct {
	Name   string
	Values []PropertyValue
}

// PropertyValue is a literal value or a link to a nested entity
type PropertyValue struct {
	Text string
	// Link is set when the value is an adjacent entity
	Link string
}

type entityView struct {
	Page
	Entity     *upstream.Entity
	Properties []Property
	Datasets   []*index.Dataset
}

// entityProperties flattens entity properties into sorted rows. Nested
// entities are shown by caption and linked to their own page.
func entityProperties(e *upstream.Entity) []Property {
	names := make([]string, 0, len(e.Properties))
	for name := range e.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	props := make([]Property, 0, len(names))
	for _, name := range names {
		var values []PropertyValue
		for _, raw := range e.Properties[name] {
			switch v := raw.(type) {
			case string:
				values = append(values, PropertyValue{Text: v})
			case map[string]any:
				pv := PropertyValue{}
				if caption, ok := v["caption"].(string); ok {
					pv.Text = caption
				}
				if id, ok := v["id"].(string); ok && id != "" {
					pv.Link = "/entities/" + id + "/"
					if pv.Text == "" {
						pv.Text = id
					}
				}
				if pv.Text != "" {
					values = append(values, pv)
				}
			}
		}
		if len(values) > 0 {
			props = append(props, Property{Name: name, Values: values})
		}
	}
	return props
}

// indexRelevant reports whether an entity page is worth a search engine's
// attention: sanctions targets and entities tagged with a topic.
func indexRelevant(e *upstream.Entity) bool {
	return e.Target || len(e.Values("topics")) > 0
}

// Entity renders an entity profile. An entity the API does not return is a
// 404; a failed API call renders the "no data" page.
func (h *Handler) Entity(c *gin.Context) {
	entity, err := h.catalog.GetEntityByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.unavailable(c, err, "this entity")
		return
	}
	if entity == nil {
		h.NotFound(c)
		return
	}
	view := entityView{
		Page:       h.page(c, entity.Caption, "entities"),
		Entity:     entity,
		Properties: entityProperties(entity),
		Datasets:   h.catalog.EntityDatasets(entity),
	}
	view.NoIndex = !indexRelevant(entity)
	h.render(c, http.StatusOK, "entity", view)
}
