package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shoreline-games/shorebot/game/catalog"
)

// CatalogHandler serves read-only catalog browsing. Mutations live under the
// admin routes.
type CatalogHandler struct {
	catalog *catalog.Service
}

func NewCatalogHandler(cat *catalog.Service) *CatalogHandler {
	return &CatalogHandler{catalog: cat}
}

// List handles GET /api/catalog?page=1&per_page=20.
func (h *CatalogHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	chars, total, err := h.catalog.List(c.Request.Context(), page, perPage)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"characters": chars,
		"total":      total,
		"page":       page,
		"per_page":   perPage,
	})
}

// Search handles GET /api/catalog/search?name=frag.
func (h *CatalogHandler) Search(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	ch, err := h.catalog.FindByName(c.Request.Context(), name)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}
