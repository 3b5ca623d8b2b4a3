package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shoreline-games/shorebot/game/collection"
)

// CollectionHandler exposes a player's owned characters and the sell/upgrade
// economy around them.
type CollectionHandler struct {
	collection *collection.Service
}

func NewCollectionHandler(col *collection.Service) *CollectionHandler {
	return &CollectionHandler{collection: col}
}

// List handles GET /api/players/:discord_id/collection.
func (h *CollectionHandler) List(c *gin.Context) {
	items, err := h.collection.ListByAccount(c.Request.Context(), c.Param("discord_id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

type nameRequest struct {
	Name string `json:"name" binding:"required,min=1,max=128"`
}

// Sell handles POST /api/players/:discord_id/collection/sell.
func (h *CollectionHandler) Sell(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := h.collection.Sell(c.Request.Context(), c.Param("discord_id"), req.Name)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sold": item, "amount": item.Character.Value})
}

// SellAll handles POST /api/players/:discord_id/collection/sellall.
func (h *CollectionHandler) SellAll(c *gin.Context) {
	n, total, err := h.collection.SellAll(c.Request.Context(), c.Param("discord_id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sold": n, "amount": total})
}

// Upgrade handles POST /api/players/:discord_id/collection/upgrade.
func (h *CollectionHandler) Upgrade(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, cost, err := h.collection.Upgrade(c.Request.Context(), c.Param("discord_id"), req.Name)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item, "cost": cost})
}
