package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shoreline-games/shorebot/game/auction"
)

// AuctionHandler exposes the auction house.
type AuctionHandler struct {
	auctions *auction.Service
}

func NewAuctionHandler(a *auction.Service) *AuctionHandler {
	return &AuctionHandler{auctions: a}
}

type createAuctionRequest struct {
	DiscordID     string `json:"discord_id" binding:"required"`
	Name          string `json:"name" binding:"required,min=1,max=128"`
	StartingPrice int64  `json:"starting_price" binding:"omitempty,min=0"`
	DurationMin   int    `json:"duration_min" binding:"omitempty,min=0,max=10080"`
	ChannelID     string `json:"channel_id"`
}

// Create handles POST /api/auctions.
func (h *AuctionHandler) Create(c *gin.Context) {
	var req createAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a, err := h.auctions.Create(c.Request.Context(), req.DiscordID, req.Name,
		req.StartingPrice, time.Duration(req.DurationMin)*time.Minute, req.ChannelID, time.Now())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

type bidRequest struct {
	DiscordID string `json:"discord_id" binding:"required"`
	Amount    int64  `json:"amount" binding:"required,min=1"`
}

// Bid handles POST /api/auctions/:id/bids.
func (h *AuctionHandler) Bid(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auction id"})
		return
	}
	var req bidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a, err := h.auctions.PlaceBid(c.Request.Context(), id, req.DiscordID, req.Amount, time.Now())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

type cancelAuctionRequest struct {
	DiscordID string `json:"discord_id" binding:"required"`
}

// Cancel handles POST /api/auctions/:id/cancel.
func (h *AuctionHandler) Cancel(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auction id"})
		return
	}
	var req cancelAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.auctions.Cancel(c.Request.Context(), id, req.DiscordID); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// List handles GET /api/auctions.
func (h *AuctionHandler) List(c *gin.Context) {
	listings, err := h.auctions.ListActive(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"auctions": listings, "count": len(listings)})
}

// Search handles GET /api/auctions/search?name=frag.
func (h *AuctionHandler) Search(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	l, err := h.auctions.FindActiveByCharacterName(c.Request.Context(), name)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// Bids handles GET /api/auctions/:id/bids.
func (h *AuctionHandler) Bids(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auction id"})
		return
	}
	bids, err := h.auctions.Bids(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bids": bids, "count": len(bids)})
}
