package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shoreline-games/shorebot/game/trade"
)

// TradeHandler exposes two-sided trades and direct gifts between players.
type TradeHandler struct {
	trades *trade.Service
}

func NewTradeHandler(t *trade.Service) *TradeHandler {
	return &TradeHandler{trades: t}
}

type tradeSide struct {
	ItemID *int64 `json:"item_id"`
	Coins  int64  `json:"coins" binding:"min=0"`
}

type createTradeRequest struct {
	FromDiscordID string    `json:"from_discord_id" binding:"required"`
	ToDiscordID   string    `json:"to_discord_id" binding:"required"`
	Offer         tradeSide `json:"offer"`
	Request       tradeSide `json:"request"`
}

// Create handles POST /api/trades.
func (h *TradeHandler) Create(c *gin.Context) {
	var req createTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.trades.Create(c.Request.Context(), req.FromDiscordID, req.ToDiscordID,
		trade.Offer{ItemID: req.Offer.ItemID, Coins: req.Offer.Coins},
		trade.Offer{ItemID: req.Request.ItemID, Coins: req.Request.Coins})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// List handles GET /api/players/:discord_id/trades.
func (h *TradeHandler) List(c *gin.Context) {
	trades, err := h.trades.ListPending(c.Request.Context(), c.Param("discord_id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

type tradeActionRequest struct {
	DiscordID string `json:"discord_id" binding:"required"`
}

func (h *TradeHandler) act(c *gin.Context, fn func(id int64, discordID string) error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trade id"})
		return
	}
	var req tradeActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := fn(id, req.DiscordID); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Accept handles POST /api/trades/:id/accept.
func (h *TradeHandler) Accept(c *gin.Context) {
	h.act(c, func(id int64, discordID string) error {
		return h.trades.Accept(c.Request.Context(), id, discordID)
	})
}

// Reject handles POST /api/trades/:id/reject.
func (h *TradeHandler) Reject(c *gin.Context) {
	h.act(c, func(id int64, discordID string) error {
		return h.trades.Reject(c.Request.Context(), id, discordID)
	})
}

// Cancel handles POST /api/trades/:id/cancel.
func (h *TradeHandler) Cancel(c *gin.Context) {
	h.act(c, func(id int64, discordID string) error {
		return h.trades.Cancel(c.Request.Context(), id, discordID)
	})
}

type giftRequest struct {
	FromDiscordID string `json:"from_discord_id" binding:"required"`
	ToDiscordID   string `json:"to_discord_id" binding:"required"`
	Name          string `json:"name" binding:"required,min=1,max=128"`
}

// Gift handles POST /api/trades/gift.
func (h *TradeHandler) Gift(c *gin.Context) {
	var req giftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := h.trades.Gift(c.Request.Context(), req.FromDiscordID, req.ToDiscordID, req.Name)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gifted": item})
}
