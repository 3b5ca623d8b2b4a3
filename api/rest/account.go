package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shoreline-games/shorebot/game/account"
	"github.com/shoreline-games/shorebot/game/ledger"
)

// AccountHandler exposes per-player profile and economy endpoints. Player
// identity always arrives as the Discord user id supplied by the gateway.
type AccountHandler struct {
	accounts *account.Service
	ledger   *ledger.Service
}

func NewAccountHandler(accounts *account.Service, led *ledger.Service) *AccountHandler {
	return &AccountHandler{accounts: accounts, ledger: led}
}

// Profile handles GET /api/players/:discord_id/profile.
func (h *AccountHandler) Profile(c *gin.Context) {
	p, err := h.accounts.Profile(c.Request.Context(), c.Param("discord_id"), time.Now())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ClaimDaily handles POST /api/players/:discord_id/daily.
func (h *AccountHandler) ClaimDaily(c *gin.Context) {
	amount, err := h.accounts.ClaimDaily(c.Request.Context(), c.Param("discord_id"), time.Now())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"amount": amount})
}

type transferRequest struct {
	FromDiscordID string `json:"from_discord_id" binding:"required"`
	ToDiscordID   string `json:"to_discord_id" binding:"required"`
	Amount        int64  `json:"amount" binding:"required,min=1"`
}

// Transfer handles POST /api/players/transfer: a direct coin payment from
// one player to another. The recipient's account is created on first
// contact, like everywhere else.
func (h *AccountHandler) Transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.FromDiscordID == req.ToDiscordID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot transfer to yourself"})
		return
	}
	ctx := c.Request.Context()
	from, err := h.ledger.GetOrCreate(ctx, req.FromDiscordID)
	if err != nil {
		respondErr(c, err)
		return
	}
	to, err := h.ledger.GetOrCreate(ctx, req.ToDiscordID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if err := h.ledger.Transfer(ctx, from.ID, to.ID, req.Amount); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"from":   req.FromDiscordID,
		"to":     req.ToDiscordID,
		"amount": req.Amount,
	})
}

type perkRequest struct {
	Perk string `json:"perk" binding:"required,oneof=claim roll"`
}

// BuyPerk handles POST /api/players/:discord_id/perks.
func (h *AccountHandler) BuyPerk(c *gin.Context) {
	var req perkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.accounts.BuyPerk(c.Request.Context(), c.Param("discord_id"), req.Perk); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"perk": req.Perk})
}
