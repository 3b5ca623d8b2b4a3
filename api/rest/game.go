package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shoreline-games/shorebot/game/arena"
	"github.com/shoreline-games/shorebot/game/catalog"
)

// GameHandler covers the roll/claim loop. Spawn keys are channel-scoped ids
// chosen by the gateway, typically the Discord channel id.
type GameHandler struct {
	arena *arena.Service
}

func NewGameHandler(a *arena.Service) *GameHandler {
	return &GameHandler{arena: a}
}

type rollRequest struct {
	DiscordID string `json:"discord_id" binding:"required"`
	ChannelID string `json:"channel_id" binding:"required"`
	Gender    string `json:"gender" binding:"omitempty,oneof=male female unknown"`
	Category  string `json:"category" binding:"omitempty,oneof=Anime Film Series Game Meme Webtoon Manhwa Generic"`
}

// Roll handles POST /api/game/roll.
func (h *GameHandler) Roll(c *gin.Context) {
	var req rollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sp, err := h.arena.Roll(c.Request.Context(), req.DiscordID, req.ChannelID,
		catalog.Filter{Gender: req.Gender, Category: req.Category}, time.Now())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}

type claimRequest struct {
	DiscordID string `json:"discord_id" binding:"required"`
	ChannelID string `json:"channel_id" binding:"required"`
}

// Claim handles POST /api/game/claim.
func (h *GameHandler) Claim(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sp, err := h.arena.AttemptClaim(c.Request.Context(), req.ChannelID, req.DiscordID, time.Now())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}

// Spawn handles GET /api/game/spawns/:channel_id.
func (h *GameHandler) Spawn(c *gin.Context) {
	sp, err := h.arena.Get(c.Param("channel_id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}
