package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shoreline-games/shorebot/game/account"
	"github.com/shoreline-games/shorebot/game/auction"
	"github.com/shoreline-games/shorebot/game/catalog"
	"github.com/shoreline-games/shorebot/game/collection"
	"github.com/shoreline-games/shorebot/game/leaderboard"
	"github.com/shoreline-games/shorebot/model"
	"github.com/shoreline-games/shorebot/scheduler"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	db         *gorm.DB
	catalog    *catalog.Service
	accounts   *account.Service
	collection *collection.Service
	auctions   *auction.Service
	board      *leaderboard.Service
	sched      *scheduler.Scheduler
	logger     *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	db *gorm.DB,
	cat *catalog.Service,
	accounts *account.Service,
	col *collection.Service,
	auctions *auction.Service,
	board *leaderboard.Service,
	sched *scheduler.Scheduler,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		db:         db,
		catalog:    cat,
		accounts:   accounts,
		collection: col,
		auctions:   auctions,
		board:      board,
		sched:      sched,
		logger:     logger,
	}
}

type addCharacterRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=128"`
	Series   string `json:"series" binding:"required,min=1,max=128"`
	Category string `json:"category" binding:"omitempty,oneof=Anime Film Series Game Meme Webtoon Manhwa Generic"`
	Gender   string `json:"gender" binding:"omitempty,oneof=male female unknown"`
	Rank     int    `json:"rank" binding:"required,min=1"`
}

// AddCharacter ingests a new catalog entry.
// POST /api/admin/characters
func (h *AdminHandler) AddCharacter(c *gin.Context) {
	var req addCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ch, err := h.catalog.Add(c.Request.Context(), req.Name, req.Series, req.Category, req.Gender, req.Rank)
	if err != nil {
		respondErr(c, err)
		return
	}
	h.logger.Info("admin added character",
		zap.String("name", ch.Name), zap.Int("rank", ch.Rank))
	c.JSON(http.StatusOK, ch)
}

type renameCharacterRequest struct {
	Name    string `json:"name" binding:"required,min=1,max=128"`
	NewName string `json:"new_name" binding:"required,min=1,max=128"`
}

// RenameCharacter renames an existing catalog entry.
// POST /api/admin/characters/rename
func (h *AdminHandler) RenameCharacter(c *gin.Context) {
	var req renameCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ch, err := h.catalog.Rename(c.Request.Context(), req.Name, req.NewName)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

type grantBonusRequest struct {
	DiscordID string `json:"discord_id" binding:"required"`
	Kind      string `json:"kind" binding:"required,oneof=roll claim"`
	Count     int    `json:"count" binding:"required,min=1,max=100"`
}

// GrantBonus hands out extra roll or claim credits.
// POST /api/admin/bonus
func (h *AdminHandler) GrantBonus(c *gin.Context) {
	var req grantBonusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.accounts.GrantBonus(c.Request.Context(), req.DiscordID, req.Kind, req.Count); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Metrics returns server health metrics.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	var accounts, characters, items, activeAuctions int64
	h.db.Model(&model.Account{}).Count(&accounts)
	h.db.Model(&model.Character{}).Count(&characters)
	h.db.Model(&model.CollectionItem{}).Count(&items)
	h.db.Model(&model.Auction{}).Where("status = ?", model.AuctionActive).Count(&activeAuctions)
	c.JSON(http.StatusOK, gin.H{
		"accounts":        accounts,
		"characters":      characters,
		"owned_items":     items,
		"active_auctions": activeAuctions,
		"scheduler_tasks": h.sched.ListTickers(),
	})
}

// ListSchedulerTasks returns names of all registered ticker tasks.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.ListTickers()})
}

// RefreshLeaderboard rebuilds the cached wealth ranking from the database.
// POST /api/admin/leaderboard/refresh
func (h *AdminHandler) RefreshLeaderboard(c *gin.Context) {
	n, err := h.board.Refresh(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": n})
}

// SweepAuctions settles every auction past its deadline right now.
// POST /api/admin/auctions/sweep
func (h *AdminHandler) SweepAuctions(c *gin.Context) {
	n, err := h.auctions.ExpireSweep(c.Request.Context(), time.Now())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settled": n})
}

// Liquidate sells off every player's collection, crediting each owner its
// full value. Used for seasonal resets.
// POST /api/admin/liquidate
func (h *AdminHandler) Liquidate(c *gin.Context) {
	var owners []string
	err := h.db.WithContext(c.Request.Context()).
		Model(&model.CollectionItem{}).
		Distinct("accounts.discord_id").
		Joins("JOIN accounts ON accounts.id = collection_items.account_id").
		Pluck("accounts.discord_id", &owners).Error
	if err != nil {
		respondErr(c, err)
		return
	}

	var sold int
	var total int64
	for _, discordID := range owners {
		n, amount, err := h.collection.SellAll(c.Request.Context(), discordID)
		if err != nil {
			h.logger.Error("liquidation failed for account",
				zap.String("discord_id", discordID), zap.Error(err))
			continue
		}
		sold += n
		total += amount
	}
	h.logger.Info("collections liquidated",
		zap.Int("owners", len(owners)), zap.Int("items", sold), zap.Int64("total", total))
	c.JSON(http.StatusOK, gin.H{"owners": len(owners), "items": sold, "amount": total})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// WARNING: if adminKey is empty all admin endpoints are disabled (503) so the
// server cannot be accidentally deployed without protection. Set a non-empty
// server.admin_key in config to enable admin routes.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if key != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
