package rest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shoreline-games/shorebot/api/sse"
	"github.com/shoreline-games/shorebot/audit"
	"github.com/shoreline-games/shorebot/cache"
	"github.com/shoreline-games/shorebot/config"
	"github.com/shoreline-games/shorebot/game/account"
	"github.com/shoreline-games/shorebot/game/arena"
	"github.com/shoreline-games/shorebot/game/auction"
	"github.com/shoreline-games/shorebot/game/catalog"
	"github.com/shoreline-games/shorebot/game/collection"
	"github.com/shoreline-games/shorebot/game/events"
	"github.com/shoreline-games/shorebot/game/leaderboard"
	"github.com/shoreline-games/shorebot/game/ledger"
	"github.com/shoreline-games/shorebot/game/trade"
	mw "github.com/shoreline-games/shorebot/middleware"
	"github.com/shoreline-games/shorebot/scheduler"
)

// Deps bundles everything the REST layer needs. main builds one for the real
// server; integration tests build another over in-memory backends.
type Deps struct {
	DB         *gorm.DB
	Cache      cache.Cache
	PubSub     cache.PubSub
	Ledger     *ledger.Service
	Accounts   *account.Service
	Arena      *arena.Service
	Auctions   *auction.Service
	Catalog    *catalog.Service
	Collection *collection.Service
	Trades     *trade.Service
	Board      *leaderboard.Service
	Events     *events.Publisher
	Audit      *audit.Service
	Sched      *scheduler.Scheduler
	Cfg        *config.Config
	Logger     *zap.Logger
}

// RegisterRoutes mounts every API route group on the engine. The engine
// arrives with the global middleware chain already installed.
func RegisterRoutes(r *gin.Engine, d Deps) {
	authH := NewAuthHandler(d.Cache, d.Cfg.Security)
	accountH := NewAccountHandler(d.Accounts, d.Ledger)
	gameH := NewGameHandler(d.Arena)
	collectionH := NewCollectionHandler(d.Collection)
	catalogH := NewCatalogHandler(d.Catalog)
	auctionH := NewAuctionHandler(d.Auctions)
	tradeH := NewTradeHandler(d.Trades)
	boardH := NewLeaderboardHandler(d.Board, d.Events)
	adminH := NewAdminHandler(d.DB, d.Catalog, d.Accounts, d.Collection, d.Auctions, d.Board, d.Sched, d.Logger)
	sseH := sse.NewHandler(d.PubSub, d.Cache, d.Cfg.Security, d.Logger)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authG := r.Group("/api/auth")
	{
		authG.POST("/token", authH.Token)
		authG.POST("/revoke", authH.Revoke)
	}

	api := r.Group("/api")
	api.Use(mw.Auth(d.Cfg.Security, d.Cache))
	{
		players := api.Group("/players/:discord_id")
		{
			players.GET("/profile", accountH.Profile)
			players.POST("/daily", auditWare(d.Audit, "daily"), accountH.ClaimDaily)
			players.POST("/perks", auditWare(d.Audit, "buy_perk"), accountH.BuyPerk)
			players.GET("/collection", collectionH.List)
			players.POST("/collection/sell", auditWare(d.Audit, "sell"), collectionH.Sell)
			players.POST("/collection/sellall", auditWare(d.Audit, "sell_all"), collectionH.SellAll)
			players.POST("/collection/upgrade", auditWare(d.Audit, "upgrade"), collectionH.Upgrade)
			players.GET("/trades", tradeH.List)
		}
		api.POST("/players/transfer", auditWare(d.Audit, "transfer"), accountH.Transfer)

		game := api.Group("/game")
		{
			game.POST("/roll", auditWare(d.Audit, "roll"), gameH.Roll)
			game.POST("/claim", auditWare(d.Audit, "claim"), gameH.Claim)
			game.GET("/spawns/:channel_id", gameH.Spawn)
		}

		api.GET("/catalog", catalogH.List)
		api.GET("/catalog/search", catalogH.Search)

		auctions := api.Group("/auctions")
		{
			auctions.GET("", auctionH.List)
			auctions.GET("/search", auctionH.Search)
			auctions.POST("", auditWare(d.Audit, "auction_create"), auctionH.Create)
			auctions.POST("/:id/bids", auditWare(d.Audit, "auction_bid"), auctionH.Bid)
			auctions.POST("/:id/cancel", auditWare(d.Audit, "auction_cancel"), auctionH.Cancel)
			auctions.GET("/:id/bids", auctionH.Bids)
		}

		trades := api.Group("/trades")
		{
			trades.POST("", auditWare(d.Audit, "trade_create"), tradeH.Create)
			trades.POST("/gift", auditWare(d.Audit, "gift"), tradeH.Gift)
			trades.POST("/:id/accept", auditWare(d.Audit, "trade_accept"), tradeH.Accept)
			trades.POST("/:id/reject", tradeH.Reject)
			trades.POST("/:id/cancel", tradeH.Cancel)
		}

		api.GET("/leaderboard", boardH.Top)
		api.GET("/events/recent", boardH.Recent)
	}

	adminG := r.Group("/api/admin")
	adminG.Use(AdminAuth(d.Cfg.Server.AdminKey))
	{
		adminG.POST("/characters", adminH.AddCharacter)
		adminG.POST("/characters/rename", adminH.RenameCharacter)
		adminG.POST("/bonus", adminH.GrantBonus)
		adminG.GET("/metrics", adminH.Metrics)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
		adminG.POST("/leaderboard/refresh", adminH.RefreshLeaderboard)
		adminG.POST("/auctions/sweep", adminH.SweepAuctions)
		adminG.POST("/liquidate", adminH.Liquidate)
	}

	// SSE authenticates via ?token= because EventSource cannot set headers.
	r.GET("/api/events/stream", sseH.ServeSSE)
}

type captureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// auditWare records one economy action per request: who did it, the request
// and response bodies, and how long it took. Writes are async; a full audit
// queue never blocks the request.
func auditWare(svc *audit.Service, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var reqBody []byte
		if c.Request.Body != nil {
			reqBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(reqBody))
		}
		cw := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = cw

		c.Next()

		var req, resp json.RawMessage
		if json.Valid(reqBody) {
			req = reqBody
		}
		if body := cw.buf.Bytes(); json.Valid(body) {
			resp = body
		}
		entry := audit.Entry{
			TraceID:    mw.GetTraceID(c),
			DiscordID:  discordIDFrom(c, reqBody),
			Action:     action,
			Request:    req,
			Response:   resp,
			IP:         c.ClientIP(),
			DurationMs: int(time.Since(start).Milliseconds()),
		}
		if c.Writer.Status() >= http.StatusBadRequest {
			entry.Error = http.StatusText(c.Writer.Status())
		}
		svc.Log(entry)
	}
}

// discordIDFrom pulls the acting player's id from the URL when the route has
// one, falling back to the request body.
func discordIDFrom(c *gin.Context, body []byte) string {
	if id := c.Param("discord_id"); id != "" {
		return id
	}
	var probe struct {
		DiscordID     string `json:"discord_id"`
		FromDiscordID string `json:"from_discord_id"`
	}
	_ = json.Unmarshal(body, &probe)
	if probe.DiscordID != "" {
		return probe.DiscordID
	}
	return probe.FromDiscordID
}
