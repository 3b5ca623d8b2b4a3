package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apirest "github.com/shoreline-games/shorebot/api/rest"
	"github.com/shoreline-games/shorebot/audit"
	"github.com/shoreline-games/shorebot/cache"
	"github.com/shoreline-games/shorebot/config"
	dbadapter "github.com/shoreline-games/shorebot/db"
	"github.com/shoreline-games/shorebot/game/account"
	"github.com/shoreline-games/shorebot/game/arena"
	"github.com/shoreline-games/shorebot/game/auction"
	"github.com/shoreline-games/shorebot/game/catalog"
	"github.com/shoreline-games/shorebot/game/collection"
	"github.com/shoreline-games/shorebot/game/events"
	"github.com/shoreline-games/shorebot/game/leaderboard"
	"github.com/shoreline-games/shorebot/game/ledger"
	"github.com/shoreline-games/shorebot/game/ratewindow"
	"github.com/shoreline-games/shorebot/game/trade"
	mw "github.com/shoreline-games/shorebot/middleware"
	"github.com/shoreline-games/shorebot/model"
	"github.com/shoreline-games/shorebot/scheduler"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if critical surfaces will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}
	if cfg.Security.GatewayKeyHash == "" {
		logger.Warn("security.gateway_key_hash is not set; token issuing is disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	// ---- Game Services ----
	pub := events.NewPublisher(c, pubsub, logger)
	led := ledger.NewService(db, logger)
	accounts := account.NewService(db, led, account.Config{
		RollWindow:       ratewindow.Window{Limit: cfg.Game.RollLimit, Duration: cfg.Game.RollWindow},
		ClaimWindow:      ratewindow.Window{Limit: cfg.Game.ClaimLimit, Duration: cfg.Game.ClaimWindow},
		DailyReward:      cfg.Game.DailyReward,
		DailyWindow:      cfg.Game.DailyWindow,
		BonusClaimPrice:  cfg.Game.BonusClaimPrice,
		BonusClaimAmount: cfg.Game.BonusClaimAmount,
		BonusRollPrice:   cfg.Game.BonusRollPrice,
		BonusRollAmount:  cfg.Game.BonusRollAmount,
	}, logger)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	cat := catalog.NewService(db, nil, rng, logger)
	col := collection.NewService(db, led, collection.Config{
		UpgradeBaseCost:  cfg.Game.UpgradeBaseCost,
		UpgradeValueRate: cfg.Game.UpgradeValueRate,
	}, logger)
	arenaSvc := arena.NewService(accounts, cat, col, sched, pub, cfg.Game.SpawnTTL, logger)
	auctions := auction.NewService(db, c, led, col, pub, auction.Config{
		MinStartingPrice: cfg.Game.AuctionMinPrice,
		DefaultDuration:  cfg.Game.AuctionDuration,
	}, logger)
	trades := trade.NewService(db, led, col, pub, logger)
	board := leaderboard.NewService(db, c, cfg.Game.LeaderboardSize, logger)

	// ---- Periodic Scheduler Tasks ----
	sched.AddTicker("auction_sweep", cfg.Game.SweepInterval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if n, err := auctions.ExpireSweep(ctx, time.Now()); err != nil {
			logger.Error("auction sweep failed", zap.Error(err))
		} else if n > 0 {
			logger.Info("auction sweep settled", zap.Int("count", n))
		}
	})
	sched.AddTicker("leaderboard_refresh", cfg.Game.LeaderboardEvery, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := board.Refresh(ctx); err != nil {
			logger.Error("leaderboard refresh failed", zap.Error(err))
		}
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))
	if len(cfg.Security.AllowedIPs) > 0 {
		r.Use(mw.IPWhitelist(cfg.Security.AllowedIPs))
	}

	apirest.RegisterRoutes(r, apirest.Deps{
		DB:         db,
		Cache:      c,
		PubSub:     pubsub,
		Ledger:     led,
		Accounts:   accounts,
		Arena:      arenaSvc,
		Auctions:   auctions,
		Catalog:    cat,
		Collection: col,
		Trades:     trades,
		Board:      board,
		Events:     pub,
		Audit:      auditSvc,
		Sched:      sched,
		Cfg:        cfg,
		Logger:     logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
