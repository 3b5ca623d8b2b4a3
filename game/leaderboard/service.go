package leaderboard

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shoreline-games/shorebot/cache"
	"github.com/shoreline-games/shorebot/model"
)

const wealthZKey = "leaderboard:wealth"

// Entry is one row of the wealth leaderboard.
type Entry struct {
	Rank      int    `json:"rank"`
	DiscordID string `json:"discord_id"`
	Balance   int64  `json:"balance"`
}

// Service serves the richest-accounts leaderboard from a cache sorted set,
// rebuilt periodically from the DB. Reads fall back to the DB when the set
// is cold.
type Service struct {
	db     *gorm.DB
	cache  cache.Cache
	size   int
	logger *zap.Logger
}

// NewService creates a new leaderboard Service. size bounds both the cached
// set and the largest page a caller can request.
func NewService(db *gorm.DB, c cache.Cache, size int, logger *zap.Logger) *Service {
	if size <= 0 {
		size = 100
	}
	return &Service{db: db, cache: c, size: size, logger: logger}
}

// Top returns the wealthiest accounts, richest first.
func (svc *Service) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > svc.size {
		limit = svc.size
	}

	members, err := svc.cache.ZRevRange(ctx, wealthZKey, 0, int64(limit-1))
	if err == nil && len(members) > 0 {
		entries := make([]Entry, 0, len(members))
		for i, m := range members {
			score, _ := svc.cache.ZScore(ctx, wealthZKey, m)
			entries = append(entries, Entry{
				Rank:      i + 1,
				DiscordID: m,
				Balance:   int64(score),
			})
		}
		return entries, nil
	}

	// Cold cache: query the DB and warm the set as a side effect.
	accts, err := svc.topAccounts(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(accts))
	for i, a := range accts {
		entries[i] = Entry{Rank: i + 1, DiscordID: a.DiscordID, Balance: a.Balance}
		_ = svc.cache.ZAdd(ctx, wealthZKey, float64(a.Balance), a.DiscordID)
	}
	return entries, nil
}

// Refresh rebuilds the cached set from the DB. Registered as a scheduler
// ticker; also reachable through the admin API.
func (svc *Service) Refresh(ctx context.Context) (int, error) {
	accts, err := svc.topAccounts(ctx, svc.size)
	if err != nil {
		return 0, err
	}
	for _, a := range accts {
		if err := svc.cache.ZAdd(ctx, wealthZKey, float64(a.Balance), a.DiscordID); err != nil {
			svc.logger.Warn("leaderboard zadd failed",
				zap.String("discord_id", a.DiscordID), zap.Error(err))
		}
	}
	return len(accts), nil
}

func (svc *Service) topAccounts(ctx context.Context, limit int) ([]model.Account, error) {
	var accts []model.Account
	err := svc.db.WithContext(ctx).
		Select("discord_id, balance").
		Order("balance DESC").
		Limit(limit).
		Find(&accts).Error
	return accts, err
}

// Bump updates one account's cached score in place, keeping the board fresh
// between refreshes.
func (svc *Service) Bump(ctx context.Context, discordID string, balance int64) {
	if err := svc.cache.ZAdd(ctx, wealthZKey, float64(balance), discordID); err != nil {
		svc.logger.Warn("leaderboard bump failed", zap.Error(err))
	}
}
