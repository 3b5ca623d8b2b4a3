package arena

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shoreline-games/shorebot/game/account"
	"github.com/shoreline-games/shorebot/game/catalog"
	"github.com/shoreline-games/shorebot/game/collection"
	"github.com/shoreline-games/shorebot/game/events"
	"github.com/shoreline-games/shorebot/model"
	"github.com/shoreline-games/shorebot/scheduler"
)

var (
	ErrNotFound       = errors.New("no active spawn")
	ErrExpired        = errors.New("spawn expired")
	ErrAlreadyClaimed = errors.New("already claimed")
)

// AlreadyClaimedError carries the Discord id of the winner.
type AlreadyClaimedError struct {
	By string
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("already claimed by %s", e.By)
}

func (e *AlreadyClaimedError) Is(target error) bool { return target == ErrAlreadyClaimed }

// Spawn is one rolled character waiting to be claimed. Spawns live only in
// memory; a restart clears the arena.
type Spawn struct {
	Key       string          `json:"key"`
	Character model.Character `json:"character"`
	SpawnedAt time.Time       `json:"spawned_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Claimed   bool            `json:"claimed"`
	ClaimedBy string          `json:"claimed_by,omitempty"`
}

// Service runs the spawn/claim race. One mutex guards the whole spawn map;
// every check-then-act on a spawn happens inside it, so a spawn can be won
// at most once.
type Service struct {
	accounts   *account.Service
	catalog    *catalog.Service
	collection *collection.Service
	sched      *scheduler.Scheduler
	events     *events.Publisher
	ttl        time.Duration
	logger     *zap.Logger

	mu     sync.Mutex
	spawns map[string]*Spawn
}

// NewService creates a new arena Service.
func NewService(accounts *account.Service, cat *catalog.Service, col *collection.Service,
	sched *scheduler.Scheduler, pub *events.Publisher, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		accounts:   accounts,
		catalog:    cat,
		collection: col,
		sched:      sched,
		events:     pub,
		ttl:        ttl,
		logger:     logger,
		spawns:     make(map[string]*Spawn),
	}
}

// Roll is the composite flow: draw a random character under the roll budget
// and spawn it under the given key. The spawn auto-expires after the TTL.
// The roll credit is consumed only after the draw succeeds; a filter that
// matches nothing costs the player nothing.
func (svc *Service) Roll(ctx context.Context, discordID, key string, f catalog.Filter, now time.Time) (*Spawn, error) {
	avail, err := svc.accounts.CheckRoll(ctx, discordID, now)
	if err != nil {
		return nil, err
	}
	if !avail.Allowed {
		return nil, &account.RateLimitedError{ResetAt: *avail.ResetAt}
	}
	ch, err := svc.catalog.DrawRandom(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := svc.accounts.ConsumeRoll(ctx, discordID, now); err != nil {
		return nil, err
	}

	sp := svc.Spawn(*ch, key, now)
	if svc.sched != nil {
		svc.sched.AddDelay("spawn:"+key, svc.ttl, func() {
			svc.Expire(key)
		})
	}
	if svc.events != nil {
		svc.events.Publish(ctx, events.TypeSpawned, map[string]interface{}{
			"key":        key,
			"character":  ch.Name,
			"series":     ch.Series,
			"rank":       ch.Rank,
			"value":      ch.Value,
			"expires_at": sp.ExpiresAt,
		})
	}
	svc.logger.Info("character spawned",
		zap.String("key", key),
		zap.String("character", ch.Name),
		zap.String("rolled_by", discordID))
	return sp, nil
}

// Spawn places a character in the arena under the given key, replacing any
// previous spawn there.
func (svc *Service) Spawn(ch model.Character, key string, now time.Time) *Spawn {
	sp := &Spawn{
		Key:       key,
		Character: ch,
		SpawnedAt: now,
		ExpiresAt: now.Add(svc.ttl),
	}
	svc.mu.Lock()
	svc.spawns[key] = sp
	svc.mu.Unlock()
	return sp
}

// Get returns the spawn under a key, claimed or not.
func (svc *Service) Get(key string) (*Spawn, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	sp, ok := svc.spawns[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sp
	return &cp, nil
}

// AttemptClaim tries to win the spawn under a key for a user. The claim
// window is consumed only after the item lands in the winner's collection;
// a storage failure on either side leaves both the window and the spawn
// untouched.
func (svc *Service) AttemptClaim(ctx context.Context, key, discordID string, now time.Time) (*Spawn, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	sp, ok := svc.spawns[key]
	if !ok {
		return nil, ErrNotFound
	}
	if sp.Claimed {
		return nil, &AlreadyClaimedError{By: sp.ClaimedBy}
	}
	if now.After(sp.ExpiresAt) {
		delete(svc.spawns, key)
		return nil, ErrExpired
	}

	avail, err := svc.accounts.CheckClaim(ctx, discordID, now)
	if err != nil {
		return nil, err
	}
	if !avail.Allowed {
		return nil, &account.RateLimitedError{ResetAt: *avail.ResetAt}
	}
	item, err := svc.collection.Give(ctx, discordID, sp.Character.ID)
	if err != nil {
		return nil, err
	}
	if err := svc.accounts.ConsumeClaim(ctx, discordID, now); err != nil {
		if rmErr := svc.collection.Remove(ctx, item.ID); rmErr != nil {
			svc.logger.Error("claim rollback failed",
				zap.Int64("item_id", item.ID), zap.Error(rmErr))
		}
		return nil, err
	}
	sp.Claimed = true
	sp.ClaimedBy = discordID

	if svc.events != nil {
		svc.events.Publish(ctx, events.TypeClaimed, map[string]interface{}{
			"key":       key,
			"character": sp.Character.Name,
			"by":        discordID,
		})
	}
	svc.logger.Info("spawn claimed",
		zap.String("key", key),
		zap.String("character", sp.Character.Name),
		zap.String("by", discordID))
	cp := *sp
	return &cp, nil
}

// Expire removes the spawn under a key at its deadline. Emits an event only
// when an unclaimed spawn actually lapsed.
func (svc *Service) Expire(key string) {
	svc.mu.Lock()
	sp, ok := svc.spawns[key]
	if ok {
		delete(svc.spawns, key)
	}
	svc.mu.Unlock()

	if !ok || sp.Claimed {
		return
	}
	if svc.events != nil {
		svc.events.Publish(context.Background(), events.TypeSpawnExpired, map[string]interface{}{
			"key":       key,
			"character": sp.Character.Name,
		})
	}
	svc.logger.Info("spawn expired",
		zap.String("key", key),
		zap.String("character", sp.Character.Name))
}
