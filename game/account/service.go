package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shoreline-games/shorebot/game/ledger"
	"github.com/shoreline-games/shorebot/game/ratewindow"
	"github.com/shoreline-games/shorebot/model"
)

var (
	ErrRateLimited   = errors.New("rate limited")
	ErrDailyNotReady = errors.New("daily reward not ready")
	ErrUnknownPerk   = errors.New("unknown perk")
)

// RateLimitedError carries the time at which the exhausted window re-opens.
type RateLimitedError struct {
	ResetAt time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.ResetAt.Format(time.RFC3339))
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// DailyNotReadyError carries the time at which the daily reward unlocks.
type DailyNotReadyError struct {
	NextAt time.Time
}

func (e *DailyNotReadyError) Error() string {
	return fmt.Sprintf("daily reward available at %s", e.NextAt.Format(time.RFC3339))
}

func (e *DailyNotReadyError) Is(target error) bool { return target == ErrDailyNotReady }

// Perk kinds purchasable with coins.
const (
	PerkClaim = "claim" // one extra claim credit
	PerkRoll  = "roll"  // a batch of extra roll credits
)

// Config holds all account-level tuning knobs.
type Config struct {
	RollWindow       ratewindow.Window
	ClaimWindow      ratewindow.Window
	DailyReward      int64
	DailyWindow      time.Duration
	BonusClaimPrice  int64
	BonusClaimAmount int
	BonusRollPrice   int64
	BonusRollAmount  int
}

// Profile is the aggregate account view.
type Profile struct {
	DiscordID       string                  `json:"discord_id"`
	Balance         int64                   `json:"balance"`
	CollectionCount int64                   `json:"collection_count"`
	Roll            ratewindow.Availability `json:"roll"`
	Claim           ratewindow.Availability `json:"claim"`
	BonusRolls      int                     `json:"bonus_rolls"`
	BonusClaims     int                     `json:"bonus_claims"`
	DailyAvailable  bool                    `json:"daily_available"`
	DailyNextAt     *time.Time              `json:"daily_next_at,omitempty"`
}

// Service manages accounts: lazy creation, rate windows, daily rewards
// and perk purchases. Window mutations for one account are serialized by a
// per-account mutex so a load-modify-store never races with itself.
type Service struct {
	db     *gorm.DB
	ledger *ledger.Service
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a new account Service.
func NewService(db *gorm.DB, led *ledger.Service, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		db:     db,
		ledger: led,
		cfg:    cfg,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (svc *Service) lock(discordID string) *sync.Mutex {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	l, ok := svc.locks[discordID]
	if !ok {
		l = &sync.Mutex{}
		svc.locks[discordID] = l
	}
	return l
}

// GetOrCreate looks up (creating if needed) the account for a Discord user.
func (svc *Service) GetOrCreate(ctx context.Context, discordID string) (*model.Account, error) {
	return svc.ledger.GetOrCreate(ctx, discordID)
}

// Profile returns the aggregate view of an account.
func (svc *Service) Profile(ctx context.Context, discordID string, now time.Time) (*Profile, error) {
	acct, err := svc.ledger.GetOrCreate(ctx, discordID)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := svc.db.WithContext(ctx).Model(&model.CollectionItem{}).
		Where("account_id = ?", acct.ID).Count(&count).Error; err != nil {
		return nil, err
	}

	p := &Profile{
		DiscordID:       discordID,
		Balance:         acct.Balance,
		CollectionCount: count,
		Roll:            svc.cfg.RollWindow.Check(rollState(acct), now),
		Claim:           svc.cfg.ClaimWindow.Check(claimState(acct), now),
		BonusRolls:      acct.BonusRolls,
		BonusClaims:     acct.BonusClaims,
		DailyAvailable:  true,
	}
	if acct.DailyClaimedAt != nil {
		next := acct.DailyClaimedAt.Add(svc.cfg.DailyWindow)
		if now.Before(next) {
			p.DailyAvailable = false
			p.DailyNextAt = &next
		}
	}
	return p, nil
}

// ClaimDaily grants the daily coin reward once per rolling window.
func (svc *Service) ClaimDaily(ctx context.Context, discordID string, now time.Time) (int64, error) {
	l := svc.lock(discordID)
	l.Lock()
	defer l.Unlock()

	acct, err := svc.ledger.GetOrCreate(ctx, discordID)
	if err != nil {
		return 0, err
	}
	if acct.DailyClaimedAt != nil {
		next := acct.DailyClaimedAt.Add(svc.cfg.DailyWindow)
		if now.Before(next) {
			return 0, &DailyNotReadyError{NextAt: next}
		}
	}

	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ledger.Credit(tx, acct.ID, svc.cfg.DailyReward); err != nil {
			return err
		}
		return tx.Model(acct).Update("daily_claimed_at", now).Error
	})
	if err != nil {
		return 0, err
	}
	svc.logger.Info("daily claimed",
		zap.String("discord_id", discordID),
		zap.Int64("amount", svc.cfg.DailyReward))
	return svc.cfg.DailyReward, nil
}

// BuyPerk spends coins for bonus claim or roll credits.
func (svc *Service) BuyPerk(ctx context.Context, discordID, kind string) error {
	l := svc.lock(discordID)
	l.Lock()
	defer l.Unlock()

	acct, err := svc.ledger.GetOrCreate(ctx, discordID)
	if err != nil {
		return err
	}

	var price int64
	var column string
	var amount int
	switch kind {
	case PerkClaim:
		price, column, amount = svc.cfg.BonusClaimPrice, "bonus_claims", svc.cfg.BonusClaimAmount
	case PerkRoll:
		price, column, amount = svc.cfg.BonusRollPrice, "bonus_rolls", svc.cfg.BonusRollAmount
	default:
		return ErrUnknownPerk
	}

	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ledger.Debit(tx, acct.ID, price); err != nil {
			return err
		}
		return tx.Model(acct).Update(column, gorm.Expr(column+" + ?", amount)).Error
	})
	if err != nil {
		return err
	}
	svc.logger.Info("perk purchased",
		zap.String("discord_id", discordID),
		zap.String("kind", kind),
		zap.Int64("price", price))
	return nil
}

// CheckRoll reports roll availability without consuming anything.
func (svc *Service) CheckRoll(ctx context.Context, discordID string, now time.Time) (ratewindow.Availability, error) {
	acct, err := svc.ledger.GetOrCreate(ctx, discordID)
	if err != nil {
		return ratewindow.Availability{}, err
	}
	return svc.cfg.RollWindow.Check(rollState(acct), now), nil
}

// ConsumeRoll spends one roll, preferring primary window capacity and
// falling back to bonus credits. Returns RateLimitedError when neither is
// available.
func (svc *Service) ConsumeRoll(ctx context.Context, discordID string, now time.Time) error {
	l := svc.lock(discordID)
	l.Lock()
	defer l.Unlock()

	acct, err := svc.ledger.GetOrCreate(ctx, discordID)
	if err != nil {
		return err
	}
	st := rollState(acct)
	avail := svc.cfg.RollWindow.Check(st, now)
	if !avail.Allowed {
		return &RateLimitedError{ResetAt: *avail.ResetAt}
	}
	if avail.UsingBonus {
		st, err = svc.cfg.RollWindow.ConsumeBonus(st)
		if err != nil {
			return err
		}
	} else {
		st = svc.cfg.RollWindow.Consume(st, now)
	}
	return svc.db.WithContext(ctx).Model(acct).Updates(map[string]interface{}{
		"roll_count":    st.Count,
		"roll_reset_at": st.ResetAt,
		"bonus_rolls":   st.Bonus,
	}).Error
}

// CheckClaim reports claim availability without consuming anything.
func (svc *Service) CheckClaim(ctx context.Context, discordID string, now time.Time) (ratewindow.Availability, error) {
	acct, err := svc.ledger.GetOrCreate(ctx, discordID)
	if err != nil {
		return ratewindow.Availability{}, err
	}
	return svc.cfg.ClaimWindow.Check(claimState(acct), now), nil
}

// ConsumeClaim spends one claim, preferring primary window capacity and
// falling back to bonus credits.
func (svc *Service) ConsumeClaim(ctx context.Context, discordID string, now time.Time) error {
	l := svc.lock(discordID)
	l.Lock()
	defer l.Unlock()

	acct, err := svc.ledger.GetOrCreate(ctx, discordID)
	if err != nil {
		return err
	}
	st := claimState(acct)
	avail := svc.cfg.ClaimWindow.Check(st, now)
	if !avail.Allowed {
		return &RateLimitedError{ResetAt: *avail.ResetAt}
	}
	if avail.UsingBonus {
		st, err = svc.cfg.ClaimWindow.ConsumeBonus(st)
		if err != nil {
			return err
		}
	} else {
		st = svc.cfg.ClaimWindow.Consume(st, now)
	}
	return svc.db.WithContext(ctx).Model(acct).Updates(map[string]interface{}{
		"claim_count":    st.Count,
		"claim_reset_at": st.ResetAt,
		"bonus_claims":   st.Bonus,
	}).Error
}

// GrantBonus adds bonus credits of the given perk kind directly (admin path).
func (svc *Service) GrantBonus(ctx context.Context, discordID, kind string, n int) error {
	l := svc.lock(discordID)
	l.Lock()
	defer l.Unlock()

	acct, err := svc.ledger.GetOrCreate(ctx, discordID)
	if err != nil {
		return err
	}
	var column string
	switch kind {
	case PerkClaim:
		column = "bonus_claims"
	case PerkRoll:
		column = "bonus_rolls"
	default:
		return ErrUnknownPerk
	}
	if n <= 0 {
		return nil
	}
	return svc.db.WithContext(ctx).Model(acct).
		Update(column, gorm.Expr(column+" + ?", n)).Error
}

func rollState(acct *model.Account) ratewindow.State {
	return ratewindow.State{Count: acct.RollCount, ResetAt: acct.RollResetAt, Bonus: acct.BonusRolls}
}

func claimState(acct *model.Account) ratewindow.State {
	return ratewindow.State{Count: acct.ClaimCount, ResetAt: acct.ClaimResetAt, Bonus: acct.BonusClaims}
}
