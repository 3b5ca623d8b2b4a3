package account

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shoreline-games/shorebot/game/ledger"
	"github.com/shoreline-games/shorebot/game/ratewindow"
	"github.com/shoreline-games/shorebot/testutil"
)

func testConfig() Config {
	return Config{
		RollWindow:       ratewindow.Window{Limit: 10, Duration: time.Hour},
		ClaimWindow:      ratewindow.Window{Limit: 1, Duration: 2 * time.Hour},
		DailyReward:      100,
		DailyWindow:      24 * time.Hour,
		BonusClaimPrice:  30000,
		BonusClaimAmount: 1,
		BonusRollPrice:   20000,
		BonusRollAmount:  5,
	}
}

func newTestService(t *testing.T) (*Service, *ledger.Service) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	led := ledger.NewService(db, zap.NewNop())
	return NewService(db, led, testConfig(), zap.NewNop()), led
}

func TestProfileFreshAccount(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Now()

	p, err := svc.Profile(context.Background(), "u1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.Balance)
	assert.Equal(t, int64(0), p.CollectionCount)
	assert.True(t, p.Roll.Allowed)
	assert.Equal(t, 10, p.Roll.Remaining)
	assert.True(t, p.Claim.Allowed)
	assert.True(t, p.DailyAvailable)
	assert.Nil(t, p.DailyNextAt)
}

func TestClaimDaily(t *testing.T) {
	svc, led := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	amount, err := svc.ClaimDaily(ctx, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(100), amount)

	acct, err := led.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), acct.Balance)

	// Second claim within the window is rejected with the unlock time.
	_, err = svc.ClaimDaily(ctx, "u1", now.Add(time.Hour))
	require.ErrorIs(t, err, ErrDailyNotReady)
	var dnr *DailyNotReadyError
	require.ErrorAs(t, err, &dnr)
	assert.Equal(t, now.Add(24*time.Hour).Unix(), dnr.NextAt.Unix())

	// After the window it succeeds again.
	_, err = svc.ClaimDaily(ctx, "u1", now.Add(25*time.Hour))
	require.NoError(t, err)
}

func TestBuyPerkClaim(t *testing.T) {
	svc, led := newTestService(t)
	ctx := context.Background()

	acct, err := led.GetOrCreate(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, led.Credit(ctx, acct.ID, 30000))

	require.NoError(t, svc.BuyPerk(ctx, "u1", PerkClaim))

	acct, err = led.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), acct.Balance)
	assert.Equal(t, 1, acct.BonusClaims)
}

func TestBuyPerkRoll(t *testing.T) {
	svc, led := newTestService(t)
	ctx := context.Background()

	acct, err := led.GetOrCreate(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, led.Credit(ctx, acct.ID, 20000))

	require.NoError(t, svc.BuyPerk(ctx, "u1", PerkRoll))

	acct, err = led.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, acct.BonusRolls)
}

func TestBuyPerkInsufficientFunds(t *testing.T) {
	svc, led := newTestService(t)
	ctx := context.Background()

	err := svc.BuyPerk(ctx, "u1", PerkClaim)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	// Nothing granted on failure.
	acct, err := led.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, acct.BonusClaims)
}

func TestBuyPerkUnknownKind(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.BuyPerk(context.Background(), "u1", "turbo")
	assert.ErrorIs(t, err, ErrUnknownPerk)
}

func TestConsumeRollExhaustsWindow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 10; i++ {
		require.NoError(t, svc.ConsumeRoll(ctx, "u1", now), "roll %d", i)
	}

	err := svc.ConsumeRoll(ctx, "u1", now)
	require.ErrorIs(t, err, ErrRateLimited)
	var rle *RateLimitedError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, now.Add(time.Hour).Unix(), rle.ResetAt.Unix())

	// Window re-opens after the reset time.
	require.NoError(t, svc.ConsumeRoll(ctx, "u1", now.Add(61*time.Minute)))
}

func TestConsumeRollUsesBonusAfterWindow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, svc.GrantBonus(ctx, "u1", PerkRoll, 2))
	for i := 0; i < 10; i++ {
		require.NoError(t, svc.ConsumeRoll(ctx, "u1", now))
	}

	// Primary exhausted: the next two come out of bonus credits.
	avail, err := svc.CheckRoll(ctx, "u1", now)
	require.NoError(t, err)
	assert.True(t, avail.Allowed)
	assert.True(t, avail.UsingBonus)

	require.NoError(t, svc.ConsumeRoll(ctx, "u1", now))
	require.NoError(t, svc.ConsumeRoll(ctx, "u1", now))
	assert.ErrorIs(t, svc.ConsumeRoll(ctx, "u1", now), ErrRateLimited)
}

func TestConsumeClaimCooldown(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, svc.ConsumeClaim(ctx, "u1", now))
	assert.ErrorIs(t, svc.ConsumeClaim(ctx, "u1", now), ErrRateLimited)

	// The 2h cooldown passes.
	require.NoError(t, svc.ConsumeClaim(ctx, "u1", now.Add(2*time.Hour+time.Second)))
}

func TestBonusPreservedAcrossReset(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, svc.GrantBonus(ctx, "u1", PerkClaim, 1))
	require.NoError(t, svc.ConsumeClaim(ctx, "u1", now))

	// Window stale again: primary is used, bonus stays put.
	later := now.Add(3 * time.Hour)
	avail, err := svc.CheckClaim(ctx, "u1", later)
	require.NoError(t, err)
	assert.True(t, avail.Allowed)
	assert.False(t, avail.UsingBonus)

	require.NoError(t, svc.ConsumeClaim(ctx, "u1", later))
	p, err := svc.Profile(ctx, "u1", later)
	require.NoError(t, err)
	assert.Equal(t, 1, p.BonusClaims)
}
