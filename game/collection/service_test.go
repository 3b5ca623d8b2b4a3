package collection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shoreline-games/shorebot/game/ledger"
	"github.com/shoreline-games/shorebot/model"
	"github.com/shoreline-games/shorebot/testutil"
)

func newTestService(t *testing.T) (*Service, *ledger.Service, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	led := ledger.NewService(db, zap.NewNop())
	cfg := Config{UpgradeBaseCost: 50, UpgradeValueRate: 0.20}
	return NewService(db, led, cfg, zap.NewNop()), led, db
}

func seedCharacter(t *testing.T, db *gorm.DB, name string, rank int, value int64) model.Character {
	t.Helper()
	ch := model.Character{Name: name, Series: "s", Category: model.CategoryAnime, Gender: "unknown", Rank: rank, Value: value}
	require.NoError(t, db.Create(&ch).Error)
	return ch
}

func TestGiveAndList(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := context.Background()
	rem := seedCharacter(t, db, "Rem", 1, 8000)
	guts := seedCharacter(t, db, "Guts", 2, 4000)

	_, err := svc.Give(ctx, "u1", guts.ID)
	require.NoError(t, err)
	_, err = svc.Give(ctx, "u1", rem.ID)
	require.NoError(t, err)
	// Duplicates allowed.
	_, err = svc.Give(ctx, "u1", rem.ID)
	require.NoError(t, err)

	items, err := svc.ListByAccount(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	// Ordered by rank.
	assert.Equal(t, "Rem", items[0].Character.Name)
	assert.Equal(t, "Rem", items[1].Character.Name)
	assert.Equal(t, "Guts", items[2].Character.Name)
	assert.Equal(t, 1, items[0].Level)
}

func TestFindByName(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := context.Background()
	rem := seedCharacter(t, db, "Rem", 1, 8000)
	remina := seedCharacter(t, db, "Remina", 30, 800)

	_, err := svc.Give(ctx, "u1", remina.ID)
	require.NoError(t, err)
	_, err = svc.Give(ctx, "u1", rem.ID)
	require.NoError(t, err)

	got, err := svc.FindByName(ctx, "u1", "rem")
	require.NoError(t, err)
	assert.Equal(t, "Rem", got.Character.Name)

	_, err = svc.FindByName(ctx, "u1", "guts")
	assert.ErrorIs(t, err, ErrNotFound)

	// Another user's collection is empty.
	_, err = svc.FindByName(ctx, "u2", "rem")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransferOwnership(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := context.Background()
	rem := seedCharacter(t, db, "Rem", 1, 8000)

	item, err := svc.Give(ctx, "u1", rem.ID)
	require.NoError(t, err)

	require.NoError(t, svc.TransferOwnership(ctx, item.ID, "u2"))

	items, err := svc.ListByAccount(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, items, 1)
	items, err = svc.ListByAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.ErrorIs(t, svc.TransferOwnership(ctx, 9999, "u2"), ErrNotFound)
}

func TestRemove(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := context.Background()
	rem := seedCharacter(t, db, "Rem", 1, 8000)
	item, err := svc.Give(ctx, "u1", rem.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, item.ID))
	assert.ErrorIs(t, svc.Remove(ctx, item.ID), ErrNotFound)
}

func TestSell(t *testing.T) {
	svc, led, db := newTestService(t)
	ctx := context.Background()
	rem := seedCharacter(t, db, "Rem", 1, 8000)
	_, err := svc.Give(ctx, "u1", rem.ID)
	require.NoError(t, err)

	sold, err := svc.Sell(ctx, "u1", "rem")
	require.NoError(t, err)
	assert.Equal(t, "Rem", sold.Character.Name)

	acct, err := led.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(8000), acct.Balance)

	items, err := svc.ListByAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSellAll(t *testing.T) {
	svc, led, db := newTestService(t)
	ctx := context.Background()
	rem := seedCharacter(t, db, "Rem", 1, 8000)
	guts := seedCharacter(t, db, "Guts", 2, 4000)
	_, err := svc.Give(ctx, "u1", rem.ID)
	require.NoError(t, err)
	_, err = svc.Give(ctx, "u1", guts.ID)
	require.NoError(t, err)

	count, total, err := svc.SellAll(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, int64(12000), total)

	acct, err := led.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(12000), acct.Balance)

	// Empty collection is a zero no-op, not an error.
	count, total, err = svc.SellAll(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, total)
}

func TestListedItemLocked(t *testing.T) {
	svc, led, db := newTestService(t)
	ctx := context.Background()
	rem := seedCharacter(t, db, "Rem", 1, 8000)
	guts := seedCharacter(t, db, "Guts", 2, 4000)
	item, err := svc.Give(ctx, "u1", rem.ID)
	require.NoError(t, err)
	_, err = svc.Give(ctx, "u1", guts.ID)
	require.NoError(t, err)

	acct, err := led.GetOrCreate(ctx, "u1")
	require.NoError(t, err)
	listing := model.Auction{
		SellerID:      acct.ID,
		ItemID:        item.ID,
		StartingPrice: 100,
		CurrentBid:    100,
		EndsAt:        time.Now().Add(time.Hour),
		Status:        model.AuctionActive,
	}
	require.NoError(t, db.Create(&listing).Error)

	// The listed item cannot leave the collection by any path.
	_, err = svc.Sell(ctx, "u1", "rem")
	assert.ErrorIs(t, err, ErrListed)
	assert.ErrorIs(t, svc.TransferOwnership(ctx, item.ID, "u2"), ErrListed)
	assert.ErrorIs(t, svc.Remove(ctx, item.ID), ErrListed)

	// SellAll sells around it.
	count, total, err := svc.SellAll(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, int64(4000), total)

	items, err := svc.ListByAccount(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Rem", items[0].Character.Name)

	// A closed auction releases the lock.
	require.NoError(t, db.Model(&model.Auction{}).Where("id = ?", listing.ID).
		Update("status", model.AuctionCancelled).Error)
	_, err = svc.Sell(ctx, "u1", "rem")
	require.NoError(t, err)
}

func TestUpgrade(t *testing.T) {
	svc, led, db := newTestService(t)
	ctx := context.Background()
	rem := seedCharacter(t, db, "Rem", 1, 8000)
	_, err := svc.Give(ctx, "u1", rem.ID)
	require.NoError(t, err)

	acct, err := led.GetOrCreate(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, led.Credit(ctx, acct.ID, 200))

	// Level 1 upgrade: cost 50, value +10.
	item, cost, err := svc.Upgrade(ctx, "u1", "rem")
	require.NoError(t, err)
	assert.Equal(t, int64(50), cost)
	assert.Equal(t, 2, item.Level)
	assert.Equal(t, int64(8010), item.Character.Value)

	// Level 2 upgrade: cost 100, value +20.
	item, cost, err = svc.Upgrade(ctx, "u1", "rem")
	require.NoError(t, err)
	assert.Equal(t, int64(100), cost)
	assert.Equal(t, 3, item.Level)
	assert.Equal(t, int64(8030), item.Character.Value)

	acct, err = led.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), acct.Balance)

	// Third upgrade costs 150; only 50 left.
	_, _, err = svc.Upgrade(ctx, "u1", "rem")
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}
