package collection

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shoreline-games/shorebot/game/ledger"
	"github.com/shoreline-games/shorebot/model"
)

var (
	ErrNotFound = errors.New("collection item not found")
	ErrListed   = errors.New("item is locked by an active auction")
)

// OwnedItem is a collection row joined with its character template.
type OwnedItem struct {
	ItemID     int64           `json:"item_id"`
	Level      int             `json:"level"`
	AcquiredAt time.Time       `json:"acquired_at"`
	Character  model.Character `json:"character"`
}

// Config holds the upgrade tuning knobs.
type Config struct {
	UpgradeBaseCost  int64   // cost per level
	UpgradeValueRate float64 // fraction of the cost added to the character's value
}

// Service manages owned character instances: acquisition, transfer,
// liquidation and upgrades. An item under an active auction is locked: it
// cannot be sold, removed or change owner until the auction closes, so a
// bidder's escrow always has the item behind it.
type Service struct {
	db     *gorm.DB
	ledger *ledger.Service
	cfg    Config
	logger *zap.Logger
}

// NewService creates a new collection Service.
func NewService(db *gorm.DB, led *ledger.Service, cfg Config, logger *zap.Logger) *Service {
	return &Service{db: db, ledger: led, cfg: cfg, logger: logger}
}

// Give adds a character instance to a user's collection. Duplicates are
// allowed; the account is created if it does not exist yet.
func (svc *Service) Give(ctx context.Context, discordID string, characterID int64) (*model.CollectionItem, error) {
	acct, err := svc.ledger.GetOrCreate(ctx, discordID)
	if err != nil {
		return nil, err
	}
	item := model.CollectionItem{AccountID: acct.ID, CharacterID: characterID, Level: 1}
	if err := svc.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// TransferOwnership reassigns an item to another user's collection. This is
// the single owner-writer used by auction settlement, trades and gifts.
func (svc *Service) TransferOwnership(ctx context.Context, itemID int64, newDiscordID string) error {
	acct, err := svc.ledger.GetOrCreate(ctx, newDiscordID)
	if err != nil {
		return err
	}
	return Transfer(svc.db.WithContext(ctx), itemID, acct.ID)
}

// Remove permanently deletes an item.
func (svc *Service) Remove(ctx context.Context, itemID int64) error {
	if err := listedGuard(svc.db.WithContext(ctx), itemID); err != nil {
		return err
	}
	res := svc.db.WithContext(ctx).Delete(&model.CollectionItem{}, itemID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns one item by id.
func (svc *Service) Get(ctx context.Context, itemID int64) (*OwnedItem, error) {
	var item model.CollectionItem
	err := svc.db.WithContext(ctx).First(&item, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var ch model.Character
	if err := svc.db.WithContext(ctx).First(&ch, item.CharacterID).Error; err != nil {
		return nil, err
	}
	return &OwnedItem{ItemID: item.ID, Level: item.Level, AcquiredAt: item.AcquiredAt, Character: ch}, nil
}

// ListByAccount returns a user's full collection, best rank first.
func (svc *Service) ListByAccount(ctx context.Context, discordID string) ([]OwnedItem, error) {
	acct, err := svc.ledger.GetOrCreate(ctx, discordID)
	if err != nil {
		return nil, err
	}
	return svc.listOwned(ctx, svc.db.WithContext(ctx).Where("collection_items.account_id = ?", acct.ID))
}

// FindByName returns the best-ranked item in a user's collection whose
// character name contains the fragment, case-insensitively.
func (svc *Service) FindByName(ctx context.Context, discordID, fragment string) (*OwnedItem, error) {
	acct, err := svc.ledger.GetOrCreate(ctx, discordID)
	if err != nil {
		return nil, err
	}
	items, err := svc.listOwned(ctx, svc.db.WithContext(ctx).
		Where("collection_items.account_id = ?", acct.ID).
		Where("LOWER(characters.name) LIKE ?", "%"+strings.ToLower(fragment)+"%"))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return &items[0], nil
}

// Sell liquidates one item found by name, crediting the character's current
// value. Fails with ErrListed while the item is on auction.
func (svc *Service) Sell(ctx context.Context, discordID, fragment string) (*OwnedItem, error) {
	acct, err := svc.ledger.GetOrCreate(ctx, discordID)
	if err != nil {
		return nil, err
	}
	item, err := svc.FindByName(ctx, discordID, fragment)
	if err != nil {
		return nil, err
	}

	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := listedGuard(tx, item.ItemID); err != nil {
			return err
		}
		res := tx.Delete(&model.CollectionItem{}, item.ItemID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return ledger.Credit(tx, acct.ID, item.Character.Value)
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info("item sold",
		zap.String("discord_id", discordID),
		zap.String("character", item.Character.Name),
		zap.Int64("value", item.Character.Value))
	return item, nil
}

// SellAll liquidates a user's collection, crediting the summed value. Items
// locked by an active auction are skipped, not failed. Returns the number of
// items sold and the total credited.
func (svc *Service) SellAll(ctx context.Context, discordID string) (int, int64, error) {
	acct, err := svc.ledger.GetOrCreate(ctx, discordID)
	if err != nil {
		return 0, 0, err
	}
	items, err := svc.ListByAccount(ctx, discordID)
	if err != nil {
		return 0, 0, err
	}
	if len(items) == 0 {
		return 0, 0, nil
	}

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ItemID)
	}

	var sold int
	var total int64
	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		listed, err := listedItems(tx, ids)
		if err != nil {
			return err
		}
		sold, total = 0, 0
		sell := make([]int64, 0, len(items))
		for _, it := range items {
			if _, ok := listed[it.ItemID]; ok {
				continue
			}
			sell = append(sell, it.ItemID)
			total += it.Character.Value
			sold++
		}
		if len(sell) == 0 {
			return nil
		}
		if err := tx.Delete(&model.CollectionItem{}, sell).Error; err != nil {
			return err
		}
		return ledger.Credit(tx, acct.ID, total)
	})
	if err != nil {
		return 0, 0, err
	}
	if sold > 0 {
		svc.logger.Info("collection liquidated",
			zap.String("discord_id", discordID),
			zap.Int("items", sold),
			zap.Int64("total", total))
	}
	return sold, total, nil
}

// Upgrade raises an item's level. The cost scales with the current level and
// part of it flows into the character template's value.
func (svc *Service) Upgrade(ctx context.Context, discordID, fragment string) (*OwnedItem, int64, error) {
	acct, err := svc.ledger.GetOrCreate(ctx, discordID)
	if err != nil {
		return nil, 0, err
	}
	item, err := svc.FindByName(ctx, discordID, fragment)
	if err != nil {
		return nil, 0, err
	}

	cost := svc.cfg.UpgradeBaseCost * int64(item.Level)
	gain := int64(float64(cost) * svc.cfg.UpgradeValueRate)

	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ledger.Debit(tx, acct.ID, cost); err != nil {
			return err
		}
		if err := tx.Model(&model.CollectionItem{}).Where("id = ?", item.ItemID).
			Update("level", gorm.Expr("level + 1")).Error; err != nil {
			return err
		}
		return tx.Model(&model.Character{}).Where("id = ?", item.Character.ID).
			Update("value", gorm.Expr("value + ?", gain)).Error
	})
	if err != nil {
		return nil, 0, err
	}
	item.Level++
	item.Character.Value += gain
	return item, cost, nil
}

// Transfer reassigns an item inside an existing transaction. The listed
// guard sees uncommitted writes in tx, so auction settlement closes the
// auction row first and then moves the item through here.
func Transfer(tx *gorm.DB, itemID, newAccountID int64) error {
	if err := listedGuard(tx, itemID); err != nil {
		return err
	}
	res := tx.Model(&model.CollectionItem{}).Where("id = ?", itemID).
		Update("account_id", newAccountID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// listedGuard fails with ErrListed when the item has an active auction.
func listedGuard(tx *gorm.DB, itemID int64) error {
	var n int64
	err := tx.Model(&model.Auction{}).
		Where("item_id = ? AND status = ?", itemID, model.AuctionActive).
		Count(&n).Error
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrListed
	}
	return nil
}

// listedItems returns the subset of ids currently under an active auction.
func listedItems(tx *gorm.DB, ids []int64) (map[int64]struct{}, error) {
	var listed []int64
	err := tx.Model(&model.Auction{}).
		Where("item_id IN ? AND status = ?", ids, model.AuctionActive).
		Pluck("item_id", &listed).Error
	if err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(listed))
	for _, id := range listed {
		set[id] = struct{}{}
	}
	return set, nil
}

func (svc *Service) listOwned(ctx context.Context, q *gorm.DB) ([]OwnedItem, error) {
	type row struct {
		model.Character
		ItemID     int64
		Level      int
		AcquiredAt time.Time
	}
	var rows []row
	err := q.Model(&model.CollectionItem{}).
		Select("characters.*, collection_items.id AS item_id, collection_items.level AS level, collection_items.acquired_at AS acquired_at").
		Joins("JOIN characters ON characters.id = collection_items.character_id").
		Order("characters.rank ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	items := make([]OwnedItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, OwnedItem{
			ItemID:     r.ItemID,
			Level:      r.Level,
			AcquiredAt: r.AcquiredAt,
			Character:  r.Character,
		})
	}
	return items, nil
}
