package trade

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shoreline-games/shorebot/game/collection"
	"github.com/shoreline-games/shorebot/game/events"
	"github.com/shoreline-games/shorebot/game/ledger"
	"github.com/shoreline-games/shorebot/model"
)

var (
	ErrNotFound        = errors.New("trade not found")
	ErrNotPending      = errors.New("trade is not pending")
	ErrNotRecipient    = errors.New("only the recipient can act on this trade")
	ErrNotOwner        = errors.New("only the sender can cancel this trade")
	ErrSelfTrade       = errors.New("cannot trade with yourself")
	ErrItemUnavailable = errors.New("item is no longer available")
)

// Offer is one side of a trade: an optional item plus coins.
type Offer struct {
	ItemID *int64
	Coins  int64
}

// Service manages two-sided trade offers and direct gifts. An offer stays
// pending until the recipient accepts or rejects it, or the sender cancels.
// Nothing is escrowed while pending; both legs are re-validated at accept
// time inside one transaction.
type Service struct {
	db         *gorm.DB
	ledger     *ledger.Service
	collection *collection.Service
	events     *events.Publisher
	logger     *zap.Logger
}

// NewService creates a new trade Service.
func NewService(db *gorm.DB, led *ledger.Service, col *collection.Service,
	pub *events.Publisher, logger *zap.Logger) *Service {
	return &Service{db: db, ledger: led, collection: col, events: pub, logger: logger}
}

// Create opens a pending trade from one user to another. Offered and
// requested items must currently belong to their respective sides.
func (svc *Service) Create(ctx context.Context, fromDiscordID, toDiscordID string,
	offer, request Offer) (*model.Trade, error) {
	if fromDiscordID == toDiscordID {
		return nil, ErrSelfTrade
	}
	from, err := svc.ledger.GetOrCreate(ctx, fromDiscordID)
	if err != nil {
		return nil, err
	}
	to, err := svc.ledger.GetOrCreate(ctx, toDiscordID)
	if err != nil {
		return nil, err
	}

	if err := svc.checkOwnership(ctx, offer.ItemID, from.ID); err != nil {
		return nil, err
	}
	if err := svc.checkOwnership(ctx, request.ItemID, to.ID); err != nil {
		return nil, err
	}

	tr := model.Trade{
		FromID:        from.ID,
		ToID:          to.ID,
		OfferItemID:   offer.ItemID,
		OfferCoins:    offer.Coins,
		RequestItemID: request.ItemID,
		RequestCoins:  request.Coins,
		Status:        model.TradePending,
	}
	if err := svc.db.WithContext(ctx).Create(&tr).Error; err != nil {
		return nil, err
	}

	if svc.events != nil {
		svc.events.Publish(ctx, events.TypeTradeCreated, map[string]interface{}{
			"trade_id": tr.ID,
			"from":     fromDiscordID,
			"to":       toDiscordID,
		})
	}
	svc.logger.Info("trade created",
		zap.Int64("trade_id", tr.ID),
		zap.String("from", fromDiscordID),
		zap.String("to", toDiscordID))
	return &tr, nil
}

// ListPending returns all pending trades a user is part of, oldest first.
func (svc *Service) ListPending(ctx context.Context, discordID string) ([]model.Trade, error) {
	acct, err := svc.ledger.GetOrCreate(ctx, discordID)
	if err != nil {
		return nil, err
	}
	var trades []model.Trade
	err = svc.db.WithContext(ctx).
		Where("(from_id = ? OR to_id = ?) AND status = ?", acct.ID, acct.ID, model.TradePending).
		Order("id ASC").
		Find(&trades).Error
	return trades, err
}

// FindPendingByCharacterName looks up a user's pending trades whose offered
// item matches a character name fragment. Used by the gateway to resolve
// "cancel my trade for X" without a trade id.
func (svc *Service) FindPendingByCharacterName(ctx context.Context, discordID, fragment string) ([]model.Trade, error) {
	acct, err := svc.ledger.GetOrCreate(ctx, discordID)
	if err != nil {
		return nil, err
	}
	var trades []model.Trade
	err = svc.db.WithContext(ctx).
		Joins("JOIN collection_items ON collection_items.id = trades.offer_item_id").
		Joins("JOIN characters ON characters.id = collection_items.character_id").
		Where("trades.from_id = ? AND trades.status = ?", acct.ID, model.TradePending).
		Where("LOWER(characters.name) LIKE ?", "%"+strings.ToLower(fragment)+"%").
		Order("trades.id ASC").
		Find(&trades).Error
	return trades, err
}

// Accept executes a pending trade. Only the recipient may accept. Both item
// legs and both coin legs run in one transaction; any failed leg aborts the
// whole trade and leaves it pending.
func (svc *Service) Accept(ctx context.Context, tradeID int64, accepterDiscordID string) error {
	tr, err := svc.get(ctx, tradeID)
	if err != nil {
		return err
	}
	accepter, err := svc.ledger.GetOrCreate(ctx, accepterDiscordID)
	if err != nil {
		return err
	}
	if accepter.ID != tr.ToID {
		return ErrNotRecipient
	}
	if tr.Status != model.TradePending {
		return ErrNotPending
	}

	return svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Claim the trade first so a racing accept runs the legs at most once.
		res := tx.Model(&model.Trade{}).
			Where("id = ? AND status = ?", tr.ID, model.TradePending).
			Update("status", model.TradeAccepted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotPending
		}

		if tr.OfferItemID != nil {
			if err := svc.checkOwnershipTx(tx, *tr.OfferItemID, tr.FromID); err != nil {
				return err
			}
			if err := collection.Transfer(tx, *tr.OfferItemID, tr.ToID); err != nil {
				return err
			}
		}
		if tr.RequestItemID != nil {
			if err := svc.checkOwnershipTx(tx, *tr.RequestItemID, tr.ToID); err != nil {
				return err
			}
			if err := collection.Transfer(tx, *tr.RequestItemID, tr.FromID); err != nil {
				return err
			}
		}
		if tr.OfferCoins > 0 {
			if err := ledger.Debit(tx, tr.FromID, tr.OfferCoins); err != nil {
				return err
			}
			if err := ledger.Credit(tx, tr.ToID, tr.OfferCoins); err != nil {
				return err
			}
		}
		if tr.RequestCoins > 0 {
			if err := ledger.Debit(tx, tr.ToID, tr.RequestCoins); err != nil {
				return err
			}
			if err := ledger.Credit(tx, tr.FromID, tr.RequestCoins); err != nil {
				return err
			}
		}
		svc.logger.Info("trade accepted", zap.Int64("trade_id", tr.ID))
		return nil
	})
}

// Reject declines a pending trade. Only the recipient may reject.
func (svc *Service) Reject(ctx context.Context, tradeID int64, accepterDiscordID string) error {
	tr, err := svc.get(ctx, tradeID)
	if err != nil {
		return err
	}
	accepter, err := svc.ledger.GetOrCreate(ctx, accepterDiscordID)
	if err != nil {
		return err
	}
	if accepter.ID != tr.ToID {
		return ErrNotRecipient
	}
	return svc.close(ctx, tr.ID, model.TradeRejected)
}

// Cancel withdraws a pending trade. Only the sender may cancel.
func (svc *Service) Cancel(ctx context.Context, tradeID int64, requesterDiscordID string) error {
	tr, err := svc.get(ctx, tradeID)
	if err != nil {
		return err
	}
	requester, err := svc.ledger.GetOrCreate(ctx, requesterDiscordID)
	if err != nil {
		return err
	}
	if requester.ID != tr.FromID {
		return ErrNotOwner
	}
	return svc.close(ctx, tr.ID, model.TradeCancelled)
}

// Gift hands one of the sender's items, found by character name, straight
// to the recipient.
func (svc *Service) Gift(ctx context.Context, fromDiscordID, toDiscordID, fragment string) (*collection.OwnedItem, error) {
	if fromDiscordID == toDiscordID {
		return nil, ErrSelfTrade
	}
	item, err := svc.collection.FindByName(ctx, fromDiscordID, fragment)
	if err != nil {
		if errors.Is(err, collection.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := svc.collection.TransferOwnership(ctx, item.ItemID, toDiscordID); err != nil {
		return nil, err
	}
	svc.logger.Info("gift sent",
		zap.String("from", fromDiscordID),
		zap.String("to", toDiscordID),
		zap.String("character", item.Character.Name))
	return item, nil
}

func (svc *Service) get(ctx context.Context, tradeID int64) (*model.Trade, error) {
	var tr model.Trade
	err := svc.db.WithContext(ctx).First(&tr, tradeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

func (svc *Service) close(ctx context.Context, tradeID int64, status string) error {
	res := svc.db.WithContext(ctx).Model(&model.Trade{}).
		Where("id = ? AND status = ?", tradeID, model.TradePending).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotPending
	}
	return nil
}

func (svc *Service) checkOwnership(ctx context.Context, itemID *int64, accountID int64) error {
	if itemID == nil {
		return nil
	}
	return svc.checkOwnershipTx(svc.db.WithContext(ctx), *itemID, accountID)
}

func (svc *Service) checkOwnershipTx(tx *gorm.DB, itemID, accountID int64) error {
	var item model.CollectionItem
	err := tx.First(&item, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrItemUnavailable
	}
	if err != nil {
		return err
	}
	if item.AccountID != accountID {
		return ErrItemUnavailable
	}
	return nil
}
