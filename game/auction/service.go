package auction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shoreline-games/shorebot/cache"
	"github.com/shoreline-games/shorebot/game/collection"
	"github.com/shoreline-games/shorebot/game/events"
	"github.com/shoreline-games/shorebot/game/ledger"
	"github.com/shoreline-games/shorebot/model"
)

var (
	ErrNotFound      = errors.New("auction not found")
	ErrAlreadyListed = errors.New("item already has an active auction")
	ErrNotActive     = errors.New("auction is not active")
	ErrExpired       = errors.New("auction has ended")
	ErrBidTooLow     = errors.New("bid is not higher than the current bid")
	ErrNotOwner      = errors.New("not the auction owner")
	ErrSelfBid       = errors.New("cannot bid on your own auction")
	ErrBusy          = errors.New("auction is busy, retry")
)

const lockTTL = 30 * time.Second

// Config holds auction defaults.
type Config struct {
	MinStartingPrice int64
	DefaultDuration  time.Duration
}

// Listing is an auction joined with its character and seller identity.
type Listing struct {
	Auction   model.Auction   `json:"auction"`
	Character model.Character `json:"character"`
	SellerID  string          `json:"seller_discord_id"`
}

// Service runs the auction lifecycle. Bid and settle for one auction are
// serialized by a per-auction cache lock, and settlement is additionally
// guarded by a status-conditional UPDATE so racing sweeps can never pay out
// twice.
type Service struct {
	db         *gorm.DB
	cache      cache.Cache
	ledger     *ledger.Service
	collection *collection.Service
	events     *events.Publisher
	cfg        Config
	logger     *zap.Logger
}

// NewService creates a new auction Service.
func NewService(db *gorm.DB, c cache.Cache, led *ledger.Service, col *collection.Service,
	pub *events.Publisher, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		db:         db,
		cache:      c,
		ledger:     led,
		collection: col,
		events:     pub,
		cfg:        cfg,
		logger:     logger,
	}
}

// Create lists one of the seller's items, found by character name fragment.
// Non-positive price/duration fall back to the configured defaults. A
// per-item lock serializes creation, so two concurrent listings of the same
// item cannot both pass the active-auction check.
func (svc *Service) Create(ctx context.Context, sellerDiscordID, fragment string,
	startingPrice int64, duration time.Duration, channelID string, now time.Time) (*model.Auction, error) {
	seller, err := svc.ledger.GetOrCreate(ctx, sellerDiscordID)
	if err != nil {
		return nil, err
	}
	item, err := svc.collection.FindByName(ctx, sellerDiscordID, fragment)
	if err != nil {
		if errors.Is(err, collection.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	unlock, err := svc.lockKey(ctx, fmt.Sprintf("lock:auction:item:%d", item.ItemID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var existing model.Auction
	err = svc.db.WithContext(ctx).
		Where("item_id = ? AND status = ?", item.ItemID, model.AuctionActive).
		First(&existing).Error
	if err == nil {
		return nil, ErrAlreadyListed
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if startingPrice <= 0 {
		startingPrice = svc.cfg.MinStartingPrice
	}
	if duration <= 0 {
		duration = svc.cfg.DefaultDuration
	}

	a := model.Auction{
		SellerID:      seller.ID,
		ItemID:        item.ItemID,
		ChannelID:     channelID,
		StartingPrice: startingPrice,
		CurrentBid:    startingPrice,
		EndsAt:        now.Add(duration),
		Status:        model.AuctionActive,
	}
	if err := svc.db.WithContext(ctx).Create(&a).Error; err != nil {
		return nil, err
	}

	if svc.events != nil {
		svc.events.Publish(ctx, events.TypeAuctionCreated, map[string]interface{}{
			"auction_id": a.ID,
			"character":  item.Character.Name,
			"seller":     sellerDiscordID,
			"price":      startingPrice,
			"ends_at":    a.EndsAt,
		})
	}
	svc.logger.Info("auction created",
		zap.Int64("auction_id", a.ID),
		zap.String("character", item.Character.Name),
		zap.Int64("price", startingPrice))
	return &a, nil
}

// PlaceBid records a new highest bid. The previous highest bidder is
// refunded and the new bidder escrows the full amount; both legs run in one
// transaction, so a failed debit rolls the refund back too.
func (svc *Service) PlaceBid(ctx context.Context, auctionID int64, bidderDiscordID string,
	amount int64, now time.Time) (*model.Auction, error) {
	unlock, err := svc.lock(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var a model.Auction
	err = svc.db.WithContext(ctx).First(&a, auctionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if a.Status != model.AuctionActive {
		return nil, ErrNotActive
	}
	// The deadline itself is closed: a bid at exactly ends_at is late.
	if !now.Before(a.EndsAt) {
		return nil, ErrExpired
	}

	bidder, err := svc.ledger.GetOrCreate(ctx, bidderDiscordID)
	if err != nil {
		return nil, err
	}
	if bidder.ID == a.SellerID {
		return nil, ErrSelfBid
	}
	if amount <= a.CurrentBid {
		return nil, ErrBidTooLow
	}

	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if a.HighestBidderID != nil {
			if err := ledger.Credit(tx, *a.HighestBidderID, a.CurrentBid); err != nil {
				return err
			}
		}
		if err := ledger.Debit(tx, bidder.ID, amount); err != nil {
			return err
		}
		if err := tx.Create(&model.AuctionBid{
			AuctionID: a.ID,
			BidderID:  bidder.ID,
			Amount:    amount,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&a).Updates(map[string]interface{}{
			"current_bid":       amount,
			"highest_bidder_id": bidder.ID,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	a.CurrentBid = amount
	a.HighestBidderID = &bidder.ID

	if svc.events != nil {
		svc.events.Publish(ctx, events.TypeAuctionBid, map[string]interface{}{
			"auction_id": a.ID,
			"bidder":     bidderDiscordID,
			"amount":     amount,
		})
	}
	svc.logger.Info("bid placed",
		zap.Int64("auction_id", a.ID),
		zap.String("bidder", bidderDiscordID),
		zap.Int64("amount", amount))
	return &a, nil
}

// Settle closes one auction: the item goes to the highest bidder and the
// escrowed coins to the seller; with no bids nothing moves. Returns false
// without error when the auction was already settled or cancelled.
func (svc *Service) Settle(ctx context.Context, auctionID int64) (bool, error) {
	unlock, err := svc.lock(ctx, auctionID)
	if err != nil {
		return false, err
	}
	defer unlock()

	var a model.Auction
	err = svc.db.WithContext(ctx).First(&a, auctionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}

	settled := false
	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Auction{}).
			Where("id = ? AND status = ?", a.ID, model.AuctionActive).
			Update("status", model.AuctionCompleted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // lost the race or already closed
		}
		settled = true
		if a.HighestBidderID == nil {
			return nil
		}
		if err := collection.Transfer(tx, a.ItemID, *a.HighestBidderID); err != nil {
			return err
		}
		return ledger.Credit(tx, a.SellerID, a.CurrentBid)
	})
	if err != nil || !settled {
		return false, err
	}

	if svc.events != nil {
		svc.events.Publish(ctx, events.TypeAuctionSettled, map[string]interface{}{
			"auction_id": a.ID,
			"sold":       a.HighestBidderID != nil,
			"amount":     a.CurrentBid,
		})
	}
	svc.logger.Info("auction settled",
		zap.Int64("auction_id", a.ID),
		zap.Bool("sold", a.HighestBidderID != nil))
	return true, nil
}

// ExpireSweep settles every active auction whose deadline has passed.
// Registered as a scheduler ticker; safe to run concurrently because Settle
// is idempotent.
func (svc *Service) ExpireSweep(ctx context.Context, now time.Time) (int, error) {
	var due []model.Auction
	err := svc.db.WithContext(ctx).
		Where("status = ? AND ends_at <= ?", model.AuctionActive, now).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, a := range due {
		ok, err := svc.Settle(ctx, a.ID)
		if err != nil {
			svc.logger.Error("sweep settle failed",
				zap.Int64("auction_id", a.ID), zap.Error(err))
			continue
		}
		if ok {
			settled++
		}
	}
	return settled, nil
}

// Cancel withdraws an active auction. Only the seller may cancel; the
// highest bidder, if any, is refunded and the item stays with the seller.
func (svc *Service) Cancel(ctx context.Context, auctionID int64, requesterDiscordID string) error {
	unlock, err := svc.lock(ctx, auctionID)
	if err != nil {
		return err
	}
	defer unlock()

	var a model.Auction
	err = svc.db.WithContext(ctx).First(&a, auctionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	requester, err := svc.ledger.GetOrCreate(ctx, requesterDiscordID)
	if err != nil {
		return err
	}
	if requester.ID != a.SellerID {
		return ErrNotOwner
	}

	cancelled := false
	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Auction{}).
			Where("id = ? AND status = ?", a.ID, model.AuctionActive).
			Update("status", model.AuctionCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		cancelled = true
		if a.HighestBidderID != nil {
			return ledger.Credit(tx, *a.HighestBidderID, a.CurrentBid)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !cancelled {
		return ErrNotActive
	}

	if svc.events != nil {
		svc.events.Publish(ctx, events.TypeAuctionCancelled, map[string]interface{}{
			"auction_id": a.ID,
		})
	}
	svc.logger.Info("auction cancelled", zap.Int64("auction_id", a.ID))
	return nil
}

// ListActive returns all active listings, soonest to end first.
func (svc *Service) ListActive(ctx context.Context) ([]Listing, error) {
	return svc.listings(ctx, svc.db.WithContext(ctx).
		Where("auctions.status = ?", model.AuctionActive))
}

// FindActiveByCharacterName returns the active listing whose character name
// contains the fragment, soonest to end first.
func (svc *Service) FindActiveByCharacterName(ctx context.Context, fragment string) (*Listing, error) {
	found, err := svc.listings(ctx, svc.db.WithContext(ctx).
		Where("auctions.status = ?", model.AuctionActive).
		Where("LOWER(characters.name) LIKE ?", "%"+strings.ToLower(fragment)+"%"))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

// Bids returns an auction's full bid history, newest first.
func (svc *Service) Bids(ctx context.Context, auctionID int64) ([]model.AuctionBid, error) {
	var bids []model.AuctionBid
	err := svc.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("id DESC").
		Find(&bids).Error
	return bids, err
}

func (svc *Service) lock(ctx context.Context, auctionID int64) (func(), error) {
	return svc.lockKey(ctx, fmt.Sprintf("lock:auction:%d", auctionID))
}

func (svc *Service) lockKey(ctx context.Context, key string) (func(), error) {
	ok, err := svc.cache.SetNX(ctx, key, "1", lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBusy
	}
	return func() { svc.cache.Del(ctx, key) }, nil
}

func (svc *Service) listings(ctx context.Context, q *gorm.DB) ([]Listing, error) {
	type row struct {
		model.Auction
		CharID        int64
		CharName      string
		CharSeries    string
		CharCategory  string
		CharGender    string
		CharImageURL  string
		CharRank      int
		CharValue     int64
		SellerDiscord string
	}
	var rows []row
	err := q.Model(&model.Auction{}).
		Select(`auctions.*,
			characters.id AS char_id, characters.name AS char_name,
			characters.series AS char_series, characters.category AS char_category,
			characters.gender AS char_gender, characters.image_url AS char_image_url,
			characters.rank AS char_rank, characters.value AS char_value,
			accounts.discord_id AS seller_discord`).
		Joins("JOIN collection_items ON collection_items.id = auctions.item_id").
		Joins("JOIN characters ON characters.id = collection_items.character_id").
		Joins("JOIN accounts ON accounts.id = auctions.seller_id").
		Order("auctions.ends_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]Listing, 0, len(rows))
	for _, r := range rows {
		out = append(out, Listing{
			Auction: r.Auction,
			Character: model.Character{
				ID:       r.CharID,
				Name:     r.CharName,
				Series:   r.CharSeries,
				Category: r.CharCategory,
				Gender:   r.CharGender,
				ImageURL: r.CharImageURL,
				Rank:     r.CharRank,
				Value:    r.CharValue,
			},
			SellerID: r.SellerDiscord,
		})
	}
	return out, nil
}
