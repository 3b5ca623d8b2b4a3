package model

import "time"

// Auction status values. An auction transitions out of Active exactly once.
const (
	AuctionActive    = "active"
	AuctionCompleted = "completed"
	AuctionCancelled = "cancelled"
)

// Auction is a timed listing of one collection item. At most one active
// auction may reference a given item at any time.
type Auction struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SellerID        int64     `gorm:"index:idx_auction_seller;not null" json:"seller_id"`
	ItemID          int64     `gorm:"index:idx_auction_item;not null" json:"item_id"`
	ChannelID       string    `gorm:"size:32" json:"channel_id"`
	StartingPrice   int64     `gorm:"not null" json:"starting_price"`
	CurrentBid      int64     `gorm:"not null" json:"current_bid"`
	HighestBidderID *int64    `json:"highest_bidder_id"`
	EndsAt          time.Time `gorm:"index:idx_auction_ends;not null" json:"ends_at"`
	Status          string    `gorm:"index:idx_auction_status;size:16;not null;default:active" json:"status"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// AuctionBid is an append-only record of one accepted bid. Rows are never
// updated or deleted; the auction's CurrentBid/HighestBidderID cache the
// latest one.
type AuctionBid struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AuctionID int64     `gorm:"index:idx_bid_auction;not null" json:"auction_id"`
	BidderID  int64     `gorm:"not null" json:"bidder_id"`
	Amount    int64     `gorm:"not null" json:"amount"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
