package model

import "time"

// Trade status values.
const (
	TradePending   = "pending"
	TradeAccepted  = "accepted"
	TradeRejected  = "rejected"
	TradeCancelled = "cancelled"
)

// Trade is a two-sided offer: the sender offers an optional item and/or
// coins against an optional requested item and/or coins from the receiver.
type Trade struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	FromID        int64     `gorm:"index:idx_trade_from;not null" json:"from_id"`
	ToID          int64     `gorm:"index:idx_trade_to;not null" json:"to_id"`
	OfferItemID   *int64    `json:"offer_item_id"`
	OfferCoins    int64     `gorm:"not null;default:0" json:"offer_coins"`
	RequestItemID *int64    `json:"request_item_id"`
	RequestCoins  int64     `gorm:"not null;default:0" json:"request_coins"`
	Status        string    `gorm:"index:idx_trade_status;size:16;not null;default:pending" json:"status"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
