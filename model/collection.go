package model

import "time"

// CollectionItem is one owned instance of a catalog character. Several
// accounts may own instances of the same character template; ownership is
// per-instance. Level starts at 1 and grows through upgrades.
type CollectionItem struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID   int64     `gorm:"index:idx_collection_account;not null" json:"account_id"`
	CharacterID int64     `gorm:"index:idx_collection_character;not null" json:"character_id"`
	Level       int       `gorm:"not null;default:1" json:"level"`
	AcquiredAt  time.Time `gorm:"autoCreateTime" json:"acquired_at"`
}
