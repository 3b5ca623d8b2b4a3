package model

import "gorm.io/gorm"

// allModels lists every model to be auto-migrated.
var allModels = []interface{}{
	&Account{},
	&Character{},
	&CollectionItem{},
	&Auction{},
	&AuctionBid{},
	&Trade{},
	&AuditLog{},
}

// AutoMigrate creates or updates all tables in the given database.
// It runs once at startup; nothing else touches the schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(allModels...)
}
