package model

import "time"

// Account is a player's economic identity, keyed by their Discord user id.
// Accounts are created lazily on first reference and never deleted.
type Account struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	DiscordID      string     `gorm:"uniqueIndex;size:32;not null" json:"discord_id"`
	Balance        int64      `gorm:"not null;default:0" json:"balance"`
	RollCount      int        `gorm:"not null;default:0" json:"roll_count"`
	RollResetAt    *time.Time `json:"roll_reset_at"`
	ClaimCount     int        `gorm:"not null;default:0" json:"claim_count"`
	ClaimResetAt   *time.Time `json:"claim_reset_at"`
	BonusRolls     int        `gorm:"not null;default:0" json:"bonus_rolls"`
	BonusClaims    int        `gorm:"not null;default:0" json:"bonus_claims"`
	DailyClaimedAt *time.Time `json:"daily_claimed_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
