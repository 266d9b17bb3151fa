package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyBonus is the per-user login bonus: one claimable row per UTC
// day, created on first view and paid into the wallet when claimed.
// BonusDate is the day in "2006-01-02" form; the unique index on
// (user, day) keeps concurrent first views from minting two bonuses.
type DailyBonus struct {
	ID           string          `json:"bonus_id" gorm:"primaryKey"`
	UserID       string          `json:"user_id" gorm:"not null;index;uniqueIndex:idx_daily_bonus_user_day"`
	BonusDate    string          `json:"bonus_date" gorm:"not null;uniqueIndex:idx_daily_bonus_user_day"`
	RewardAmount decimal.Decimal `json:"reward_amount" gorm:"type:decimal(20,8);not null"`
	Claimed      bool            `json:"claimed" gorm:"default:false"`
	ClaimedAt    *time.Time      `json:"claimed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at" gorm:"autoCreateTime"`
}
