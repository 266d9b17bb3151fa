package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PoolSource identifies where a contribution came from.
type PoolSource string

const (
	PoolSourceUserPayment PoolSource = "user_payment"
	PoolSourceAdminFund   PoolSource = "admin_fund"
	PoolSourceBonusEvent  PoolSource = "bonus_event"
)

// QuestPool is one immutable contribution record. Rows are never
// updated or deleted; running totals are always derived by SUM so a
// cached counter can never drift.
//
// Invariant: Amount == SplitToTreasury + SplitToPool, exactly.
type QuestPool struct {
	ID              string          `json:"id" gorm:"primaryKey"`
	QuestID         string          `json:"quest_id" gorm:"not null;index"`
	UserID          string          `json:"user_id" gorm:"index"`
	Source          PoolSource      `json:"source" gorm:"type:varchar(32);not null"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:decimal(20,8);not null"`
	SplitToTreasury decimal.Decimal `json:"split_to_treasury" gorm:"type:decimal(20,8);not null"`
	SplitToPool     decimal.Decimal `json:"split_to_pool" gorm:"type:decimal(20,8);not null"`
	CreatedAt       time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

// PoolTotals is a derived, read-only view over QuestPool rows.
type PoolTotals struct {
	QuestID        string          `json:"quest_id,omitempty"`
	TotalTreasury  decimal.Decimal `json:"total_treasury"`
	TotalPool      decimal.Decimal `json:"total_pool"`
	TotalCollected decimal.Decimal `json:"total_collected"`
}
