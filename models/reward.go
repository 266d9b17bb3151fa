package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuestReward is the audit record of one payout from a quest's final
// distribution pass. Written exactly once per (quest, user); the
// unique index backs the idempotence guarantee on quest ending.
type QuestReward struct {
	ID            string          `json:"id" gorm:"primaryKey"`
	QuestID       string          `json:"quest_id" gorm:"not null;index;uniqueIndex:idx_reward_quest_user"`
	UserID        string          `json:"user_id" gorm:"not null;index;uniqueIndex:idx_reward_quest_user"`
	Rank          int             `json:"rank" gorm:"not null"`
	Percent       float64         `json:"percent" gorm:"not null"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(20,8);not null"`
	DistributedAt time.Time       `json:"distributed_at" gorm:"autoCreateTime"`
}
