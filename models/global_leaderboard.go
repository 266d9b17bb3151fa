package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GlobalLeaderboardEntry is the cross-quest standing of one user:
// summed score and average over every quest they ever joined. Like the
// per-quest snapshot, the whole table is rebuilt wholesale on each
// refresh; QuestParticipant rows stay the source of truth.
type GlobalLeaderboardEntry struct {
	ID                 string    `json:"id" gorm:"primaryKey"`
	UserID             string    `json:"user_id" gorm:"uniqueIndex;not null"`
	Username           string    `json:"username"`
	TotalScore         int64     `json:"total_score"`
	QuestsParticipated int64     `json:"quests_participated"`
	AverageScore       float64   `json:"average_score"`
	Rank               int       `json:"rank" gorm:"index"`
	UpdatedAt          time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// DailyBonusConfig holds the payout amounts for the top three global
// ranks. At most one row is active; setting a new config deactivates
// the previous one instead of mutating it.
type DailyBonusConfig struct {
	ID          string          `json:"id" gorm:"primaryKey"`
	Rank1Amount decimal.Decimal `json:"rank_1_amount" gorm:"type:decimal(20,8);not null"`
	Rank2Amount decimal.Decimal `json:"rank_2_amount" gorm:"type:decimal(20,8);not null"`
	Rank3Amount decimal.Decimal `json:"rank_3_amount" gorm:"type:decimal(20,8);not null"`
	IsActive    bool            `json:"is_active" gorm:"default:true;index"`
	CreatedAt   time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

// GlobalDailyBonus records one top-rank payout. BonusDate is the UTC
// day in "2006-01-02" form; the unique index on (user, day) makes the
// once-per-day guard hold even if two process runs race.
type GlobalDailyBonus struct {
	ID          string            `json:"id" gorm:"primaryKey"`
	UserID      string            `json:"user_id" gorm:"not null;index;uniqueIndex:idx_global_bonus_user_day"`
	BonusDate   string            `json:"bonus_date" gorm:"not null;index;uniqueIndex:idx_global_bonus_user_day"`
	Rank        int               `json:"rank"`
	Amount      decimal.Decimal   `json:"amount" gorm:"type:decimal(20,8);not null"`
	Status      TransactionStatus `json:"status" gorm:"type:varchar(16)"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at" gorm:"autoCreateTime"`
}
