package models

import "time"

// CreditTransactionType labels credit ledger entries.
type CreditTransactionType string

const (
	CreditTxDailyReset CreditTransactionType = "daily_reset"
	CreditTxSpent      CreditTransactionType = "spent"
	CreditTxPurchase   CreditTransactionType = "purchase"
	CreditTxAdReward   CreditTransactionType = "ad_reward"
)

// UserCredits tracks the per-user, per-quest daily message allowance.
// The reset is lazy: any read or write first checks whether
// last_reset_date falls on an earlier day and zeroes credits_used_today
// if so. Purchased credits raise daily_credits permanently; they
// compound every day rather than being consumed once.
type UserCredits struct {
	ID               string    `json:"credit_id" gorm:"primaryKey"`
	UserID           string    `json:"user_id" gorm:"not null;index;uniqueIndex:idx_credits_user_quest"`
	QuestID          string    `json:"quest_id" gorm:"not null;index;uniqueIndex:idx_credits_user_quest"`
	DailyCredits     int       `json:"daily_credits" gorm:"default:1"`
	CreditsUsedToday int       `json:"credits_used_today" gorm:"default:0"`
	LastResetDate    time.Time `json:"last_reset_date"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// CreditTransaction is an immutable audit row per credit mutation.
type CreditTransaction struct {
	ID            string                `json:"transaction_id" gorm:"primaryKey"`
	UserID        string                `json:"user_id" gorm:"not null;index"`
	QuestID       string                `json:"quest_id" gorm:"not null;index"`
	Type          CreditTransactionType `json:"transaction_type" gorm:"column:transaction_type;type:varchar(16);not null"`
	Amount        int                   `json:"amount" gorm:"not null"` // positive for granted, negative for spent
	BalanceBefore int                   `json:"balance_before" gorm:"not null"`
	BalanceAfter  int                   `json:"balance_after" gorm:"not null"`
	Description   string                `json:"description"`
	CreatedAt     time.Time             `json:"created_at" gorm:"autoCreateTime"`
}

// CreditStatus is the view returned to the messaging gate.
type CreditStatus struct {
	CanSend          bool      `json:"can_send"`
	AvailableCredits int       `json:"available_credits"`
	DailyCredits     int       `json:"daily_credits"`
	UsedToday        int       `json:"used_today"`
	NextReset        time.Time `json:"next_reset"`
}
