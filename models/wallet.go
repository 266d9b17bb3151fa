package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType indicates why a wallet balance moved.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeReward     TransactionType = "reward"
	TransactionTypeDailyBonus TransactionType = "daily_bonus"
)

// TransactionStatus tracks the external processor's view of a
// transaction. Only withdrawals are born pending; everything else is
// completed at write time.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// UserWallet holds a user's spendable balance. Balance never goes
// negative; the binding invariant is
// balance == total_earned - total_withdrawn + net deposits,
// maintained transactionally rather than recomputed.
type UserWallet struct {
	ID             string          `json:"wallet_id" gorm:"primaryKey"`
	UserID         string          `json:"user_id" gorm:"uniqueIndex;not null"`
	Balance        decimal.Decimal `json:"balance" gorm:"type:decimal(20,8);not null;default:0"`
	TotalEarned    decimal.Decimal `json:"total_earned" gorm:"type:decimal(20,8);not null;default:0"`
	TotalWithdrawn decimal.Decimal `json:"total_withdrawn" gorm:"type:decimal(20,8);not null;default:0"`
	CreatedAt      time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"autoUpdateTime"`

	Transactions []WalletTransaction `json:"transactions,omitempty" gorm:"foreignKey:WalletID"`
}

type TransactionMetadata map[string]interface{}

func (m TransactionMetadata) Value() (driver.Value, error) {
	if m == nil {
		m = TransactionMetadata{}
	}
	return json.Marshal(m)
}

func (m *TransactionMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = TransactionMetadata{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return errors.New("unsupported type for TransactionMetadata")
}

// WalletTransaction is an immutable audit row per balance mutation.
// BalanceBefore/BalanceAfter are captured in the same transaction as
// the mutation itself, never from a stale read.
type WalletTransaction struct {
	ID                string              `json:"transaction_id" gorm:"primaryKey"`
	WalletID          string              `json:"wallet_id" gorm:"not null;index"`
	UserID            string              `json:"user_id" gorm:"not null;index"`
	Type              TransactionType     `json:"transaction_type" gorm:"column:transaction_type;type:varchar(16);not null"`
	Amount            decimal.Decimal     `json:"amount" gorm:"type:decimal(20,8);not null"`
	BalanceBefore     decimal.Decimal     `json:"balance_before" gorm:"type:decimal(20,8);not null"`
	BalanceAfter      decimal.Decimal     `json:"balance_after" gorm:"type:decimal(20,8);not null"`
	Status            TransactionStatus   `json:"status" gorm:"type:varchar(16);default:'pending';index"`
	ExternalReference string              `json:"external_reference,omitempty"` // processor-side transaction ID
	QuestID           string              `json:"quest_id,omitempty" gorm:"index"`
	Description       string              `json:"description" gorm:"type:text"`
	Metadata          TransactionMetadata `json:"metadata" gorm:"type:jsonb"`
	CreatedAt         time.Time           `json:"created_at" gorm:"autoCreateTime"`
	ProcessedAt       *time.Time          `json:"processed_at,omitempty"`
}
