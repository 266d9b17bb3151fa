// services/payment_splitter.go
package services

import (
	"errors"
	"log"

	"quest-economy-system/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// Default split when a quest carries no distribution rules.
var (
	defaultTreasuryPercentage = decimal.NewFromInt(10)
	defaultUserPercentage     = decimal.NewFromInt(90)
)

// PaymentSplitterService routes every contribution into treasury and
// prize-pool buckets per the quest's distribution rules and persists
// one immutable QuestPool row per contribution. Totals are always
// derived by SUM, never cached.
type PaymentSplitterService struct {
	DB *gorm.DB
}

func NewPaymentSplitterService(db *gorm.DB) *PaymentSplitterService {
	return &PaymentSplitterService{DB: db}
}

// SplitResult reports how one payment was divided.
type SplitResult struct {
	TotalAmount        decimal.Decimal `json:"total_amount"`
	TreasuryAmount     decimal.Decimal `json:"treasury_amount"`
	PoolAmount         decimal.Decimal `json:"pool_amount"`
	TreasuryPercentage decimal.Decimal `json:"treasury_percentage"`
	UserPercentage     decimal.Decimal `json:"user_percentage"`
}

// splitAmounts computes the two legs of a split. The pool leg is the
// remainder after the treasury leg, so the legs always sum exactly to
// amount regardless of the percentage configuration.
func splitAmounts(amount, treasuryPct decimal.Decimal) (treasury, pool decimal.Decimal) {
	treasury = amount.Mul(treasuryPct).Div(hundred)
	pool = amount.Sub(treasury)
	return treasury, pool
}

// SplitPayment splits amount between treasury and pool for the quest
// and appends the QuestPool ledger row. No row is written on any error.
func (s *PaymentSplitterService) SplitPayment(questID, userID string, amount decimal.Decimal, source models.PoolSource) (*SplitResult, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var quest models.Quest
	if err := s.DB.First(&quest, "id = ?", questID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, err
	}

	treasuryPct := quest.Rules.TreasuryPercentage
	userPct := quest.Rules.UserPercentage
	if treasuryPct.IsZero() && userPct.IsZero() {
		treasuryPct = defaultTreasuryPercentage
		userPct = defaultUserPercentage
	}

	treasuryAmount, poolAmount := splitAmounts(amount, treasuryPct)
	if !treasuryAmount.Add(poolAmount).Equal(amount) {
		return nil, ErrSplitMismatch
	}

	row := models.QuestPool{
		ID:              uuid.NewString(),
		QuestID:         questID,
		UserID:          userID,
		Source:          source,
		Amount:          amount,
		SplitToTreasury: treasuryAmount,
		SplitToPool:     poolAmount,
	}
	if err := s.DB.Create(&row).Error; err != nil {
		return nil, err
	}

	log.Printf("[Splitter] Quest %s: %s split %s/%s (%s%%/%s%%)",
		questID, amount, treasuryAmount, poolAmount, treasuryPct, userPct)

	return &SplitResult{
		TotalAmount:        amount,
		TreasuryAmount:     treasuryAmount,
		PoolAmount:         poolAmount,
		TreasuryPercentage: treasuryPct,
		UserPercentage:     userPct,
	}, nil
}

// GetQuestPoolTotals derives treasury/pool totals for one quest from
// the ledger rows.
func (s *PaymentSplitterService) GetQuestPoolTotals(questID string) (*models.PoolTotals, error) {
	var quest models.Quest
	if err := s.DB.Select("id").First(&quest, "id = ?", questID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, err
	}
	return s.sumPools(s.DB.Model(&models.QuestPool{}).Where("quest_id = ?", questID), questID)
}

// GetPlatformTotals derives treasury/pool totals across all quests.
func (s *PaymentSplitterService) GetPlatformTotals() (*models.PoolTotals, error) {
	return s.sumPools(s.DB.Model(&models.QuestPool{}), "")
}

func (s *PaymentSplitterService) sumPools(query *gorm.DB, questID string) (*models.PoolTotals, error) {
	var row struct {
		Treasury decimal.NullDecimal
		Pool     decimal.NullDecimal
	}
	err := query.
		Select("SUM(split_to_treasury) AS treasury, SUM(split_to_pool) AS pool").
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	totals := &models.PoolTotals{
		QuestID:       questID,
		TotalTreasury: decimal.Zero,
		TotalPool:     decimal.Zero,
	}
	if row.Treasury.Valid {
		totals.TotalTreasury = row.Treasury.Decimal
	}
	if row.Pool.Valid {
		totals.TotalPool = row.Pool.Decimal
	}
	totals.TotalCollected = totals.TotalTreasury.Add(totals.TotalPool)
	return totals, nil
}
