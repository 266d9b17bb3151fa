// services/credits_service.go
package services

import (
	"errors"
	"time"

	"quest-economy-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreditsService tracks the per-user, per-quest daily message
// allowance. Resets are lazy: every read or write first applies the
// day rollover inside the same transaction as the operation itself, so
// two concurrent sends can never both consume the last credit.
type CreditsService struct {
	DB *gorm.DB
}

func NewCreditsService(db *gorm.DB) *CreditsService {
	return &CreditsService{DB: db}
}

// ensureCredits loads (or creates) the credit row for (user, quest)
// and applies the lazy daily reset inside tx. Spending itself is
// guarded by a conditional update, so concurrent sends cannot both
// consume the last credit.
func (s *CreditsService) ensureCredits(tx *gorm.DB, userID, questID string, now time.Time) (*models.UserCredits, error) {
	var credits models.UserCredits
	err := tx.Where("user_id = ? AND quest_id = ?", userID, questID).
		First(&credits).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		daily := 1
		var quest models.Quest
		if qErr := tx.First(&quest, "id = ?", questID).Error; qErr != nil {
			if errors.Is(qErr, gorm.ErrRecordNotFound) {
				return nil, ErrQuestNotFound
			}
			return nil, qErr
		}
		if quest.Rules.DailyCredits > 0 {
			daily = quest.Rules.DailyCredits
		}
		credits = models.UserCredits{
			ID:               uuid.NewString(),
			UserID:           userID,
			QuestID:          questID,
			DailyCredits:     daily,
			CreditsUsedToday: 0,
			LastResetDate:    now,
		}
		if err := tx.Create(&credits).Error; err != nil {
			return nil, err
		}
		return &credits, nil
	}
	if err != nil {
		return nil, err
	}

	// Lazy daily rollover.
	lastY, lastM, lastD := credits.LastResetDate.UTC().Date()
	nowY, nowM, nowD := now.UTC().Date()
	lastDay := time.Date(lastY, lastM, lastD, 0, 0, 0, 0, time.UTC)
	today := time.Date(nowY, nowM, nowD, 0, 0, 0, 0, time.UTC)
	if lastDay.Before(today) {
		credits.CreditsUsedToday = 0
		credits.LastResetDate = now
		if err := tx.Save(&credits).Error; err != nil {
			return nil, err
		}
		if err := s.logTransaction(tx, userID, questID, models.CreditTxDailyReset,
			credits.DailyCredits, 0, credits.DailyCredits, "daily credits reset"); err != nil {
			return nil, err
		}
	}
	return &credits, nil
}

// CanSendMessage reports whether the user has a credit left today.
// Applies the lazy reset as a side effect.
func (s *CreditsService) CanSendMessage(userID, questID string) (*models.CreditStatus, error) {
	var status *models.CreditStatus
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		credits, err := s.ensureCredits(tx, userID, questID, now)
		if err != nil {
			return err
		}
		available := credits.DailyCredits - credits.CreditsUsedToday
		status = &models.CreditStatus{
			CanSend:          available > 0,
			AvailableCredits: available,
			DailyCredits:     credits.DailyCredits,
			UsedToday:        credits.CreditsUsedToday,
			NextReset:        nextResetTime(now),
		}
		return nil
	})
	return status, err
}

// SpendCredit consumes one credit for a sent message. Reset and spend
// happen in one transaction with the row locked.
func (s *CreditsService) SpendCredit(userID, questID, description string) (*models.CreditStatus, error) {
	var status *models.CreditStatus
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		credits, err := s.ensureCredits(tx, userID, questID, now)
		if err != nil {
			return err
		}
		// Conditional update: only succeeds while a credit remains, so
		// racing sends cannot both spend the last one.
		res := tx.Model(&models.UserCredits{}).
			Where("id = ? AND credits_used_today < daily_credits", credits.ID).
			Update("credits_used_today", gorm.Expr("credits_used_today + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientCredits
		}

		before := credits.DailyCredits - credits.CreditsUsedToday
		credits.CreditsUsedToday++
		if err := s.logTransaction(tx, userID, questID, models.CreditTxSpent,
			-1, before, before-1, description); err != nil {
			return err
		}
		status = &models.CreditStatus{
			CanSend:          before-1 > 0,
			AvailableCredits: before - 1,
			DailyCredits:     credits.DailyCredits,
			UsedToday:        credits.CreditsUsedToday,
			NextReset:        nextResetTime(now),
		}
		return nil
	})
	return status, err
}

// AddCredits raises the user's daily allowance for the quest. The
// bump is permanent: purchased and ad-earned credits compound every
// day instead of forming a separate one-shot balance.
func (s *CreditsService) AddCredits(userID, questID string, amount int, source models.CreditTransactionType, description string) (*models.CreditStatus, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var status *models.CreditStatus
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		credits, err := s.ensureCredits(tx, userID, questID, now)
		if err != nil {
			return err
		}
		before := credits.DailyCredits
		credits.DailyCredits += amount
		if err := tx.Save(credits).Error; err != nil {
			return err
		}
		if description == "" {
			description = "credits added from " + string(source)
		}
		if err := s.logTransaction(tx, userID, questID, source,
			amount, before, credits.DailyCredits, description); err != nil {
			return err
		}
		status = &models.CreditStatus{
			CanSend:          credits.DailyCredits-credits.CreditsUsedToday > 0,
			AvailableCredits: credits.DailyCredits - credits.CreditsUsedToday,
			DailyCredits:     credits.DailyCredits,
			UsedToday:        credits.CreditsUsedToday,
			NextReset:        nextResetTime(now),
		}
		return nil
	})
	return status, err
}

// SetQuestCreditLimit updates the daily allowance of every existing
// credit row for a quest (admin operation).
func (s *CreditsService) SetQuestCreditLimit(questID string, dailyCredits int) error {
	if dailyCredits <= 0 {
		return ErrInvalidAmount
	}
	return s.DB.Model(&models.UserCredits{}).
		Where("quest_id = ?", questID).
		Update("daily_credits", dailyCredits).Error
}

// QuestCreditStats is derived live from the credit rows.
type QuestCreditStats struct {
	QuestID          string    `json:"quest_id"`
	TotalUsers       int64     `json:"total_users"`
	ActiveUsers      int64     `json:"active_users"` // still holding credits today
	TotalCreditsUsed int64     `json:"total_credits_used"`
	NextReset        time.Time `json:"next_reset"`
}

func (s *CreditsService) GetQuestCreditStats(questID string) (*QuestCreditStats, error) {
	stats := &QuestCreditStats{QuestID: questID, NextReset: nextResetTime(time.Now())}

	base := s.DB.Model(&models.UserCredits{}).Where("quest_id = ?", questID)
	if err := base.Count(&stats.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.UserCredits{}).
		Where("quest_id = ? AND credits_used_today < daily_credits", questID).
		Count(&stats.ActiveUsers).Error; err != nil {
		return nil, err
	}
	var used struct{ Total int64 }
	if err := s.DB.Model(&models.UserCredits{}).
		Where("quest_id = ?", questID).
		Select("COALESCE(SUM(credits_used_today), 0) AS total").
		Scan(&used).Error; err != nil {
		return nil, err
	}
	stats.TotalCreditsUsed = used.Total
	return stats, nil
}

func (s *CreditsService) logTransaction(tx *gorm.DB, userID, questID string, txType models.CreditTransactionType, amount, before, after int, description string) error {
	return tx.Create(&models.CreditTransaction{
		ID:            uuid.NewString(),
		UserID:        userID,
		QuestID:       questID,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   description,
	}).Error
}

// nextResetTime is the next UTC midnight.
func nextResetTime(now time.Time) time.Time {
	tomorrow := now.UTC().AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, time.UTC)
}
