// services/bonus_service.go
package services

import (
	"errors"
	"time"

	"quest-economy-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// defaultDailyBonusAmount is what a plain daily login bonus pays.
var defaultDailyBonusAmount = decimal.NewFromInt(10)

// BonusService manages the per-user daily login bonus: one claimable
// row per UTC day, paid into the wallet on claim.
type BonusService struct {
	DB *gorm.DB
}

func NewBonusService(db *gorm.DB) *BonusService {
	return &BonusService{DB: db}
}

// GetTodayBonus returns today's bonus for the user, creating the
// unclaimed row on first view.
func (s *BonusService) GetTodayBonus(userID string, now time.Time) (*models.DailyBonus, error) {
	var bonus *models.DailyBonus
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, userID); err != nil {
			return err
		}
		b, err := s.ensureTodayBonus(tx, userID, now)
		if err != nil {
			return err
		}
		bonus = b
		return nil
	})
	return bonus, err
}

// ClaimDailyBonus marks today's bonus claimed and credits the wallet.
// The claim itself is a conditional update on claimed = false, so two
// racing claims cannot both pay out.
func (s *BonusService) ClaimDailyBonus(userID string, now time.Time) (*models.DailyBonus, error) {
	var bonus *models.DailyBonus
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, userID); err != nil {
			return err
		}
		b, err := s.ensureTodayBonus(tx, userID, now)
		if err != nil {
			return err
		}

		res := tx.Model(&models.DailyBonus{}).
			Where("id = ? AND claimed = ?", b.ID, false).
			Updates(map[string]interface{}{
				"claimed":    true,
				"claimed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrBonusAlreadyClaimed
		}

		err = payBonusTx(tx, userID, b.RewardAmount, "Daily login bonus",
			models.TransactionMetadata{
				"source": "daily_claim",
				"date":   b.BonusDate,
			}, now)
		if err != nil {
			return err
		}

		b.Claimed = true
		b.ClaimedAt = &now
		bonus = b
		return nil
	})
	return bonus, err
}

func (s *BonusService) ensureTodayBonus(tx *gorm.DB, userID string, now time.Time) (*models.DailyBonus, error) {
	day := now.UTC().Format("2006-01-02")
	var bonus models.DailyBonus
	err := tx.Where("user_id = ? AND bonus_date = ?", userID, day).First(&bonus).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		bonus = models.DailyBonus{
			ID:           uuid.NewString(),
			UserID:       userID,
			BonusDate:    day,
			RewardAmount: defaultDailyBonusAmount,
		}
		if err := tx.Create(&bonus).Error; err != nil {
			return nil, err
		}
		return &bonus, nil
	}
	if err != nil {
		return nil, err
	}
	return &bonus, nil
}

// requireUser checks the local user snapshot exists.
func requireUser(tx *gorm.DB, userID string) error {
	var user models.QuestUser
	err := tx.Where("user_id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}

// payBonusTx credits a bonus to the user's wallet inside tx, creating
// the wallet on first touch, with a completed daily_bonus audit row.
// Shared by the daily claim and the global top-three payout.
func payBonusTx(tx *gorm.DB, userID string, amount decimal.Decimal, description string, metadata models.TransactionMetadata, now time.Time) error {
	var wallet models.UserWallet
	err := tx.Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		wallet = models.UserWallet{
			ID:      uuid.NewString(),
			UserID:  userID,
			Balance: decimal.Zero,
		}
		if err := tx.Create(&wallet).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	before := wallet.Balance
	wallet.Balance = wallet.Balance.Add(amount)
	wallet.TotalEarned = wallet.TotalEarned.Add(amount)
	if err := tx.Save(&wallet).Error; err != nil {
		return err
	}

	return tx.Create(&models.WalletTransaction{
		ID:            uuid.NewString(),
		WalletID:      wallet.ID,
		UserID:        userID,
		Type:          models.TransactionTypeDailyBonus,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  wallet.Balance,
		Status:        models.TransactionStatusCompleted,
		Description:   description,
		Metadata:      metadata,
		ProcessedAt:   &now,
	}).Error
}

// --- HTTP handlers ---

func (s *BonusService) GetTodayBonusEndpoint(c *fiber.Ctx) error {
	bonus, err := s.GetTodayBonus(c.Params("user_id"), time.Now())
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(bonus)
}

func (s *BonusService) ClaimDailyBonusEndpoint(c *fiber.Ctx) error {
	bonus, err := s.ClaimDailyBonus(c.Params("user_id"), time.Now())
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Daily bonus claimed",
		"bonus":   bonus,
	})
}
