// services/spin_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"quest-economy-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SpinService runs the reward wheel. A spin may debit the wallet for
// its cost and credit it for a token prize, both with completed audit
// rows in the same transaction; credit prizes are applied to the
// user's first active quest after the spin commits.
type SpinService struct {
	DB      *gorm.DB
	Credits *CreditsService

	// roll yields the wheel position in [0,1). Swappable so tests can
	// pin the outcome.
	roll func() float64
}

func NewSpinService(db *gorm.DB, credits *CreditsService) *SpinService {
	return &SpinService{DB: db, Credits: credits, roll: rand.Float64}
}

// GetActiveWheels lists the wheels users can currently spin.
func (s *SpinService) GetActiveWheels() ([]models.SpinWheel, error) {
	var wheels []models.SpinWheel
	err := s.DB.Where("is_active = ?", true).Find(&wheels).Error
	return wheels, err
}

// CreateWheel validates and stores an admin-configured wheel.
func (s *SpinService) CreateWheel(wheel *models.SpinWheel) error {
	if wheel.Name == "" {
		return errors.New("wheel name is required")
	}
	if wheel.MaxSpinsPerDay <= 0 {
		wheel.MaxSpinsPerDay = 1
	}
	if wheel.SpinCost.IsNegative() {
		return ErrInvalidAmount
	}
	if err := wheel.Prizes.Validate(); err != nil {
		return err
	}
	wheel.ID = uuid.NewString()
	wheel.IsActive = true
	return s.DB.Create(wheel).Error
}

// SpinStatus is a user's view of the active wheel.
type SpinStatus struct {
	UserID         string     `json:"user_id"`
	SpinsUsedToday int64      `json:"spins_used_today"`
	SpinsRemaining int64      `json:"spins_remaining_today"`
	LastSpinAt     *time.Time `json:"last_spin_at,omitempty"`
	CanSpin        bool       `json:"can_spin"`
}

// GetSpinStatus reports how many spins the user has left today and
// whether their balance covers the cost.
func (s *SpinService) GetSpinStatus(userID string, now time.Time) (*SpinStatus, error) {
	if err := requireUser(s.DB, userID); err != nil {
		return nil, err
	}
	status := &SpinStatus{UserID: userID}

	var wheel models.SpinWheel
	err := s.DB.Where("is_active = ?", true).First(&wheel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return status, nil
	}
	if err != nil {
		return nil, err
	}

	used, err := s.spinsUsedToday(s.DB, userID, now)
	if err != nil {
		return nil, err
	}
	status.SpinsUsedToday = used
	status.SpinsRemaining = int64(wheel.MaxSpinsPerDay) - used
	if status.SpinsRemaining < 0 {
		status.SpinsRemaining = 0
	}

	var last models.SpinAttempt
	err = s.DB.Where("user_id = ?", userID).Order("created_at DESC").First(&last).Error
	if err == nil {
		lastAt := last.CreatedAt
		status.LastSpinAt = &lastAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	status.CanSpin = status.SpinsRemaining > 0
	if status.CanSpin && wheel.SpinCost.IsPositive() {
		var wallet models.UserWallet
		err := s.DB.Where("user_id = ?", userID).First(&wallet).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && wallet.Balance.LessThan(wheel.SpinCost)) {
			status.CanSpin = false
		} else if err != nil {
			return nil, err
		}
	}
	return status, nil
}

// SpinResult is what one spin cost and won.
type SpinResult struct {
	AttemptID    string          `json:"attempt_id"`
	Prize        models.Prize    `json:"prize_won"`
	TokenReward  decimal.Decimal `json:"token_reward"`
	CreditReward int             `json:"credit_reward"`
	Message      string          `json:"message"`
}

// Spin debits the wheel cost, rolls a prize, pays token prizes into
// the wallet and records the attempt, all in one transaction. A
// credits prize raises the daily allowance on the user's first active
// quest after commit; a user with no active quest just keeps the
// recorded win.
func (s *SpinService) Spin(userID, wheelID string, now time.Time) (*SpinResult, error) {
	var (
		result  *SpinResult
		questID string
	)
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, userID); err != nil {
			return err
		}

		var wheel models.SpinWheel
		err := tx.Where("id = ? AND is_active = ?", wheelID, true).First(&wheel).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWheelNotFound
		}
		if err != nil {
			return err
		}

		used, err := s.spinsUsedToday(tx, userID, now)
		if err != nil {
			return err
		}
		if used >= int64(wheel.MaxSpinsPerDay) {
			return ErrSpinLimitReached
		}

		prize := pickPrize(wheel.Prizes, s.roll())

		if wheel.SpinCost.IsPositive() {
			if err := s.debitSpinCost(tx, userID, &wheel, now); err != nil {
				return err
			}
		}

		tokenReward := decimal.Zero
		creditReward := 0
		switch prize.Type {
		case models.PrizeTypeTokens:
			tokenReward = decimal.NewFromFloat(prize.Value)
			if tokenReward.IsPositive() {
				err := paySpinRewardTx(tx, userID, tokenReward, &wheel, prize, now)
				if err != nil {
					return err
				}
			}
		case models.PrizeTypeCredits:
			creditReward = int(prize.Value)
		}

		attempt := models.SpinAttempt{
			ID:           uuid.NewString(),
			UserID:       userID,
			WheelID:      wheel.ID,
			PrizeName:    prize.Name,
			PrizeType:    prize.Type,
			SpinCost:     wheel.SpinCost,
			TokenReward:  tokenReward,
			CreditReward: creditReward,
		}
		if err := tx.Create(&attempt).Error; err != nil {
			return err
		}

		if creditReward > 0 {
			questID, err = s.firstActiveQuestID(tx, userID, now)
			if err != nil {
				return err
			}
		}

		result = &SpinResult{
			AttemptID:    attempt.ID,
			Prize:        prize,
			TokenReward:  tokenReward,
			CreditReward: creditReward,
			Message:      spinMessage(prize, tokenReward, creditReward),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Credit prizes land on the first active quest, outside the spin
	// transaction: CreditsService manages its own transaction, and a
	// failure here must not take the recorded spin down with it.
	if result.CreditReward > 0 && questID != "" {
		_, err := s.Credits.AddCredits(userID, questID, result.CreditReward,
			models.CreditTxAdReward, fmt.Sprintf("Spin wheel prize: %s", result.Prize.Name))
		if err != nil {
			log.Printf("⚠️  Spin %s: failed to apply credit prize: %v", result.AttemptID, err)
		}
	}
	return result, nil
}

func spinMessage(prize models.Prize, tokens decimal.Decimal, credits int) string {
	msg := "You won: " + prize.Name
	if tokens.IsPositive() {
		msg += fmt.Sprintf(" (+%s tokens)", tokens)
	}
	if credits > 0 {
		msg += fmt.Sprintf(" (+%d credits)", credits)
	}
	return msg
}

// debitSpinCost takes the wheel cost out of the wallet with a
// completed withdrawal audit row. No wallet, or not enough balance,
// fails the spin.
func (s *SpinService) debitSpinCost(tx *gorm.DB, userID string, wheel *models.SpinWheel, now time.Time) error {
	var wallet models.UserWallet
	err := tx.Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInsufficientBalance
	}
	if err != nil {
		return err
	}
	if wallet.Balance.LessThan(wheel.SpinCost) {
		return ErrInsufficientBalance
	}

	before := wallet.Balance
	wallet.Balance = wallet.Balance.Sub(wheel.SpinCost)
	if err := tx.Save(&wallet).Error; err != nil {
		return err
	}
	return tx.Create(&models.WalletTransaction{
		ID:            uuid.NewString(),
		WalletID:      wallet.ID,
		UserID:        userID,
		Type:          models.TransactionTypeWithdrawal,
		Amount:        wheel.SpinCost,
		BalanceBefore: before,
		BalanceAfter:  wallet.Balance,
		Status:        models.TransactionStatusCompleted,
		Description:   "Spin wheel cost - " + wheel.Name,
		Metadata: models.TransactionMetadata{
			"wheel_id":  wheel.ID,
			"spin_type": "wheel_cost",
		},
		ProcessedAt: &now,
	}).Error
}

// paySpinRewardTx credits a token prize, creating the wallet if the
// winner has never held one.
func paySpinRewardTx(tx *gorm.DB, userID string, amount decimal.Decimal, wheel *models.SpinWheel, prize models.Prize, now time.Time) error {
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
		Type:          models.TransactionTypeDeposit,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  wallet.Balance,
		Status:        models.TransactionStatusCompleted,
		Description:   "Spin wheel reward - " + prize.Name,
		Metadata: models.TransactionMetadata{
			"wheel_id":    wheel.ID,
			"reward_type": string(prize.Type),
			"prize_won":   prize.Name,
		},
		ProcessedAt: &now,
	}).Error
}

// pickPrize maps a roll in [0,1) onto the cumulative probability
// segments. Falls back to the last prize against rounding drift.
func pickPrize(prizes models.PrizeList, roll float64) models.Prize {
	cumulative := 0.0
	for _, prize := range prizes {
		cumulative += prize.Probability
		if roll < cumulative {
			return prize
		}
	}
	return prizes[len(prizes)-1]
}

// GetSpinHistory returns the user's attempts, newest first.
func (s *SpinService) GetSpinHistory(userID string, limit int) ([]models.SpinAttempt, error) {
	if err := requireUser(s.DB, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	var attempts []models.SpinAttempt
	err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

func (s *SpinService) spinsUsedToday(tx *gorm.DB, userID string, now time.Time) (int64, error) {
	utc := now.UTC()
	dayStart := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	var used int64
	err := tx.Model(&models.SpinAttempt{}).
		Where("user_id = ? AND created_at >= ?", userID, dayStart).
		Count(&used).Error
	return used, err
}

// firstActiveQuestID returns one unexpired active quest the user
// participates in, or "".
func (s *SpinService) firstActiveQuestID(tx *gorm.DB, userID string, now time.Time) (string, error) {
	var participant models.QuestParticipant
	err := tx.
		Joins("JOIN quests ON quests.id = quest_participants.quest_id").
		Where("quest_participants.user_id = ?", userID).
		Where("quests.status = ?", models.QuestStatusActive).
		Where("quests.end_date IS NULL OR quests.end_date > ?", now).
		Order("quest_participants.joined_at ASC").
		First(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return participant.QuestID, nil
}

// --- HTTP handlers ---

func (s *SpinService) GetActiveWheelsEndpoint(c *fiber.Ctx) error {
	wheels, err := s.GetActiveWheels()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch spin wheels"})
	}
	return c.JSON(wheels)
}

func (s *SpinService) GetSpinStatusEndpoint(c *fiber.Ctx) error {
	status, err := s.GetSpinStatus(c.Params("user_id"), time.Now())
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(status)
}

func (s *SpinService) SpinEndpoint(c *fiber.Ctx) error {
	result, err := s.Spin(c.Params("user_id"), c.Params("wheel_id"), time.Now())
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Insufficient balance for spin"})
		}
		return questErrorResponse(c, err)
	}
	return c.JSON(result)
}

func (s *SpinService) GetSpinHistoryEndpoint(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	attempts, err := s.GetSpinHistory(c.Params("user_id"), limit)
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(attempts)
}

func (s *SpinService) CreateWheelEndpoint(c *fiber.Ctx) error {
	var wheel models.SpinWheel
	if err := c.BodyParser(&wheel); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := s.CreateWheel(&wheel); err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			return questErrorResponse(c, err)
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(wheel)
}
