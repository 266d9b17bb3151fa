// services/wallet_service.go
package services

import (
	"errors"
	"log"
	"time"

	"quest-economy-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// minWithdrawal guards against dust withdrawal requests.
var minWithdrawal = decimal.NewFromFloat(0.01)

// WalletService applies deposits, withdrawals and reversals to wallet
// balances. Every mutation writes a WalletTransaction audit row whose
// before/after balances are captured in the same transaction as the
// balance change itself.
type WalletService struct {
	DB *gorm.DB
}

func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{DB: db}
}

// GetOrCreateWallet returns the user's wallet, creating an empty one
// on first touch.
func (s *WalletService) GetOrCreateWallet(userID string) (*models.UserWallet, error) {
	var wallet models.UserWallet
	err := s.DB.Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		wallet = models.UserWallet{
			ID:      uuid.NewString(),
			UserID:  userID,
			Balance: decimal.Zero,
		}
		if err := s.DB.Create(&wallet).Error; err != nil {
			return nil, err
		}
		return &wallet, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// Deposit credits the wallet with externally confirmed funds and
// writes a completed deposit transaction.
func (s *WalletService) Deposit(userID string, amount decimal.Decimal, externalRef, description string) (*models.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	var txRow *models.WalletTransaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		wallet, err := lockWallet(tx, userID)
		if err != nil {
			return err
		}
		before := wallet.Balance
		wallet.Balance = wallet.Balance.Add(amount)
		if err := tx.Save(wallet).Error; err != nil {
			return err
		}
		now := time.Now()
		txRow = &models.WalletTransaction{
			ID:                uuid.NewString(),
			WalletID:          wallet.ID,
			UserID:            userID,
			Type:              models.TransactionTypeDeposit,
			Amount:            amount,
			BalanceBefore:     before,
			BalanceAfter:      wallet.Balance,
			Status:            models.TransactionStatusCompleted,
			ExternalReference: externalRef,
			Description:       description,
			Metadata:          models.TransactionMetadata{},
			ProcessedAt:       &now,
		}
		return tx.Create(txRow).Error
	})
	return txRow, err
}

// Withdraw deducts the amount immediately and records a pending
// withdrawal for the external processor to finalize. The processor's
// webhook later completes it or triggers a reversal.
func (s *WalletService) Withdraw(userID string, amount decimal.Decimal) (*models.WalletTransaction, error) {
	if !amount.IsPositive() || amount.LessThan(minWithdrawal) {
		return nil, ErrInvalidAmount
	}
	var txRow *models.WalletTransaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		wallet, err := lockWallet(tx, userID)
		if err != nil {
			return err
		}
		if wallet.Balance.LessThan(amount) {
			return ErrInsufficientBalance
		}
		before := wallet.Balance
		wallet.Balance = wallet.Balance.Sub(amount)
		wallet.TotalWithdrawn = wallet.TotalWithdrawn.Add(amount)
		if err := tx.Save(wallet).Error; err != nil {
			return err
		}
		txRow = &models.WalletTransaction{
			ID:            uuid.NewString(),
			WalletID:      wallet.ID,
			UserID:        userID,
			Type:          models.TransactionTypeWithdrawal,
			Amount:        amount,
			BalanceBefore: before,
			BalanceAfter:  wallet.Balance,
			Status:        models.TransactionStatusPending,
			Description:   "Withdrawal request to payment processor",
			Metadata:      models.TransactionMetadata{},
		}
		return tx.Create(txRow).Error
	})
	return txRow, err
}

// WebhookUpdate is the processor's asynchronous verdict on a pending
// transaction.
type WebhookUpdate struct {
	TransactionID     string `json:"transaction_id"`
	Status            string `json:"status"` // completed | failed | cancelled
	ExternalReference string `json:"external_reference"`
}

// ProcessWebhook finalizes or reverses a pending withdrawal based on
// the processor callback. Reversal restores the balance and decrements
// total_withdrawn. Idempotent against repeated webhook delivery: a
// transaction that already left pending state is not touched again.
func (s *WalletService) ProcessWebhook(update WebhookUpdate) (*models.WalletTransaction, error) {
	if update.TransactionID == "" {
		return nil, ErrTransactionNotFound
	}
	var txRow *models.WalletTransaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var txn models.WalletTransaction
		if err := tx.First(&txn, "id = ?", update.TransactionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTransactionNotFound
			}
			return err
		}
		if txn.Status != models.TransactionStatusPending {
			// Duplicate delivery; report current state without mutating.
			txRow = &txn
			return nil
		}

		now := time.Now()
		if update.ExternalReference != "" {
			txn.ExternalReference = update.ExternalReference
		}

		switch update.Status {
		case "completed":
			txn.Status = models.TransactionStatusCompleted
			txn.ProcessedAt = &now
		case "failed", "cancelled":
			if update.Status == "failed" {
				txn.Status = models.TransactionStatusFailed
			} else {
				txn.Status = models.TransactionStatusCancelled
			}
			txn.ProcessedAt = &now
			// Reverse: restore the held amount.
			var wallet models.UserWallet
			if err := tx.First(&wallet, "id = ?", txn.WalletID).Error; err != nil {
				return err
			}
			wallet.Balance = wallet.Balance.Add(txn.Amount)
			wallet.TotalWithdrawn = wallet.TotalWithdrawn.Sub(txn.Amount)
			if err := tx.Save(&wallet).Error; err != nil {
				return err
			}
			log.Printf("[Wallet] Reversed withdrawal %s (%s): balance restored", txn.ID, update.Status)
		default:
			return ErrExternalService
		}

		if err := tx.Save(&txn).Error; err != nil {
			return err
		}
		txRow = &txn
		return nil
	})
	return txRow, err
}

// GetTransactions returns the user's transaction history, newest
// first.
func (s *WalletService) GetTransactions(userID string, limit int) ([]models.WalletTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var txns []models.WalletTransaction
	err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

// lockWallet loads the wallet row for update inside tx.
func lockWallet(tx *gorm.DB, userID string) (*models.UserWallet, error) {
	var wallet models.UserWallet
	err := tx.Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// --- HTTP handlers ---

func (s *WalletService) GetBalanceEndpoint(c *fiber.Ctx) error {
	wallet, err := s.GetOrCreateWallet(c.Params("user_id"))
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(wallet)
}

func (s *WalletService) WithdrawEndpoint(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	txn, err := s.Withdraw(userID, req.Amount)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		if errors.Is(err, ErrInsufficientBalance) {
			wallet, _ := s.GetOrCreateWallet(userID)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   err.Error(),
				"balance": wallet.Balance,
			})
		}
		return questErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"transaction_id": txn.ID,
		"amount":         txn.Amount,
		"status":         txn.Status,
		"message":        "Withdrawal request sent to payment processor",
	})
}

func (s *WalletService) GetTransactionsEndpoint(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	txns, err := s.GetTransactions(c.Params("user_id"), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch transactions"})
	}
	return c.JSON(txns)
}

func (s *WalletService) GetPendingWithdrawalsEndpoint(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	var pending []models.WalletTransaction
	err := s.DB.Where("user_id = ? AND transaction_type = ? AND status = ?",
		userID, models.TransactionTypeWithdrawal, models.TransactionStatusPending).
		Order("created_at DESC").
		Find(&pending).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch pending withdrawals"})
	}
	total := decimal.Zero
	for _, t := range pending {
		total = total.Add(t.Amount)
	}
	return c.JSON(fiber.Map{
		"user_id":              userID,
		"pending_withdrawals":  len(pending),
		"total_pending_amount": total,
		"transactions":         pending,
	})
}

func (s *WalletService) ProcessorWebhookEndpoint(c *fiber.Ctx) error {
	var update WebhookUpdate
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid webhook payload"})
	}
	txn, err := s.ProcessWebhook(update)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		if errors.Is(err, ErrExternalService) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown transaction status"})
		}
		return questErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"status":             "success",
		"transaction_id":     txn.ID,
		"transaction_status": txn.Status,
	})
}

func (s *WalletService) DepositEndpoint(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	var req struct {
		Amount            decimal.Decimal `json:"amount"`
		ExternalReference string          `json:"external_reference"`
		Description       string          `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if _, err := s.GetOrCreateWallet(userID); err != nil {
		return questErrorResponse(c, err)
	}
	txn, err := s.Deposit(userID, req.Amount, req.ExternalReference, req.Description)
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(txn)
}
