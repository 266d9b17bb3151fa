// services/payment_endpoints.go
package services

import (
	"errors"

	"quest-economy-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProcessPaymentEndpoint accepts a user payment and routes it through
// the splitter. The payer must be a participant of the quest.
func (s *PaymentSplitterService) ProcessPaymentEndpoint(c *fiber.Ctx) error {
	var req struct {
		UserID  string          `json:"user_id"`
		QuestID string          `json:"quest_id"`
		Amount  decimal.Decimal `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.UserID == "" || req.QuestID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id and quest_id are required"})
	}

	var participant models.QuestParticipant
	err := s.DB.Where("quest_id = ? AND user_id = ?", req.QuestID, req.UserID).First(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrParticipantNotFound.Error()})
	}
	if err != nil {
		return questErrorResponse(c, err)
	}

	split, err := s.SplitPayment(req.QuestID, req.UserID, req.Amount, models.PoolSourceUserPayment)
	if err != nil {
		return questErrorResponse(c, err)
	}
	totals, err := s.GetQuestPoolTotals(req.QuestID)
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"success":         true,
		"split_details":   split,
		"new_pool_totals": totals,
	})
}

// FundQuestEndpoint lets an admin seed a quest pool directly.
func (s *PaymentSplitterService) FundQuestEndpoint(c *fiber.Ctx) error {
	var req struct {
		Amount decimal.Decimal   `json:"amount"`
		Source models.PoolSource `json:"source"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	source := req.Source
	if source == "" {
		source = models.PoolSourceAdminFund
	}
	if source != models.PoolSourceAdminFund && source != models.PoolSourceBonusEvent {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "source must be admin_fund or bonus_event"})
	}
	adminID, _ := c.Locals("user_id").(string)
	split, err := s.SplitPayment(c.Params("id"), adminID, req.Amount, source)
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(split)
}

func (s *PaymentSplitterService) GetQuestPoolTotalsEndpoint(c *fiber.Ctx) error {
	totals, err := s.GetQuestPoolTotals(c.Params("id"))
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(totals)
}

func (s *PaymentSplitterService) GetPlatformTotalsEndpoint(c *fiber.Ctx) error {
	totals, err := s.GetPlatformTotals()
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"platform_treasury": totals.TotalTreasury,
		"platform_pools":    totals.TotalPool,
		"platform_total":    totals.TotalCollected,
	})
}
