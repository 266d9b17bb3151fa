// services/credits_endpoints.go
package services

import (
	"github.com/gofiber/fiber/v2"

	"quest-economy-system/models"
)

// GET /quests/:quest_id/credits/:user_id
func (s *CreditsService) GetCreditStatusEndpoint(c *fiber.Ctx) error {
	status, err := s.CanSendMessage(c.Params("user_id"), c.Params("quest_id"))
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(status)
}

// POST /quests/:quest_id/credits/:user_id/add
func (s *CreditsService) AddCreditsEndpoint(c *fiber.Ctx) error {
	var req struct {
		Amount      int    `json:"amount"`
		Source      string `json:"source"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	source := models.CreditTransactionType(req.Source)
	switch source {
	case models.CreditTxPurchase, models.CreditTxAdReward:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "source must be purchase or ad_reward"})
	}

	status, err := s.AddCredits(c.Params("user_id"), c.Params("quest_id"), req.Amount, source, req.Description)
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(status)
}

// PUT /quests/:quest_id/credits/limit (admin)
func (s *CreditsService) SetQuestCreditLimitEndpoint(c *fiber.Ctx) error {
	var req struct {
		DailyCredits int `json:"daily_credits"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := s.SetQuestCreditLimit(c.Params("quest_id"), req.DailyCredits); err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"quest_id": c.Params("quest_id"), "daily_credits": req.DailyCredits})
}

// GET /quests/:quest_id/credits/stats (admin)
func (s *CreditsService) GetQuestCreditStatsEndpoint(c *fiber.Ctx) error {
	stats, err := s.GetQuestCreditStats(c.Params("quest_id"))
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(stats)
}
