package handlers

import (
	"quest-economy-system/middleware"
	"quest-economy-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupBonusRoutes(app *fiber.App, bonusService *services.BonusService) {
	// 🔐 Daily login bonus
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/bonuses/:user_id/daily", bonusService.GetTodayBonusEndpoint)
	secured.Post("/bonuses/:user_id/daily/claim", bonusService.ClaimDailyBonusEndpoint)
}
