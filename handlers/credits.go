package handlers

import (
	"quest-economy-system/middleware"
	"quest-economy-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupCreditsRoutes(app *fiber.App, creditsService *services.CreditsService) {
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/quests/:quest_id/credits/:user_id", creditsService.GetCreditStatusEndpoint)
	secured.Post("/quests/:quest_id/credits/:user_id/add", creditsService.AddCreditsEndpoint)

	admin := secured.Group("/", middleware.AdminOnlyMiddleware())
	admin.Put("/quests/:quest_id/credits/limit", creditsService.SetQuestCreditLimitEndpoint)
	admin.Get("/quests/:quest_id/credits-stats", creditsService.GetQuestCreditStatsEndpoint)
}
