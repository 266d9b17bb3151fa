package handlers

import (
	"quest-economy-system/middleware"
	"quest-economy-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPaymentRoutes(app *fiber.App, splitter *services.PaymentSplitterService) {
	app.Get("/quests/:id/pool-totals", splitter.GetQuestPoolTotalsEndpoint)

	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Post("/payments/process", splitter.ProcessPaymentEndpoint)

	admin := secured.Group("/", middleware.AdminOnlyMiddleware())
	admin.Post("/quests/:id/fund", splitter.FundQuestEndpoint)
	admin.Get("/platform/totals", splitter.GetPlatformTotalsEndpoint)
}
