package handlers

import (
	"quest-economy-system/middleware"
	"quest-economy-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSpinRoutes(app *fiber.App, spinService *services.SpinService) {
	// 🔓 Public wheel catalogue
	app.Get("/spin/wheels", spinService.GetActiveWheelsEndpoint)

	// 🔐 Spinning
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/spin/:user_id/status", spinService.GetSpinStatusEndpoint)
	secured.Get("/spin/:user_id/history", spinService.GetSpinHistoryEndpoint)
	secured.Post("/spin/:user_id/spin/:wheel_id", spinService.SpinEndpoint)

	// Admin wheel management
	admin := secured.Group("/", middleware.AdminOnlyMiddleware())
	admin.Post("/spin/wheels", spinService.CreateWheelEndpoint)
}
