package handlers

import (
	"quest-economy-system/middleware"
	"quest-economy-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupGlobalLeaderboardRoutes(app *fiber.App, globalService *services.GlobalLeaderboardService) {
	// 🔓 Public standings
	app.Get("/leaderboard/global", globalService.GetGlobalLeaderboardEndpoint)
	app.Get("/leaderboard/global/users/:user_id", globalService.GetUserStatsEndpoint)

	// Admin rebuild and daily bonus management
	secured := app.Group("/", middleware.UserContextMiddleware())
	admin := secured.Group("/", middleware.AdminOnlyMiddleware())
	admin.Post("/leaderboard/global/refresh", globalService.RebuildEndpoint)
	admin.Post("/leaderboard/global/daily-bonuses/process", globalService.ProcessDailyBonusesEndpoint)
	admin.Put("/leaderboard/global/daily-bonuses/config", globalService.SetBonusConfigEndpoint)
	admin.Get("/leaderboard/global/daily-bonuses/config", globalService.GetBonusConfigEndpoint)
}
