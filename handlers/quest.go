package handlers

import (
	"quest-economy-system/middleware"
	"quest-economy-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupQuestRoutes(app *fiber.App, questService *services.QuestService, leaderboardService *services.LeaderboardService) {
	// 🔓 Public quest views
	app.Get("/quests", questService.GetAllQuests)
	app.Get("/quests/:id", questService.GetQuestByID)
	app.Get("/quests/:id/status", questService.GetQuestStatusEndpoint)
	app.Get("/quests/:id/leaderboard", leaderboardService.GetLeaderboardEndpoint)
	app.Get("/quests/:id/participants", questService.GetQuestParticipants)

	// 🔐 Authenticated participation
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Post("/quests/:id/join", questService.JoinQuestEndpoint)
	secured.Delete("/quests/:id/leave", questService.LeaveQuestEndpoint)

	// Admin lifecycle management
	admin := secured.Group("/", middleware.AdminOnlyMiddleware())
	admin.Post("/quests", questService.CreateQuest)
	admin.Post("/quests/:id/pause", questService.PauseQuestEndpoint)
	admin.Post("/quests/:id/resume", questService.ResumeQuestEndpoint)
	admin.Post("/quests/:id/end", questService.EndQuestEndpoint)
	admin.Post("/quests/:id/leaderboard/refresh", leaderboardService.UpdateLeaderboardEndpoint)
}
