package handlers

import (
	"quest-economy-system/middleware"
	"quest-economy-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMessagingRoutes(app *fiber.App, messagingService *services.MessagingService) {
	// 🔓 Public chat history
	app.Get("/quests/:id/messages", messagingService.GetQuestMessagesEndpoint)

	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Post("/quests/:id/messages", messagingService.SendMessageEndpoint)
	secured.Get("/quests/:id/messages/:user_id", messagingService.GetUserMessagesEndpoint)
}
