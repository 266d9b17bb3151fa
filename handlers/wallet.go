package handlers

import (
	"quest-economy-system/middleware"
	"quest-economy-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupWalletRoutes(app *fiber.App, walletService *services.WalletService) {
	// Processor callbacks carry their own identity; they do not pass
	// through user auth.
	app.Post("/wallets/processor-webhook", walletService.ProcessorWebhookEndpoint)

	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/wallets/:user_id/balance", walletService.GetBalanceEndpoint)
	secured.Get("/wallets/:user_id/transactions", walletService.GetTransactionsEndpoint)
	secured.Get("/wallets/:user_id/pending-withdrawals", walletService.GetPendingWithdrawalsEndpoint)
	secured.Post("/wallets/:user_id/withdraw", walletService.WithdrawEndpoint)

	admin := secured.Group("/", middleware.AdminOnlyMiddleware())
	admin.Post("/wallets/:user_id/deposit", walletService.DepositEndpoint)
}
