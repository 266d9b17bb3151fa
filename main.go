package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"quest-economy-system/handlers"
	"quest-economy-system/middleware"
	"quest-economy-system/models"
	"quest-economy-system/services"
	"quest-economy-system/utils"
	"quest-economy-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 25 * 1024 * 1024, // 25MB: multipart quest media uploads
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Quest{},
		&models.QuestParticipant{},
		&models.QuestPool{},
		&models.QuestReward{},
		&models.UserWallet{},
		&models.WalletTransaction{},
		&models.UserCredits{},
		&models.CreditTransaction{},
		&models.ChatMessage{},
		&models.DailyEngagementMessage{},
		&models.LeaderboardEntry{},
		&models.GlobalLeaderboardEntry{},
		&models.DailyBonusConfig{},
		&models.GlobalDailyBonus{},
		&models.DailyBonus{},
		&models.SpinWheel{},
		&models.SpinAttempt{},
		&models.QuestUser{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.EnsureUploadDir(); err != nil {
		log.Fatal("failed to ensure upload dir:", err)
	}

	aiClient, err := services.NewHTTPAIClient()
	if err != nil {
		log.Fatal("failed to configure AI client:", err)
	}

	rewardService := services.NewRewardService(db)
	questService := services.NewQuestService(db, rewardService)
	leaderboardService := services.NewLeaderboardService(db, questService)
	globalLeaderboardService := services.NewGlobalLeaderboardService(db)
	creditsService := services.NewCreditsService(db)
	walletService := services.NewWalletService(db)
	splitterService := services.NewPaymentSplitterService(db)
	messagingService := services.NewMessagingService(db, aiClient, creditsService, leaderboardService)
	bonusService := services.NewBonusService(db)
	spinService := services.NewSpinService(db, creditsService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engagementWorker := workers.NewEngagementWorker(db, aiClient)
	go func() {
		log.Println("Starting Daily Engagement Worker...")
		engagementWorker.Run(ctx, time.Hour)
	}()

	questService.StartExpirySweep()
	globalLeaderboardService.StartDailyBonusSweep()

	// ✅ Setup routes — gateway auth enforced globally above
	handlers.SetupQuestRoutes(app, questService, leaderboardService)
	handlers.SetupGlobalLeaderboardRoutes(app, globalLeaderboardService)
	handlers.SetupPaymentRoutes(app, splitterService)
	handlers.SetupWalletRoutes(app, walletService)
	handlers.SetupCreditsRoutes(app, creditsService)
	handlers.SetupMessagingRoutes(app, messagingService)
	handlers.SetupBonusRoutes(app, bonusService)
	handlers.SetupSpinRoutes(app, spinService)

	app.Static("/uploads", "./uploads")

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Quest expiry sweep running (every 1m)")
	log.Println("✅ Global leaderboard + daily bonus sweep scheduled (00:10 UTC)")
	log.Println("✅ Daily Engagement Worker running (every 1h)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
