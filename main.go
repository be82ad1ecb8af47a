package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"eclipse-rewards-system/database"
	"eclipse-rewards-system/handlers"
	"eclipse-rewards-system/middleware"
	"eclipse-rewards-system/models"
	"eclipse-rewards-system/pkg/logger"
	"eclipse-rewards-system/services"
	"eclipse-rewards-system/utils"
	"eclipse-rewards-system/workers"

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

	logger.Init(os.Getenv("APP_ENV"))
	logger.Info().Str("env", os.Getenv("APP_ENV")).Msg("starting rewards service")

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024, // 1MB — JSON only, no uploads here
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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Printf("⚠️  R2 archive disabled: %v", err)
	}

	database.InitRedis()

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.LedgerEntry{},
		&models.Badge{},
		&models.UserBadge{},
		&models.Season{},
		&models.SeasonLevel{},
		&models.SeasonReward{},
		&models.UserSeasonPass{},
		&models.UserSeasonProgress{},
		&models.DailyRewardWeekConfiguration{},
		&models.DailyReward{},
		&models.UserDailyRewardClaim{},
		&models.DailyRewardClaimAttempt{},
		&models.WeekCompletionReward{},
		&models.UserStreak{},
		&models.ReferralLink{},
		&models.Referral{},
		&models.ReferralSecurityLog{},
		&models.ReferralRewardQueue{},
		&models.ReferralRateLimit{},
		&models.ReferralSettings{},
		&models.AffiliateLink{},
		&models.AffiliateConversion{},
		&models.LeaderboardCacheEntry{},
		&models.LeaderboardSettings{},
		&models.UserShare{},
		&models.ShareAnalyticsEvent{},
		&models.RaffleEntry{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// Engines wire up in two steps: seasons and badges first, then the
	// XP engine that feeds them, then the back-references.
	seasonService := services.NewSeasonPassService(db)
	badgeService := services.NewBadgeService(db)
	xpEngine := services.NewXPEngine(db, seasonService, badgeService)
	seasonService.XP = xpEngine

	dailyService := services.NewDailyRewardService(db, xpEngine)
	referralService := services.NewReferralService(db, xpEngine)
	leaderboardService := services.NewLeaderboardService(db)
	shareService := services.NewShareService(db, xpEngine)
	paymentService := services.NewPaymentService(db, seasonService)

	xpEngine.SetFirstActivityNotifier(referralService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	identityURL := os.Getenv("IDENTITY_SERVICE_URL")
	serviceToken := os.Getenv("REWARDS_SERVICE_TOKEN")
	if identityURL != "" {
		syncWorker := workers.NewUserSyncWorker(db, identityURL, "/api/v1/internal/users", serviceToken)
		syncWorker.Start(ctx)
	} else {
		log.Println("⚠️  IDENTITY_SERVICE_URL not set — user sync worker disabled")
	}

	sched := services.StartRewardScheduler(referralService, leaderboardService)
	defer func() { _ = sched.Shutdown() }()

	// ✅ Setup routes — enforced Gateway auth + consistent /s/ prefix
	handlers.SetupRewardRoutes(app, xpEngine, badgeService)
	handlers.SetupDailyRewardRoutes(app, dailyService)
	handlers.SetupSeasonPassRoutes(app, seasonService)
	handlers.SetupReferralRoutes(app, referralService)
	handlers.SetupLeaderboardRoutes(app, leaderboardService)
	handlers.SetupShareRoutes(app, shareService)
	handlers.SetupPaymentRoutes(app, paymentService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Reward scheduler running (distribution, leaderboards, cleanup)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = app.Shutdown()
}
