package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hunter-ledger-system/handlers"
	"hunter-ledger-system/models"
	"hunter-ledger-system/services"
	"hunter-ledger-system/utils"
	"hunter-ledger-system/workers"

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

	// Malformed threshold or badge tables are a fatal configuration error —
	// nothing may start on top of broken award rules.
	if err := models.ValidateTables(); err != nil {
		log.Fatal("invalid threshold/badge tables: ", err)
	}

	app := fiber.New()

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
		AllowMethods:     "GET,POST,OPTIONS,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
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
		&models.Hunter{},
		&models.Award{},
		&models.HunterBadge{},
		&models.LeaderboardSnapshot{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	outDir := utils.BadgeOutputDir()
	if err := utils.EnsureBadgeDirs(outDir); err != nil {
		log.Fatal("failed to ensure badge output dir:", err)
	}

	ledgerService := services.NewLedgerService(db)
	leaderboardService := services.NewLeaderboardService(db)
	publisherService := services.NewPublisherService(db, leaderboardService, outDir)

	publishWorker := workers.NewPublishWorker(publisherService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go publishWorker.Start(ctx)

	// Trigger polling is optional — most deployments push via POST /events/award.
	if os.Getenv("TRIGGER_SOURCE_URL") != "" {
		pollClient := workers.NewTriggerPollClient(ledgerService, publishWorker)
		go workers.PollTrigger(ctx, pollClient, 30*time.Second)
		log.Println("✅ Trigger source polling running (every 30s)")
	}

	services.StartLedgerScheduler(ledgerService, leaderboardService, publishWorker)

	handlers.SetupAwardRoutes(app, ledgerService, publishWorker)
	handlers.SetupLeaderboardRoutes(app, ledgerService, leaderboardService)
	handlers.SetupBadgeRoutes(app, ledgerService, publisherService)

	app.Static("/badges-static", outDir)

	listenAddr := os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":5300"
	}

	go func() {
		if err := app.Listen(listenAddr); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Hunter ledger running on %s", listenAddr)
	log.Println("✅ Publish worker running")
	log.Println("✅ Scheduler running (snapshot every 5m, catch-up recompute daily)")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
