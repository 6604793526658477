package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"card-custody-service/internal/authz"
	"card-custody-service/internal/cache"
	"card-custody-service/internal/config"
	"card-custody-service/internal/events"
	"card-custody-service/internal/handlers"
	"card-custody-service/internal/middleware"
	"card-custody-service/internal/models"
	"card-custody-service/internal/repository"
	"card-custody-service/internal/services"
	"card-custody-service/internal/vault"
)

// @title Card Custody API
// @version 1.0.0
// @description Card custody and controlled-use service: lifecycle, delegation grants, engagements, secure reveal and withdrawal review

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.bearer BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}

	logger.Info("Running database migrations...")
	if err := db.AutoMigrate(
		&models.Actor{},
		&models.Institution{},
		&models.Account{},
		&models.Target{},
		&models.DelegationGrant{},
		&models.Card{},
		&models.Engagement{},
		&models.WithdrawalRequest{},
		&models.RevealAudit{},
		&models.CustodyAuditLog{},
	); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Database migrations completed")

	// Initialize vault for card data encryption
	cardVault, err := vault.New(vault.Config{
		MasterKey:  cfg.VaultMasterKey,
		KeyVersion: cfg.VaultKeyVersion,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize vault: %v", err)
	}

	// Reveal sessions and PIN counters; degrades to in-process storage
	// when redis is unreachable
	revealCache := cache.NewRevealCache(cfg.RedisAddr(), cfg.RedisPassword, cfg.RedisDB)
	defer revealCache.Close()

	// Initialize NATS events publisher
	publisher, err := events.NewPublisher(cfg.NATSURL, logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize events publisher (events won't be published)")
	} else if publisher.IsConnected() {
		defer publisher.Close()
		logger.Info("NATS events publisher initialized")
	}

	// Repositories
	actorRepo := repository.NewActorRepository(db)
	orgRepo := repository.NewOrgRepository(db)
	grantRepo := repository.NewGrantRepository(db)
	cardRepo := repository.NewCardRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Authorization chain
	validator := authz.NewValidator(actorRepo, grantRepo)

	// Services
	cardService := services.NewCardService(cardRepo, orgRepo, actorRepo, validator, cardVault, publisher, logger)
	engagementService := services.NewEngagementService(engagementRepo, cardRepo, orgRepo, validator, cardVault, publisher, logger)
	revealService := services.NewRevealService(cardRepo, auditRepo, revealCache, cardVault, publisher, cfg.RevealTTL, logger)
	withdrawalService := services.NewWithdrawalService(withdrawalRepo, engagementRepo, publisher, logger)

	// Handlers
	cardHandler := handlers.NewCardHandler(cardService, revealService)
	engagementHandler := handlers.NewEngagementHandler(engagementService)
	withdrawalHandler := handlers.NewWithdrawalHandler(withdrawalService)
	adminHandler := handlers.NewAdminHandler(actorRepo, orgRepo, grantRepo, cardVault)
	healthHandler := handlers.NewHealthHandler(db, publisher)

	// Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORS())

	// Health check endpoints (no auth required)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	limits := middleware.NewCustodyRateLimits()

	api := router.Group("/api/v1")
	api.Use(middleware.ActorAuthMiddleware(actorRepo))
	api.Use(middleware.RateLimitMiddleware(limits.APIGeneral))
	api.Use(middleware.AuditMiddleware(logger))
	{
		cards := api.Group("/cards")
		{
			cards.POST("", middleware.RequireCapability(authz.CapCardsCreate), cardHandler.CreateCard)
			cards.GET("", middleware.RequireCapability(authz.CapCardsRead), cardHandler.ListCards)
			cards.GET("/:id", middleware.RequireCapability(authz.CapCardsRead), cardHandler.GetCard)
			cards.POST("/:id/block", middleware.RequireCapability(authz.CapCardsBlock), cardHandler.BlockCard)
			cards.POST("/:id/unblock", middleware.RequireCapability(authz.CapCardsUnblock), cardHandler.UnblockCard)
			cards.POST("/:id/reveal",
				middleware.RequireCapability(authz.CapCardsReveal),
				middleware.RateLimitMiddleware(limits.Reveal),
				cardHandler.RevealCard)
			cards.GET("/:id/reveal-audit", middleware.RequireCapability(authz.CapAuditRead), cardHandler.ListRevealAudit)
		}

		api.POST("/card-assignments", middleware.RequireCapability(authz.CapCardsAssign), cardHandler.AssignCard)

		engagements := api.Group("/engagements")
		engagements.Use(middleware.RateLimitMiddleware(limits.Engagement))
		{
			engagements.POST("", middleware.RequireCapability(authz.CapEngagementsOpen), engagementHandler.OpenEngagement)
			engagements.GET("/:id", middleware.RequireCapability(authz.CapCardsRead), engagementHandler.GetEngagement)
			engagements.POST("/:id/complete", middleware.RequireCapability(authz.CapEngagementsClose), engagementHandler.CompleteEngagement)
			engagements.POST("/:id/fail", middleware.RequireCapability(authz.CapEngagementsClose), engagementHandler.FailEngagement)
		}

		withdrawals := api.Group("/withdrawals")
		{
			withdrawals.POST("", middleware.RequireCapability(authz.CapWithdrawalsCreate), withdrawalHandler.CreateWithdrawal)
			withdrawals.GET("", middleware.RequireAnyCapability(
				authz.CapWithdrawalsReviewFront,
				authz.CapWithdrawalsReviewHR,
				authz.CapWithdrawalsReviewFinance,
				authz.CapWithdrawalsCreate,
			), withdrawalHandler.ListWithdrawals)
			withdrawals.GET("/:id", middleware.RequireAnyCapability(
				authz.CapWithdrawalsReviewFront,
				authz.CapWithdrawalsReviewHR,
				authz.CapWithdrawalsReviewFinance,
				authz.CapWithdrawalsCreate,
			), withdrawalHandler.GetWithdrawal)
			withdrawals.PATCH("/:id/manager-comment", middleware.RequireCapability(authz.CapWithdrawalsReviewFront), withdrawalHandler.ManagerComment)
			withdrawals.PATCH("/:id/hr-comment", middleware.RequireCapability(authz.CapWithdrawalsReviewHR), withdrawalHandler.HRComment)
			withdrawals.PATCH("/:id/finance-comment", middleware.RequireCapability(authz.CapWithdrawalsReviewFinance), withdrawalHandler.FinanceComment)
			withdrawals.POST("/:id/unblock", middleware.RequireCapability(authz.CapWithdrawalsUnblock), withdrawalHandler.UnblockWithdrawal)
		}

		actors := api.Group("/actors")
		{
			actors.POST("", middleware.RequireCapability(authz.CapActorsManage), adminHandler.CreateActor)
			actors.GET("/:id", middleware.RequireCapability(authz.CapActorsManage), adminHandler.GetActor)
			actors.PATCH("/:id/status", middleware.RequireCapability(authz.CapActorsManage), adminHandler.UpdateActorStatus)
			actors.GET("/:id/workers", middleware.RequireCapability(authz.CapActorsManage), adminHandler.ListWorkers)
			actors.GET("/:id/reveal-audit", middleware.RequireCapability(authz.CapAuditRead), cardHandler.ListActorRevealAudit)
		}

		api.POST("/institutions", middleware.RequireCapability(authz.CapActorsManage), adminHandler.CreateInstitution)
		api.POST("/accounts", middleware.RequireCapability(authz.CapActorsManage), adminHandler.CreateAccount)
		api.POST("/targets", middleware.RequireCapability(authz.CapActorsManage), adminHandler.CreateTarget)

		grants := api.Group("/grants")
		grants.Use(middleware.RequireCapability(authz.CapGrantsManage))
		{
			grants.POST("", adminHandler.CreateGrant)
			grants.GET("", adminHandler.ListGrants)
			grants.POST("/:id/revoke", adminHandler.RevokeGrant)
		}
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Infof("Card custody service starting on port %s", cfg.Port)
		if err := router.Run(":" + cfg.Port); err != nil {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	<-quit
	logger.Info("Shutting down server...")
	logger.Info("Server shutdown complete")
}
