package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"cell-broadcast/internal/config"
	"cell-broadcast/internal/domain/broadcast"
	"cell-broadcast/internal/domain/event"
	"cell-broadcast/internal/domain/history"
	"cell-broadcast/internal/domain/provider"
	"cell-broadcast/internal/handler"
	"cell-broadcast/internal/middleware"
	"cell-broadcast/internal/proxy"
	"cell-broadcast/internal/repository"
	"cell-broadcast/internal/services"
	"cell-broadcast/internal/transport/cbc"
	"cell-broadcast/pkg/database"
	"cell-broadcast/pkg/events"
	"cell-broadcast/pkg/logger"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Server.Environment)
	logger.SetGlobalLogger(appLogger)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&broadcast.BroadcastMessage{},
		&event.BroadcastEvent{},
		&provider.BroadcastProviderMessage{},
		&provider.BroadcastProviderMessageNumber{},
		&provider.SequenceCounter{},
		&provider.ServiceBroadcastSettings{},
		&history.BroadcastMessageHistory{},
		&history.BroadcastMessageEditReason{},
	); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	messageRepo := repository.NewMessageRepository(db)
	eventRepo := repository.NewEventRepository(db)
	providerRepo := repository.NewProviderRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	if err := providerRepo.EnsureCounter(context.Background()); err != nil {
		log.Fatalf("Failed to seed sequence counter: %v", err)
	}

	broker := events.NewRedisBroker(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	// The identity, service-configuration and template collaborators are
	// external systems; the static implementations stand in until their
	// clients are wired.
	identity := &proxy.StaticIdentityProvider{}
	access := proxy.NewAccessControl(identity)
	serviceConfig := proxy.NewCachedServiceConfig(
		proxy.NewServiceConfig(&proxy.StaticInfoSource{}, settingsRepo),
		broker.Client,
	)
	templates := &proxy.StaticTemplateStore{}
	transport := cbc.NewStubTransport(appLogger)

	configured := make([]provider.Provider, 0, len(cfg.Broadcast.Providers))
	for _, p := range cfg.Broadcast.Providers {
		configured = append(configured, provider.Provider(p))
	}

	clk := clock.New()
	dispatchService := services.NewDispatchService(
		db, eventRepo, providerRepo, transport, clk, appLogger,
		cfg.Broadcast.ReferenceDomain, cfg.Broadcast.Sender, configured,
	)
	messageService := services.NewMessageService(
		db, messageRepo, historyRepo, access, serviceConfig, templates,
		dispatchService, clk, appLogger,
	)
	purgeService := services.NewPurgeService(db, messageRepo, eventRepo, providerRepo, historyRepo, clk, appLogger)
	scannerService := services.NewScannerService(messageRepo, serviceConfig, broker, cfg.Broadcast.FeedChannel, clk, appLogger)
	ingestService := services.NewIngestService(eventRepo, messageService, appLogger)

	jobs, err := services.NewJobs(cfg.Jobs, messageService, scannerService, purgeService, settingsRepo, appLogger)
	if err != nil {
		log.Fatalf("Failed to schedule jobs: %v", err)
	}
	jobs.Start()
	defer jobs.Stop()

	broadcastHandler := handler.NewBroadcastHandler(messageService, scannerService)
	providerHandler := handler.NewProviderHandler(dispatchService)
	purgeHandler := handler.NewPurgeHandler(purgeService)
	capHandler := handler.NewCAPHandler(ingestService)

	if cfg.Server.Environment == logger.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.ErrorHandler(appLogger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/broadcasts", broadcastHandler.Create)
	r.GET("/broadcasts/outstanding", broadcastHandler.Outstanding)
	r.GET("/broadcasts/:id", broadcastHandler.GetByID)
	r.POST("/broadcasts/:id/status", broadcastHandler.Transition)
	r.PUT("/broadcasts/:id/content", broadcastHandler.UpdateContent)
	r.PUT("/broadcasts/:id/schedule", broadcastHandler.UpdateSchedule)
	r.POST("/broadcasts/:id/acknowledge", broadcastHandler.Acknowledge)
	r.POST("/provider-messages/:id/callback", providerHandler.Callback)
	r.POST("/services/:id/purge", purgeHandler.Purge)
	r.POST("/cap", capHandler.Ingest)

	appLogger.Infof("starting server on port %s", cfg.Server.Port)
	if err := r.Run(fmt.Sprintf(":%s", cfg.Server.Port)); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
