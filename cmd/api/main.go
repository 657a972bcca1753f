package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/jwalitptl/helpdesk-api/internal/config"
	"github.com/jwalitptl/helpdesk-api/internal/handler"
	"github.com/jwalitptl/helpdesk-api/internal/handler/notification"
	"github.com/jwalitptl/helpdesk-api/internal/middleware"
	"github.com/jwalitptl/helpdesk-api/internal/repository/postgres"
	"github.com/jwalitptl/helpdesk-api/internal/router"
	"github.com/jwalitptl/helpdesk-api/internal/service/resolver"
	routersvc "github.com/jwalitptl/helpdesk-api/internal/service/router"
	"github.com/jwalitptl/helpdesk-api/pkg/logger"
	redisbroker "github.com/jwalitptl/helpdesk-api/pkg/messaging/redis"
	"github.com/jwalitptl/helpdesk-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.InfoLevel,
		TimeFormat: time.RFC3339,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.ZL)
	if err != nil {
		log.Fatal(err, "Failed to connect to Redis")
	}
	defer broker.Close()

	m := metrics.New("notifier")

	base := postgres.NewBaseRepository(db)
	eventRepo := postgres.NewEventRepository(base)
	dedupeRepo := postgres.NewDedupeRepository(base)
	attemptRepo := postgres.NewAttemptRepository(base)
	jobRepo := postgres.NewJobRepository(base)
	convRepo := postgres.NewConversationRepository(base)
	ticketRepo := postgres.NewTicketRepository(base)
	directoryRepo := postgres.NewDirectoryRepository(base)
	prefRepo := postgres.NewPreferenceRepository(base)
	tokenRepo := postgres.NewPushTokenRepository(base)

	resolverSvc := resolver.NewService(directoryRepo, prefRepo, tokenRepo)
	routerSvc := routersvc.NewService(
		eventRepo,
		dedupeRepo,
		attemptRepo,
		jobRepo,
		convRepo,
		ticketRepo,
		resolverSvc,
		broker,
		cfg.Notifier,
		log,
		m,
	)

	auth := middleware.NewAuthMiddleware(cfg.Auth)
	healthH := handler.NewHealthHandler(db)
	notificationH := notification.NewHandler(routerSvc, attemptRepo)

	r := router.NewRouter(auth, healthH, notificationH, router.Config{
		RateLimit: rate.Limit(100),
		RateBurst: 200,
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		log.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error(err, "Server shutdown failed")
	}
}
