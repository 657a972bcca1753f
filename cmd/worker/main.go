package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/helpdesk-api/internal/config"
	"github.com/jwalitptl/helpdesk-api/internal/email"
	"github.com/jwalitptl/helpdesk-api/internal/push"
	"github.com/jwalitptl/helpdesk-api/internal/repository/postgres"
	"github.com/jwalitptl/helpdesk-api/internal/service/digest"
	"github.com/jwalitptl/helpdesk-api/internal/service/dispatch"
	"github.com/jwalitptl/helpdesk-api/internal/service/resolver"
	"github.com/jwalitptl/helpdesk-api/pkg/logger"
	"github.com/jwalitptl/helpdesk-api/pkg/metrics"
	"github.com/jwalitptl/helpdesk-api/pkg/worker"
)

func setupHealthCheck(port int, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			log.Fatal(err, "Health check server failed")
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ApplyWorkerEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to apply worker env: %v\n", err)
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

	m := metrics.New("notifier_worker")

	base := postgres.NewBaseRepository(db)
	attemptRepo := postgres.NewAttemptRepository(base)
	jobRepo := postgres.NewJobRepository(base)
	convRepo := postgres.NewConversationRepository(base)
	directoryRepo := postgres.NewDirectoryRepository(base)
	prefRepo := postgres.NewPreferenceRepository(base)
	tokenRepo := postgres.NewPushTokenRepository(base)

	resolverSvc := resolver.NewService(directoryRepo, prefRepo, tokenRepo)
	transport := push.NewExpoTransport(cfg.Push)
	emailSvc := email.NewSMTPService(cfg.SMTP)

	dispatchSvc := dispatch.NewService(attemptRepo, transport, log, m)
	digestSvc := digest.NewService(
		convRepo,
		directoryRepo,
		attemptRepo,
		jobRepo,
		resolverSvc,
		emailSvc,
		cfg.Notifier,
		log,
		m,
	)

	processor := worker.NewJobProcessor(
		jobRepo,
		worker.JobProcessorConfig{
			BatchSize:    cfg.Worker.BatchSize,
			PollInterval: cfg.Worker.PollInterval,
		},
		log,
		m,
		dispatchSvc,
		digestSvc,
	)

	setupHealthCheck(cfg.Worker.HealthPort, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Shutting down worker")
		cancel()
	}()

	go processor.StartCleanup(ctx, cfg.Worker.CleanupAfter, cfg.Worker.CleanupInterval)
	processor.Start(ctx)
}
