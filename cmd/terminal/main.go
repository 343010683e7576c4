package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dutyfreepos/internal/apierror"
	"dutyfreepos/internal/config"
	"dutyfreepos/internal/infra"
	"dutyfreepos/internal/repository"
	"dutyfreepos/internal/router"
	"dutyfreepos/internal/service"
	"dutyfreepos/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// @title        POS Terminal Agent API
// @version      1.0
// @description  Local API of a point-of-sale terminal: cash sessions and the offline write queue.
// @BasePath     /
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: pretty in dev, JSON in prod
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	store, err := infra.OpenStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open local store")
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Identity & remote API ────────────────────────────────────────────────
	device := service.NewDeviceService(repository.NewDeviceRepository(store))
	deviceID, err := device.ID(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load device identity")
	}

	breaker := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
		FailureThreshold: cfg.CBFailureThreshold,
		OpenTimeout:      cfg.CBOpenTimeout,
		IsFailure:        apierror.IsTransport,
	})
	client := infra.NewAPIClient(infra.APIClientConfig{
		BaseURL: cfg.APIBaseURL,
		Token:   cfg.APIToken,
		Timeout: cfg.APITimeout,
		Breaker: breaker,
	})

	// ── Dead-letter notifications ────────────────────────────────────────────
	notifierCfg := worker.DeadLetterNotifierConfig{DeviceID: deviceID}
	if mailer := infra.NewMailer(cfg); mailer != nil {
		notifierCfg.Mailer = mailer
	}
	if cfg.DLQMirrorRedis {
		rdb, err := infra.NewRedis(cfg.RedisURL)
		if err != nil {
			// Monitoring only; the till keeps working without it.
			log.Warn().Err(err).Msg("dlq: redis mirror unavailable")
		} else {
			defer func(rdb *redis.Client) { _ = rdb.Close() }(rdb)
			notifierCfg.RDB = rdb
		}
	}
	notifier := worker.NewDeadLetterNotifier(notifierCfg)
	notifier.Start(ctx)

	// ── Offline queue & cash sessions ────────────────────────────────────────
	queue := service.NewOfflineQueue(
		repository.NewQueueRepository(store),
		repository.NewDeadLetterRepository(store),
		device,
		client,
		service.OfflineQueueConfig{
			MaxRetries: cfg.QueueMaxRetries,
			Order:      service.ReplayOrder(cfg.QueueReplayOrder),
			Notifier:   notifier,
		},
	)
	if err := queue.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to load offline queue")
	}

	sessions := service.NewCashSessionService(client, queue, service.CashSessionConfig{
		FailOpen: cfg.SessionQueryFailOpen,
		Locale:   service.ParseLocale(cfg.Locale),
	})

	monitor := worker.NewConnectivityMonitor(client, queue, worker.ConnectivityConfig{
		Interval: cfg.ProbeInterval,
		Timeout:  cfg.ProbeTimeout,
	})
	monitorDone := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(monitorDone)
	}()

	r := router.New(cfg, router.Deps{
		Store:    store,
		Breaker:  breaker,
		Sessions: sessions,
		Queue:    queue,
		Monitor:  monitor,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().
			Str("device_id", deviceID).
			Str("api", cfg.APIBaseURL).
			Str("store", cfg.StoreDriver).
			Msgf("POS terminal agent listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down terminal agent…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	// Stop the probe loop; an in-flight replay stops between entries
	// without burning retries.
	cancel()
	<-monitorDone
	log.Info().Msg("terminal agent exited")
}
