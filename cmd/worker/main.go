package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"wazeapp/internal/engine/webhooks"
	"wazeapp/internal/pkg/logger"
	"wazeapp/internal/platform/config"
	"wazeapp/internal/platform/database"
	"wazeapp/internal/platform/repositories"
	"wazeapp/internal/workers"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Logging, "worker")
	log.Info().Msg("starting WazeApp webhook worker")

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = client.Ping(pingCtx).Err()
	pingCancel()
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect to redis")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	dispatcher := webhooks.NewDispatcher(
		repositories.NewWebhookRepository(db),
		webhooks.NewHTTPSender(cfg.Webhooks.Timeout, cfg.Webhooks.MaxResponseBytes),
		webhooks.OptionsFromConfig(cfg.Webhooks),
		log.Logger,
		webhooks.NewMetrics(reg),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: cfg.Worker.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	listener := workers.NewEventListener(client, cfg.Redis.EventChannel, dispatcher, log.Logger)
	if err := listener.Run(ctx); err != nil {
		log.Error().Err(err).Msg("event listener exited")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Webhooks.ShutdownTimeout)
	defer cancel()
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("webhook deliveries still in flight at exit")
	}
	metricsSrv.Shutdown(shutdownCtx)

	log.Info().Msg("worker stopped")
}
