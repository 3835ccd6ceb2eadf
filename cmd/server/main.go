package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"wazeapp/internal/api"
	"wazeapp/internal/api/handlers"
	"wazeapp/internal/api/middleware"
	"wazeapp/internal/engine/webhooks"
	"wazeapp/internal/pkg/logger"
	"wazeapp/internal/platform/audit"
	"wazeapp/internal/platform/auth"
	"wazeapp/internal/platform/config"
	"wazeapp/internal/platform/database"
	"wazeapp/internal/platform/repositories"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Logging, "server")

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Repositories
	orgRepo := repositories.NewOrganizationRepository(db)
	webhookRepo := repositories.NewWebhookRepository(db)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	auditLogger := audit.NewLogger(db)
	dispatcher := webhooks.NewDispatcher(
		webhookRepo,
		webhooks.NewHTTPSender(cfg.Webhooks.Timeout, cfg.Webhooks.MaxResponseBytes),
		webhooks.OptionsFromConfig(cfg.Webhooks),
		log.Logger,
		webhooks.NewMetrics(reg),
	)

	// Middleware
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit)
	defer rateLimiter.Stop()

	router := api.NewRouter(&api.Dependencies{
		WebhookHandler:   handlers.NewWebhookHandler(dispatcher, auditLogger),
		AuditHandler:     handlers.NewAuditHandler(auditLogger),
		HealthHandler:    handlers.NewHealthHandler(db),
		MetricsHandler:   handlers.NewMetricsHandler(reg),
		AuthMiddleware:   middleware.NewAuthMiddleware(tokenSvc),
		TenantMiddleware: middleware.NewTenantMiddleware(repositories.NewCachedOrganizations(orgRepo, time.Minute)),
		RateLimiter:      rateLimiter,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Webhooks.ShutdownTimeout)
	defer cancelDrain()
	if err := dispatcher.Shutdown(drainCtx); err != nil {
		log.Warn().Err(err).Msg("webhook deliveries still in flight at exit")
	}

	auditLogger.Close()
	log.Info().Msg("server stopped")
}
