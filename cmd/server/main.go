package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zapdesk/gateway-sync/internal/config"
	"github.com/zapdesk/gateway-sync/internal/database"
	"github.com/zapdesk/gateway-sync/internal/gateway"
	"github.com/zapdesk/gateway-sync/internal/handler"
	"github.com/zapdesk/gateway-sync/internal/jobs"
	"github.com/zapdesk/gateway-sync/internal/middleware"
	"github.com/zapdesk/gateway-sync/internal/redis"
	"github.com/zapdesk/gateway-sync/internal/repository"
	"github.com/zapdesk/gateway-sync/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := cfg.IsProduction()
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(context.Background(), cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	serverRepo := repository.NewServerRepository(db.DB)
	connRepo := repository.NewConnectionRepository(db.DB)
	exportRepo := repository.NewExportBatchRepository(db.DB)

	gw := gateway.New(gateway.Options{
		EvolutionTimeout: cfg.EvolutionTimeout(),
		WuzapiTimeout:    cfg.WuzapiTimeout(),
		InsecureTLS:      cfg.GatewayInsecureTLS,
		RatePerSecond:    cfg.GatewayRatePerSecond,
		Burst:            cfg.GatewayRateBurst,
	})

	directory := service.NewServerDirectory(serverRepo, cfg.EncryptionKey)
	reconcileService := service.NewReconcileService(serverRepo, connRepo, exportRepo)
	syncService := service.NewSyncService(directory, gw, reconcileService, cfg.SyncConcurrency)
	serverService := service.NewServerService(directory, serverRepo, gw, cfg.SyncConcurrency)
	linkService := service.NewLinkService(cfg.LinkSigningSecret, cfg.PublicBaseURL, connRepo, directory, gw)
	rateLimiter := service.NewRateLimiter(redisClient.Client, "ratelimit")

	adminAuthMiddleware := middleware.NewAdminAuthMiddleware(cfg.AdminAPIKeyHash)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)
	resolveRateLimitMiddleware := middleware.NewIPRateLimitMiddleware(
		rateLimiter, cfg.LinkResolveRateLimit, config.LinkResolveWindow, "link_resolve",
	)

	syncHandler := handler.NewSyncHandler(syncService)
	connectionHandler := handler.NewConnectionHandler(reconcileService, connRepo, exportRepo)
	linkHandler := handler.NewLinkHandler(linkService, linkService)
	sessionHandler := handler.NewSessionHandler(serverService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if err := db.Ping(r.Context()); err != nil || !redisClient.Healthy(r.Context()) {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    status,
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(securityHeadersMiddleware.Handler)
			r.Use(resolveRateLimitMiddleware.Handler)
			r.Post("/links/qr/resolve", linkHandler.Resolve)
		})

		r.Group(func(r chi.Router) {
			r.Use(adminAuthMiddleware.Handler)
			r.Mount("/sync", syncHandler.Routes())
			r.Post("/links/qr", linkHandler.Issue)
			connectionHandler.Register(r)
			sessionHandler.Register(r)
		})
	})

	if interval := cfg.ServerProbeInterval(); interval > 0 {
		probeJob := jobs.NewServerProbeJob(serverService, interval, config.ServerProbeTimeout)
		probeJob.Start()
		defer probeJob.Stop()
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
