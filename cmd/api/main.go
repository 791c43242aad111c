package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/clinicdesk/internal/adapters/cache"
	"github.com/zatekoja/clinicdesk/internal/adapters/events"
	"github.com/zatekoja/clinicdesk/internal/api/handlers"
	"github.com/zatekoja/clinicdesk/internal/api/middleware"
	"github.com/zatekoja/clinicdesk/internal/api/routes"
	"github.com/zatekoja/clinicdesk/internal/application/services"
	"github.com/zatekoja/clinicdesk/internal/domain/providers"
	"github.com/zatekoja/clinicdesk/internal/domain/rules"
	"github.com/zatekoja/clinicdesk/internal/infrastructure/clients/clinicapi"
	"github.com/zatekoja/clinicdesk/internal/infrastructure/clients/redis"
	"github.com/zatekoja/clinicdesk/internal/infrastructure/observability"
	"github.com/zatekoja/clinicdesk/pkg/config"
	"github.com/zatekoja/clinicdesk/pkg/retry"
)

// failureTTL is how long a failed row action stays visible on the board
const failureTTL = 2 * time.Minute

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal().Err(err).Msg("Failed to read .env")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Environment)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// Redis backs the shared cache and the cross-instance event bus. Without
	// it a single instance still works on in-process equivalents.
	var (
		cacheProvider providers.CacheProvider
		eventBus      providers.EventBus
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, falling back to in-process cache and event bus")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient, "clinicdesk:")
			eventBus = events.NewRedisEventBus(redisClient)
			log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis client initialized")
		}
	}
	if cacheProvider == nil {
		cacheProvider = cache.NewMemoryAdapter()
		eventBus = events.NewLocalEventBus()
	}

	location := cfg.ClinicAPI.Location()
	resolver := services.NewClinicContextResolver(cacheProvider, cfg.Scheduling.DefaultClinicID)

	readRetry := retry.DefaultConfig()
	if !cfg.ClinicAPI.RetryReads {
		readRetry = retry.NoRetry()
	}
	clinicClient := clinicapi.NewClient(
		cfg.ClinicAPI.BaseURL,
		clinicapi.WithTimeout(cfg.ClinicAPI.Timeout),
		clinicapi.WithServiceToken(cfg.ClinicAPI.ServiceToken),
		clinicapi.WithClinicResolver(resolver),
		clinicapi.WithReadRetry(readRetry),
		clinicapi.WithLocation(location),
		clinicapi.WithMetrics(metrics),
	)

	policy, err := rules.NewSlotPolicy(
		cfg.Scheduling.BusinessHoursStart,
		cfg.Scheduling.BusinessHoursEnd,
		cfg.Scheduling.DefaultSlotDuration,
		location,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid business hours")
	}

	scheduling := services.NewSchedulingService(
		clinicClient,
		resolver,
		policy,
		services.WithEventBus(eventBus),
		services.WithActionTracker(services.NewActionTracker(failureTTL)),
		services.WithSchedulingMetrics(metrics),
	)
	board := services.NewBoardService(clinicClient, scheduling)
	details := services.NewDetailsService(scheduling)
	clinics := services.NewClinicService(clinicClient, resolver, metrics)
	dashboard := services.NewDashboardService(
		clinicClient,
		resolver,
		eventBus,
		cfg.Dashboard.ClinicIDs,
		services.WithDashboardCache(cacheProvider),
		services.WithDashboardLocation(location),
	)

	appointmentHandler := handlers.NewAppointmentHandler(scheduling, board, details, location)
	clinicHandler := handlers.NewClinicHandler(clinics, resolver)
	streamHandler := handlers.NewStreamHandler(eventBus, dashboard, resolver)

	router := routes.NewRouter(
		appointmentHandler,
		clinicHandler,
		streamHandler,
		middleware.NewAuthenticator(cfg.Auth),
		cfg.Server.AllowedOrigins,
		metrics,
	)

	dashboard.Start(ctx, cfg.Dashboard.PollInterval)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     router.SetupRoutes(),
		ReadTimeout: 15 * time.Second,
		// no write deadline so event streams stay open
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Str("upstream", cfg.ClinicAPI.BaseURL).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := eventBus.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close event bus")
	}

	log.Info().Msg("Server exited")
}
