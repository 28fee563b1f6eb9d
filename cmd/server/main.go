package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/babui-rent/babui/internal/events"
	"github.com/babui-rent/babui/internal/featureflags"
	"github.com/babui-rent/babui/internal/geo"
	"github.com/babui-rent/babui/internal/handler"
	"github.com/babui-rent/babui/internal/infrastructure/geocoding"
	"github.com/babui-rent/babui/internal/infrastructure/logger"
	"github.com/babui-rent/babui/internal/infrastructure/redis"
	"github.com/babui-rent/babui/internal/observability/metrics"
	"github.com/babui-rent/babui/internal/observability/tracing"
	"github.com/babui-rent/babui/internal/repository"
	"github.com/babui-rent/babui/internal/security/audit"
	"github.com/babui-rent/babui/internal/security/auth"
	"github.com/babui-rent/babui/internal/security/middleware"
	"github.com/babui-rent/babui/internal/security/ratelimit"
	"github.com/babui-rent/babui/internal/seed"
	"github.com/babui-rent/babui/internal/service"
	"github.com/babui-rent/babui/internal/worker"
	"github.com/babui-rent/babui/pkg/config"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting babui property service", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing
	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, "babui", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Geocoder cache: Redis when configured, otherwise in process
	deps := map[string]handler.Pinger{"redis": nil, "audit_journal": nil}
	var geocodeCache geocoding.Cache
	sweeps := []func() int{}
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL, "babui:geocode:", log)
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
		geocodeCache = redisClient
		deps["redis"] = redisClient
	} else {
		memCache := geocoding.NewMemoryCache()
		geocodeCache = memCache
		sweeps = append(sweeps, memCache.Sweep)
	}

	// 5. Audit journal
	var journal *audit.Journal
	if cfg.AuditDBPath != "" {
		journal, err = audit.OpenJournal(ctx, cfg.AuditDBPath)
		if err != nil {
			log.Error("failed to open audit journal", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer journal.Close()
		deps["audit_journal"] = journal
	}
	auditLogger := audit.NewLogger(log, journal)

	// 6. Repository, geocoder and service
	repo := repository.NewMemoryPropertyRepository(log)
	geocoder := geocoding.NewClient(geocoding.Config{
		BaseURL:        cfg.GeocoderBaseURL,
		UserAgent:      cfg.GeocoderUserAgent,
		AcceptLanguage: cfg.GeocoderLanguage,
		Timeout:        cfg.GeocoderTimeout,
		CacheTTL:       cfg.GeocodeCacheTTL,
	}, geocodeCache, log)

	propertyService := service.NewPropertyService(repo, geocoder, geo.NewGazetteer(), cfg.QueryCacheTTL, log)
	if !featureflags.EnabledOr(featureflags.GazetteerFallback, true) {
		propertyService.WithoutSearchFallback()
	}
	sweeps = append(sweeps, propertyService.SweepCache)
	go sweepLoop(ctx, time.Minute, sweeps...)

	// 7. Change listeners
	hub := events.NewHub(64, log)
	repo.Subscribe(propertyService.HandleChange)
	repo.Subscribe(metrics.RepositoryListener(repo.Len))
	repo.Subscribe(auditLogger.RepositoryListener())
	repo.Subscribe(hub.Publish)

	if cfg.MQTTBrokerURL != "" {
		publisher, err := events.DialMQTT(cfg.MQTTBrokerURL, cfg.MQTTClientID, cfg.MQTTTopicPrefix, log)
		if err != nil {
			log.Error("failed to connect to MQTT broker", slog.String("error", err.Error()))
			os.Exit(1)
		}
		repo.Subscribe(publisher.Handle)
		go publisher.Run(ctx)
	}

	// 8. Seed data
	if featureflags.Enabled(featureflags.SeedData) {
		if err := loadSeed(ctx, cfg.SeedFile, propertyService, log); err != nil {
			log.Error("failed to load seed data", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	metrics.SetProperties(repo.Len())

	// 9. Security components
	var tokenManager *auth.TokenManager
	if cfg.AuthRequired {
		tokenManager, err = auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer)
		if err != nil {
			log.Error("failed to initialize token manager", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	rateLimiter := ratelimit.NewLimiter(cfg.GeocodeRateLimit, cfg.GeocodeRateWindow)

	mutation := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h,
			middleware.JWTMiddleware(tokenManager, auditLogger, log),
			middleware.AuditMiddleware(auditLogger),
			middleware.ValidateJSONBody(log),
		)
	}
	limited := func(h http.HandlerFunc) http.Handler {
		return middleware.RateLimitMiddleware(rateLimiter, log)(h)
	}

	// 10. Handlers and routes
	propertyHandler := handler.NewPropertyHandler(propertyService, log)
	geocodeHandler := handler.NewGeocodeHandler(propertyService, log)
	healthHandler := handler.NewHealthHandler(propertyService, deps, log)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/properties", propertyHandler.List)
	mux.Handle("POST /api/properties", mutation(propertyHandler.Create))
	mux.HandleFunc("GET /api/properties/nearby", propertyHandler.Nearby)
	mux.HandleFunc("GET /api/properties/clusters", propertyHandler.Clusters)
	mux.HandleFunc("GET /api/properties/{id}", propertyHandler.Get)
	mux.Handle("PATCH /api/properties/{id}", mutation(propertyHandler.Patch))
	mux.Handle("DELETE /api/properties/{id}", mutation(propertyHandler.Delete))
	mux.Handle("GET /api/geocode/reverse", limited(geocodeHandler.Reverse))
	mux.Handle("GET /api/geocode/search", limited(geocodeHandler.Search))
	if featureflags.EnabledOr(featureflags.ChangeStream, true) {
		mux.Handle("GET /ws/changes", handler.NewChangesHandler(hub, log, cfg.CORSAllowedOrigins))
	}
	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Chain: tracing -> request ID -> CORS -> metrics (needs the matched pattern) -> mux
	rootHandler := otelhttp.NewHandler(
		middleware.Chain(metrics.HTTPMetricsMiddleware(mux),
			middleware.RequestID(log),
			middleware.CORS(cfg.CORSAllowedOrigins),
		),
		"babui",
	)

	// 11. Address enrichment worker
	if cfg.EnrichInterval > 0 {
		enricher := worker.NewAddressEnricher(propertyService, log, cfg.EnrichInterval, cfg.EnrichBatchSize)
		go enricher.Start(ctx)
	}

	// 12. Start HTTP server
	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:     rootHandler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Bool("auth_required", cfg.AuthRequired),
		slog.Int("geocode_rate_limit", cfg.GeocodeRateLimit),
		slog.Duration("geocode_rate_window", cfg.GeocodeRateWindow),
		slog.Int("properties", repo.Len()),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
			sigChan <- syscall.SIGTERM
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// websocket connections are hijacked, so Shutdown does not wait for them
	hub.Shutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // stops the enricher, cache sweeper and MQTT publisher
	rateLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

func loadSeed(ctx context.Context, path string, svc *service.PropertyService, log *slog.Logger) error {
	var (
		ds  *seed.Dataset
		err error
	)
	if path != "" {
		ds, err = seed.Load(path)
	} else {
		ds, err = seed.Default()
	}
	if err != nil {
		return err
	}
	_, err = ds.Apply(ctx, svc, log)
	return err
}

// sweepLoop drops expired entries from the in-process caches
func sweepLoop(ctx context.Context, every time.Duration, sweeps ...func() int) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sweep := range sweeps {
				sweep()
			}
		}
	}
}
