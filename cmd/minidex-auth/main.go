package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/DaylightLtd/minidex/pkg/api"
	"github.com/DaylightLtd/minidex/pkg/auth"
	"github.com/DaylightLtd/minidex/pkg/cache"
	"github.com/DaylightLtd/minidex/pkg/config"
	"github.com/DaylightLtd/minidex/pkg/middleware"
	"github.com/DaylightLtd/minidex/pkg/observability"
	"github.com/DaylightLtd/minidex/pkg/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("addr", cfg.Server.Addr()).Info("starting minidex-auth")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		logger.WithError(err).Error("failed to connect to postgres")
		os.Exit(1)
	}
	defer db.Close()

	if err := store.EnsureSchema(ctx, db); err != nil {
		logger.WithError(err).Error("failed to ensure database schema")
		os.Exit(1)
	}

	var tokenCache cache.Cache
	var redisCache *cache.RedisCache
	if cfg.Cache.Enabled {
		redisCache, err = cache.NewRedisCache(cfg.Cache.RedisURL, cfg.Cache.Password)
		if err != nil {
			logger.WithError(err).Error("failed to connect to redis")
			os.Exit(1)
		}
		defer redisCache.Close()
		tokenCache = redisCache
	}

	registry, err := loadRegistry(cfg.Auth.RolesFile)
	if err != nil {
		logger.WithError(err).Error("failed to load role registry")
		os.Exit(1)
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	storage := store.New(db)
	credentials := auth.NewCredentialStore(storage, cfg.Auth.BcryptCost, logger)
	generator := auth.NewTokenGenerator(cfg.Auth.TokenLength)
	issuer := auth.NewTokenIssuer(storage, tokenCache, generator, cfg.Auth.TokenTTL, logger, metrics)
	validator := auth.NewTokenValidator(storage, tokenCache, cfg.Auth.CacheTTL, logger, metrics)
	authenticator := auth.NewAuthenticator(credentials, validator, logger)

	server := api.NewServer(api.ServerConfig{
		Addr:         cfg.Server.Addr(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, logger)

	authMW := middleware.NewAuthMiddleware(authenticator, false)
	handlers := api.NewAuthHandlers(credentials, issuer, authenticator, registry, logger, metrics)
	handlers.RegisterRoutes(server.Router(), authMW)

	healthSrv := healthServer(cfg.Server.HealthAddr(), db, redisCache, metrics)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		logger.WithField("addr", cfg.Server.HealthAddr()).Info("health server listening")
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("api server shutdown error")
		}
		return healthSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// openDatabase connects to PostgreSQL and verifies connectivity.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// loadRegistry builds the role registry. Without a roles file the default
// catalog roles are registered alongside the built-in admin role.
func loadRegistry(path string) (*auth.Registry, error) {
	if path != "" {
		return auth.RegistryFromFile(path)
	}
	registry := auth.NewRegistry()
	if err := registry.Register("hobbyist", 1); err != nil {
		return nil, err
	}
	if err := registry.Register("cataloguer", 2); err != nil {
		return nil, err
	}
	return registry, nil
}

// healthServer serves liveness, readiness and metrics on a separate port.
func healthServer(addr string, db *sql.DB, redisCache *cache.RedisCache, metrics *observability.Metrics) *http.Server {
	var pinger observability.Pinger
	if redisCache != nil {
		pinger = redisCache
	}
	checker := observability.NewHealthChecker(db, pinger)

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", checker.Liveness)
	healthMux.HandleFunc("/readyz", checker.Readiness)
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}

	return &http.Server{
		Addr:         addr,
		Handler:      healthMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
