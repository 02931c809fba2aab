package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/labspec/internal/config"
	"github.com/ehr/labspec/internal/domain/analysis"
	"github.com/ehr/labspec/internal/domain/lifecycle"
	"github.com/ehr/labspec/internal/domain/refrange"
	"github.com/ehr/labspec/internal/domain/resolution/metrics"
	"github.com/ehr/labspec/internal/domain/specification"
	"github.com/ehr/labspec/internal/platform/auth"
	"github.com/ehr/labspec/internal/platform/db"
	"github.com/ehr/labspec/internal/platform/middleware"
	platformredis "github.com/ehr/labspec/internal/platform/redis"
)

const (
	apiRequestTimeout = 30 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// routerDeps is everything newRouter wires into the HTTP surface.
type routerDeps struct {
	cfg        *config.Config
	logger     zerolog.Logger
	auth       echo.MiddlewareFunc
	tenant     echo.MiddlewareFunc
	catalog    specification.Catalog
	evaluator  *refrange.Evaluator
	dispatcher *lifecycle.Dispatcher
	checks     []db.Check
	gatherer   prometheus.Gatherer
}

func newRouter(d routerDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(d.logger))
	e.Use(middleware.Recovery(d.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: d.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, "X-Tenant-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(d.checks...))
	if d.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{})))
	}

	var chain []echo.MiddlewareFunc
	for _, mw := range []echo.MiddlewareFunc{d.auth, d.tenant} {
		if mw != nil {
			chain = append(chain, mw)
		}
	}
	chain = append(chain, middleware.RequestTimeout(apiRequestTimeout))
	api := e.Group("/api/v1", chain...)

	specification.NewHandler(d.catalog).RegisterRoutes(api)
	refrange.NewHandler(d.catalog, d.evaluator).RegisterRoutes(api)
	lifecycle.NewHandler(d.dispatcher).RegisterRoutes(api)

	return e
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.IsDev() {
		return auth.DevAuthMiddleware()
	}
	return auth.JWTMiddleware(auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
	})
}

func runServer(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	checks := []db.Check{db.PoolCheck(pool)}

	var catalog specification.Catalog = specification.NewCatalogPG(pool)
	rc, err := platformredis.New(ctx, platformredis.Options{URL: cfg.RedisURL})
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, dynamic specification cache disabled")
	}
	if rc != nil {
		defer rc.Close()
		var rdb goredis.Cmdable = rc.Client
		catalog = specification.NewCachedCatalog(catalog, rdb, cfg.SpecCacheTTL, logger.With().Str("component", "spec_cache").Logger())
		checks = append(checks, db.Check{Name: "redis", Ping: rc.Health})
		logger.Info().Dur("ttl", cfg.SpecCacheTTL).Msg("dynamic specification cache enabled")
	}

	var (
		m        *metrics.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		gatherer = reg
	}

	resolver := newResolver(cfg, catalog, m, logger)
	dispatcher := lifecycle.NewDispatcher(analysis.NewStorePG(pool), resolver, logger.With().Str("component", "lifecycle").Logger())
	evaluator := refrange.NewEvaluator(refrange.WithLogger(logger.With().Str("component", "refrange").Logger()))

	e := newRouter(routerDeps{
		cfg:        cfg,
		logger:     logger,
		auth:       authMiddleware(cfg),
		tenant:     db.TenantMiddleware(pool, cfg.DefaultTenant),
		catalog:    catalog,
		evaluator:  evaluator,
		dispatcher: dispatcher,
		checks:     checks,
		gatherer:   gatherer,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})

	if cfg.KafkaEnabled() {
		consumer, err := lifecycle.NewConsumer(
			lifecycle.ConsumerConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic, Group: cfg.KafkaGroup},
			dispatcher,
			logger.With().Str("component", "consumer").Logger(),
			lifecycle.WithTenantScope(func(ctx context.Context, tenantID string, fn func(context.Context) error) error {
				return db.InTenant(ctx, pool, tenantID, fn)
			}, cfg.DefaultTenant),
		)
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("consuming lifecycle events")
		g.Go(func() error { return consumer.Run(gctx) })
	}

	err = g.Wait()
	logger.Info().Msg("server stopped")
	return err
}
