package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/ssnivlek/kelvo-ecomm/internal/config"
	"github.com/ssnivlek/kelvo-ecomm/internal/coupon"
	"github.com/ssnivlek/kelvo-ecomm/internal/event"
	handler "github.com/ssnivlek/kelvo-ecomm/internal/handler/http"
	"github.com/ssnivlek/kelvo-ecomm/internal/repository"
	"github.com/ssnivlek/kelvo-ecomm/internal/repository/memory"
	redisrepo "github.com/ssnivlek/kelvo-ecomm/internal/repository/redis"
	"github.com/ssnivlek/kelvo-ecomm/internal/service"
	"github.com/ssnivlek/kelvo-ecomm/pkg/database"
	"github.com/ssnivlek/kelvo-ecomm/pkg/health"
	"github.com/ssnivlek/kelvo-ecomm/pkg/httpclient"
	pkgkafka "github.com/ssnivlek/kelvo-ecomm/pkg/kafka"
	"github.com/ssnivlek/kelvo-ecomm/pkg/middleware"
	"github.com/ssnivlek/kelvo-ecomm/pkg/tracing"
)

const (
	// ServiceName identifies the process in logs, traces and events.
	ServiceName    = "cart-service"
	serviceVersion = "0.1.0"

	slowQueryThreshold = 200 * time.Millisecond
	couponUpstream     = "coupon-service"
)

// App wires together all dependencies and runs the cart service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	tracerShutdown func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.closeResources()
		}
	}()

	// Tracing; propagators are installed even when export is disabled.
	a.tracerShutdown, err = tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    ServiceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	database.SetSlowQueryLogging(slowQueryThreshold, logger)

	healthHandler := health.NewHandler().WithService(ServiceName)

	// Cart store.
	repo, err := a.newCartRepository(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	// Coupon registry or remote coupon service.
	validator, err := a.newCouponValidator(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	// Domain events.
	var events event.Publisher = event.NopPublisher{}
	if cfg.KafkaEnabled {
		kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
		kafkaCfg.Async = cfg.KafkaAsync
		a.producer = pkgkafka.NewProducer(kafkaCfg, logger)
		events = event.NewProducer(a.producer, logger)
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.Bool("async", cfg.KafkaAsync),
		)
	}

	// Build the dependency graph.
	cartService := service.NewCartService(repo, events, logger)
	couponService := service.NewCouponService(repo, validator, events, logger)

	routerCfg := handler.DefaultRouterConfig()
	if len(cfg.CORSAllowedOrigins) > 0 {
		routerCfg.CORS.AllowedOrigins = cfg.CORSAllowedOrigins
	}
	routerCfg.CouponRateLimit = middleware.RateLimitConfig{
		RPS:   cfg.CouponRateLimitRPS,
		Burst: cfg.CouponRateLimitBurst,
	}

	// HTTP router.
	router := handler.NewRouter(cartService, couponService, validator, healthHandler, logger, routerCfg)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return a, nil
}

func (a *App) newCartRepository(ctx context.Context, hh *health.Handler) (repository.CartRepository, error) {
	cfg := a.cfg
	if cfg.Store == config.StoreMemory {
		a.logger.Warn("using in-memory cart store; carts are lost on restart",
			slog.Int("max_entries", cfg.MemoryMaxEntries),
		)
		return memory.NewCartRepository(cfg.MemoryMaxEntries, cfg.CartTTL()), nil
	}

	rc := database.DefaultRedisConfig()
	rc.Password, rc.DB = cfg.RedisPass, cfg.RedisDB
	if cfg.RedisAddr != "" {
		rc.Addr = cfg.RedisAddr
	}
	if cfg.RedisMaxRetries > 0 {
		rc.MaxRetries = cfg.RedisMaxRetries
	}
	if t := cfg.RedisTimeout(); t > 0 {
		rc.Timeout = t
	}
	rdb, err := database.NewRedisClient(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.rdb = rdb
	hh.RegisterCritical("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	a.logger.Info("connected to Redis",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)
	return redisrepo.NewCartRepository(rdb, cfg.CartTTL()), nil
}

func (a *App) newCouponValidator(ctx context.Context, hh *health.Handler) (coupon.Validator, error) {
	cfg := a.cfg
	switch cfg.CouponSource {
	case config.CouponSourceFile:
		reg, err := coupon.LoadFile(cfg.CouponFile)
		if err != nil {
			return nil, err
		}
		a.logger.Info("coupon registry loaded",
			slog.String("source", cfg.CouponSource),
			slog.String("file", cfg.CouponFile),
			slog.Int("coupons", reg.Len()),
		)
		return reg, nil

	case config.CouponSourcePostgres:
		pgCfg := database.DefaultPostgresConfig()
		pgCfg.Host = cfg.PostgresHost
		pgCfg.Port = cfg.PostgresPort
		pgCfg.User = cfg.PostgresUser
		pgCfg.Password = cfg.PostgresPassword
		pgCfg.DBName = cfg.PostgresDB
		pgCfg.SSLMode = cfg.PostgresSSLMode

		pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, ServiceName); err != nil {
			a.logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
		}
		if cfg.PostgresMigrate {
			if err := database.RunMigrations(ctx, pool, coupon.Migrations(), a.logger); err != nil {
				return nil, fmt.Errorf("migrate coupons: %w", err)
			}
		}
		reg, err := coupon.LoadPostgres(ctx, pool)
		if err != nil {
			return nil, err
		}
		// The registry is a startup snapshot; the pool only backs readiness.
		hh.RegisterNonCritical("postgres", pool.Ping)
		a.logger.Info("coupon registry loaded",
			slog.String("source", cfg.CouponSource),
			slog.String("host", cfg.PostgresHost),
			slog.Int("coupons", reg.Len()),
		)
		return reg, nil

	case config.CouponSourceRemote:
		client := httpclient.New(httpclient.Config{
			Timeout:         cfg.CouponTimeout(),
			MaxRetries:      cfg.CouponMaxRetries,
			RetryWaitMin:    100 * time.Millisecond,
			RetryWaitMax:    time.Second,
			MaxConnsPerHost: 100,
			OnRetry: func(attempt int, err error, wait time.Duration) {
				a.logger.Warn("retrying coupon validation",
					slog.String("upstream", couponUpstream),
					slog.Int("attempt", attempt),
					slog.Duration("wait", wait),
					slog.String("error", err.Error()),
				)
			},
		})
		cb := httpclient.NewCircuitBreakerClient(client, breakerConfig(cfg), a.logger)
		hh.RegisterNonCritical(couponUpstream, cb.Check)
		a.logger.Info("using remote coupon service",
			slog.String("url", cfg.CouponServiceURL+cfg.CouponValidatePath),
			slog.Int("max_retries", cfg.CouponMaxRetries),
		)
		return coupon.NewRemoteValidator(cb, coupon.RemoteConfig{
			Upstream:     couponUpstream,
			BaseURL:      cfg.CouponServiceURL,
			ValidatePath: cfg.CouponValidatePath,
			MaxRetries:   cfg.CouponMaxRetries,
		}, a.logger), nil

	default:
		reg := coupon.DefaultRegistry()
		a.logger.Info("coupon registry loaded",
			slog.String("source", config.CouponSourceStatic),
			slog.Any("codes", reg.Codes()),
		)
		return reg, nil
	}
}

// Handler returns the HTTP handler serving the cart API.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.closeResources()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.closeResources()

	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(shutdownCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}

	a.logger.Info("application shutdown complete")
	return nil
}

func (a *App) closeResources() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
		a.producer = nil
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
		a.rdb = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

// breakerConfig overlays the configured breaker settings on the defaults.
func breakerConfig(cfg *config.Config) httpclient.CircuitBreakerConfig {
	bc := httpclient.DefaultCircuitBreakerConfig(couponUpstream)
	if cfg.CBMaxRequests > 0 {
		bc.MaxRequests = cfg.CBMaxRequests
	}
	if cfg.CBInterval > 0 {
		bc.Interval = cfg.CBInterval
	}
	if cfg.CBTimeout > 0 {
		bc.Timeout = cfg.CBTimeout
	}
	if cfg.CBFailureRatio > 0 {
		bc.FailureRatio = cfg.CBFailureRatio
	}
	if cfg.CBMinRequests > 0 {
		bc.MinRequests = cfg.CBMinRequests
	}
	return bc
}
