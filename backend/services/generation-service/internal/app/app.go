package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gridpulse/backend/libs/auth"
	libdb "gridpulse/backend/libs/db"
	libredis "gridpulse/backend/libs/redis"
	"gridpulse/backend/services/generation-service/internal/config"
	"gridpulse/backend/services/generation-service/internal/db"
	httpserver "gridpulse/backend/services/generation-service/internal/http"
	"gridpulse/backend/services/generation-service/internal/http/handlers"
	"gridpulse/backend/services/generation-service/internal/http/middleware"
	"gridpulse/backend/services/generation-service/internal/hub"
	"gridpulse/backend/services/generation-service/internal/producer"
	"gridpulse/backend/services/generation-service/internal/reconcile"
	redisstore "gridpulse/backend/services/generation-service/internal/redis"
	"gridpulse/backend/services/generation-service/internal/repository"
	"gridpulse/backend/services/generation-service/internal/service"
	"gridpulse/backend/services/generation-service/internal/ws"
)

// App wires generation service dependencies.
type App struct {
	server   *httpserver.Server
	producer *producer.Producer
	hub      *hub.Hub
	sessions *ws.Manager
	db       *sql.DB
	redis    *goredis.Client
	cfg      *config.Config
	logger   *zap.Logger
}

// New constructs application components.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := db.NewPostgres(cfg.Database.DSN, libdb.PoolOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		ConnLifetime: cfg.Database.ConnLifetime,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Database.ApplySchema {
		if err := db.ApplySchema(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}

	a := &App{db: sqlDB, cfg: cfg, logger: logger}

	// Interface values stay nil when the cache is disabled.
	var (
		latestWriter producer.LatestWriter
		latestCache  service.LatestCache
	)
	if cfg.RedisEnabled() {
		client, err := libredis.NewRedisClient(ctx, libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		store := redisstore.NewLatestStore(client, cfg.Redis.LatestTTL)
		latestWriter, latestCache = store, store
	} else {
		logger.Info("redis not configured, latest readings served from postgres")
	}

	plantRepo := repository.NewPlantRepository(sqlDB)
	measurementRepo := repository.NewMeasurementRepository(sqlDB, cfg.Sampling.Interval)
	planRepo := repository.NewPlanRepository(sqlDB)

	a.hub = hub.New(cfg.Hub.Capacity)
	portfolio := service.NewPortfolioService(plantRepo, latestCache, logger)
	access := service.NewPlantAccess(plantRepo)
	engine := reconcile.NewEngine(planRepo, measurementRepo)

	a.producer = producer.New(
		plantRepo,
		measurementRepo,
		a.hub,
		latestWriter,
		producer.NewUniformSampler(cfg.Sampling.MinFactor, cfg.Sampling.MaxFactor),
		producer.Config{Interval: cfg.Sampling.Interval, Workers: cfg.Sampling.Workers},
		logger,
	)

	resolver := auth.NewResolver(auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL))
	a.sessions = ws.NewManager(logger)
	live := ws.NewServer(a.sessions, resolver, a.hub, portfolio, ws.Config{
		HeartbeatInterval: cfg.Session.HeartbeatInterval,
		ClientTimeout:     cfg.Session.ClientTimeout,
		SnapshotInterval:  cfg.Session.SnapshotInterval,
		WriteTimeout:      cfg.Session.WriteTimeout,
		SendBuffer:        cfg.Session.SendBuffer,
	}, logger)

	reconcileHandlers := handlers.NewReconcileHandlers(access, engine, logger)
	planHandlers := handlers.NewPlanHandlers(access, planRepo, logger)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	router := httpserver.NewRouter(httpserver.Routes{
		Health:         handlers.NewHealthHandler(),
		Metrics:        promhttp.Handler(),
		LiveWS:         http.HandlerFunc(live.HandleWS),
		ReconcileDay:   http.HandlerFunc(reconcileHandlers.Day),
		ReconcileRange: http.HandlerFunc(reconcileHandlers.Range),
		GetPlan:        http.HandlerFunc(planHandlers.Get),
		PutPlan:        http.HandlerFunc(planHandlers.Put),
		Portfolio:      handlers.NewPortfolioHandler(portfolio, logger),
		APIMiddleware:  []func(http.Handler) http.Handler{auth.Middleware(resolver), limiter.Middleware},
	})
	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, cfg.HTTP.ShutdownTimeout, logger)

	return a, nil
}

// Run serves HTTP and samples plants until ctx is done, then closes live
// sessions and the hub.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.server.Run(gctx) })
	g.Go(func() error { return a.producer.Run(gctx) })

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if serr := a.sessions.Shutdown(shutdownCtx); serr != nil {
		a.logger.Warn("live sessions did not close in time", zap.Error(serr))
	}
	a.hub.Close()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases resources.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
