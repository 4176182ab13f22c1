package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"teamhub/backend/internal/cache"
	"teamhub/backend/internal/config"
	"teamhub/backend/internal/database"
	"teamhub/backend/internal/events"
	"teamhub/backend/internal/handlers"
	"teamhub/backend/internal/logger"
	"teamhub/backend/internal/middleware"
	"teamhub/backend/internal/monitoring"
	"teamhub/backend/internal/repositories"
	"teamhub/backend/internal/scheduler"
	"teamhub/backend/internal/security"
	"teamhub/backend/internal/services"
	"teamhub/backend/internal/storage"
	"teamhub/backend/internal/worker"
)

type application struct {
	cfg       *config.Config
	db        *database.DatabasePool
	redis     *redis.Client
	cache     *cache.MultiLevelCache
	publisher *events.RedisPublisher
	router    *gin.Engine
	monitor   *monitoring.Monitor
	worker    *worker.Worker
	scheduler *scheduler.Scheduler
}

func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	app := &application{cfg: cfg, monitor: monitoring.NewMonitor()}

	db, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.GetDatabaseDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		LogLevel:        database.ParseLogLevel(cfg.Database.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.db = db

	if cfg.Database.RunMigrations {
		migrationCfg := repositories.DefaultMigrationConfig()
		migrationCfg.DBName = cfg.Database.Name
		if err := repositories.Migrate(db.DB, db.Driver(), migrationCfg); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	app.redis = connectRedis(ctx, cfg)

	var redisCache *cache.RedisCache
	var publisher events.Publisher = events.NopPublisher{}
	var revocation security.RevocationStore = security.NewMemoryRevocationStore()
	if app.redis != nil {
		redisCache = cache.NewRedisCache(app.redis)
		app.publisher = events.NewRedisPublisher(app.redis, 0)
		publisher = app.publisher
		revocation = security.NewRedisRevocationStore(app.redis)
	}
	app.cache = cache.NewMultiLevelCache(redisCache, cfg.Cache.L1TTL, cache.WithBreaker(cache.CircuitBreakerConfig{
		FailureThreshold: cfg.Cache.BreakerFailures,
		Cooldown:         cfg.Cache.BreakerCooldown,
		TrialCalls:       cfg.Cache.BreakerTrialCalls,
	}))

	var avatars storage.AvatarStore
	store, err := storage.NewS3AvatarStore(ctx, cfg.Storage)
	switch {
	case err == nil:
		avatars = store
	case errors.Is(err, storage.ErrStorageDisabled):
		logger.Info("avatar storage disabled, no bucket configured")
	default:
		app.close()
		return nil, fmt.Errorf("failed to configure avatar storage: %w", err)
	}

	tokens := security.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.SessionTTL)
	users := services.NewUserService(db.DB, avatars)
	friends := services.NewFriendRequestService(db.DB, users, publisher)
	groups := services.NewGroupService(db.DB, users, publisher)
	tasks := services.NewCachedTaskService(services.NewTaskService(db.DB, publisher), app.cache)
	groups.SetDeletionHook(tasks)

	svc := handlers.Services{
		Auth:     services.NewAuthService(db.DB, tokens, revocation, cfg.Auth.BCryptCost),
		Users:    users,
		Friends:  friends,
		Groups:   groups,
		Joins:    services.NewJoinRequestService(db.DB, users, publisher),
		Tasks:    tasks,
		Messages: services.NewMessageService(db.DB, friends, publisher),
	}

	if err := app.setupJobs(services.NewMaintenanceService(db.DB, publisher, tasks)); err != nil {
		app.close()
		return nil, err
	}

	app.registerHealthChecks()
	app.router = app.buildRouter(svc)
	return app, nil
}

// connectRedis returns nil when Redis is disabled or unreachable so the
// process keeps serving with in-memory fallbacks.
func connectRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		logger.Info("redis disabled, using in-memory fallbacks")
		return nil
	}

	client := cache.NewRedisClient(&cache.CacheConfig{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, using in-memory fallbacks", "addr", cfg.GetRedisAddr(), "error", err)
		client.Close()
		return nil
	}
	logger.Info("connected to redis", "addr", cfg.GetRedisAddr())
	return client
}

func (app *application) setupJobs(maintenance *services.MaintenanceService) error {
	if !app.cfg.Jobs.Enabled {
		return nil
	}

	var dispatcher worker.Dispatcher
	if app.redis != nil {
		app.worker = worker.NewWorker(worker.WorkerConfig{
			RedisClient:  app.redis,
			PollInterval: app.cfg.Worker.PollInterval,
			Queues:       app.cfg.Worker.Queues,
		})
		worker.RegisterMaintenanceJobs(app.worker, maintenance, app.cfg.Jobs)
		dispatcher = worker.NewJobQueue(app.redis)
	} else {
		inline := worker.NewInlineDispatcher()
		worker.RegisterMaintenanceJobs(inline, maintenance, app.cfg.Jobs)
		dispatcher = inline
	}

	s, err := scheduler.NewScheduler(dispatcher, app.cfg.Jobs)
	if err != nil {
		return fmt.Errorf("failed to configure scheduler: %w", err)
	}
	app.scheduler = s
	return nil
}

func (app *application) registerHealthChecks() {
	app.monitor.RegisterHealthCheck("database", true, func(context.Context) error {
		return app.db.Health()
	})
	app.monitor.RegisterHealthCheck("cache", false, func(context.Context) error {
		return app.cache.Health()
	})
	app.monitor.RegisterStats("database", app.db.Stats)
	app.monitor.RegisterStats("cache", app.cache.Stats)

	if app.publisher != nil {
		app.monitor.RegisterStats("events", app.publisher.Stats)
	}
	if app.redis != nil {
		app.monitor.RegisterHealthCheck("redis", false, func(ctx context.Context) error {
			return app.redis.Ping(ctx).Err()
		})
		queue := worker.NewJobQueue(app.redis)
		app.monitor.RegisterStats("jobs", func() map[string]interface{} {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			stats := make(map[string]interface{})
			for _, name := range app.cfg.Worker.Queues {
				if n, err := queue.GetQueueSize(ctx, name); err == nil {
					stats[name] = n
				}
			}
			if n, err := queue.DeadLetterSize(ctx); err == nil {
				stats["dead"] = n
			}
			return stats
		})
	}
}

func (app *application) buildRouter(svc handlers.Services) *gin.Engine {
	if app.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryWithLog())
	router.Use(middleware.RequestLogger())
	router.Use(app.monitor.Middleware())
	if len(app.cfg.Server.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     app.cfg.Server.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	var authLimiter gin.HandlerFunc
	if app.cfg.RateLimit.Enabled {
		perMinute := app.cfg.RateLimit.RequestsPerMin
		if app.cfg.RateLimit.Distributed && app.redis != nil {
			limiter := middleware.NewDistributedRateLimiter(app.redis)
			router.Use(limiter.CreateMiddleware("api", &middleware.RateLimit{
				Rate:    perMinute,
				Window:  time.Minute,
				KeyFunc: middleware.IPKeyFunc,
			}))
			authLimiter = limiter.CreateMiddleware("auth", &middleware.RateLimit{
				Rate:    max(perMinute/10, 1),
				Window:  time.Minute,
				KeyFunc: middleware.IPKeyFunc,
			})
		} else {
			router.Use(middleware.RateLimiter(
				rate.Limit(float64(perMinute)/60),
				app.cfg.RateLimit.BurstSize,
				app.cfg.RateLimit.CleanupInterval,
			))
		}
	}

	app.monitor.RegisterRoutes(router)
	handlers.RegisterRoutes(router, svc, handlers.RouteOptions{
		Cookie: handlers.CookieConfig{
			Name:   app.cfg.Auth.CookieName,
			Domain: app.cfg.Auth.CookieDomain,
			Secure: app.cfg.IsProduction(),
		},
		AuthLimiter: authLimiter,
	})
	return router
}

// start launches background processing.
func (app *application) start(ctx context.Context) {
	if app.worker != nil {
		app.worker.Start(ctx, app.cfg.Worker.Concurrency)
	}
	if app.scheduler != nil {
		app.scheduler.Start()
	}
}

func (app *application) close() {
	if app.scheduler != nil {
		app.scheduler.Stop()
	}
	if app.worker != nil {
		app.worker.Stop()
	}
	if app.publisher != nil {
		app.publisher.Close()
	}
	if app.cache != nil {
		if err := app.cache.Close(); err != nil {
			logger.Error("failed to close cache", "error", err)
		}
	}
	if app.redis != nil {
		app.redis.Close()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}
}
