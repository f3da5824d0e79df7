// Command worker runs the background engine: it applies database
// migrations, connects the scheduler sweeps (expiry, auto-start, trending,
// ending-soon reminders), and delivers notifications off the event bus.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/challengehub/challenge-hub/config"
	"github.com/challengehub/challenge-hub/internal/domain/shared"
	"github.com/challengehub/challenge-hub/internal/infrastructure/messaging"
	"github.com/challengehub/challenge-hub/internal/infrastructure/persistence/postgres"
	"github.com/challengehub/challenge-hub/internal/infrastructure/persistence/redis"
	"github.com/challengehub/challenge-hub/internal/infrastructure/scheduler"
	"github.com/challengehub/challenge-hub/internal/service"
	"github.com/challengehub/challenge-hub/pkg/circuitbreaker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration and logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := setupLogger(cfg)
	log.WithFields(logrus.Fields{
		"env":     cfg.App.Environment,
		"version": cfg.App.Version,
	}).Info("starting challenge hub worker")

	// ─────────────────────────────────────────────────────────────────────────
	// 2. PostgreSQL
	// ─────────────────────────────────────────────────────────────────────────
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbConn.Close()
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	challengeRepo := postgres.NewChallengeRepository(dbConn)
	participantRepo := postgres.NewParticipantRepository(dbConn)
	resultRepo := postgres.NewResultRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Redis (optional; the worker degrades to in-process mode without it)
	// ─────────────────────────────────────────────────────────────────────────
	var cache *redis.Cache
	if !cfg.Redis.Disabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		if cfg.Redis.PoolSize > 0 {
			redisCfg.PoolSize = cfg.Redis.PoolSize
		}
		if cfg.Redis.MinIdleConns > 0 {
			redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		}

		cache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, continuing without cache")
			cache = nil
		} else {
			defer cache.Close()
			log.Info("redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Event bus
	// ─────────────────────────────────────────────────────────────────────────
	busMetrics := messaging.NewBusMetrics(prometheus.DefaultRegisterer)
	localBusCfg := messaging.InMemoryBusConfig{
		AsyncMode:      cfg.Events.AsyncHandlers,
		WorkerPoolSize: cfg.Events.WorkerPoolSize,
		Log:            log,
		Metrics:        busMetrics,
	}

	var bus shared.EventBus
	if cache != nil {
		bus, err = messaging.NewRedisBus(messaging.RedisBusConfig{
			Client: cache.Client(),
			Local:  localBusCfg,
		})
		if err != nil {
			return fmt.Errorf("create event bus: %w", err)
		}
	} else {
		bus = messaging.NewInMemoryBus(localBusCfg)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			log.WithError(err).Warn("event bus close failed")
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Services
	// ─────────────────────────────────────────────────────────────────────────
	manager := service.NewChallengeManager(challengeRepo, participantRepo, resultRepo, bus, log)
	matchmaking := service.NewMatchmakingService(challengeRepo, participantRepo, log)

	notifications := service.NewNotificationService(service.NewLogSender(log), log)
	if err := notifications.Register(bus); err != nil {
		return fmt.Errorf("register notification handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. Scheduler
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled {
		schedCfg := scheduler.Config{
			RunTimeout: cfg.Scheduler.JobTimeout,
			LockTTL:    cfg.Scheduler.LockTTL,
			Log:        log,
			Metrics:    scheduler.NewMetrics(prometheus.DefaultRegisterer),
		}
		if cache != nil {
			schedCfg.Locks = cache
		}
		sched := scheduler.New(schedCfg)

		register := func(spec string, job scheduler.Job) error {
			if err := sched.Register(spec, job); err != nil {
				return fmt.Errorf("register job %s: %w", job.Name(), err)
			}
			return nil
		}
		if err := register(scheduler.SpecExpire, scheduler.NewExpireJob(manager, log)); err != nil {
			return err
		}
		if err := register(scheduler.SpecAutoStart, scheduler.NewAutoStartJob(manager, log)); err != nil {
			return err
		}
		endingSoon := scheduler.NewEndingSoonJob(challengeRepo, bus, log).
			WithWindow(cfg.Scheduler.EndingSoonWindow)
		if err := register(scheduler.SpecEndingSoon, endingSoon); err != nil {
			return err
		}
		if cache != nil {
			// Trending needs the leaderboard cache; without Redis there is
			// nowhere to publish scores, so the job is simply not scheduled.
			trending := scheduler.NewTrendingJob(
				challengeRepo,
				matchmaking,
				redis.NewLeaderboardCache(cache),
				circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
					log.WithFields(logrus.Fields{
						"breaker": name,
						"from":    from.String(),
						"to":      to.String(),
					}).Warn("circuit breaker state changed")
				}),
				log,
			)
			if err := register(scheduler.SpecTrending, trending); err != nil {
				return err
			}
		}

		if err := sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
			defer cancel()
			if err := sched.Stop(stopCtx); err != nil {
				log.WithError(err).Warn("scheduler stop timed out")
			}
		}()
		log.Info("scheduler started")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. Metrics endpoint
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Observability.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Observability.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("metrics server failed")
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()
		log.WithField("port", cfg.Observability.MetricsPort).Info("metrics endpoint listening")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. Wait for shutdown
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("worker is running")
	<-ctx.Done()

	log.WithField("timeout", cfg.App.ShutdownTimeout.String()).Info("shutting down")
	return nil
}

// setupLogger configures logrus from the observability settings and returns
// the base entry all components log through.
func setupLogger(cfg *config.Config) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Observability.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if cfg.App.Debug {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	if cfg.Observability.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger.WithField("app", cfg.App.Name)
}
