package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/soulspace/soulspace-hub/config"
	"github.com/soulspace/soulspace-hub/internal/application/command"
	"github.com/soulspace/soulspace-hub/internal/application/eventhandler"
	"github.com/soulspace/soulspace-hub/internal/application/query"
	"github.com/soulspace/soulspace-hub/internal/domain/progression"
	"github.com/soulspace/soulspace-hub/internal/infrastructure/messaging"
	"github.com/soulspace/soulspace-hub/internal/infrastructure/persistence/redis"
	httpapi "github.com/soulspace/soulspace-hub/internal/interface/http"
	"github.com/soulspace/soulspace-hub/internal/interface/http/handlers"
	"github.com/soulspace/soulspace-hub/pkg/circuitbreaker"
	"github.com/soulspace/soulspace-hub/pkg/logger"
	"github.com/soulspace/soulspace-hub/pkg/metrics"
	"github.com/soulspace/soulspace-hub/pkg/ratelimit"
	"github.com/soulspace/soulspace-hub/pkg/tracing"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)
	log.Info("starting SoulSpace Hub",
		logger.String("version", version),
		logger.String("storage", cfg.Storage.Driver),
		logger.String("timezone", cfg.App.Location().String()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ТРАССИРОВКА И МЕТРИКИ
	// ─────────────────────────────────────────────────────────────────────────
	shutdownTracing, err := tracing.Setup(ctx, tracingConfig(cfg))
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		sctx, cancel := shutdownContext(5 * time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing shutdown", logger.Err(err))
		}
	}()

	m := metrics.New()
	health := handlers.NewCompositeHealthChecker(version)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ
	// ─────────────────────────────────────────────────────────────────────────
	store, err := openStorage(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer store.close()
	health.AddCheck("storage", handlers.NewPingCheck(store.pinger))

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (опционально): кеш прогресса и общий лимитер запросов
	// ─────────────────────────────────────────────────────────────────────────
	var (
		progressCache progression.Cache
		limiter       httpapi.RateLimiter
	)
	if cfg.Redis.Enabled {
		rc, err := redis.NewCache(redisConfig(cfg.Redis))
		if err != nil {
			log.Warn("redis unavailable, progress cache disabled", logger.Err(err))
		} else {
			defer rc.Close()
			progressCache = redis.NewProgressCache(rc, circuitbreaker.CacheBreaker(m.BreakerStateChanged))
			limiter = redis.NewRateLimiter(rc, cfg.HTTP.RateLimitPerMinute, time.Minute)
			health.AddCheck("redis", handlers.NewPingCheck(rc))
		}
	}
	if limiter == nil && cfg.HTTP.RateLimitPerMinute > 0 {
		// per-instance budget when counters cannot be shared
		limiter = ratelimit.New(cfg.HTTP.RateLimitPerMinute)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ШИНА СОБЫТИЙ И NATS
	// ─────────────────────────────────────────────────────────────────────────
	var forwarder *messaging.NATSForwarder
	if cfg.NATS.Enabled {
		nc, err := messaging.ConnectNATS(cfg.NATS.URL, cfg.App.Name, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := nc.Drain(); err != nil {
				log.Warn("nats drain", logger.Err(err))
			}
		}()
		forwarder = messaging.NewNATSForwarder(nc, log,
			messaging.WithBreaker(circuitbreaker.BrokerBreaker(m.BreakerStateChanged)),
			messaging.WithPublishTimeout(cfg.NATS.PublishTimeout),
		)
		health.AddCheck("nats", handlers.NewBrokerCheck(nc))
	}

	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	busCfg.Observer = m
	bus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		if err := bus.Close(); err != nil {
			log.Warn("event bus close", logger.Err(err))
		}
	}()

	var notifier eventhandler.FollowUpNotifier
	if forwarder != nil {
		if err := forwarder.Attach(bus); err != nil {
			return fmt.Errorf("attach nats forwarder: %w", err)
		}
		notifier = forwarder
	}
	if err := eventhandler.Register(bus,
		eventhandler.NewOnLevelUpHandler(m, log),
		eventhandler.NewOnAssessmentCompletedHandler(notifier, log),
	); err != nil {
		return fmt.Errorf("register event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ПРИЛОЖЕНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	features := config.NewFeatureFlags(cfg.Features)
	loc := cfg.App.Location()

	grant := command.NewGrantXPHandler(store.progress, progressCache, bus, features, m)
	deps := httpapi.Dependencies{
		GrantXP:           grant,
		CreateGoal:        command.NewCreateGoalHandler(store.goals, bus, m),
		GoalProgress:      command.NewGoalProgressHandler(store.goals, grant, bus),
		SubmitAssessment:  command.NewSubmitAssessmentHandler(store.assessments, grant, bus, features),
		CompleteChallenge: command.NewCompleteChallengeHandler(store.challenges, grant, bus, loc),
		UpsertCompanion:   command.NewUpsertCompanionHandler(store.companions),

		GetProgress:     query.NewGetProgressHandler(store.progress, progressCache, cfg.Redis.ProgressTTL),
		GetXPHistory:    query.NewGetXPHistoryHandler(store.progress),
		GetGoalBoard:    query.NewGetGoalBoardHandler(store.goals),
		CategorizeText:  query.NewCategorizeTextHandler(m),
		FindCompanions:  query.NewFindCompanionsHandler(store.companions, features),
		ListChallenges:  query.NewListChallengesHandler(store.challenges, loc),
		ListAssessments: query.NewListAssessmentsHandler(store.assessments),

		Logger:         log,
		HealthChecker:  health,
		RateLimiter:    limiter,
		Observer:       m,
		MetricsHandler: m.Handler(),
	}
	server := httpapi.NewServer(httpConfig(cfg.HTTP), deps)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", logger.Duration("timeout", cfg.App.ShutdownTimeout))
		sctx, cancel := shutdownContext(cfg.App.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	bus.Drain()
	log.Info("shutdown completed")
	return nil
}
