package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/soulspace/soulspace-hub/config"
	"github.com/soulspace/soulspace-hub/internal/domain/assessment"
	"github.com/soulspace/soulspace-hub/internal/domain/challenge"
	"github.com/soulspace/soulspace-hub/internal/domain/companion"
	"github.com/soulspace/soulspace-hub/internal/domain/goal"
	"github.com/soulspace/soulspace-hub/internal/domain/progression"
	"github.com/soulspace/soulspace-hub/internal/infrastructure/persistence/postgres"
	"github.com/soulspace/soulspace-hub/internal/infrastructure/persistence/redis"
	"github.com/soulspace/soulspace-hub/internal/infrastructure/persistence/sqlite"
	httpapi "github.com/soulspace/soulspace-hub/internal/interface/http"
	"github.com/soulspace/soulspace-hub/internal/interface/http/handlers"
	"github.com/soulspace/soulspace-hub/pkg/logger"
	"github.com/soulspace/soulspace-hub/pkg/tracing"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOGGER
// ══════════════════════════════════════════════════════════════════════════════

func newLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    logger.Format(cfg.Observability.LogFormat),
		AddCaller: true,
	}).With(
		logger.String("service", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// STORAGE
// ══════════════════════════════════════════════════════════════════════════════

// storage - репозитории выбранного драйвера и его проверка живости.
type storage struct {
	progress    progression.Repository
	goals       goal.Repository
	assessments assessment.Repository
	challenges  challenge.Repository
	companions  companion.Repository

	pinger handlers.Pinger
	close  func()
}

// openStorage открывает хранилище. Для PostgreSQL при migrate=true
// применяются ожидающие миграции; SQLite мигрирует себя при открытии.
func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger, migrate bool) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		conn, err := postgres.NewConnection(ctx, postgresConfig(cfg.Storage))
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if migrate {
			applied, err := postgres.NewMigrator(conn).Migrate(ctx)
			if err != nil {
				conn.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
			log.Info("database schema is up to date", logger.Int("applied", applied))
		}
		return &storage{
			progress:    postgres.NewProgressionRepository(conn),
			goals:       postgres.NewGoalRepository(conn),
			assessments: postgres.NewAssessmentRepository(conn),
			challenges:  postgres.NewChallengeRepository(conn),
			companions:  postgres.NewCompanionRepository(conn),
			pinger:      conn,
			close:       conn.Close,
		}, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &storage{
			progress:    sqlite.NewProgressionRepository(store),
			goals:       sqlite.NewGoalRepository(store),
			assessments: sqlite.NewAssessmentRepository(store),
			challenges:  sqlite.NewChallengeRepository(store),
			companions:  sqlite.NewCompanionRepository(store),
			pinger:      store,
			close: func() {
				if err := store.Close(); err != nil {
					log.Warn("closing sqlite", logger.Err(err))
				}
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG MAPPING
// ══════════════════════════════════════════════════════════════════════════════

func postgresConfig(c config.StorageConfig) postgres.Config {
	pc := postgres.DefaultConfig()
	pc.URL = c.DatabaseURL
	pc.MaxConns = c.MaxConns
	pc.MinConns = c.MinConns
	pc.MaxConnLifetime = c.MaxConnLifetime
	pc.MaxConnIdleTime = c.MaxConnIdleTime
	pc.HealthCheckPeriod = c.HealthCheckPeriod
	return pc
}

func redisConfig(c config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.Addr = c.Addr
	rc.Password = c.Password
	rc.DB = c.DB
	rc.PoolSize = c.PoolSize
	rc.MinIdleConns = c.MinIdleConns
	rc.DialTimeout = c.DialTimeout
	rc.ReadTimeout = c.ReadTimeout
	rc.WriteTimeout = c.WriteTimeout
	return rc
}

func httpConfig(c config.HTTPConfig) httpapi.Config {
	hc := httpapi.DefaultConfig()
	hc.Host = c.Host
	hc.Port = c.Port
	hc.ReadTimeout = c.ReadTimeout
	hc.WriteTimeout = c.WriteTimeout
	hc.IdleTimeout = c.IdleTimeout
	hc.MaxBodyBytes = c.MaxBodyBytes
	hc.AllowedOrigins = c.AllowedOrigins
	hc.RateLimitPerMinute = c.RateLimitPerMinute
	hc.JWTSecret = c.JWTSecret
	hc.JWTIssuer = c.JWTIssuer
	hc.ServiceKeyHeader = c.ServiceKeyHeader
	hc.ServiceKeyHash = c.ServiceKeyHash
	return hc
}

func tracingConfig(cfg *config.Config) tracing.Config {
	return tracing.Config{
		Enabled:     cfg.TracingEnabled(),
		Endpoint:    cfg.Observability.OTelEndpoint,
		ServiceName: cfg.App.Name,
		SampleRatio: cfg.Observability.OTelSampleRatio,
	}
}

// shutdownContext bounds cleanup after the root context is cancelled.
func shutdownContext(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
