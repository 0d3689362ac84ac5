package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/ehr-appointment-scheduling/internal/api"
	"github.com/hackgods/ehr-appointment-scheduling/internal/appointment"
	"github.com/hackgods/ehr-appointment-scheduling/internal/config"
	"github.com/hackgods/ehr-appointment-scheduling/internal/db"
	"github.com/hackgods/ehr-appointment-scheduling/internal/events"
	"github.com/hackgods/ehr-appointment-scheduling/internal/logging"
	redisclient "github.com/hackgods/ehr-appointment-scheduling/internal/redis"
)

type store interface {
	appointment.Repository
	appointment.PatientDirectory
}

func runServer(cfg config.Config) error {
	logger := logging.New(cfg.Env, cfg.LogLevel)
	logger.Info().Str("http_port", cfg.HTTPPort).Str("store", cfg.StoreDriver).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var checks []api.DependencyCheck
	cleanups := []func(){}
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	repo, err := openStore(rootCtx, cfg, logger, &checks, &cleanups)
	if err != nil {
		return err
	}

	locker, err := newLocker(rootCtx, cfg, logger, &checks, &cleanups)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(cfg, logger, &checks)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, func() {
		if err := publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing event publisher")
		}
	})

	patients := appointment.NewBreakerDirectory(repo, appointment.BreakerSettings{
		FailureThreshold: cfg.PatientBreakerFailures,
		OpenTimeout:      cfg.PatientBreakerTimeout,
	}, logger)

	svc := appointment.NewService(repo, patients, locker, publisher, logger)

	router := api.NewRouter(api.RouterConfig{
		Service:      svc,
		Checks:       checks,
		Logger:       logger,
		JWTSecret:    []byte(cfg.JWTSecret),
		CORSOrigins:  cfg.CORSOrigins,
		RateLimitRPS: cfg.RateLimitRPS,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger, checks *[]api.DependencyCheck, cleanups *[]func()) (store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if cfg.StoreDriver == config.StoreSQLite {
		conn, err := db.OpenSQLite(connectCtx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		*cleanups = append(*cleanups, func() { _ = conn.Close() })
		if err := db.MigrateSQLite(connectCtx, conn); err != nil {
			return nil, err
		}
		*checks = append(*checks, api.DependencyCheck{Name: "sqlite", Required: true, Ping: conn.PingContext})
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite store")
		return appointment.NewSQLiteRepository(conn), nil
	}

	pool, err := db.ConnectPostgres(connectCtx, cfg.PostgresDSN, cfg.PostgresPool)
	if err != nil {
		return nil, err
	}
	*cleanups = append(*cleanups, pool.Close)
	*checks = append(*checks, api.DependencyCheck{Name: "postgres", Required: true, Ping: pool.Ping})
	logger.Info().Msg("connected to Postgres")
	return appointment.NewPgRepository(pool), nil
}

func newLocker(ctx context.Context, cfg config.Config, logger zerolog.Logger, checks *[]api.DependencyCheck, cleanups *[]func()) (redisclient.Locker, error) {
	if cfg.RedisDisabled {
		logger.Warn().Msg("redis disabled, scheduling locks are process-local")
		return redisclient.NewLocalLocker(cfg.LockWait), nil
	}

	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return nil, err
	}
	*cleanups = append(*cleanups, func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	})
	*checks = append(*checks, api.DependencyCheck{
		Name:     "redis",
		Required: true,
		Ping:     func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")

	return redisclient.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait), nil
}

func newPublisher(cfg config.Config, logger zerolog.Logger, checks *[]api.DependencyCheck) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		return events.NewNoopPublisher(logger), nil
	}

	pub, err := events.NewRabbitMQPublisher(cfg.AMQPURL, logger)
	if err != nil {
		return nil, err
	}
	*checks = append(*checks, api.DependencyCheck{Name: "rabbitmq", Ping: pub.Ping})
	return pub, nil
}
