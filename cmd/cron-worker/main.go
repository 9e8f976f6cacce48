package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/kitstock-backend/internal/availability"
	"github.com/angelmondragon/kitstock-backend/internal/cart"
	"github.com/angelmondragon/kitstock-backend/internal/cron"
	"github.com/angelmondragon/kitstock-backend/internal/ledger"
	"github.com/angelmondragon/kitstock-backend/internal/sets"
	"github.com/angelmondragon/kitstock-backend/pkg/config"
	"github.com/angelmondragon/kitstock-backend/pkg/db"
	"github.com/angelmondragon/kitstock-backend/pkg/instance"
	"github.com/angelmondragon/kitstock-backend/pkg/logger"
	"github.com/angelmondragon/kitstock-backend/pkg/metrics"
	"github.com/angelmondragon/kitstock-backend/pkg/migrate"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox"
	"github.com/angelmondragon/kitstock-backend/pkg/redis"
)

const lockName = "cron-worker"

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}

func run() error {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		return err
	}
	cfg.Service.Kind = "cron-worker"
	logg = logger.FromConfig("cron-worker", cfg.App)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(),
	})

	dbClient, err := db.Open(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		return err
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		return multierr.Append(err, dbClient.Close())
	}
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		return multierr.Append(err, dbClient.Close())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry, err := buildRegistry(cfg, dbClient, logg, metrics.NewInventoryMetrics(reg))
	if err != nil {
		logg.Error(ctx, "failed to build cron registry", err)
		return multierr.Combine(err, redisClient.Close(), dbClient.Close())
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		return multierr.Combine(err, redisClient.Close(), dbClient.Close())
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Tick:     cart.SweepInterval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		return multierr.Combine(err, redisClient.Close(), dbClient.Close())
	}

	metricsSrv := &http.Server{
		Addr:              cfg.Cron.MetricsAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()

	logg.Info(ctx, "starting cron worker")
	runErr := service.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = multierr.Combine(runErr, metricsSrv.Shutdown(shutdownCtx), redisClient.Close(), dbClient.Close())
	if err != nil {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}

func buildRegistry(cfg *config.Config, client *db.Client, logg *logger.Logger, m *metrics.InventoryMetrics) (*cron.Registry, error) {
	conn := client.DB()
	outboxRepo := outbox.NewRepository(conn)

	cartSvc, err := cart.NewService(cart.Deps{
		Tx:           client,
		Reservations: cart.NewRepository(conn),
		Sets:         sets.NewRepository(conn),
		Parts:        ledger.NewRepository(conn),
		Holds:        availability.NewRepository(conn),
		Outbox:       outbox.NewService(outboxRepo, logg),
		Logger:       logg,
		Metrics:      m,
	})
	if err != nil {
		return nil, err
	}

	sweep, err := cron.NewReservationSweepJob(cron.ReservationSweepJobParams{
		Logger:  logg,
		Sweeper: cartSvc,
	})
	if err != nil {
		return nil, err
	}
	prune, err := cron.NewOutboxPruneJob(cron.OutboxPruneJobParams{
		Logger:              logg,
		DB:                  client,
		Outbox:              outboxRepo,
		Retention:           cfg.Outbox.Retention,
		DeadLetterRetention: cfg.Outbox.DeadLetterRetention,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(
		cron.Schedule{Job: sweep, Every: cart.SweepInterval},
		cron.Schedule{Job: prune, Every: cfg.Cron.RetentionEvery},
	), nil
}
