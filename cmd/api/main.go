package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/kitstock-backend/api/routes"
	"github.com/angelmondragon/kitstock-backend/internal/availability"
	"github.com/angelmondragon/kitstock-backend/internal/cart"
	"github.com/angelmondragon/kitstock-backend/internal/checkout"
	"github.com/angelmondragon/kitstock-backend/internal/ledger"
	"github.com/angelmondragon/kitstock-backend/internal/orders"
	"github.com/angelmondragon/kitstock-backend/internal/providers"
	"github.com/angelmondragon/kitstock-backend/internal/sets"
	"github.com/angelmondragon/kitstock-backend/pkg/config"
	"github.com/angelmondragon/kitstock-backend/pkg/db"
	"github.com/angelmondragon/kitstock-backend/pkg/logger"
	"github.com/angelmondragon/kitstock-backend/pkg/metrics"
	"github.com/angelmondragon/kitstock-backend/pkg/migrate"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox"
	"github.com/angelmondragon/kitstock-backend/pkg/redis"
	"github.com/angelmondragon/kitstock-backend/pkg/tracing"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.FromConfig("api", cfg.App)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, "kitstock-api")
	if err != nil {
		logg.Error(ctx, "failed to init tracing", err)
		os.Exit(1)
	}

	dbClient, err := db.Open(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}

	sharedPart, err := cfg.Inventory.SharedPart()
	if err != nil {
		logg.Error(ctx, "invalid shared part id", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	inventoryMetrics := metrics.NewInventoryMetrics(reg)

	services, err := buildServices(ctx, dbClient, redisClient, sharedPart, logg, inventoryMetrics)
	if err != nil {
		logg.Error(ctx, "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Infra{
			DB:          dbClient,
			Redis:       redisClient,
			Idempotency: redisClient,
			RateLimit:   redisClient,
			Gatherer:    reg,
			HTTPMetrics: metrics.NewHTTPMetrics(reg),
		}, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs error
	errs = multierr.Append(errs, server.Shutdown(shutdownCtx))
	errs = multierr.Append(errs, shutdownTracing(shutdownCtx))
	errs = multierr.Append(errs, redisClient.Close())
	errs = multierr.Append(errs, dbClient.Close())
	if errs != nil {
		logg.Error(shutdownCtx, "api shutdown incomplete", errs)
		os.Exit(1)
	}
	logg.Info(shutdownCtx, "api stopped")
}

func buildServices(ctx context.Context, client *db.Client, redisClient *redis.Client, sharedPart uuid.UUID, logg *logger.Logger, m *metrics.InventoryMetrics) (routes.Services, error) {
	conn := client.DB()
	pub := outbox.NewService(outbox.NewRepository(conn), logg)
	setRepo := sets.NewRepository(conn)
	ledgerRepo := ledger.NewRepository(conn)
	holds := availability.NewRepository(conn)

	ledgerSvc, err := ledger.NewService(client, ledgerRepo, pub, logg, m)
	if err != nil {
		return routes.Services{}, err
	}
	catalog, err := sets.NewService(client, setRepo, ledgerSvc)
	if err != nil {
		return routes.Services{}, err
	}
	avail, err := availability.NewService(setRepo, holds)
	if err != nil {
		return routes.Services{}, err
	}
	cartSvc, err := cart.NewService(cart.Deps{
		Tx:           client,
		Reservations: cart.NewRepository(conn),
		Sets:         setRepo,
		Parts:        ledgerRepo,
		Holds:        holds,
		Outbox:       pub,
		Logger:       logg,
		Metrics:      m,
	})
	if err != nil {
		return routes.Services{}, err
	}
	providerSvc, err := providers.NewService(client, providers.NewRepository(conn), setRepo, pub, sharedPart, logg)
	if err != nil {
		return routes.Services{}, err
	}

	stock := orders.Stock{Sets: setRepo, Ledger: ledgerSvc, Usage: providerSvc}
	orderRepo := orders.NewRepository(conn)
	next, err := checkout.SyncOrderSequence(ctx, orderRepo, redisClient)
	if err != nil {
		return routes.Services{}, fmt.Errorf("sync order number sequence: %w", err)
	}
	logg.Info(logg.WithField(ctx, "order_sequence", next), "order number sequence synced")

	orderSvc, err := orders.NewService(client, orderRepo, stock, pub, logg, m)
	if err != nil {
		return routes.Services{}, err
	}
	checkoutSvc, err := checkout.NewService(checkout.Deps{
		Tx:        client,
		Orders:    orderRepo,
		Sets:      setRepo,
		Stock:     stock,
		Holds:     cartSvc,
		Offerings: providerSvc,
		Sequence:  redisClient,
		Outbox:    pub,
		Logger:    logg,
		Metrics:   m,
	})
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Availability: avail,
		Cart:         cartSvc,
		Checkout:     checkoutSvc,
		Orders:       orderSvc,
		Ledger:       ledgerSvc,
		Catalog:      catalog,
		Providers:    providerSvc,
	}, nil
}
