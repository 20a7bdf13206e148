package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	httpdelivery "github.com/Xausdorf/clout-ledger/internal/delivery/http"
	"github.com/Xausdorf/clout-ledger/internal/domain/event"
	"github.com/Xausdorf/clout-ledger/internal/domain/gateway"
	"github.com/Xausdorf/clout-ledger/internal/domain/repository"
	"github.com/Xausdorf/clout-ledger/internal/infrastructure/config"
	"github.com/Xausdorf/clout-ledger/internal/infrastructure/events"
	"github.com/Xausdorf/clout-ledger/internal/infrastructure/events/kafka"
	"github.com/Xausdorf/clout-ledger/internal/infrastructure/memory"
	"github.com/Xausdorf/clout-ledger/internal/infrastructure/postgres"
	"github.com/Xausdorf/clout-ledger/internal/infrastructure/qrgenerator"
	"github.com/Xausdorf/clout-ledger/internal/infrastructure/sandbox"
	"github.com/Xausdorf/clout-ledger/internal/infrastructure/stripegateway"
	"github.com/Xausdorf/clout-ledger/internal/usecase/catalog"
	"github.com/Xausdorf/clout-ledger/internal/usecase/ledger"
	"github.com/Xausdorf/clout-ledger/internal/usecase/sharecontent"
	"github.com/Xausdorf/clout-ledger/internal/usecase/wallet"
	"github.com/Xausdorf/clout-ledger/internal/worker"
)

const (
	dbMaxConns        = 10
	dbMinConns        = 2
	dbMaxConnLifetime = 30 * time.Minute
	dbMaxConnIdleTime = 5 * time.Minute

	readHeaderTimeout     = 5 * time.Second
	gracefulShutdownDelay = 10 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := initStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("store init failed", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	publisher, closePublisher := initPublisher(cfg, logger)
	defer func() {
		if err := closePublisher(); err != nil {
			logger.Error("event publisher close failed", "error", err)
		}
	}()

	engine := ledger.NewEngine(store, initGateway(cfg, logger), publisher, logger, ledger.Options{
		Currency:       cfg.Currency,
		FeeBasisPoints: cfg.PlatformFeeBps,
		MaxCASRetries:  cfg.MaxCASRetries,
		GatewayTimeout: cfg.GatewayTimeout,
	})
	catalogSvc := catalog.NewService(store, logger)
	walletSvc := wallet.NewService(store, logger)
	shareUC := sharecontent.NewUseCase(store.Contents(), qrgenerator.NewGenerator(cfg.QRSize), cfg.PublicBaseURL, cfg.Currency)

	reconciler := worker.NewReconciler(store.Entries(), engine, logger, worker.ReconcilerConfig{
		Interval:  cfg.ReconcileInterval,
		MinAge:    cfg.ReconcileMinAge,
		BatchSize: cfg.ReconcileBatch,
		Workers:   cfg.ReconcileWorkers,
	})

	handler := httpdelivery.NewHandler(engine, catalogSvc, walletSvc, shareUC, logger)
	router := httpdelivery.NewRouter(handler, httpdelivery.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		Limiter:        httpdelivery.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		reconciler.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("http serve failed", "error", serveErr)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownDelay)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	wg.Wait()
	catalogSvc.Wait()
}

func initStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Store, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Warn("using in-memory store; data is lost on exit")
		return memory.NewStore(), func() {}, nil
	}

	pool, err := initDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	store := postgres.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}

func initGateway(cfg *config.Config, logger *slog.Logger) gateway.Gateway {
	if cfg.StripeAPIKey == "" {
		logger.Warn("STRIPE_API_KEY not set, using sandbox payment processor")
		return sandbox.New()
	}
	return stripegateway.NewGateway(cfg.StripeAPIKey)
}

func initPublisher(cfg *config.Config, logger *slog.Logger) (event.Publisher, func() error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NewLogPublisher(logger), func() error { return nil }
	}
	p := kafka.NewPublisher(cfg.KafkaBrokers)
	return p, p.Close
}

func initDB(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}

	cfg.MaxConns = dbMaxConns
	cfg.MinConns = dbMinConns
	cfg.MaxConnLifetime = dbMaxConnLifetime
	cfg.MaxConnIdleTime = dbMaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}
