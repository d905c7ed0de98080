package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"meta-ads/internal/adapter/http"
	"meta-ads/internal/adapter/ledger"
	"meta-ads/internal/adapter/memory"
	"meta-ads/internal/adapter/postgres"
	"meta-ads/internal/adapter/sqlite"
	"meta-ads/internal/adapter/usecase"
	"meta-ads/internal/config"
	"meta-ads/internal/config/configs"
	"meta-ads/internal/core/domain"
	"meta-ads/internal/core/port"
	"meta-ads/internal/db"
	"meta-ads/internal/metrics"
	"meta-ads/internal/pkg/clock"
	"meta-ads/internal/pkg/errs"
	"meta-ads/internal/pkg/token"
)

// main is the entry point of the meta-ads escrow service. It loads
// configuration, opens the record store and the ledger, makes sure the
// contract is deployed, then starts the settlement workers and the HTTP
// server. On receiving a termination signal it gracefully shuts down.
func main() {
	exitCode := 1
	defer func() {
		if r := recover(); r != nil {
			panic(r)
		} else {
			os.Exit(exitCode)
		}
	}()

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		return
	}

	logger := slog.New(cfg.Log.Handler(os.Stdout)).With(slog.String("env", cfg.Env))

	unitScale, err := cfg.Escrow.Scale()
	if err != nil {
		logger.Error("invalid unit scale", slog.Any("error", err))
		return
	}
	policy, err := cfg.Escrow.Policy()
	if err != nil {
		logger.Error("invalid id policy", slog.Any("error", err))
		return
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Error("AUTH_JWT_SECRET is required")
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("record store error", slog.Any("error", err))
		return
	}
	defer store.Close()

	payouts, closeLedger, err := openLedger(ctx, cfg, logger)
	if err != nil {
		logger.Error("ledger error", slog.Any("error", err))
		return
	}
	defer closeLedger()

	clk := clock.NewRealClock()
	m := metrics.New()
	dispatcher := usecase.NewDispatcher(logger, store, payouts, clk, m, cfg.Ledger.DispatchInterval, cfg.Ledger.BatchSize)
	svc := usecase.NewEscrowUseCase(store, clk, logger, m, usecase.Options{
		IDPolicy:  policy,
		UnitScale: unitScale,
		OnSettled: dispatcher.Notify,
	})

	if err = ensureDeployed(ctx, svc, store, cfg.Escrow.PlatformAccount, logger); err != nil {
		logger.Error("contract state error", slog.Any("error", err))
		return
	}

	if cfg.Escrow.Seed {
		if err = db.Seed(ctx, svc, clk, policy, cfg.Escrow.PlatformAccount); err != nil {
			logger.Error("seed error", slog.Any("error", err))
		} else {
			logger.Info("demo data seeded")
		}
	}

	var workers sync.WaitGroup
	runWorker := func(name string, run func(context.Context) error) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := run(ctx); err != nil && !errs.Is(err, context.Canceled) {
				logger.Error("worker stopped", slog.String("worker", name), slog.Any("error", err))
			}
		}()
	}
	runWorker("dispatcher", dispatcher.Run)
	if cfg.Escrow.AutoSettle {
		scheduler := usecase.NewScheduler(logger, svc, store, clk, cfg.Escrow.PlatformAccount, cfg.Escrow.SettleInterval)
		runWorker("scheduler", scheduler.Run)
	}

	tokens := token.NewService(cfg.Auth.JWTSecret, time.Hour)
	handler := httpadapter.NewHandler(svc, tokens, cfg.Escrow.PlatformAccount, m.Handler(), logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.Int("port", int(cfg.HTTP.Port)))
		if err := srv.ListenAndServe(); err != nil && !errs.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		exitCode = 0
	case err = <-serverErr:
		logger.Error("server error", slog.Any("error", err))
		cancel()
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer stop()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	} else {
		logger.Info("server gracefully stopped")
	}
	workers.Wait()
}

// openStore selects the record store backend named by STORE_DRIVER.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (port.RecordStore, error) {
	kind, err := cfg.Store.Kind()
	if err != nil {
		return nil, err
	}
	switch kind {
	case configs.StorePostgres:
		// Optionally run migrations if configured.
		if cfg.Psql.RunMigrations {
			if err = db.MigratePostgres(cfg.Psql.Addr.String()); err != nil {
				return nil, err
			}
			logger.Info("migrations applied successfully")
		}
		pool, err := db.NewPostgresPool(ctx, cfg.Psql)
		if err != nil {
			return nil, err
		}
		return &pooledStore{RecordStore: postgres.NewRecordStore(pool), close: pool.Close}, nil
	case configs.StoreSQLite:
		handle, err := db.NewSQLite(ctx, cfg.SQLite)
		if err != nil {
			return nil, err
		}
		return sqlite.NewRecordStore(handle), nil
	default:
		logger.Warn("using the in-memory record store; state is lost on exit")
		return memory.NewRecordStore(), nil
	}
}

// pooledStore closes the pgx pool together with the store.
type pooledStore struct {
	*postgres.RecordStore
	close func()
}

func (s *pooledStore) Close() error {
	s.close()
	return nil
}

// openLedger selects where payouts are delivered.
func openLedger(ctx context.Context, cfg config.Config, logger *slog.Logger) (port.Ledger, func(), error) {
	kind, err := cfg.Ledger.Kind()
	if err != nil {
		return nil, nil, err
	}
	if kind == configs.LedgerRedis {
		client, err := ledger.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		return ledger.NewRedisLedger(client, cfg.Redis.Stream), func() { _ = client.Close() }, nil
	}
	return ledger.NewLogLedger(logger), func() {}, nil
}

// ensureDeployed initializes the contract state on first start and refuses
// to run against a store deployed for another platform account.
func ensureDeployed(ctx context.Context, svc port.EscrowUseCase, store port.ContractStore, platform string, logger *slog.Logger) error {
	state, err := store.ContractState(ctx)
	if errs.Is(err, domain.ErrNotFound) {
		state, err = svc.Deploy(ctx, domain.Caller{Principal: platform, Contract: platform})
	}
	if err != nil {
		return err
	}
	if state.Platform != platform {
		return errs.Newf("store belongs to platform %q, configured %q", state.Platform, platform)
	}
	logger.Info("contract ready", slog.String("platform", state.Platform), slog.Int64("initialized_at", state.InitializedAt))
	return nil
}
