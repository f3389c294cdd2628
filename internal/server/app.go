// Package server wires the walletkeeper server together: storage,
// chain access, notification, the HTTP API and background workers, and
// runs them until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/walletkeeper/internal/cryptox"
	"github.com/dmitrijs2005/walletkeeper/internal/logging"
	"github.com/dmitrijs2005/walletkeeper/internal/server/chain"
	"github.com/dmitrijs2005/walletkeeper/internal/server/config"
	"github.com/dmitrijs2005/walletkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/walletkeeper/internal/server/locker"
	"github.com/dmitrijs2005/walletkeeper/internal/server/notify"
	"github.com/dmitrijs2005/walletkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/walletkeeper/internal/server/services"
	"github.com/dmitrijs2005/walletkeeper/internal/server/worker"
	"github.com/dmitrijs2005/walletkeeper/internal/wallet"
	"github.com/ethereum/go-ethereum/ethclient"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

const lockTTL = 2 * time.Minute

type App struct {
	config  *config.Config
	logger  logging.Logger
	closers []io.Closer

	http   *httpapi.Server
	worker *worker.ReconcileWorker
}

func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: cfg, logger: logger}

	cipher, err := cryptox.NewSecretCipher(cfg.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("master key error: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, db)

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	rpc, err := ethclient.DialContext(ctx, cfg.EthRPCURL)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("eth rpc error: %w", err)
	}
	app.closers = append(app.closers, closerFunc(func() error { rpc.Close(); return nil }))

	history := chain.NewEtherscan(cfg.EtherscanURL, cfg.EtherscanAPIKey, cfg.EtherscanChain, &http.Client{Timeout: cfg.UpstreamTimeout})
	gateway := chain.NewGateway(rpc, history, cfg.UpstreamTimeout, logger)

	l, err := app.newLocker(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	factory := wallet.NewFactory()

	authService := services.NewAuthService(db, rm, cipher, factory, app.newNotifier(), cfg, logger)
	walletService := services.NewWalletService(db, rm, cipher, factory, gateway, cfg, logger)
	reconcileService := services.NewReconcileService(db, rm, gateway, l, cfg, logger)

	app.http = httpapi.NewServer(cfg.HTTPAddr, logger, authService, walletService, reconcileService, cfg.CORSOrigins)
	app.worker = worker.NewReconcileWorker(reconcileService, cfg.ReconcileInterval, logger)

	return app, nil
}

// newLocker uses Redis when an address is configured so that several
// replicas share reconcile locks.
func (app *App) newLocker(ctx context.Context) (locker.Locker, error) {
	if app.config.RedisAddr == "" {
		return locker.NewKeyedMutex(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     app.config.RedisAddr,
		Password: app.config.RedisPassword,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis error: %w", err)
	}
	app.closers = append(app.closers, rdb)

	return locker.NewRedisLocker(rdb, lockTTL, app.logger), nil
}

func (app *App) newNotifier() notify.Notifier {
	if app.config.SMTPHost == "" {
		app.logger.Warn(context.Background(), "SMTP is not configured, codes are written to stdout")
		return notify.NewWriterNotifier(os.Stdout)
	}
	c := app.config
	return notify.NewSMTPNotifier(c.SMTPHost, c.SMTPPort, c.SMTPUser, c.SMTPPassword, c.SMTPFrom)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run blocks until a signal arrives or the HTTP server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.http.Run(ctx); err != nil {
			app.logger.Error(ctx, "http server failed", "error", err)
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.worker.Start(ctx)
	}()

	wg.Wait()

	app.Close()
	app.logger.Info(context.Background(), "App stopped")
}

// Close releases connections in reverse order of creation.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
