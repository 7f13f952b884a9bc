package bootstrap

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/borelli28/SIEM/api"
	"github.com/borelli28/SIEM/config"
	"github.com/borelli28/SIEM/correlate"
	"github.com/borelli28/SIEM/ingest"
	"github.com/borelli28/SIEM/search"

	"go.uber.org/zap"
)

// App represents the SIEM backend with all its components.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	Storage    *StorageComponents
	Executor   *search.Executor
	Correlator *correlate.Correlator
	Engine     *ingest.Engine
	Importer   *ingest.Importer
	APIServer  *api.API

	serviceWg  *sync.WaitGroup
	shutdownCh chan struct{}
}

// NewApp creates a new application instance and initializes all components.
func NewApp(ctx context.Context) (*App, error) {
	app := &App{
		serviceWg:  &sync.WaitGroup{},
		shutdownCh: make(chan struct{}),
	}

	logger, sugar, err := InitLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger
	app.Sugar = sugar

	sugar.Info("SIEM backend starting...")

	cfg, err := InitConfig(sugar)
	if err != nil {
		return nil, err
	}
	app.Config = cfg

	if err := EnsureDataDirectories(cfg, sugar); err != nil {
		return nil, fmt.Errorf("pre-flight check failed: %w", err)
	}

	storageComponents, err := InitStorage(cfg, sugar)
	if err != nil {
		return nil, err
	}
	app.Storage = storageComponents

	executor, err := search.NewExecutor(storageComponents.LogStorage, cfg.Search.BatchSize, cfg.Search.MaxResults, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize search executor: %w", err)
	}
	app.Executor = executor

	app.Correlator = correlate.NewCorrelator(
		storageComponents.CaseStorage,
		storageComponents.AlertStorage,
		storageComponents.LogStorage,
		sugar,
	)

	app.Engine = ingest.NewEngine(storageComponents.RuleStorage, storageComponents.AlertStorage, executor, sugar)
	app.Importer = ingest.NewImporter(storageComponents.LogStorage, app.Engine, sugar)

	app.APIServer = api.NewAPI(api.Deps{
		Logs:       storageComponents.LogStorage,
		Alerts:     storageComponents.AlertStorage,
		Cases:      storageComponents.CaseStorage,
		Comments:   storageComponents.CommentStorage,
		Hosts:      storageComponents.HostStorage,
		Rules:      storageComponents.RuleStorage,
		Searcher:   executor,
		Correlator: app.Correlator,
		Importer:   app.Importer,
	}, cfg, sugar)

	return app, nil
}

// Start starts the API server and the retention loop.
func (a *App) Start(ctx context.Context) error {
	a.startRetentionLoop(ctx)

	a.serviceWg.Add(1)
	go func() {
		defer a.serviceWg.Done()
		addr := net.JoinHostPort(a.Config.API.Host, strconv.Itoa(a.Config.API.Port))
		a.Sugar.Infof("API server started on %s", addr)

		var err error
		if a.Config.API.TLS {
			err = a.APIServer.StartTLS(addr, a.Config.API.CertFile, a.Config.API.KeyFile)
		} else {
			err = a.APIServer.Start(addr)
		}

		if err != nil && err.Error() != "http: Server closed" {
			a.Sugar.Errorf("API server error: %v", err)
		}
	}()

	return nil
}

// startRetentionLoop purges logs older than the configured retention window
// on a fixed interval. A zero retention disables purging.
func (a *App) startRetentionLoop(ctx context.Context) {
	age := a.Config.RetentionCutoffAge()
	if age <= 0 {
		a.Sugar.Info("Log retention purging disabled")
		return
	}

	interval := a.Config.Retention.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	a.serviceWg.Add(1)
	go func() {
		defer a.serviceWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		a.Sugar.Infow("Log retention loop started",
			"retention_days", a.Config.Retention.Logs,
			"interval", interval)

		for {
			select {
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-age)
				purged, err := a.Storage.LogStorage.PurgeLogsBefore(ctx, cutoff)
				if err != nil {
					a.Sugar.Errorw("Log retention purge failed", "error", err)
					continue
				}
				if purged > 0 {
					a.Sugar.Infow("Log retention purge completed",
						"purged", purged,
						"cutoff", cutoff.Format(time.RFC3339))
				}
			case <-a.shutdownCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown() {
	a.Sugar.Info("Shutting down...")

	close(a.shutdownCh)

	if a.APIServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.APIServer.Stop(ctx); err != nil {
			a.Sugar.Errorw("Failed to stop API server", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		a.serviceWg.Wait()
		close(done)
	}()
	select {
	case <-done:
		a.Sugar.Info("All service goroutines stopped successfully")
	case <-time.After(15 * time.Second):
		a.Sugar.Warn("Service goroutine shutdown timed out")
	}

	if a.Storage != nil && a.Storage.SQLite != nil {
		a.Storage.SQLite.Close()
	}

	a.Sugar.Info("Shutdown complete")
	a.Logger.Sync()
}
