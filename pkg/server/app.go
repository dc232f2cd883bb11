package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"CostSim/internal/domain/repository"
	"CostSim/internal/usecase"
	"CostSim/pkg/cache"
	"CostSim/pkg/config"
	xhttp "CostSim/pkg/http"
	applogger "CostSim/pkg/logger"
	"CostSim/pkg/queue"
)

// App encapsulates the application lifecycle: market-data collection, the
// delayed execution queue and the HTTP API.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	collector  *usecase.BookCollector
	queue      *queue.MemoryQueue
	handler    xhttp.Handler
	audit      repository.AuditSink
	cache      cache.Service
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	lgr *applogger.Logger,
	collector *usecase.BookCollector,
	q *queue.MemoryQueue,
	handler xhttp.Handler,
	audit repository.AuditSink,
	cacheSvc cache.Service,
) *App {
	return &App{
		cfg:       cfg,
		logger:    lgr,
		collector: collector,
		queue:     q,
		handler:   handler,
		audit:     audit,
		cache:     cacheSvc,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.queue.Start()
	a.logger.Info("execution queue started",
		applogger.Int("workers", a.cfg.Simulator.Workers))

	if err := a.collector.Start(ctx); err != nil {
		a.logger.Error("collector start failed", applogger.Error(err))
		return err
	}
	a.logger.Info("collector started",
		applogger.String("symbol", a.cfg.Feed.Symbol),
		applogger.String("exchange", a.cfg.Feed.Exchange))

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start failed", applogger.Error(err))
		return err
	}
	a.logger.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops services in reverse start order and closes resources.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if err := a.collector.Stop(); err != nil {
		a.logger.Warn("collector stop error", applogger.Error(err))
	}

	if err := a.queue.Stop(shutdownCtx); err != nil {
		a.logger.Warn("queue stop error", applogger.Error(err))
	}

	if err := a.audit.Close(); err != nil {
		a.logger.Warn("audit sink close error", applogger.Error(err))
	}

	if err := a.cache.Close(); err != nil {
		a.logger.Warn("cache close error", applogger.Error(err))
	}

	a.logger.Info("shutdown complete")
	return nil
}
