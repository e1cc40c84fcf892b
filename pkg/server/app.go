package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MandiCast/internal/service/ratelimit"
	"MandiCast/internal/usecase"
	"MandiCast/pkg/config"
	xhttp "MandiCast/pkg/http"
	pkgkafka "MandiCast/pkg/kafka"
	applogger "MandiCast/pkg/logger"
	"MandiCast/pkg/queue"
)

// Components are the long-running parts of the application. Queue,
// Consumer and AuditHandler are optional.
type Components struct {
	Pool         *usecase.InferencePool
	Collector    *usecase.AuditCollector
	Queue        *queue.RedisQueue
	Consumer     *pkgkafka.Consumer
	AuditHandler pkgkafka.MessageHandler
	HTTP         *xhttp.Server
	Limiter      *ratelimit.Limiter
}

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg     *config.Config
	logger  *applogger.Logger
	c       Components
	closers []closer
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, c Components) *App {
	if l == nil {
		l = applogger.NewNop()
	}
	return &App{cfg: cfg, logger: l, c: c}
}

// AddCloser registers fn to run after every component has stopped.
// Closers run in reverse registration order.
func (a *App) AddCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	sigCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// components outlive the signal so Shutdown can still flush through them
	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	if err := a.Start(runCtx); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	var runErr error
	select {
	case <-sigCtx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-a.c.HTTP.Err():
		runErr = fmt.Errorf("http server: %w", err)
	}

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), timeout)
	defer stop()
	if err := a.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Start brings components up in dependency order: inference first, then
// the audit path, then the HTTP listener.
func (a *App) Start(ctx context.Context) error {
	if a.c.Pool != nil {
		if err := a.c.Pool.Start(); err != nil {
			return fmt.Errorf("inference pool: %w", err)
		}
	}

	if a.c.Collector != nil {
		if err := a.c.Collector.Start(ctx); err != nil {
			return fmt.Errorf("audit collector: %w", err)
		}
	}

	if a.c.Queue != nil {
		if err := a.c.Queue.Start(ctx); err != nil {
			return fmt.Errorf("redis queue: %w", err)
		}
	}

	if a.c.Consumer != nil && a.c.AuditHandler != nil {
		a.c.Consumer.RegisterHandler(a.c.AuditHandler)
		if err := a.c.Consumer.Start(); err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
	}

	if a.c.Limiter != nil {
		go a.c.Limiter.RunJanitor(ctx, time.Minute, 10*time.Minute)
	}

	if a.c.HTTP == nil {
		return fmt.Errorf("http server not configured")
	}
	if err := a.c.HTTP.Start(); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	a.logger.Info("mandicast started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("audit_backend", a.cfg.Audit.Backend),
		applogger.Int("port", a.cfg.Server.Port))
	return nil
}

// Shutdown stops components in reverse start order. Errors are logged and
// the first one is returned.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down...")
	var first error
	keep := func(name string, err error) {
		if err == nil {
			return
		}
		a.logger.Warn(name+" stop error", applogger.Error(err))
		if first == nil {
			first = fmt.Errorf("%s: %w", name, err)
		}
	}

	if a.c.HTTP != nil {
		keep("http server", a.c.HTTP.Stop(ctx))
	}
	if a.c.Collector != nil {
		// flushes pending records before the brokers go away
		keep("audit collector", a.c.Collector.Shutdown(ctx))
	}
	if a.c.Consumer != nil {
		keep("kafka consumer", a.c.Consumer.Stop(ctx))
	}
	if a.c.Queue != nil {
		keep("redis queue", a.c.Queue.Stop(ctx))
	}
	if a.c.Pool != nil {
		keep("inference pool", a.c.Pool.Stop(ctx))
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		keep(a.closers[i].name, a.closers[i].fn())
	}

	a.logger.Info("shutdown complete")
	return first
}
