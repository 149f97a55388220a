package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	xhttp "SignalGate/pkg/http"
	pkgkafka "SignalGate/pkg/kafka"
	applogger "SignalGate/pkg/logger"
	"SignalGate/pkg/tracing"
)

// Ledger is started before scanning and flushed last.
type Ledger interface {
	Start(ctx context.Context) error
	Close() error
}

// Scanner blocks until ctx is cancelled.
type Scanner interface {
	Run(ctx context.Context) error
}

// Cleanup releases one infrastructure client on shutdown.
type Cleanup struct {
	Name  string
	Close func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	logger          *applogger.Logger
	ledger          Ledger
	scanner         Scanner
	consumer        *pkgkafka.Consumer
	handlers        []pkgkafka.MessageHandler
	httpServer      *xhttp.Server
	tracer          *tracing.Provider
	cleanups        []Cleanup
	shutdownTimeout time.Duration
}

type Option func(*App)

// WithConsumer runs a Kafka consumer with the given handlers alongside the scanner.
func WithConsumer(c *pkgkafka.Consumer, handlers ...pkgkafka.MessageHandler) Option {
	return func(a *App) {
		a.consumer = c
		a.handlers = handlers
	}
}

func WithHTTPServer(s *xhttp.Server) Option {
	return func(a *App) { a.httpServer = s }
}

func WithTracer(p *tracing.Provider) Option {
	return func(a *App) { a.tracer = p }
}

// WithCleanup registers clients closed in reverse order after everything else stopped.
func WithCleanup(c ...Cleanup) Option {
	return func(a *App) { a.cleanups = append(a.cleanups, c...) }
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

func New(logger *applogger.Logger, ledger Ledger, scanner Scanner, opts ...Option) *App {
	if logger == nil {
		logger = applogger.NewNop()
	}
	a := &App{
		logger:          logger,
		ledger:          ledger,
		scanner:         scanner,
		shutdownTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts every component and blocks until SIGINT/SIGTERM, ctx cancellation
// or a fatal component error, then shuts down in reverse order.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.ledger.Start(ctx); err != nil {
		return fmt.Errorf("start ledger: %w", err)
	}

	if a.consumer != nil && len(a.handlers) > 0 {
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
		}
		if err := a.consumer.Start(); err != nil {
			return errors.Join(fmt.Errorf("start consumer: %w", err), a.shutdown(nil))
		}
	}

	var httpErrs <-chan error
	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			return errors.Join(fmt.Errorf("start http server: %w", err), a.shutdown(nil))
		}
		httpErrs = a.httpServer.Errors()
	}

	scanCtx, cancelScan := context.WithCancel(ctx)
	defer cancelScan()
	scanDone := make(chan error, 1)
	go func() { scanDone <- a.scanner.Run(scanCtx) }()
	a.logger.Info("application started")

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-httpErrs:
		runErr = fmt.Errorf("http server: %w", err)
	case err := <-scanDone:
		runErr = fmt.Errorf("scanner exited: %w", err)
		scanDone = nil
	}
	cancelScan()
	return errors.Join(runErr, a.shutdown(scanDone))
}

// shutdown stops intake first and flushes the ledger last so late rejections are kept.
func (a *App) shutdown(scanDone <-chan error) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var errs []error
	if scanDone != nil {
		select {
		case err := <-scanDone:
			if err != nil {
				errs = append(errs, fmt.Errorf("scanner: %w", err))
			}
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("timeout waiting for scanner: %w", ctx.Err()))
		}
	}
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.logger.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.consumer != nil && len(a.handlers) > 0 {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if err := a.ledger.Close(); err != nil {
		a.logger.Warn("ledger close error", applogger.Error(err))
		errs = append(errs, err)
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown error", applogger.Error(err))
		}
	}
	a.logger.RemoveCollector()

	for i := len(a.cleanups) - 1; i >= 0; i-- {
		c := a.cleanups[i]
		if err := c.Close(); err != nil {
			a.logger.Warn("close error", applogger.String("client", c.Name), applogger.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
