package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	xhttp "TFTracker/pkg/http"
	pkgkafka "TFTracker/pkg/kafka"
	applogger "TFTracker/pkg/logger"
)

// Background is a component with its own loop, such as the phase scheduler.
type Background interface {
	Start(ctx context.Context)
	Stop(ctx context.Context) error
}

// NamedCloser is an infrastructure client released on shutdown.
type NamedCloser struct {
	Name   string
	Closer io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	l               *applogger.Logger
	httpServer      *xhttp.Server
	consumer        *pkgkafka.Consumer
	handlers        []pkgkafka.MessageHandler
	background      []Background
	closers         []NamedCloser
	shutdownTimeout time.Duration
}

type AppOption func(*App)

func WithConsumer(c *pkgkafka.Consumer, handlers ...pkgkafka.MessageHandler) AppOption {
	return func(a *App) {
		a.consumer = c
		a.handlers = append(a.handlers, handlers...)
	}
}

func WithBackground(b ...Background) AppOption {
	return func(a *App) { a.background = append(a.background, b...) }
}

// WithClosers registers clients closed in reverse order on shutdown.
func WithClosers(c ...NamedCloser) AppOption {
	return func(a *App) { a.closers = append(a.closers, c...) }
}

func WithShutdownTimeout(d time.Duration) AppOption {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// New creates a new App instance with all dependencies.
func New(l *applogger.Logger, httpServer *xhttp.Server, opts ...AppOption) *App {
	if l == nil {
		l = applogger.Nop()
	}
	a := &App{l: l, httpServer: httpServer, shutdownTimeout: 15 * time.Second}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until ctx is done, a signal arrives
// or the HTTP server fails.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.consumer != nil && len(a.handlers) > 0 {
		topics := make([]string, 0, len(a.handlers))
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
			topics = append(topics, h.Topic())
		}
		if err := a.consumer.Start(); err != nil {
			a.closeAll()
			return fmt.Errorf("start kafka consumer: %w", err)
		}
		a.l.Info("kafka consumer started", applogger.Strings("topics", topics))
	}

	for _, b := range a.background {
		b.Start(ctx)
	}

	var serverErr error
	errCh := a.httpServer.Start()
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case err, ok := <-errCh:
		if ok && err != nil {
			serverErr = fmt.Errorf("http server: %w", err)
		}
	}

	a.shutdown()
	return serverErr
}

// shutdown stops producers of work first, then releases clients.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	a.l.Info("shutting down...")
	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}
	for _, b := range a.background {
		if err := b.Stop(ctx); err != nil {
			a.l.Warn("background stop error", applogger.Error(err))
		}
	}
	if a.consumer != nil && len(a.handlers) > 0 {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	a.closeAll()
	a.l.Info("shutdown complete")
}

func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if c.Closer == nil {
			continue
		}
		if err := c.Closer.Close(); err != nil {
			a.l.Warn("close error", applogger.String("component", c.Name), applogger.Error(err))
		}
	}
}
