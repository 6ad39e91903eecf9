package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/identity/internal/app"
	"github.com/allisson/identity/internal/config"
)

// shutdownTimeout bounds how long servers get to drain in-flight requests.
const shutdownTimeout = 15 * time.Second

// service is a long-running component with a blocking Start.
type service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

type namedService struct {
	name string
	svc  service
}

// RunServer starts the HTTP server with graceful shutdown support.
// Loads configuration, initializes the DI container, and starts the API server,
// the optional metrics server and the optional housekeeping worker.
// Blocks until receiving SIGINT/SIGTERM or encountering a fatal error.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	defer closeContainer(container, logger)

	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	services := []namedService{{name: "api server", svc: server}}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}
	if metricsServer != nil {
		services = append(services, namedService{name: "metrics server", svc: metricsServer})
	}

	var workers []func(ctx context.Context) error
	if cfg.HousekeepingEnabled {
		housekeepingUseCase, err := container.HousekeepingUseCase()
		if err != nil {
			return fmt.Errorf("failed to initialize housekeeping: %w", err)
		}
		workers = append(workers, housekeepingUseCase.Start)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return supervise(ctx, logger, shutdownTimeout, services, workers)
}

// supervise runs every service and worker until ctx is done or one of them
// fails, then shuts all services down within timeout.
func supervise(
	ctx context.Context,
	logger *slog.Logger,
	timeout time.Duration,
	services []namedService,
	workers []func(ctx context.Context) error,
) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, s := range services {
		g.Go(func() error {
			if err := s.svc.Start(gctx); err != nil {
				return fmt.Errorf("%s error: %w", s.name, err)
			}
			return nil
		})
	}

	for _, worker := range workers {
		g.Go(func() error {
			if err := worker(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("worker error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Info("shutdown signal received")
		} else {
			logger.Error("component failed, initiating shutdown")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		var shutdownErrors []error
		for _, s := range services {
			if err := s.svc.Shutdown(shutdownCtx); err != nil {
				shutdownErrors = append(shutdownErrors, fmt.Errorf("%s shutdown: %w", s.name, err))
			}
		}
		return errors.Join(shutdownErrors...)
	})

	return g.Wait()
}
