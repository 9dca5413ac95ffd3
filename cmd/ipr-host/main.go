package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ipr-host/internal/bootstrap"
	"ipr-host/internal/handlers"
	"ipr-host/internal/proxy"
	"ipr-host/internal/state"
	"ipr-host/internal/staticserve"
	"ipr-host/internal/supervise"
	"ipr-host/internal/watcher"
	"ipr-host/pkg/config"
)

// shutdownTimeout bounds how long open connections may delay exit.
const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg := config.LoadConfig(*configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state.Reset(cfg.App.Port)

	static, err := staticserve.NewHandler(cfg.Static)
	if err != nil {
		logrus.Fatalf("Failed to build static handler: %v", err)
	}

	sup := supervise.NewSupervisor(cfg.App)
	appProxy := proxy.NewAppProxy(sup.Addr())

	restartCh := make(chan struct{}, 1)
	api := handlers.NewHandler(func() {
		select {
		case restartCh <- struct{}{}:
		default:
			// A restart is already queued.
		}
	})

	router := handlers.NewRouter(cfg, static, appProxy, api)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	fsw, err := watcher.New(appRequirements(cfg), *configPath)
	if err != nil {
		logrus.Fatalf("Failed to create watcher: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logrus.WithField("addr", srv.Addr).Info("Front server running")
		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", serveErr)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("Shutting down front server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			logrus.WithError(shutdownErr).Error("Server shutdown error")
			return shutdownErr
		}
		logrus.Info("Front server stopped gracefully")
		return nil
	})

	g.Go(func() error {
		return runLoop(gctx, cfg, restartCh)
	})

	g.Go(func() error {
		watchErr := fsw.Run(gctx)
		if watchErr != nil && !errors.Is(watchErr, context.Canceled) {
			return watchErr
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logrus.Fatalf("Shell exited with error: %v", err)
	}
	logrus.Info("Shell stopped")
}

// appRequirements resolves the requirements path relative to the app
// workdir, matching where the install step reads it.
func appRequirements(cfg *config.Config) string {
	if cfg.App.Requirements == "" {
		return ""
	}
	if cfg.App.Workdir != "" && !filepath.IsAbs(cfg.App.Requirements) {
		return filepath.Join(cfg.App.Workdir, cfg.App.Requirements)
	}
	return cfg.App.Requirements
}

// runOnce executes one bootstrap + supervise cycle. A bootstrap failure
// aborts before the application is ever launched.
func runOnce(ctx context.Context, cfg *config.Config) error {
	runner := bootstrap.NewRunner(cfg.Bootstrap, cfg.App.Requirements, cfg.App.Workdir)
	if err := runner.Run(ctx); err != nil {
		return err
	}

	sup := supervise.NewSupervisor(cfg.App)
	return sup.Run(ctx)
}

// runLoop drives bootstrap + supervise cycles. There is no automatic
// restart after an exit; a new cycle starts only on an explicit restart
// request.
func runLoop(ctx context.Context, cfg *config.Config, restartCh <-chan struct{}) error {
	for {
		runCtx, cancelRun := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- runOnce(runCtx, cfg)
		}()

		select {
		case err := <-done:
			cancelRun()
			if err != nil && !errors.Is(err, context.Canceled) {
				logrus.WithError(err).Error("Pipeline ended with error")
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-restartCh:
			}
		case <-restartCh:
			// Restart while running: stop the current process first.
			cancelRun()
			<-done
		case <-ctx.Done():
			cancelRun()
			<-done
			return ctx.Err()
		}

		logrus.Info("Restarting bootstrap pipeline")
		state.Reset(cfg.App.Port)
	}
}
