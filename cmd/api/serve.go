package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/app"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/store"
)

const limiterIdle = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := configFrom(cmd)
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if !skipMigrations {
		if err := store.ApplyMigrations(ctx, rt.db, cfg.MigrationsDir); err != nil {
			return err
		}
	}
	if err := rt.service.Bootstrap(ctx); err != nil {
		log.WithError(err).Warn("bootstrap incomplete, stores will retry on first read")
	}

	go sweepLimiter(ctx, rt)

	httpServer := app.NewHTTPServer(rt.service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"addr": cfg.Addr, "env": cfg.Env}).Info("portal api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
	rt.search.Wait()
	return nil
}

// sweepLimiter drops idle contact form buckets until ctx ends.
func sweepLimiter(ctx context.Context, rt *runtime) {
	ticker := time.NewTicker(limiterIdle)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dropped := rt.limiter.Cleanup(limiterIdle); dropped > 0 {
				log.WithField("dropped", dropped).Debug("rate limiter cleanup")
			}
		}
	}
}
