package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Gopher0727/AltMur/config"
	"github.com/Gopher0727/AltMur/internal/api"
	"github.com/Gopher0727/AltMur/internal/repository"
	logger "github.com/Gopher0727/AltMur/middleware/log"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the health and metrics HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func runServe(ctx context.Context) error {
	cfg, log, provider, cleanup, err := bootstrap()
	if err != nil {
		return err
	}
	defer cleanup()

	// The server only reads, so it runs without the cache and the notifier.
	set, err := repository.NewSet(provider.DB(), repository.WithLogger(log))
	if err != nil {
		return fmt.Errorf("build repositories: %w", err)
	}

	return serveHTTP(ctx, cfg, log, api.NewRouter(log, readinessChecks(provider.Ping, set)))
}

// readinessChecks reports the database reachable and migrated.
func readinessChecks(db api.Check, set *repository.Set) map[string]api.Check {
	return map[string]api.Check{
		"postgres": db,
		"schema": func(ctx context.Context) error {
			_, err := set.Users.Exists(ctx, int64(0))
			return err
		},
	}
}

func serveHTTP(ctx context.Context, cfg *config.Config, log *logger.Logger, handler http.Handler) error {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
