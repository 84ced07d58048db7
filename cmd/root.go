package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Gopher0727/AltMur/config"
	"github.com/Gopher0727/AltMur/internal/cache"
	"github.com/Gopher0727/AltMur/internal/events"
	"github.com/Gopher0727/AltMur/internal/repository"
	"github.com/Gopher0727/AltMur/internal/storage"
	logger "github.com/Gopher0727/AltMur/middleware/log"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "altmur",
	Short:         "Chat data layer: schema, repositories and health endpoints",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file; environment variables apply either way")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(eventsCmd)
}

// bootstrap loads configuration and opens the logger and the database.
// The returned cleanup closes both in reverse order.
func bootstrap() (*config.Config, *logger.Logger, *storage.Provider, func(), error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	provider, err := storage.NewProvider(&cfg.Postgres, log)
	if err != nil {
		_ = log.Close()
		return nil, nil, nil, nil, fmt.Errorf("open database: %w", err)
	}

	cleanup := func() {
		_ = provider.Close()
		_ = log.Close()
	}
	return cfg, log, provider, cleanup, nil
}

// repositoryOptions returns the options for repositories that mutate data:
// the Redis cache when enabled and the Kafka notifier when brokers are
// configured. The returned cleanup closes whatever was opened.
func repositoryOptions(ctx context.Context, cfg *config.Config, log *logger.Logger) ([]repository.Option, func(), error) {
	opts := []repository.Option{repository.WithLogger(log)}
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	if cfg.Redis.Enabled {
		rdb, err := storage.NewRedis(ctx, &cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, rdb.Close)
		opts = append(opts, repository.WithCache(cache.New(rdb, cfg.Redis.CacheTTL, cfg.Redis.TombstoneTTL)))
	}

	notifier, err := newNotifier(&cfg.Kafka, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if notifier != nil {
		closers = append(closers, notifier.Close)
		opts = append(opts, repository.WithNotifier(notifier))
	}
	return opts, cleanup, nil
}

// newNotifier returns nil when no brokers are configured.
func newNotifier(cfg *config.KafkaConfig, log *logger.Logger) (*events.KafkaNotifier, error) {
	if len(cfg.Brokers) == 0 {
		log.Info("kafka brokers not configured, change events disabled")
		return nil, nil
	}
	notifier, err := events.NewKafkaNotifier(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	return notifier, nil
}
