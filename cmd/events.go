package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Gopher0727/AltMur/config"
	"github.com/Gopher0727/AltMur/internal/events"
	logger "github.com/Gopher0727/AltMur/middleware/log"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect entity change events",
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Log every change event published to the configured topic",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log, err := logger.NewLogger(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer log.Close()

		group, err := events.NewConsumerGroup(&cfg.Kafka)
		if err != nil {
			return err
		}
		defer group.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("watching change events", zap.String("topic", cfg.Kafka.Topic), zap.String("group", cfg.Kafka.GroupID))
		return events.NewChangeConsumer(logChange(log), log).Run(ctx, group, cfg.Kafka.Topic)
	},
}

func logChange(log *logger.Logger) events.Handler {
	return func(ctx context.Context, change events.Change) error {
		log.InfoContext(ctx, "change",
			zap.String("entity", change.Entity),
			zap.String("table", change.Table),
			zap.String("op", string(change.Op)),
			zap.Any("id", change.ID),
			zap.Time("at", change.At),
		)
		return nil
	}
}

func init() {
	eventsCmd.AddCommand(eventsWatchCmd)
}
