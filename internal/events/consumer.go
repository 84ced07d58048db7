package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/Gopher0727/AltMur/config"
	logger "github.com/Gopher0727/AltMur/middleware/log"
)

// Handler processes one decoded change. A returned error is logged and the
// message is still marked, so one bad event never blocks the partition.
type Handler func(ctx context.Context, change Change) error

// ChangeConsumer reads change events published by KafkaNotifier.
type ChangeConsumer struct {
	handler Handler
	log     *logger.Logger
}

func NewChangeConsumer(handler Handler, log *logger.Logger) *ChangeConsumer {
	return &ChangeConsumer{handler: handler, log: log}
}

func (c *ChangeConsumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *ChangeConsumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *ChangeConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			c.handle(session.Context(), msg)
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (c *ChangeConsumer) handle(ctx context.Context, msg *sarama.ConsumerMessage) {
	for _, h := range msg.Headers {
		if string(h.Key) == logger.TraceHeader {
			ctx = logger.WithTraceID(ctx, string(h.Value))
		}
	}

	var change Change
	if err := json.Unmarshal(msg.Value, &change); err != nil {
		c.log.WarnContext(ctx, "dropping undecodable change event",
			zap.String("topic", msg.Topic),
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return
	}
	if err := c.handler(ctx, change); err != nil {
		c.log.ErrorContext(ctx, "change handler failed",
			zap.String("entity", change.Entity),
			zap.Any("id", change.ID),
			zap.Error(err),
		)
	}
}

// Run consumes topic until ctx is done, rejoining the group after every
// rebalance.
func (c *ChangeConsumer) Run(ctx context.Context, group sarama.ConsumerGroup, topic string) error {
	for {
		if err := group.Consume(ctx, []string{topic}, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.log.ErrorContext(ctx, "consumer group error", zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// NewConsumerGroup joins cfg.GroupID, starting from the newest offset.
func NewConsumerGroup(cfg *config.KafkaConfig) (sarama.ConsumerGroup, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}
	return group, nil
}
