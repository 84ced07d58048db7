package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Gopher0727/AltMur/config"
	logger "github.com/Gopher0727/AltMur/middleware/log"
)

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func claimOf(msgs ...*sarama.ConsumerMessage) *fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)
	return &fakeClaim{messages: ch}
}

func encode(t *testing.T, change Change) []byte {
	t.Helper()
	b, err := json.Marshal(change)
	require.NoError(t, err)
	return b
}

func TestChangeConsumer_ConsumeClaim(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	var (
		got    []Change
		traces []string
	)
	handler := func(ctx context.Context, change Change) error {
		got = append(got, change)
		traces = append(traces, logger.GetTraceID(ctx))
		if change.Entity == "Ban" {
			return errors.New("handler failed")
		}
		return nil
	}
	consumer := NewChangeConsumer(handler, logger.New(zap.New(core)))

	claim := claimOf(
		&sarama.ConsumerMessage{
			Offset:  1,
			Value:   encode(t, Change{Entity: "User", Table: "users", Op: OpCreate, ID: 7}),
			Headers: []*sarama.RecordHeader{{Key: []byte(logger.TraceHeader), Value: []byte("trace-1")}},
		},
		&sarama.ConsumerMessage{Offset: 2, Value: []byte("{not json")},
		&sarama.ConsumerMessage{Offset: 3, Value: encode(t, Change{Entity: "Ban", Op: OpDelete, ID: 1})},
	)
	session := &fakeSession{ctx: context.Background()}

	require.NoError(t, consumer.ConsumeClaim(session, claim))

	assert.Equal(t, []int64{1, 2, 3}, session.marked)
	require.Len(t, got, 2)
	assert.Equal(t, "User", got[0].Entity)
	assert.Equal(t, OpCreate, got[0].Op)
	assert.EqualValues(t, 7, got[0].ID)
	assert.Equal(t, "trace-1", traces[0])

	assert.Equal(t, 1, logs.FilterMessage("dropping undecodable change event").Len())
	assert.Equal(t, 1, logs.FilterMessage("change handler failed").Len())
}

func TestChangeConsumer_StopsWhenSessionEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	consumer := NewChangeConsumer(func(context.Context, Change) error { return nil }, logger.NewNop())
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage)}

	assert.NoError(t, consumer.ConsumeClaim(&fakeSession{ctx: ctx}, claim))
}

func TestNewConsumerGroup_NoBrokers(t *testing.T) {
	_, err := NewConsumerGroup(&config.KafkaConfig{GroupID: "g"})
	assert.EqualError(t, err, "kafka brokers are not configured")
}

type fakeGroup struct {
	sarama.ConsumerGroup
	calls  int
	cancel context.CancelFunc
}

func (g *fakeGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	g.calls++
	if g.calls == 1 {
		return errors.New("rebalance in progress")
	}
	g.cancel()
	return nil
}

func TestChangeConsumer_Run(t *testing.T) {
	t.Run("rejoins after an error until cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		group := &fakeGroup{cancel: cancel}

		consumer := NewChangeConsumer(func(context.Context, Change) error { return nil }, logger.NewNop())
		require.NoError(t, consumer.Run(ctx, group, "changes"))
		assert.Equal(t, 2, group.calls)
	})
}
