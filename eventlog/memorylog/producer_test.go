package memorylog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logichill/sagaforge/eventlog"
)

func TestPublish_AssignsIncreasingOffsetsPerAggregate(t *testing.T) {
	p := New(4)
	ctx := context.Background()

	e1 := eventlog.New("StockVerified", "order-1", "Order", nil, nil)
	e2 := eventlog.New("StockReserved", "order-1", "Order", nil, nil)

	part1, off1, err := p.Publish(ctx, "orders.creation", e1)
	require.NoError(t, err)
	part2, off2, err := p.Publish(ctx, "orders.creation", e2)
	require.NoError(t, err)

	assert.Equal(t, part1, part2, "same aggregate id must map to the same partition")
	assert.Equal(t, int64(0), off1)
	assert.Equal(t, int64(1), off2, "offsets within a partition are monotonic")
}

func TestStatistics_CountsByTopicAndEventType(t *testing.T) {
	p := New(2)
	ctx := context.Background()
	require.NoError(t, publishOne(p, ctx, "saga.orchestration", "SagaStarted", "saga-1"))
	require.NoError(t, publishOne(p, ctx, "saga.orchestration", "SagaStarted", "saga-2"))
	require.NoError(t, publishOne(p, ctx, "saga.orchestration", "SagaCompleted", "saga-1"))

	stats := p.Statistics()

	assert.Equal(t, int64(3), stats.ByTopic["saga.orchestration"])
	assert.Equal(t, int64(2), stats.ByEventType["saga.orchestration:SagaStarted"])
	assert.Equal(t, int64(1), stats.ByEventType["saga.orchestration:SagaCompleted"])
}

func publishOne(p *Producer, ctx context.Context, topic, eventType, aggregateID string) error {
	_, _, err := p.Publish(ctx, topic, eventlog.New(eventType, aggregateID, "Saga", nil, nil))
	return err
}
