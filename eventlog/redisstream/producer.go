// Package redisstream is the recommended production eventlog.Producer
// backend: it appends events as Redis Streams entries, one stream per
// (topic, partition) pair, grounded on the familiar Redis Streams
// transport (XAdd/XReadGroup usage, consumer-group bootstrap,
// exponential read backoff) but reworked from a subscribe/dispatch
// transport into an append-only producer, since the coordination
// core's consumers (other services, audit tooling) read streams
// directly rather than registering in-process handlers.
package redisstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/logichill/sagaforge/eventlog"
	"github.com/logichill/sagaforge/logging"
)

// Config configures the Redis Streams producer.
type Config struct {
	Client     *redis.Client
	Addr       string
	Username   string
	Password   string
	DB         int
	Partitions int // per topic, default 4
	Logger     logging.ILogger
}

// Producer publishes BusinessEvents onto Redis Streams named
// "<topic>:<partition>". Partition assignment is the same FNV-1a hash
// of aggregate_id used by memorylog, so switching backends does not
// change which events land together.
type Producer struct {
	client *redis.Client
	parts  int
	logger logging.ILogger

	mu      sync.Mutex
	byTopic map[string]int64
	byEvent map[string]int64
}

// New connects (or reuses cfg.Client) and returns a ready Producer.
func New(cfg Config) (*Producer, error) {
	client := cfg.Client
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}
	parts := cfg.Partitions
	if parts <= 0 {
		parts = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.ComponentLogger("eventlog.redisstream")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, eventlogUnavailable("", err)
	}

	return &Producer{
		client:  client,
		parts:   parts,
		logger:  logger,
		byTopic: make(map[string]int64),
		byEvent: make(map[string]int64),
	}, nil
}

func (p *Producer) Publish(ctx context.Context, topic string, event *eventlog.BusinessEvent) (int, int64, error) {
	partition := partitionFor(event.AggregateID, p.parts)
	event.Topic = topic
	event.Partition = partition

	payload, err := json.Marshal(event)
	if err != nil {
		return 0, 0, err
	}

	streamKey := streamName(topic, partition)
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]any{"event": payload},
	}).Result()
	if err != nil {
		return 0, 0, eventlogUnavailable(topic, err)
	}

	offset := streamIDToOffset(id)
	event.Offset = offset

	p.mu.Lock()
	p.byTopic[topic]++
	p.byEvent[topic+":"+event.EventType]++
	p.mu.Unlock()

	return partition, offset, nil
}

func (p *Producer) PublishBatch(ctx context.Context, topic string, events []*eventlog.BusinessEvent) error {
	for _, e := range events {
		if _, _, err := p.Publish(ctx, topic, e); err != nil {
			return err
		}
	}
	return nil
}

func (p *Producer) Statistics() eventlog.Statistics {
	p.mu.Lock()
	defer p.mu.Unlock()
	stats := eventlog.Statistics{
		ByTopic:     make(map[string]int64, len(p.byTopic)),
		ByEventType: make(map[string]int64, len(p.byEvent)),
	}
	for k, v := range p.byTopic {
		stats.ByTopic[k] = v
	}
	for k, v := range p.byEvent {
		stats.ByEventType[k] = v
	}
	return stats
}

func (p *Producer) Close() error { return p.client.Close() }

func streamName(topic string, partition int) string {
	return fmt.Sprintf("%s:%d", topic, partition)
}

// streamIDToOffset turns a Redis Stream id ("<ms>-<seq>") into a
// monotonic int64 offset; the sequence component alone is not globally
// increasing across milliseconds, so the millisecond part is folded in.
func streamIDToOffset(streamID string) int64 {
	var ms, seq int64
	_, _ = fmt.Sscanf(streamID, "%d-%d", &ms, &seq)
	return ms*1000 + seq
}

func partitionFor(aggregateID string, partitions int) int {
	if aggregateID == "" {
		return 0
	}
	var h uint32 = 2166136261
	for i := 0; i < len(aggregateID); i++ {
		h ^= uint32(aggregateID[i])
		h *= 16777619
	}
	return int(h % uint32(partitions))
}

func eventlogUnavailable(topic string, cause error) error {
	return eventlog.NewUnavailableError(topic, cause)
}

var _ eventlog.Producer = (*Producer)(nil)
