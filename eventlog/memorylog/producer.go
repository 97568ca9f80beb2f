// Package memorylog is an in-process eventlog.Producer: a synchronous,
// mutex-protected partitioned log, used by tests and by the
// coordinator when no external stream backend is configured. Partition
// assignment and append-order bookkeeping follow the usual
// mutex+map-of-slices idiom for an in-memory transport or event store,
// simplified to a single global lock since a coordination core's event
// volume does not warrant per-partition striping.
package memorylog

import (
	"context"
	"sync"

	"github.com/logichill/sagaforge/eventlog"
)

// Producer is an in-memory eventlog.Producer with a fixed partition
// count per topic.
type Producer struct {
	mu         sync.Mutex
	partitions int
	topics     map[string][][]*eventlog.BusinessEvent // topic -> partition -> ordered events
	byTopic    map[string]int64
	byEvent    map[string]int64
}

// New creates an in-memory producer with partitionsPerTopic partitions
// per topic (default 4 if <= 0).
func New(partitionsPerTopic int) *Producer {
	if partitionsPerTopic <= 0 {
		partitionsPerTopic = 4
	}
	return &Producer{
		partitions: partitionsPerTopic,
		topics:     make(map[string][][]*eventlog.BusinessEvent),
		byTopic:    make(map[string]int64),
		byEvent:    make(map[string]int64),
	}
}

func (p *Producer) Publish(ctx context.Context, topic string, event *eventlog.BusinessEvent) (int, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.publishLocked(topic, event)
}

func (p *Producer) publishLocked(topic string, event *eventlog.BusinessEvent) (int, int64, error) {
	parts, ok := p.topics[topic]
	if !ok {
		parts = make([][]*eventlog.BusinessEvent, p.partitions)
		p.topics[topic] = parts
	}
	partition := partitionFor(event.AggregateID, p.partitions)
	offset := int64(len(parts[partition]))
	event.Topic = topic
	event.Partition = partition
	event.Offset = offset
	parts[partition] = append(parts[partition], event)

	p.byTopic[topic]++
	p.byEvent[topic+":"+event.EventType]++
	return partition, offset, nil
}

func (p *Producer) PublishBatch(ctx context.Context, topic string, events []*eventlog.BusinessEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range events {
		if _, _, err := p.publishLocked(topic, e); err != nil {
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

func (p *Producer) Close() error { return nil }

// Events returns a copy of every event appended to topic, in partition
// order then offset order, for test assertions.
func (p *Producer) Events(topic string) []*eventlog.BusinessEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*eventlog.BusinessEvent
	for _, part := range p.topics[topic] {
		out = append(out, part...)
	}
	return out
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

var _ eventlog.Producer = (*Producer)(nil)
