package eventlog

import "context"

// Producer is the business-event producer contract. Publish failures
// must be treated by the caller as a step failure: the event must
// precede the saga's state commit, so a producer that cannot durably
// append must say so rather than silently drop.
type Producer interface {
	// Publish appends one event to topic, assigns it a partition (keyed
	// by event.AggregateID) and the next offset on that partition, and
	// returns both. It never blocks on consumer presence.
	Publish(ctx context.Context, topic string, event *BusinessEvent) (partition int, offset int64, err error)

	// PublishBatch appends events to topic in order. memorylog holds one
	// lock for the whole batch; redisstream and natsstream publish the
	// events one at a time. Every backend stops at the first error and
	// does not roll back the events already appended.
	PublishBatch(ctx context.Context, topic string, events []*BusinessEvent) error

	// Statistics returns per-topic, per-event-type publish counts.
	Statistics() Statistics

	// Close releases backend resources (connections, goroutines).
	Close() error
}

// Statistics is the per-topic/per-event-type counter snapshot exposed
// by GET /saga/events/statistics.
type Statistics struct {
	// ByTopic is topic -> total event count.
	ByTopic map[string]int64
	// ByEventType is "topic:eventType" -> count.
	ByEventType map[string]int64
}
