// Package natsstream is an alternate production eventlog.Producer
// backend over NATS JetStream, adapted from a standard JetStream
// transport: connection/stream bootstrap (ensureStream, AddStream with
// the same retention-policy switch) is kept close to the familiar
// shape, narrowed from a publish-and-subscribe transport to an
// append-only producer, since the coordination core never consumes
// its own event log in-process.
package natsstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/logichill/sagaforge/eventlog"
	"github.com/logichill/sagaforge/logging"
)

// Config configures the JetStream producer.
type Config struct {
	URL        string
	Stream     string // default SAGAFORGE
	Partitions int    // per topic, default 4
	Retention  string // workqueue|limits|interest, default limits
	MaxBytes   int64
	Replicas   int
	Logger     logging.ILogger
	Conn       *nats.Conn
}

// Producer publishes BusinessEvents to JetStream subjects named
// "<stream>.<topic>.<partition>", all captured by a single wildcard stream.
type Producer struct {
	cfg      Config
	logger   logging.ILogger
	conn     *nats.Conn
	js       nats.JetStreamContext
	ownsConn bool

	mu      sync.Mutex
	byTopic map[string]int64
	byEvent map[string]int64
}

// New connects (or reuses cfg.Conn), ensures the stream exists, and
// returns a ready Producer.
func New(cfg Config) (*Producer, error) {
	if cfg.Stream == "" {
		cfg.Stream = "SAGAFORGE"
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.ComponentLogger("eventlog.natsstream")
	}

	p := &Producer{cfg: cfg, logger: cfg.Logger, byTopic: make(map[string]int64), byEvent: make(map[string]int64)}
	if err := p.ensureConnection(); err != nil {
		return nil, err
	}
	if err := p.ensureStream(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Producer) ensureConnection() error {
	if p.cfg.Conn != nil {
		p.conn = p.cfg.Conn
	} else {
		url := p.cfg.URL
		if url == "" {
			url = nats.DefaultURL
		}
		conn, err := nats.Connect(url)
		if err != nil {
			return eventlog.NewUnavailableError("", err)
		}
		p.conn = conn
		p.ownsConn = true
	}
	js, err := p.conn.JetStream()
	if err != nil {
		return eventlog.NewUnavailableError("", err)
	}
	p.js = js
	return nil
}

func (p *Producer) ensureStream() error {
	_, err := p.js.StreamInfo(p.cfg.Stream)
	if err == nil {
		return nil
	}
	if err != nil && !errors.Is(err, nats.ErrStreamNotFound) && !strings.Contains(err.Error(), "stream not found") {
		return eventlog.NewUnavailableError("", err)
	}

	retention := nats.LimitsPolicy
	switch strings.ToLower(p.cfg.Retention) {
	case "workqueue":
		retention = nats.WorkQueuePolicy
	case "interest":
		retention = nats.InterestPolicy
	}
	sc := &nats.StreamConfig{
		Name:      p.cfg.Stream,
		Subjects:  []string{p.cfg.Stream + ".>"},
		Retention: retention,
	}
	if p.cfg.MaxBytes > 0 {
		sc.MaxBytes = p.cfg.MaxBytes
	}
	if p.cfg.Replicas > 0 {
		sc.Replicas = p.cfg.Replicas
	}
	if _, err := p.js.AddStream(sc); err != nil {
		return eventlog.NewUnavailableError("", err)
	}
	return nil
}

func (p *Producer) Publish(ctx context.Context, topic string, event *eventlog.BusinessEvent) (int, int64, error) {
	partition := partitionFor(event.AggregateID, p.cfg.Partitions)
	event.Topic = topic
	event.Partition = partition

	payload, err := json.Marshal(event)
	if err != nil {
		return 0, 0, err
	}

	subject := p.subjectName(topic, partition)
	ack, err := p.js.Publish(subject, payload, nats.Context(ctx))
	if err != nil {
		return 0, 0, eventlog.NewUnavailableError(topic, err)
	}
	event.Offset = int64(ack.Sequence)

	p.mu.Lock()
	p.byTopic[topic]++
	p.byEvent[topic+":"+event.EventType]++
	p.mu.Unlock()

	return partition, event.Offset, nil
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

func (p *Producer) Close() error {
	if p.ownsConn && p.conn != nil {
		p.conn.Close()
	}
	return nil
}

func (p *Producer) subjectName(topic string, partition int) string {
	return fmt.Sprintf("%s.%s.%d", p.cfg.Stream, topic, partition)
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
