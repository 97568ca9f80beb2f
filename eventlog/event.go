// Package eventlog is the business-event producer: it appends typed
// events onto partitioned, append-only topics, assigning each event a
// partition (keyed by aggregate_id, to preserve per-aggregate order)
// and a monotonic offset within that partition.
//
// It is grounded in the same envelope-plus-transport split a typical
// event store and message transport pairing uses, but reworked: here
// the envelope is BusinessEvent (not an aggregate-sourcing Event[ID]),
// and ordering is a property of (topic, partition) rather than of a
// single aggregate stream.
package eventlog

import (
	"time"

	"github.com/google/uuid"
)

// BusinessEvent is the canonical event envelope. Created by
// Publish/PublishBatch on append; never mutated afterward.
type BusinessEvent struct {
	EventID       string         `json:"eventId"`
	EventType     string         `json:"eventType"`
	AggregateID   string         `json:"aggregateId"`
	AggregateType string         `json:"aggregateType"`
	Timestamp     time.Time      `json:"timestamp"`
	Version       int            `json:"version"`
	Data          map[string]any `json:"data"`
	Metadata      map[string]any `json:"metadata"`

	Topic     string `json:"topic"`
	Partition int     `json:"partition"`
	Offset    int64   `json:"offset"`
}

// New constructs an event ready to publish; Topic/Partition/Offset are
// filled in by Producer.Publish.
func New(eventType, aggregateID, aggregateType string, data, metadata map[string]any) *BusinessEvent {
	if metadata == nil {
		metadata = make(map[string]any)
	}
	return &BusinessEvent{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Timestamp:     time.Now(),
		Version:       1,
		Data:          data,
		Metadata:      metadata,
	}
}

// WithCorrelation stamps correlationId/sagaId/source onto an event's
// metadata, matching the keys the canonical envelope requires.
func (e *BusinessEvent) WithCorrelation(correlationID, sagaID, sourceService string) *BusinessEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata["correlationId"] = correlationID
	if sagaID != "" {
		e.Metadata["sagaId"] = sagaID
	}
	if sourceService != "" {
		e.Metadata["source"] = sourceService
	}
	return e
}
