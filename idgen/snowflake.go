// Package idgen provides distributed id generation (snowflake algorithm)
// for saga transitions, where a compact, sortable, high-throughput id
// matters more than global uniqueness guarantees (saga/event ids use
// uuid instead; see the default generator's use for SagaTransition.TransitionID
// in orchestrator and compensation).
package idgen

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// epoch is 2023-01-01 00:00:00 UTC; timestamps are milliseconds since then.
	epoch int64 = 1672531200000

	workerIDBits     = 5
	datacenterIDBits = 5
	sequenceBits     = 12

	maxWorkerID     = -1 ^ (-1 << workerIDBits)     // 31
	maxDatacenterID = -1 ^ (-1 << datacenterIDBits) // 31
	maxSequence     = -1 ^ (-1 << sequenceBits)     // 4095

	workerIDShift      = sequenceBits
	datacenterIDShift  = sequenceBits + workerIDBits
	timestampLeftShift = sequenceBits + workerIDBits + datacenterIDBits

	DefaultDatacenterID int64 = 1
	DefaultWorkerID     int64 = 1
)

// Generator produces 64-bit, time-ordered ids: timestamp, datacenter,
// worker, and a per-millisecond sequence packed into one int64.
type Generator struct {
	mux           sync.Mutex
	datacenterID  int64
	workerID      int64
	sequence      int64
	lastTimestamp int64
}

// NewGenerator builds a Generator for one (datacenterID, workerID)
// pair; both must fit in 5 bits.
func NewGenerator(datacenterID, workerID int64) (*Generator, error) {
	if datacenterID < 0 || datacenterID > maxDatacenterID {
		return nil, errors.New("datacenter ID out of range")
	}
	if workerID < 0 || workerID > maxWorkerID {
		return nil, errors.New("worker ID out of range")
	}

	return &Generator{
		datacenterID:  datacenterID,
		workerID:      workerID,
		sequence:      0,
		lastTimestamp: -1,
	}, nil
}

// NextID returns the next id, blocking briefly if the per-millisecond
// sequence has been exhausted, and erroring if the system clock moved
// backwards since the last call.
func (g *Generator) NextID() (int64, error) {
	g.mux.Lock()
	defer g.mux.Unlock()

	now := time.Now().UnixNano() / 1e6

	if now < g.lastTimestamp {
		return 0, errors.New("clock moved backwards, refusing to generate id")
	}

	if now == g.lastTimestamp {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			for now <= g.lastTimestamp {
				now = time.Now().UnixNano() / 1e6
			}
		}
	} else {
		g.sequence = 0
	}

	g.lastTimestamp = now

	id := ((now - epoch) << timestampLeftShift) |
		(g.datacenterID << datacenterIDShift) |
		(g.workerID << workerIDShift) |
		g.sequence

	return id, nil
}

// Generate is NextID with the (effectively unreachable outside of a
// clock rollback) error discarded, for callers like a TransitionID
// field that have no error return to propagate it through.
func (g *Generator) Generate() int64 {
	id, _ := g.NextID()
	return id
}

// Parse decomposes an id back into its component fields.
func Parse(id int64) map[string]int64 {
	return map[string]int64{
		"timestamp":    (id >> timestampLeftShift) + epoch,
		"datacenterID": (id >> datacenterIDShift) & maxDatacenterID,
		"workerID":     (id >> workerIDShift) & maxWorkerID,
		"sequence":     id & maxSequence,
	}
}

var defaultGenerator atomic.Pointer[Generator]

func init() {
	gen, _ := NewGenerator(DefaultDatacenterID, DefaultWorkerID)
	defaultGenerator.Store(gen)
}

// NextID generates an id from the package-level default generator.
func NextID() (int64, error) {
	gen := defaultGenerator.Load()
	if gen == nil {
		return 0, errors.New("default generator is not initialized")
	}
	return gen.NextID()
}

// Generate generates an id from the package-level default generator,
// discarding the (effectively unreachable) error.
func Generate() int64 {
	gen := defaultGenerator.Load()
	if gen == nil {
		return 0
	}
	return gen.Generate()
}

// SetDefaultGenerator replaces the package-level default generator,
// for a process that needs a non-default (datacenterID, workerID)
// pair to keep ids unique across its fleet.
func SetDefaultGenerator(datacenterID, workerID int64) error {
	gen, err := NewGenerator(datacenterID, workerID)
	if err != nil {
		return err
	}
	defaultGenerator.Store(gen)
	return nil
}
