package audit

import (
	"sync"

	"github.com/foldnet/foldnet/ledger"
)

// Record is one persisted trail entry. Seq is a per-trail sequence number
// assigned in emission order.
type Record struct {
	Seq   uint64           `json:"seq"`
	Kind  ledger.EventKind `json:"kind"`
	Event ledger.Event     `json:"event"`
}

// MemoryTrail keeps the most recent events in a bounded in-memory log.
type MemoryTrail struct {
	mu      sync.Mutex
	cap     int
	nextSeq uint64
	records []Record
}

// DefaultMemoryTrailCap bounds the in-memory trail when no capacity is given.
const DefaultMemoryTrailCap = 1024

// NewMemoryTrail creates a trail retaining at most capacity records; zero or
// negative means DefaultMemoryTrailCap.
func NewMemoryTrail(capacity int) *MemoryTrail {
	if capacity <= 0 {
		capacity = DefaultMemoryTrailCap
	}
	return &MemoryTrail{cap: capacity}
}

// Emit implements ledger.EventSink.
func (m *MemoryTrail) Emit(e ledger.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSeq++
	m.records = append(m.records, Record{Seq: m.nextSeq, Kind: e.Kind(), Event: e})
	if len(m.records) > m.cap {
		m.records = m.records[len(m.records)-m.cap:]
	}
}

// Records returns the retained records in emission order.
func (m *MemoryTrail) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// Len returns the number of retained records.
func (m *MemoryTrail) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
