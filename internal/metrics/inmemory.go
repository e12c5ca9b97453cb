package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersCreated          uint64
	UsersUpdated          uint64
	UsersDeleted          uint64
	ListValidationErrors  uint64
	StatsValidationErrors uint64
	StoreCallCount        uint64
	StoreCallTotalNs      int64
}

// InMemoryRecorder stores metrics in memory. It backs the /metrics endpoint
// and is safe for concurrent use.
type InMemoryRecorder struct {
	usersCreated          uint64
	usersUpdated          uint64
	usersDeleted          uint64
	listValidationErrors  uint64
	statsValidationErrors uint64
	storeCallCount        uint64
	storeCallTotalNs      int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		UsersCreated:          atomic.LoadUint64(&m.usersCreated),
		UsersUpdated:          atomic.LoadUint64(&m.usersUpdated),
		UsersDeleted:          atomic.LoadUint64(&m.usersDeleted),
		ListValidationErrors:  atomic.LoadUint64(&m.listValidationErrors),
		StatsValidationErrors: atomic.LoadUint64(&m.statsValidationErrors),
		StoreCallCount:        atomic.LoadUint64(&m.storeCallCount),
		StoreCallTotalNs:      atomic.LoadInt64(&m.storeCallTotalNs),
	}
}

// IncUserCreated increments the created counter.
func (m *InMemoryRecorder) IncUserCreated() {
	atomic.AddUint64(&m.usersCreated, 1)
}

// IncUserUpdated increments the updated counter.
func (m *InMemoryRecorder) IncUserUpdated() {
	atomic.AddUint64(&m.usersUpdated, 1)
}

// IncUserDeleted increments the deleted counter.
func (m *InMemoryRecorder) IncUserDeleted() {
	atomic.AddUint64(&m.usersDeleted, 1)
}

// IncValidationFailure counts rejected query strings per endpoint.
func (m *InMemoryRecorder) IncValidationFailure(endpoint string) {
	switch endpoint {
	case "list":
		atomic.AddUint64(&m.listValidationErrors, 1)
	case "stats":
		atomic.AddUint64(&m.statsValidationErrors, 1)
	}
}

// ObserveStoreDuration records the duration of one store call.
func (m *InMemoryRecorder) ObserveStoreDuration(op string, duration time.Duration) {
	atomic.AddUint64(&m.storeCallCount, 1)
	atomic.AddInt64(&m.storeCallTotalNs, duration.Nanoseconds())
}
