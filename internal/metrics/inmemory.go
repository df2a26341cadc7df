package metrics

import (
	"sync"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	HTTPRequests      uint64
	Requests          map[string]uint64 // "<request>:<outcome>"
	ActivityCacheHits uint64
	ActivityCacheMiss uint64
	Mutations         map[string]uint64
	PhotoUploads      map[string]uint64 // "<provider>:<status>"
	EventsPublished   map[string]uint64
	EventsProcessed   map[string]uint64
	EventBatches      uint64
	EventQueueDepth   int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{snap: Snapshot{
		Requests:        make(map[string]uint64),
		Mutations:       make(map[string]uint64),
		PhotoUploads:    make(map[string]uint64),
		EventsPublished: make(map[string]uint64),
		EventsProcessed: make(map[string]uint64),
	}}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.snap
	out.Requests = copyCounts(m.snap.Requests)
	out.Mutations = copyCounts(m.snap.Mutations)
	out.PhotoUploads = copyCounts(m.snap.PhotoUploads)
	out.EventsPublished = copyCounts(m.snap.EventsPublished)
	out.EventsProcessed = copyCounts(m.snap.EventsProcessed)
	return out
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *InMemoryRecorder) update(fn func(s *Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.snap)
}

// ObserveHTTPRequest counts HTTP requests.
func (m *InMemoryRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	m.update(func(s *Snapshot) { s.HTTPRequests++ })
}

// ObserveRequest counts mediator requests by name and outcome.
func (m *InMemoryRecorder) ObserveRequest(request, outcome string, duration time.Duration) {
	m.update(func(s *Snapshot) { s.Requests[request+":"+outcome]++ })
}

// IncActivityCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncActivityCacheHit() {
	m.update(func(s *Snapshot) { s.ActivityCacheHits++ })
}

// IncActivityCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncActivityCacheMiss() {
	m.update(func(s *Snapshot) { s.ActivityCacheMiss++ })
}

// IncActivityMutation counts activity changes by kind.
func (m *InMemoryRecorder) IncActivityMutation(kind string) {
	m.update(func(s *Snapshot) { s.Mutations[kind]++ })
}

// IncPhotoUpload counts uploads by provider and status.
func (m *InMemoryRecorder) IncPhotoUpload(provider, status string) {
	m.update(func(s *Snapshot) { s.PhotoUploads[provider+":"+status]++ })
}

// IncEventPublished counts published events by status.
func (m *InMemoryRecorder) IncEventPublished(status string) {
	m.update(func(s *Snapshot) { s.EventsPublished[status]++ })
}

// IncEventProcessed counts processed events by status.
func (m *InMemoryRecorder) IncEventProcessed(status string) {
	m.update(func(s *Snapshot) { s.EventsProcessed[status]++ })
}

// ObserveEventBatchSize counts batches.
func (m *InMemoryRecorder) ObserveEventBatchSize(size int) {
	m.update(func(s *Snapshot) { s.EventBatches++ })
}

// ObserveEventBatchDuration is ignored in memory.
func (m *InMemoryRecorder) ObserveEventBatchDuration(duration time.Duration) {}

// SetEventQueueDepth records the last reported depth.
func (m *InMemoryRecorder) SetEventQueueDepth(depth int64) {
	m.update(func(s *Snapshot) { s.EventQueueDepth = depth })
}

// ObserveEventIngestLag is ignored in memory.
func (m *InMemoryRecorder) ObserveEventIngestLag(lag time.Duration) {}
