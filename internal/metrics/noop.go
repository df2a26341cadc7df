package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// ObserveHTTPRequest is a no-op.
func (n *NoopRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {}

// ObserveRequest is a no-op.
func (n *NoopRecorder) ObserveRequest(request, outcome string, duration time.Duration) {}

// IncActivityCacheHit is a no-op.
func (n *NoopRecorder) IncActivityCacheHit() {}

// IncActivityCacheMiss is a no-op.
func (n *NoopRecorder) IncActivityCacheMiss() {}

// IncActivityMutation is a no-op.
func (n *NoopRecorder) IncActivityMutation(kind string) {}

// IncPhotoUpload is a no-op.
func (n *NoopRecorder) IncPhotoUpload(provider, status string) {}

// IncEventPublished is a no-op.
func (n *NoopRecorder) IncEventPublished(status string) {}

// IncEventProcessed is a no-op.
func (n *NoopRecorder) IncEventProcessed(status string) {}

// ObserveEventBatchSize is a no-op.
func (n *NoopRecorder) ObserveEventBatchSize(size int) {}

// ObserveEventBatchDuration is a no-op.
func (n *NoopRecorder) ObserveEventBatchDuration(duration time.Duration) {}

// SetEventQueueDepth is a no-op.
func (n *NoopRecorder) SetEventQueueDepth(depth int64) {}

// ObserveEventIngestLag is a no-op.
func (n *NoopRecorder) ObserveEventIngestLag(lag time.Duration) {}
