// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, tests, etc.
type Recorder interface {
	// HTTP metrics
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)

	// Mediator metrics
	ObserveRequest(request, outcome string, duration time.Duration) // outcome: "success" or "error"

	// Activity metrics
	IncActivityCacheHit()
	IncActivityCacheMiss()
	IncActivityMutation(kind string) // kind: "created", "updated", "deleted", "attendance"

	// Photo metrics
	IncPhotoUpload(provider, status string) // status: "success" or "failed"

	// Event pipeline metrics
	IncEventPublished(status string) // status: "success" or "dropped"
	IncEventProcessed(status string) // status: "success", "failed", "skipped"
	ObserveEventBatchSize(size int)
	ObserveEventBatchDuration(duration time.Duration)
	SetEventQueueDepth(depth int64)
	ObserveEventIngestLag(lag time.Duration)
}
