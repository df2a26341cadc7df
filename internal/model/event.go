package model

import (
	"slices"
	"time"
)

// EventType names a change to an activity.
type EventType string

const (
	EventActivityCreated     EventType = "activity.created"
	EventActivityUpdated     EventType = "activity.updated"
	EventActivityDeleted     EventType = "activity.deleted"
	EventActivityCancelled   EventType = "activity.cancelled"
	EventActivityReactivated EventType = "activity.reactivated"
	EventAttendanceJoined    EventType = "attendance.joined"
	EventAttendanceLeft      EventType = "attendance.left"
)

// ValidEventTypes contains all valid event types.
var ValidEventTypes = []EventType{
	EventActivityCreated,
	EventActivityUpdated,
	EventActivityDeleted,
	EventActivityCancelled,
	EventActivityReactivated,
	EventAttendanceJoined,
	EventAttendanceLeft,
}

// IsValidEventType checks if an event type is valid.
func IsValidEventType(et EventType) bool {
	return slices.Contains(ValidEventTypes, et)
}

// ActivityEvent is one entry of an activity's change feed.
type ActivityEvent struct {
	ID         string    `json:"id"`       // ULID (time-sortable)
	EventID    string    `json:"event_id"` // Idempotency key (Redis stream ID)
	Type       EventType `json:"type"`
	ActivityID string    `json:"activity_id"`
	Actor      string    `json:"actor"` // Username that caused the change
	Title      string    `json:"title,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}
