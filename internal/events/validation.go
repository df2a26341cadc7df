package events

import (
	"fmt"

	"github.com/reactivities/reactivities/internal/model"
)

const (
	maxIDLength    = 64
	maxActorLength = 64
	maxTitleLength = 200
)

// ValidatePayload validates stream payload fields.
func ValidatePayload(payload Payload) error {
	if !model.IsValidEventType(model.EventType(payload.Type)) {
		return fmt.Errorf("unknown event type %q", payload.Type)
	}
	if payload.ActivityID == "" {
		return fmt.Errorf("activity_id is required")
	}
	if len(payload.ActivityID) > maxIDLength {
		return fmt.Errorf("activity_id too long")
	}
	if payload.Actor == "" {
		return fmt.Errorf("actor is required")
	}
	if len(payload.Actor) > maxActorLength {
		return fmt.Errorf("actor too long")
	}
	if len(payload.Title) > maxTitleLength {
		return fmt.Errorf("title too long")
	}
	if payload.OccurredAt <= 0 {
		return fmt.Errorf("occurred_at must be set")
	}
	return nil
}
