package activities

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/reactivities/reactivities/internal/model"
	"github.com/reactivities/reactivities/internal/repository"
)

// CreateCommand creates an activity hosted by Username. An empty
// Activity.ID is replaced with a new UUID.
type CreateCommand struct {
	Activity model.Activity
	Username string
}

// Validate implements mediator.Validator.
func (c CreateCommand) Validate() error {
	return validateActivity(&c.Activity)
}

// EditCommand replaces the editable fields of an existing activity.
type EditCommand struct {
	Activity model.Activity
	Username string
}

// Validate implements mediator.Validator.
func (c EditCommand) Validate() error {
	return validateActivity(&c.Activity)
}

// SaveCommand is a form submission: create without an id, edit with one.
type SaveCommand struct {
	Activity model.Activity
	Username string
}

// Validate implements mediator.Validator.
func (c SaveCommand) Validate() error {
	return validateActivity(&c.Activity)
}

// DeleteCommand removes an activity. Only the host may delete.
type DeleteCommand struct {
	ID       string
	Username string
}

// UpdateAttendanceCommand toggles Username's relationship to the activity.
// The host cancels or reactivates, an attendee leaves, anyone else joins.
type UpdateAttendanceCommand struct {
	ID       string
	Username string
}

// Create stores a new activity with the caller as host.
func (h *Handlers) Create(ctx context.Context, cmd CreateCommand) (*model.Activity, error) {
	now := h.now()
	activity := &model.Activity{ID: canonicalID(cmd.Activity.ID)}
	activity.ApplyEdit(&cmd.Activity)
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	activity.CreatedAt = now
	activity.UpdatedAt = now

	if err := h.store.CreateActivity(ctx, activity, cmd.Username); err != nil {
		if mapped := mapStoreError(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}

	h.metrics.IncActivityMutation("created")
	h.publish(model.EventActivityCreated, activity, cmd.Username)
	// A stale negative entry would hide the new activity.
	h.invalidate(ctx, activity.ID)

	return h.reload(ctx, activity)
}

// Edit updates an activity the caller hosts.
func (h *Handlers) Edit(ctx context.Context, cmd EditCommand) (*model.Activity, error) {
	activity, err := h.hostedActivity(ctx, canonicalID(cmd.Activity.ID), cmd.Username)
	if err != nil {
		return nil, err
	}

	activity.ApplyEdit(&cmd.Activity)
	activity.UpdatedAt = h.now()

	if err := h.store.UpdateActivity(ctx, activity); err != nil {
		if errors.Is(err, repository.ErrActivityNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to update activity: %w", err)
	}

	h.invalidate(ctx, activity.ID)
	h.metrics.IncActivityMutation("updated")
	h.publish(model.EventActivityUpdated, activity, cmd.Username)

	return activity, nil
}

// Save routes a form submission to Create or Edit.
func (h *Handlers) Save(ctx context.Context, cmd SaveCommand) (*model.Activity, error) {
	if cmd.Activity.ID == "" {
		return h.Create(ctx, CreateCommand(cmd))
	}
	return h.Edit(ctx, EditCommand(cmd))
}

// Delete removes an activity the caller hosts.
func (h *Handlers) Delete(ctx context.Context, cmd DeleteCommand) (struct{}, error) {
	activity, err := h.hostedActivity(ctx, canonicalID(cmd.ID), cmd.Username)
	if err != nil {
		return struct{}{}, err
	}

	if err := h.store.DeleteActivity(ctx, activity.ID); err != nil {
		if errors.Is(err, repository.ErrActivityNotFound) {
			return struct{}{}, ErrActivityNotFound
		}
		return struct{}{}, fmt.Errorf("failed to delete activity: %w", err)
	}

	h.invalidate(ctx, activity.ID)
	h.metrics.IncActivityMutation("deleted")
	h.publish(model.EventActivityDeleted, activity, cmd.Username)

	return struct{}{}, nil
}

// UpdateAttendance applies the caller's attendance toggle.
func (h *Handlers) UpdateAttendance(ctx context.Context, cmd UpdateAttendanceCommand) (*model.Activity, error) {
	activity, err := h.getForWrite(ctx, canonicalID(cmd.ID))
	if err != nil {
		return nil, err
	}

	var eventType model.EventType
	switch {
	case activity.IsHost(cmd.Username):
		activity.IsCancelled = !activity.IsCancelled
		activity.UpdatedAt = h.now()
		if err := h.store.UpdateActivity(ctx, activity); err != nil {
			return nil, fmt.Errorf("failed to update activity: %w", mapStoreError(err))
		}
		eventType = model.EventActivityReactivated
		if activity.IsCancelled {
			eventType = model.EventActivityCancelled
		}

	case activity.IsAttending(cmd.Username):
		if err := h.store.RemoveAttendee(ctx, activity.ID, cmd.Username); err != nil && !errors.Is(err, repository.ErrNotAttending) {
			return nil, fmt.Errorf("failed to leave activity: %w", err)
		}
		eventType = model.EventAttendanceLeft

	default:
		if activity.IsCancelled {
			return nil, ErrActivityCancelled
		}
		err := h.store.AddAttendee(ctx, activity.ID, cmd.Username, h.now())
		if err != nil && !errors.Is(err, repository.ErrAlreadyAttending) {
			if mapped := mapStoreError(err); mapped != err {
				return nil, mapped
			}
			return nil, fmt.Errorf("failed to join activity: %w", err)
		}
		eventType = model.EventAttendanceJoined
	}

	h.invalidate(ctx, activity.ID)
	h.metrics.IncActivityMutation("attendance")
	h.publish(eventType, activity, cmd.Username)

	return h.reload(ctx, activity)
}

// hostedActivity loads id and checks that username hosts it.
func (h *Handlers) hostedActivity(ctx context.Context, id, username string) (*model.Activity, error) {
	activity, err := h.getForWrite(ctx, id)
	if err != nil {
		return nil, err
	}
	if !activity.IsHost(username) {
		return nil, ErrNotHost
	}
	return activity, nil
}

// getForWrite reads from the database, never the cache.
func (h *Handlers) getForWrite(ctx context.Context, id string) (*model.Activity, error) {
	activity, err := h.store.GetActivityByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrActivityNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return activity, nil
}

// reload re-reads the activity so the response carries current attendees.
func (h *Handlers) reload(ctx context.Context, activity *model.Activity) (*model.Activity, error) {
	fresh, err := h.store.GetActivityByID(ctx, activity.ID)
	if err != nil {
		if errors.Is(err, repository.ErrActivityNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to reload activity: %w", err)
	}
	return fresh, nil
}
