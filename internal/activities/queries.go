package activities

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/reactivities/reactivities/internal/cache"
	"github.com/reactivities/reactivities/internal/mediator"
	"github.com/reactivities/reactivities/internal/model"
	"github.com/reactivities/reactivities/internal/repository"
)

const (
	maxListLimit      = 100
	defaultEventLimit = 50
	maxEventLimit     = 200
)

// ListQuery lists activities by date. The zero value returns all of them.
type ListQuery struct {
	// Username is the caller, used by IsGoing and IsHost.
	Username  string
	StartDate *time.Time
	IsGoing   bool
	IsHost    bool
	// Limit of zero disables paging.
	Limit  int
	Cursor string
}

// Validate implements mediator.Validator.
func (q ListQuery) Validate() error {
	v := mediator.NewValidationError()
	if q.Limit < 0 || q.Limit > maxListLimit {
		v.Add("limit", fmt.Sprintf("The limit must be between 1 and %d", maxListLimit))
	}
	if (q.IsGoing || q.IsHost) && q.Username == "" {
		v.Add("username", "Filtering by attendance requires a signed in user")
	}
	return v.Err()
}

// ListResult is a page of activities.
type ListResult struct {
	Activities []*model.Activity
	NextCursor string
}

// DetailsQuery fetches one activity with its attendees.
type DetailsQuery struct {
	ID string
}

// EventsQuery reads an activity's change feed, newest first.
type EventsQuery struct {
	ActivityID string
	Limit      int
}

// Validate implements mediator.Validator.
func (q EventsQuery) Validate() error {
	v := mediator.NewValidationError()
	if q.Limit < 0 || q.Limit > maxEventLimit {
		v.Add("limit", fmt.Sprintf("The limit must be between 1 and %d", maxEventLimit))
	}
	return v.Err()
}

// List returns the activities matching q.
func (h *Handlers) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	filter := repository.ActivityFilter{
		StartDate: q.StartDate,
		Username:  q.Username,
		IsGoing:   q.IsGoing,
		IsHost:    q.IsHost,
	}

	activities, next, err := h.store.ListActivities(ctx, filter, q.Cursor, q.Limit)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, ErrInvalidCursor
		}
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	return &ListResult{Activities: activities, NextCursor: next}, nil
}

// Details returns an activity, reading through the cache.
func (h *Handlers) Details(ctx context.Context, q DetailsQuery) (*model.Activity, error) {
	q.ID = canonicalID(q.ID)
	if neg, err := h.cache.IsNegativelyCached(ctx, q.ID); err == nil && neg {
		h.metrics.IncActivityCacheHit()
		return nil, ErrActivityNotFound
	}

	activity, err := h.cache.GetActivity(ctx, q.ID)
	switch {
	case err == nil:
		h.metrics.IncActivityCacheHit()
		return activity, nil
	case !errors.Is(err, cache.ErrCacheMiss):
		h.logger.WarnContext(ctx, "cache read failed",
			slog.String("activity_id", q.ID),
			slog.String("error", err.Error()),
		)
	}
	h.metrics.IncActivityCacheMiss()

	activity, err = h.store.GetActivityByID(ctx, q.ID)
	if err != nil {
		if errors.Is(err, repository.ErrActivityNotFound) {
			if cerr := h.cache.SetNegativeCache(ctx, q.ID); cerr != nil {
				h.logger.WarnContext(ctx, "negative cache write failed", slog.String("error", cerr.Error()))
			}
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	if err := h.cache.SetActivity(ctx, activity); err != nil {
		h.logger.WarnContext(ctx, "cache write failed",
			slog.String("activity_id", q.ID),
			slog.String("error", err.Error()),
		)
	}

	return activity, nil
}

// Events returns the persisted feed. Events outlive deleted activities.
func (h *Handlers) Events(ctx context.Context, q EventsQuery) ([]*model.ActivityEvent, error) {
	limit := q.Limit
	if limit == 0 {
		limit = defaultEventLimit
	}

	events, err := h.events.ListByActivity(ctx, canonicalID(q.ActivityID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}
