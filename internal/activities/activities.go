// Package activities holds the queries and commands over activities and
// their attendance. Every request is dispatched through the mediator.
package activities

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reactivities/reactivities/internal/mediator"
	"github.com/reactivities/reactivities/internal/metrics"
	"github.com/reactivities/reactivities/internal/model"
	"github.com/reactivities/reactivities/internal/repository"
)

// Application errors.
var (
	ErrActivityNotFound  = errors.New("activity not found")
	ErrActivityExists    = errors.New("activity already exists")
	ErrActivityCancelled = errors.New("activity is cancelled")
	ErrNotHost           = errors.New("only the host can change this activity")
	ErrUnknownUser       = errors.New("user does not exist")
	ErrInvalidCursor     = errors.New("invalid pagination cursor")
)

// Store is the activity persistence the handlers need.
type Store interface {
	CreateActivity(ctx context.Context, activity *model.Activity, hostUsername string) error
	GetActivityByID(ctx context.Context, id string) (*model.Activity, error)
	ListActivities(ctx context.Context, filter repository.ActivityFilter, cursor string, limit int) ([]*model.Activity, string, error)
	UpdateActivity(ctx context.Context, activity *model.Activity) error
	DeleteActivity(ctx context.Context, id string) error
	AddAttendee(ctx context.Context, activityID, username string, joinedAt time.Time) error
	RemoveAttendee(ctx context.Context, activityID, username string) error
}

// EventStore reads the persisted change feed.
type EventStore interface {
	ListByActivity(ctx context.Context, activityID string, limit int) ([]*model.ActivityEvent, error)
}

// Cache holds activity details by id.
type Cache interface {
	GetActivity(ctx context.Context, id string) (*model.Activity, error)
	SetActivity(ctx context.Context, activity *model.Activity) error
	DeleteActivity(ctx context.Context, id string) error
	IsNegativelyCached(ctx context.Context, id string) (bool, error)
	SetNegativeCache(ctx context.Context, id string) error
}

// Publisher emits change events without blocking the request.
type Publisher interface {
	PublishAsync(event model.ActivityEvent)
}

// Handlers implements the activity requests.
type Handlers struct {
	store     Store
	events    EventStore
	cache     Cache
	publisher Publisher
	logger    *slog.Logger
	metrics   metrics.Recorder
	now       func() time.Time
}

// NewHandlers creates activity handlers. recorder may be nil.
func NewHandlers(store Store, events EventStore, cache Cache, publisher Publisher, logger *slog.Logger, recorder metrics.Recorder) *Handlers {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Handlers{
		store:     store,
		events:    events,
		cache:     cache,
		publisher: publisher,
		logger:    logger.With("component", "activities"),
		metrics:   recorder,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register binds every activity request to m.
func (h *Handlers) Register(m *mediator.Mediator) {
	mediator.MustRegister(m, mediator.HandlerFunc[ListQuery, *ListResult](h.List))
	mediator.MustRegister(m, mediator.HandlerFunc[DetailsQuery, *model.Activity](h.Details))
	mediator.MustRegister(m, mediator.HandlerFunc[EventsQuery, []*model.ActivityEvent](h.Events))
	mediator.MustRegister(m, mediator.HandlerFunc[CreateCommand, *model.Activity](h.Create))
	mediator.MustRegister(m, mediator.HandlerFunc[EditCommand, *model.Activity](h.Edit))
	mediator.MustRegister(m, mediator.HandlerFunc[SaveCommand, *model.Activity](h.Save))
	mediator.MustRegister(m, mediator.HandlerFunc[DeleteCommand, struct{}](h.Delete))
	mediator.MustRegister(m, mediator.HandlerFunc[UpdateAttendanceCommand, *model.Activity](h.UpdateAttendance))
}

func (h *Handlers) publish(eventType model.EventType, activity *model.Activity, actor string) {
	if h.publisher == nil {
		return
	}
	h.publisher.PublishAsync(model.ActivityEvent{
		Type:       eventType,
		ActivityID: activity.ID,
		Actor:      actor,
		Title:      activity.Title,
		OccurredAt: h.now(),
	})
}

// invalidate drops the cached details. Failures only cost staleness until
// the TTL expires.
func (h *Handlers) invalidate(ctx context.Context, id string) {
	if err := h.cache.DeleteActivity(ctx, id); err != nil {
		h.logger.WarnContext(ctx, "cache invalidation failed",
			slog.String("activity_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// canonicalID returns id as a lower-case hyphenated UUID. Upper-case,
// braced and urn:uuid: spellings map to the same key. Ids that do not
// parse come back unchanged and fail validation or lookup.
func canonicalID(id string) string {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return id
	}
	return parsed.String()
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, repository.ErrActivityNotFound):
		return ErrActivityNotFound
	case errors.Is(err, repository.ErrActivityExists):
		return ErrActivityExists
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUnknownUser
	case errors.Is(err, repository.ErrInvalidCursor):
		return ErrInvalidCursor
	}
	return err
}
