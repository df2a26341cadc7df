package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/reactivities/reactivities/internal/model"
)

// EventRepository provides database access for activity events.
type EventRepository struct {
	repo *Repository
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(repo *Repository) *EventRepository {
	return &EventRepository{repo: repo}
}

// BulkInsert inserts multiple events with idempotency via ON CONFLICT DO NOTHING.
func (r *EventRepository) BulkInsert(ctx context.Context, events []*model.ActivityEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	query := `
		INSERT INTO activity_events (
			id, event_id, type, activity_id, actor, title, occurred_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`

	for _, event := range events {
		batch.Queue(query,
			event.ID,
			event.EventID,
			string(event.Type),
			event.ActivityID,
			event.Actor,
			nullableString(event.Title),
			event.OccurredAt,
		)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(events); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert event %d: %w", i, err)
		}
	}

	return nil
}

// ListByActivity returns the newest events of an activity first.
func (r *EventRepository) ListByActivity(ctx context.Context, activityID string, limit int) ([]*model.ActivityEvent, error) {
	rows, err := r.repo.pool.Query(ctx, `
		SELECT id, event_id, type, activity_id, actor, COALESCE(title, ''), occurred_at, created_at
		FROM activity_events
		WHERE activity_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2
	`, activityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity events: %w", err)
	}
	defer rows.Close()

	events := make([]*model.ActivityEvent, 0)
	for rows.Next() {
		var e model.ActivityEvent
		var eventType string
		if err := rows.Scan(&e.ID, &e.EventID, &eventType, &e.ActivityID, &e.Actor, &e.Title, &e.OccurredAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity event: %w", err)
		}
		e.Type = model.EventType(eventType)
		events = append(events, &e)
	}

	return events, rows.Err()
}

// nullableString returns nil for empty strings.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
