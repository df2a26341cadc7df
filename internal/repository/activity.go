package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/reactivities/reactivities/internal/model"
)

// Common errors for activity repository operations.
var (
	ErrActivityNotFound = errors.New("activity not found")
	ErrActivityExists   = errors.New("activity already exists")
	ErrInvalidCursor    = errors.New("invalid pagination cursor")
)

// ActivityFilter narrows ListActivities. The zero value lists everything.
type ActivityFilter struct {
	StartDate *time.Time
	// Username is the caller; required by IsGoing and IsHost.
	Username string
	IsGoing  bool
	IsHost   bool
}

// PaginationCursor represents decoded cursor for pagination.
type PaginationCursor struct {
	ID   string    `json:"id"`
	Date time.Time `json:"date"`
}

const activityColumns = `
	a.id, a.title, a.description, a.category, a.date, a.city, a.venue,
	a.is_cancelled, COALESCE(h.username, ''), a.created_at, a.updated_at
`

const activityFrom = `
	FROM activities a
	LEFT JOIN activity_attendees ha ON ha.activity_id = a.id AND ha.is_host
	LEFT JOIN users h ON h.id = ha.user_id
`

// CreateActivity inserts an activity and records hostUsername as its host
// and first attendee in one transaction.
func (r *Repository) CreateActivity(ctx context.Context, activity *model.Activity, hostUsername string) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO activities (id, title, description, category, date, city, venue, is_cancelled, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			activity.ID,
			activity.Title,
			activity.Description,
			activity.Category,
			activity.Date,
			activity.City,
			activity.Venue,
			activity.IsCancelled,
			activity.CreatedAt,
			activity.UpdatedAt,
		)
		if err != nil {
			return err
		}

		return insertAttendee(ctx, tx, activity.ID, hostUsername, true, activity.CreatedAt)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrActivityExists
		}
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("failed to create activity: %w", err)
	}

	return nil
}

// GetActivityByID retrieves an activity with its attendees.
func (r *Repository) GetActivityByID(ctx context.Context, id string) (*model.Activity, error) {
	query := `SELECT ` + activityColumns + activityFrom + ` WHERE a.id = $1`

	activity, err := scanActivity(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to get activity by ID: %w", err)
	}

	if err := r.loadAttendees(ctx, []*model.Activity{activity}); err != nil {
		return nil, err
	}

	return activity, nil
}

// ListActivities returns activities ordered by date ascending.
// A limit of zero returns every matching row and no cursor; a positive
// limit pages with an opaque keyset cursor.
func (r *Repository) ListActivities(ctx context.Context, filter ActivityFilter, cursor string, limit int) ([]*model.Activity, string, error) {
	var cursorData *PaginationCursor
	if cursor != "" {
		var err error
		cursorData, err = decodeCursor(cursor)
		if err != nil {
			return nil, "", ErrInvalidCursor
		}
	}

	query := `SELECT ` + activityColumns + activityFrom + ` WHERE TRUE`
	args := []any{}
	argIndex := 1

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND a.date >= $%d", argIndex)
		args = append(args, *filter.StartDate)
		argIndex++
	}

	if filter.IsGoing && filter.Username != "" {
		query += fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM activity_attendees ga
			JOIN users gu ON gu.id = ga.user_id
			WHERE ga.activity_id = a.id AND gu.username = $%d)`, argIndex)
		args = append(args, filter.Username)
		argIndex++
	}

	if filter.IsHost && filter.Username != "" {
		query += fmt.Sprintf(" AND h.username = $%d", argIndex)
		args = append(args, filter.Username)
		argIndex++
	}

	if cursorData != nil {
		query += fmt.Sprintf(" AND (a.date, a.id) > ($%d, $%d)", argIndex, argIndex+1)
		args = append(args, cursorData.Date, cursorData.ID)
		argIndex += 2
	}

	query += " ORDER BY a.date ASC, a.id ASC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, limit+1) // Fetch one extra to determine hasMore
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	activities := make([]*model.Activity, 0)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, activity)
	}

	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating activities: %w", err)
	}

	var nextCursor string
	if limit > 0 && len(activities) > limit {
		activities = activities[:limit]
		last := activities[len(activities)-1]
		nextCursor = encodeCursor(&PaginationCursor{ID: last.ID, Date: last.Date})
	}

	if err := r.loadAttendees(ctx, activities); err != nil {
		return nil, "", err
	}

	return activities, nextCursor, nil
}

// UpdateActivity updates an activity's mutable fields.
func (r *Repository) UpdateActivity(ctx context.Context, activity *model.Activity) error {
	query := `
		UPDATE activities
		SET title = $2, description = $3, category = $4, date = $5, city = $6, venue = $7,
		    is_cancelled = $8, updated_at = $9
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		activity.ID,
		activity.Title,
		activity.Description,
		activity.Category,
		activity.Date,
		activity.City,
		activity.Venue,
		activity.IsCancelled,
		activity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrActivityNotFound
	}

	return nil
}

// DeleteActivity removes an activity and its attendance rows.
func (r *Repository) DeleteActivity(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM activities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrActivityNotFound
	}

	return nil
}

// scanActivity scans a single row into an Activity model.
func scanActivity(row pgx.Row) (*model.Activity, error) {
	var a model.Activity
	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Description,
		&a.Category,
		&a.Date,
		&a.City,
		&a.Venue,
		&a.IsCancelled,
		&a.HostUsername,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	a.Attendees = []model.Attendee{}
	return &a, err
}

// encodeCursor encodes pagination cursor to base64.
func encodeCursor(cursor *PaginationCursor) string {
	data, _ := json.Marshal(cursor)
	return base64.URLEncoding.EncodeToString(data)
}

// decodeCursor decodes base64 pagination cursor.
func decodeCursor(s string) (*PaginationCursor, error) {
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}

	var cursor PaginationCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, err
	}
	if cursor.ID == "" {
		return nil, errors.New("cursor missing id")
	}

	return &cursor, nil
}
