package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/reactivities/reactivities/internal/model"
)

// ErrAlreadyAttending is returned when a user joins an activity twice.
var ErrAlreadyAttending = errors.New("already attending")

// ErrNotAttending is returned when removing a user who is not an attendee.
var ErrNotAttending = errors.New("not attending")

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertAttendee(ctx context.Context, db execer, activityID, username string, isHost bool, joinedAt time.Time) error {
	result, err := db.Exec(ctx, `
		INSERT INTO activity_attendees (activity_id, user_id, is_host, joined_at)
		SELECT $1, id, $3, $4 FROM users WHERE username = $2
	`, activityID, username, isHost, joinedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// AddAttendee records username as a (non-host) attendee.
func (r *Repository) AddAttendee(ctx context.Context, activityID, username string, joinedAt time.Time) error {
	if err := insertAttendee(ctx, r.pool, activityID, username, false, joinedAt); err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			return err
		case isUniqueViolation(err):
			return ErrAlreadyAttending
		case constraintName(err) == "activity_attendees_activity_id_fkey":
			return ErrActivityNotFound
		}
		return fmt.Errorf("failed to add attendee: %w", err)
	}
	return nil
}

// RemoveAttendee removes username from the activity.
func (r *Repository) RemoveAttendee(ctx context.Context, activityID, username string) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM activity_attendees aa
		USING users u
		WHERE aa.user_id = u.id AND aa.activity_id = $1 AND u.username = $2
	`, activityID, username)
	if err != nil {
		return fmt.Errorf("failed to remove attendee: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotAttending
	}
	return nil
}

// ListAttendedActivityIDs returns the activities userID hosts or attends.
func (r *Repository) ListAttendedActivityIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT activity_id FROM activity_attendees WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attended activities: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan attended activities: %w", err)
	}
	return ids, nil
}

// loadAttendees fills Attendees for the given activities with one query.
func (r *Repository) loadAttendees(ctx context.Context, activities []*model.Activity) error {
	if len(activities) == 0 {
		return nil
	}

	byID := make(map[string]*model.Activity, len(activities))
	ids := make([]string, 0, len(activities))
	for _, a := range activities {
		byID[a.ID] = a
		ids = append(ids, a.ID)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT aa.activity_id, u.username, u.display_name, u.bio, COALESCE(p.url, ''), aa.is_host, aa.joined_at
		FROM activity_attendees aa
		JOIN users u ON u.id = aa.user_id
		LEFT JOIN photos p ON p.user_id = u.id AND p.is_main
		WHERE aa.activity_id = ANY($1)
		ORDER BY aa.is_host DESC, aa.joined_at ASC
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load attendees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var activityID string
		var at model.Attendee
		if err := rows.Scan(&activityID, &at.Username, &at.DisplayName, &at.Bio, &at.Image, &at.IsHost, &at.JoinedAt); err != nil {
			return fmt.Errorf("failed to scan attendee: %w", err)
		}
		if a, ok := byID[activityID]; ok {
			a.Attendees = append(a.Attendees, at)
		}
	}

	return rows.Err()
}
