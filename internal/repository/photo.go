package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/reactivities/reactivities/internal/model"
)

// Photo errors.
var (
	ErrPhotoNotFound   = errors.New("photo not found")
	ErrMainPhotoExists = errors.New("user already has a main photo")
)

// CreatePhoto stores photo metadata after a successful upload.
func (r *Repository) CreatePhoto(ctx context.Context, photo *model.Photo) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO photos (id, user_id, url, is_main, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, photo.ID, photo.UserID, photo.URL, photo.IsMain, photo.CreatedAt)
	if err != nil {
		if constraintName(err) == "idx_photos_one_main" {
			return ErrMainPhotoExists
		}
		return fmt.Errorf("failed to create photo: %w", err)
	}
	return nil
}

// GetPhoto retrieves a photo owned by userID.
func (r *Repository) GetPhoto(ctx context.Context, userID, id string) (*model.Photo, error) {
	var p model.Photo
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, url, is_main, created_at
		FROM photos
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&p.ID, &p.UserID, &p.URL, &p.IsMain, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPhotoNotFound
		}
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	return &p, nil
}

// ListPhotosByUser returns a user's photos, oldest first.
func (r *Repository) ListPhotosByUser(ctx context.Context, userID string) ([]*model.Photo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, url, is_main, created_at
		FROM photos
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	photos := make([]*model.Photo, 0)
	for rows.Next() {
		var p model.Photo
		if err := rows.Scan(&p.ID, &p.UserID, &p.URL, &p.IsMain, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, &p)
	}

	return photos, rows.Err()
}

// DeletePhoto removes a photo row owned by userID.
func (r *Repository) DeletePhoto(ctx context.Context, userID, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM photos WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPhotoNotFound
	}
	return nil
}

// SetMainPhoto makes id the user's only main photo.
func (r *Repository) SetMainPhoto(ctx context.Context, userID, id string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE photos SET is_main = FALSE WHERE user_id = $1 AND is_main`, userID); err != nil {
			return fmt.Errorf("failed to clear main photo: %w", err)
		}
		result, err := tx.Exec(ctx, `UPDATE photos SET is_main = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
		if err != nil {
			return fmt.Errorf("failed to set main photo: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrPhotoNotFound
		}
		return nil
	})
}
