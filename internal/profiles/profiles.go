// Package profiles serves public user profiles.
package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/reactivities/reactivities/internal/mediator"
	"github.com/reactivities/reactivities/internal/model"
	"github.com/reactivities/reactivities/internal/repository"
)

// ErrProfileNotFound is returned for unknown usernames.
var ErrProfileNotFound = errors.New("profile not found")

// Store loads profiles.
type Store interface {
	GetProfile(ctx context.Context, username string) (*model.Profile, error)
}

// DetailsQuery fetches a profile with all photos.
type DetailsQuery struct {
	Username string
}

// Validate implements mediator.Validator.
func (q DetailsQuery) Validate() error {
	v := mediator.NewValidationError()
	v.Required("profile", "username", q.Username)
	return v.Err()
}

// Handlers implements the profile queries.
type Handlers struct {
	store Store
}

// NewHandlers creates profile handlers.
func NewHandlers(store Store) *Handlers {
	return &Handlers{store: store}
}

// Register binds the profile queries to m.
func (h *Handlers) Register(m *mediator.Mediator) {
	mediator.MustRegister(m, mediator.HandlerFunc[DetailsQuery, *model.Profile](h.Details))
}

// Details returns the profile of q.Username.
func (h *Handlers) Details(ctx context.Context, q DetailsQuery) (*model.Profile, error) {
	profile, err := h.store.GetProfile(ctx, q.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}
