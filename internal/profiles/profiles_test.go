package profiles

import (
	"context"
	"errors"
	"testing"

	"github.com/reactivities/reactivities/internal/mediator"
	"github.com/reactivities/reactivities/internal/model"
	"github.com/reactivities/reactivities/internal/repository"
)

type fakeStore map[string]*model.Profile

func (s fakeStore) GetProfile(ctx context.Context, username string) (*model.Profile, error) {
	p, ok := s[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return p, nil
}

func TestDetails(t *testing.T) {
	m := mediator.New(mediator.Validation())
	NewHandlers(fakeStore{
		"bob": {Username: "bob", DisplayName: "Bob", Image: "https://img/1", Photos: []*model.Photo{{ID: "1", IsMain: true}}},
	}).Register(m)
	ctx := context.Background()

	p, err := mediator.Send[DetailsQuery, *model.Profile](ctx, m, DetailsQuery{Username: "bob"})
	if err != nil {
		t.Fatal(err)
	}
	if p.MainPhoto() == nil || p.Image != "https://img/1" {
		t.Errorf("profile = %+v", p)
	}

	if _, err := mediator.Send[DetailsQuery, *model.Profile](ctx, m, DetailsQuery{Username: "ghost"}); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("error = %v, want ErrProfileNotFound", err)
	}

	var verr *mediator.ValidationError
	if _, err := mediator.Send[DetailsQuery, *model.Profile](ctx, m, DetailsQuery{}); !errors.As(err, &verr) {
		t.Errorf("error = %v, want ValidationError", err)
	}
}
