package photos

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/reactivities/reactivities/internal/mediator"
	"github.com/reactivities/reactivities/internal/metrics"
	"github.com/reactivities/reactivities/internal/model"
	"github.com/reactivities/reactivities/internal/repository"
)

type fakeStore struct {
	photos    map[string]*model.Photo
	attended  map[string][]string
	createErr error
	// beforeCreate runs once ahead of the next CreatePhoto.
	beforeCreate func()
}

func newFakeStore(photos ...*model.Photo) *fakeStore {
	s := &fakeStore{photos: make(map[string]*model.Photo), attended: make(map[string][]string)}
	for _, p := range photos {
		s.photos[p.ID] = p
	}
	return s
}

func (s *fakeStore) CreatePhoto(ctx context.Context, photo *model.Photo) error {
	if hook := s.beforeCreate; hook != nil {
		s.beforeCreate = nil
		hook()
	}
	if s.createErr != nil {
		return s.createErr
	}
	if photo.IsMain {
		for _, p := range s.photos {
			if p.UserID == photo.UserID && p.IsMain {
				return repository.ErrMainPhotoExists
			}
		}
	}
	s.photos[photo.ID] = photo
	return nil
}

func (s *fakeStore) ListAttendedActivityIDs(ctx context.Context, userID string) ([]string, error) {
	return s.attended[userID], nil
}

type fakeActivityCache struct {
	dropped []string
}

func (c *fakeActivityCache) DeleteActivity(ctx context.Context, id string) error {
	c.dropped = append(c.dropped, id)
	return nil
}

func (s *fakeStore) GetPhoto(ctx context.Context, userID, id string) (*model.Photo, error) {
	p, ok := s.photos[id]
	if !ok || p.UserID != userID {
		return nil, repository.ErrPhotoNotFound
	}
	return p, nil
}

func (s *fakeStore) ListPhotosByUser(ctx context.Context, userID string) ([]*model.Photo, error) {
	var out []*model.Photo
	for _, p := range s.photos {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) DeletePhoto(ctx context.Context, userID, id string) error {
	if _, err := s.GetPhoto(ctx, userID, id); err != nil {
		return err
	}
	delete(s.photos, id)
	return nil
}

func (s *fakeStore) SetMainPhoto(ctx context.Context, userID, id string) error {
	if _, err := s.GetPhoto(ctx, userID, id); err != nil {
		return err
	}
	for _, p := range s.photos {
		if p.UserID == userID {
			p.IsMain = p.ID == id
		}
	}
	return nil
}

type fakeAccessor struct {
	next         int
	addErr       error
	deleteResult string
	deleted      []string
	received     []byte
}

func (a *fakeAccessor) AddPhoto(ctx context.Context, file Upload) (*UploadResult, error) {
	if a.addErr != nil {
		return nil, a.addErr
	}
	a.received, _ = io.ReadAll(file.Body)
	a.next++
	id := "p" + string(rune('0'+a.next))
	return &UploadResult{PublicID: id, URL: "https://img.example.com/" + id}, nil
}

func (a *fakeAccessor) DeletePhoto(ctx context.Context, publicID string) (string, error) {
	a.deleted = append(a.deleted, publicID)
	return a.deleteResult, nil
}

func newTestHandlers(store Store, accessor Accessor) (*Handlers, *metrics.InMemoryRecorder) {
	rec := metrics.NewInMemory()
	return NewHandlers(store, accessor, nil, "fake", slog.New(slog.NewTextHandler(io.Discard, nil)), rec), rec
}

func TestAddPhoto_FirstPhotoIsMain(t *testing.T) {
	store := newFakeStore()
	accessor := &fakeAccessor{}
	h, rec := newTestHandlers(store, accessor)
	ctx := context.Background()

	upload := pngUpload()
	first, err := h.AddPhoto(ctx, AddPhotoCommand{UserID: "u1", File: upload})
	if err != nil {
		t.Fatalf("AddPhoto() error = %v", err)
	}
	if !first.IsMain {
		t.Error("first photo should be main")
	}
	// The sniffed header must still reach the host.
	if !bytes.HasPrefix(accessor.received, []byte("\x89PNG")) || int64(len(accessor.received)) != upload.Size {
		t.Errorf("accessor received %d bytes", len(accessor.received))
	}

	second, err := h.AddPhoto(ctx, AddPhotoCommand{UserID: "u1", File: pngUpload()})
	if err != nil {
		t.Fatalf("AddPhoto() error = %v", err)
	}
	if second.IsMain {
		t.Error("second photo should not be main")
	}

	if got := rec.Snapshot().PhotoUploads["fake:success"]; got != 2 {
		t.Errorf("upload metric = %d, want 2", got)
	}
}

func TestAddPhoto_RejectsNonImage(t *testing.T) {
	h, _ := newTestHandlers(newFakeStore(), &fakeAccessor{})
	data := []byte("just some text, not an image")

	_, err := h.AddPhoto(context.Background(), AddPhotoCommand{
		UserID: "u1",
		File:   Upload{Size: int64(len(data)), Body: bytes.NewReader(data)},
	})
	if !errors.Is(err, ErrUnsupportedMediaType) {
		t.Errorf("error = %v, want ErrUnsupportedMediaType", err)
	}
}

func TestAddPhoto_RemovesUploadWhenSaveFails(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("db down")
	accessor := &fakeAccessor{deleteResult: "ok"}
	h, _ := newTestHandlers(store, accessor)

	if _, err := h.AddPhoto(context.Background(), AddPhotoCommand{UserID: "u1", File: pngUpload()}); err == nil {
		t.Fatal("expected error")
	}
	if len(accessor.deleted) != 1 || accessor.deleted[0] != "p1" {
		t.Errorf("deleted = %v, want [p1]", accessor.deleted)
	}
}

func TestAddPhoto_HostFailureCounted(t *testing.T) {
	h, rec := newTestHandlers(newFakeStore(), &fakeAccessor{addErr: &UploadError{Message: "bad"}})

	_, err := h.AddPhoto(context.Background(), AddPhotoCommand{UserID: "u1", File: pngUpload()})
	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("error = %v", err)
	}
	if rec.Snapshot().PhotoUploads["fake:failed"] != 1 {
		t.Error("failed upload not counted")
	}
}

func TestDeletePhoto(t *testing.T) {
	main := &model.Photo{ID: "main", UserID: "u1", IsMain: true}
	other := &model.Photo{ID: "other", UserID: "u1"}

	tests := []struct {
		name         string
		userID       string
		id           string
		deleteResult string
		wantErr      error
	}{
		{"main photo", "u1", "main", "ok", ErrMainPhotoDelete},
		{"not owner", "u2", "other", "ok", ErrPhotoNotFound},
		{"host refused", "u1", "other", "", ErrPhotoDeleteFailed},
		{"success", "u1", "other", "ok", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(&model.Photo{ID: main.ID, UserID: main.UserID, IsMain: true}, &model.Photo{ID: other.ID, UserID: other.UserID})
			h, _ := newTestHandlers(store, &fakeAccessor{deleteResult: tt.deleteResult})

			_, err := h.DeletePhoto(context.Background(), DeletePhotoCommand{UserID: tt.userID, ID: tt.id})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			_, stillThere := store.photos[tt.id]
			if tt.wantErr == nil && stillThere {
				t.Error("photo row not removed")
			}
			if tt.wantErr != nil && !stillThere {
				t.Error("photo row removed on failure")
			}
		})
	}
}

func TestSetMainPhoto(t *testing.T) {
	store := newFakeStore(
		&model.Photo{ID: "a", UserID: "u1", IsMain: true},
		&model.Photo{ID: "b", UserID: "u1"},
	)
	h, _ := newTestHandlers(store, &fakeAccessor{})

	if _, err := h.SetMainPhoto(context.Background(), SetMainPhotoCommand{UserID: "u1", ID: "b"}); err != nil {
		t.Fatalf("SetMainPhoto() error = %v", err)
	}
	if store.photos["a"].IsMain || !store.photos["b"].IsMain {
		t.Error("main photo not switched")
	}

	if _, err := h.SetMainPhoto(context.Background(), SetMainPhotoCommand{UserID: "u1", ID: "zzz"}); !errors.Is(err, ErrPhotoNotFound) {
		t.Errorf("error = %v, want ErrPhotoNotFound", err)
	}
}

func TestAddPhoto_ConcurrentFirstUploadStoredAsNonMain(t *testing.T) {
	store := newFakeStore()
	// Another upload for u1 wins the main slot between list and insert.
	store.beforeCreate = func() {
		store.photos["racer"] = &model.Photo{ID: "racer", UserID: "u1", IsMain: true}
	}
	accessor := &fakeAccessor{deleteResult: "ok"}
	h, _ := newTestHandlers(store, accessor)

	photo, err := h.AddPhoto(context.Background(), AddPhotoCommand{UserID: "u1", File: pngUpload()})
	if err != nil {
		t.Fatalf("AddPhoto() error = %v", err)
	}
	if photo.IsMain {
		t.Error("losing upload should not be main")
	}
	if _, ok := store.photos[photo.ID]; !ok {
		t.Error("losing upload not stored")
	}
	if len(accessor.deleted) != 0 {
		t.Errorf("upload removed from host: %v", accessor.deleted)
	}
}

func TestMainPhotoChangeDropsCachedActivities(t *testing.T) {
	store := newFakeStore(&model.Photo{ID: "a", UserID: "u1", IsMain: true}, &model.Photo{ID: "b", UserID: "u1"})
	store.attended["u1"] = []string{"act-1", "act-2"}
	store.attended["u2"] = []string{"act-3"}
	cache := &fakeActivityCache{}
	h := NewHandlers(store, &fakeAccessor{}, cache, "fake", slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	ctx := context.Background()

	if _, err := h.SetMainPhoto(ctx, SetMainPhotoCommand{UserID: "u1", ID: "b"}); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(cache.dropped, ","); got != "act-1,act-2" {
		t.Errorf("dropped after SetMainPhoto = %q", got)
	}

	cache.dropped = nil
	if _, err := h.AddPhoto(ctx, AddPhotoCommand{UserID: "u1", File: pngUpload()}); err != nil {
		t.Fatal(err)
	}
	if len(cache.dropped) != 0 {
		t.Errorf("non-main upload dropped %v", cache.dropped)
	}

	if _, err := h.AddPhoto(ctx, AddPhotoCommand{UserID: "u2", File: pngUpload()}); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(cache.dropped, ","); got != "act-3" {
		t.Errorf("dropped after first upload = %q", got)
	}
}

func TestAddPhotoCommand_ValidatedThroughMediator(t *testing.T) {
	m := mediator.New(mediator.Validation())
	h, _ := newTestHandlers(newFakeStore(), &fakeAccessor{})
	h.Register(m)

	_, err := mediator.Send[AddPhotoCommand, *model.Photo](context.Background(), m, AddPhotoCommand{UserID: "u1"})
	var verr *mediator.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if verr.Fields["file"] != "The photo file is required" {
		t.Errorf("fields = %v", verr.Fields)
	}
}
