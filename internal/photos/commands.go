package photos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/reactivities/reactivities/internal/mediator"
	"github.com/reactivities/reactivities/internal/metrics"
	"github.com/reactivities/reactivities/internal/model"
	"github.com/reactivities/reactivities/internal/repository"
)

// Photo errors.
var (
	ErrPhotoNotFound        = errors.New("photo not found")
	ErrMainPhotoDelete      = errors.New("cannot delete main photo")
	ErrPhotoDeleteFailed    = errors.New("problem deleting photo from host")
	ErrUnsupportedMediaType = errors.New("only image uploads are supported")
)

const sniffLength = 512

// Store is the persistence the photo handlers need.
type Store interface {
	CreatePhoto(ctx context.Context, photo *model.Photo) error
	GetPhoto(ctx context.Context, userID, id string) (*model.Photo, error)
	ListPhotosByUser(ctx context.Context, userID string) ([]*model.Photo, error)
	DeletePhoto(ctx context.Context, userID, id string) error
	SetMainPhoto(ctx context.Context, userID, id string) error
	ListAttendedActivityIDs(ctx context.Context, userID string) ([]string, error)
}

// ActivityCache drops cached activity details, which carry each
// attendee's main photo URL.
type ActivityCache interface {
	DeleteActivity(ctx context.Context, id string) error
}

// AddPhotoCommand uploads a photo for UserID.
type AddPhotoCommand struct {
	UserID string
	File   Upload
}

// Validate implements mediator.Validator.
func (c AddPhotoCommand) Validate() error {
	v := mediator.NewValidationError()
	if c.File.Body == nil || c.File.Size == 0 {
		v.Add("file", "The photo file is required")
	}
	return v.Err()
}

// DeletePhotoCommand removes one of UserID's photos.
type DeletePhotoCommand struct {
	UserID string
	ID     string
}

// SetMainPhotoCommand makes a photo the user's main image.
type SetMainPhotoCommand struct {
	UserID string
	ID     string
}

// Handlers implements the photo commands.
type Handlers struct {
	store    Store
	accessor Accessor
	cache    ActivityCache
	provider string
	logger   *slog.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewHandlers creates photo handlers. provider labels upload metrics;
// cache may be nil.
func NewHandlers(store Store, accessor Accessor, cache ActivityCache, provider string, logger *slog.Logger, recorder metrics.Recorder) *Handlers {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Handlers{
		store:    store,
		accessor: accessor,
		cache:    cache,
		provider: provider,
		logger:   logger.With("component", "photos"),
		metrics:  recorder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register binds the photo commands to m.
func (h *Handlers) Register(m *mediator.Mediator) {
	mediator.MustRegister(m, mediator.HandlerFunc[AddPhotoCommand, *model.Photo](h.AddPhoto))
	mediator.MustRegister(m, mediator.HandlerFunc[DeletePhotoCommand, struct{}](h.DeletePhoto))
	mediator.MustRegister(m, mediator.HandlerFunc[SetMainPhotoCommand, struct{}](h.SetMainPhoto))
}

// AddPhoto uploads the file and records it. A user's first photo becomes
// their main photo.
func (h *Handlers) AddPhoto(ctx context.Context, cmd AddPhotoCommand) (*model.Photo, error) {
	file, err := sniffImage(cmd.File)
	if err != nil {
		return nil, err
	}

	existing, err := h.store.ListPhotosByUser(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}

	result, err := h.accessor.AddPhoto(ctx, file)
	if err != nil {
		h.metrics.IncPhotoUpload(h.provider, "failed")
		return nil, err
	}
	h.metrics.IncPhotoUpload(h.provider, "success")

	photo := &model.Photo{
		ID:        result.PublicID,
		URL:       result.URL,
		IsMain:    !hasMain(existing),
		UserID:    cmd.UserID,
		CreatedAt: h.now(),
	}

	err = h.store.CreatePhoto(ctx, photo)
	if photo.IsMain && errors.Is(err, repository.ErrMainPhotoExists) {
		// A concurrent first upload became main.
		photo.IsMain = false
		err = h.store.CreatePhoto(ctx, photo)
	}
	if err != nil {
		// Don't leave an orphan on the host.
		if _, delErr := h.accessor.DeletePhoto(ctx, result.PublicID); delErr != nil {
			h.logger.WarnContext(ctx, "failed to remove orphaned upload",
				slog.String("public_id", result.PublicID),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("failed to save photo: %w", err)
	}

	if photo.IsMain {
		h.dropAttendedActivities(ctx, cmd.UserID)
	}
	return photo, nil
}

// DeletePhoto removes the photo from the host, then from the database.
func (h *Handlers) DeletePhoto(ctx context.Context, cmd DeletePhotoCommand) (struct{}, error) {
	photo, err := h.getPhoto(ctx, cmd.UserID, cmd.ID)
	if err != nil {
		return struct{}{}, err
	}
	if photo.IsMain {
		return struct{}{}, ErrMainPhotoDelete
	}

	result, err := h.accessor.DeletePhoto(ctx, photo.ID)
	if err != nil {
		return struct{}{}, fmt.Errorf("%w: %v", ErrPhotoDeleteFailed, err)
	}
	if result == "" {
		return struct{}{}, ErrPhotoDeleteFailed
	}

	if err := h.store.DeletePhoto(ctx, cmd.UserID, photo.ID); err != nil {
		if errors.Is(err, repository.ErrPhotoNotFound) {
			return struct{}{}, ErrPhotoNotFound
		}
		return struct{}{}, fmt.Errorf("failed to delete photo: %w", err)
	}
	return struct{}{}, nil
}

// SetMainPhoto switches the user's main photo.
func (h *Handlers) SetMainPhoto(ctx context.Context, cmd SetMainPhotoCommand) (struct{}, error) {
	photo, err := h.getPhoto(ctx, cmd.UserID, cmd.ID)
	if err != nil {
		return struct{}{}, err
	}
	if photo.IsMain {
		return struct{}{}, nil
	}

	if err := h.store.SetMainPhoto(ctx, cmd.UserID, photo.ID); err != nil {
		if errors.Is(err, repository.ErrPhotoNotFound) {
			return struct{}{}, ErrPhotoNotFound
		}
		return struct{}{}, fmt.Errorf("failed to set main photo: %w", err)
	}
	h.dropAttendedActivities(ctx, cmd.UserID)
	return struct{}{}, nil
}

// dropAttendedActivities evicts cached details of every activity userID
// attends so they pick up the new main photo.
func (h *Handlers) dropAttendedActivities(ctx context.Context, userID string) {
	if h.cache == nil {
		return
	}
	ids, err := h.store.ListAttendedActivityIDs(ctx, userID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to list attended activities", slog.String("error", err.Error()))
		return
	}
	for _, id := range ids {
		if err := h.cache.DeleteActivity(ctx, id); err != nil {
			h.logger.WarnContext(ctx, "cache invalidation failed",
				slog.String("activity_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (h *Handlers) getPhoto(ctx context.Context, userID, id string) (*model.Photo, error) {
	photo, err := h.store.GetPhoto(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrPhotoNotFound) {
			return nil, ErrPhotoNotFound
		}
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	return photo, nil
}

func hasMain(photos []*model.Photo) bool {
	for _, p := range photos {
		if p.IsMain {
			return true
		}
	}
	return false
}

// sniffImage checks the first bytes of the upload and returns an Upload that
// still yields the whole file.
func sniffImage(file Upload) (Upload, error) {
	if file.Body == nil || file.Size == 0 {
		return file, ErrEmptyFile
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(file.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return file, fmt.Errorf("read upload: %w", err)
	}
	if n == 0 {
		return file, ErrEmptyFile
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		return file, ErrUnsupportedMediaType
	}

	file.ContentType = contentType
	file.Body = io.MultiReader(bytes.NewReader(head), file.Body)
	return file, nil
}
