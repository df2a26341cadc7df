package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reactivities/reactivities/internal/auth"
	"github.com/reactivities/reactivities/internal/handler/dto"
	"github.com/reactivities/reactivities/internal/mediator"
	"github.com/reactivities/reactivities/internal/model"
	"github.com/reactivities/reactivities/internal/photos"
)

const (
	photoFormField = "file"
	// Parts above this spill to temporary files.
	multipartMemory = 4 << 20
)

// PhotoHandler handles photo uploads for the current user.
type PhotoHandler struct {
	m      *mediator.Mediator
	logger *slog.Logger
}

// NewPhotoHandler creates a new PhotoHandler.
func NewPhotoHandler(m *mediator.Mediator, logger *slog.Logger) *PhotoHandler {
	return &PhotoHandler{m: m, logger: logger}
}

// Add handles POST /api/v1/photos.
func (h *PhotoHandler) Add(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Photo exceeds the upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_FORM", "Expected a multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	cmd := photos.AddPhotoCommand{UserID: auth.UserIDFromContext(r.Context())}
	file, header, err := r.FormFile(photoFormField)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// Validation reports the missing file.
	case err != nil:
		writeError(w, http.StatusBadRequest, "INVALID_FORM", "Could not read photo file")
		return
	default:
		defer file.Close()
		cmd.File = photos.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		}
	}

	photo, err := mediator.Send[photos.AddPhotoCommand, *model.Photo](r.Context(), h.m, cmd)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("photo_added", "photo_id", photo.ID, "is_main", photo.IsMain)
	writeJSON(w, http.StatusCreated, dto.ToPhotoResponse(photo))
}

// Delete handles DELETE /api/v1/photos/{id}.
func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_, err := mediator.Send[photos.DeletePhotoCommand, struct{}](r.Context(), h.m, photos.DeletePhotoCommand{
		UserID: auth.UserIDFromContext(r.Context()),
		ID:     id,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("photo_deleted", "photo_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// SetMain handles POST /api/v1/photos/{id}/main.
func (h *PhotoHandler) SetMain(w http.ResponseWriter, r *http.Request) {
	_, err := mediator.Send[photos.SetMainPhotoCommand, struct{}](r.Context(), h.m, photos.SetMainPhotoCommand{
		UserID: auth.UserIDFromContext(r.Context()),
		ID:     chi.URLParam(r, "id"),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PhotoHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if writeCommonError(w, h.logger, r, err) {
		return
	}
	var uploadErr *photos.UploadError
	switch {
	case errors.Is(err, photos.ErrPhotoNotFound):
		writeError(w, http.StatusNotFound, "PHOTO_NOT_FOUND", "Photo not found")
	case errors.Is(err, photos.ErrMainPhotoDelete):
		writeError(w, http.StatusConflict, "MAIN_PHOTO", "You cannot delete your main photo")
	case errors.Is(err, photos.ErrUnsupportedMediaType):
		writeError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Only image uploads are supported")
	case errors.Is(err, photos.ErrEmptyFile):
		writeError(w, http.StatusBadRequest, "EMPTY_FILE", "Photo file is empty")
	case errors.As(err, &uploadErr):
		h.logger.WarnContext(r.Context(), "photo host rejected upload", "error", uploadErr.Message)
		writeError(w, http.StatusBadGateway, "UPLOAD_FAILED", uploadErr.Message)
	case errors.Is(err, photos.ErrPhotoDeleteFailed):
		writeError(w, http.StatusBadGateway, "DELETE_FAILED", "Problem deleting photo")
	default:
		writeInternalError(w, h.logger, r, err)
	}
}
