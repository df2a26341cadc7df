package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reactivities/reactivities/internal/handler/dto"
	"github.com/reactivities/reactivities/internal/mediator"
	"github.com/reactivities/reactivities/internal/model"
	"github.com/reactivities/reactivities/internal/profiles"
)

// ProfileHandler serves public profiles.
type ProfileHandler struct {
	m      *mediator.Mediator
	logger *slog.Logger
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(m *mediator.Mediator, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{m: m, logger: logger}
}

// Get handles GET /api/v1/profiles/{username}.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := mediator.Send[profiles.DetailsQuery, *model.Profile](r.Context(), h.m, profiles.DetailsQuery{
		Username: chi.URLParam(r, "username"),
	})
	if err != nil {
		if writeCommonError(w, h.logger, r, err) {
			return
		}
		if errors.Is(err, profiles.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "PROFILE_NOT_FOUND", "Profile not found")
			return
		}
		writeInternalError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToProfileResponse(profile))
}
