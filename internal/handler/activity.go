package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/reactivities/reactivities/internal/activities"
	"github.com/reactivities/reactivities/internal/auth"
	"github.com/reactivities/reactivities/internal/handler/dto"
	"github.com/reactivities/reactivities/internal/mediator"
	"github.com/reactivities/reactivities/internal/model"
)

// ActivityHandler handles HTTP requests for activities.
type ActivityHandler struct {
	m      *mediator.Mediator
	logger *slog.Logger
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(m *mediator.Mediator, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{m: m, logger: logger}
}

// List handles GET /api/v1/activities.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	q, ok := parseListQuery(w, r)
	if !ok {
		return
	}
	q.Username = auth.UsernameFromContext(r.Context())

	result, err := mediator.Send[activities.ListQuery, *activities.ListResult](r.Context(), h.m, q)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToActivityListResponse(result.Activities, result.NextCursor))
}

// Get handles GET /api/v1/activities/{id}.
func (h *ActivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	activity, err := mediator.Send[activities.DetailsQuery, *model.Activity](r.Context(), h.m, activities.DetailsQuery{
		ID: chi.URLParam(r, "id"),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToActivityResponse(activity))
}

// Create handles POST /api/v1/activities.
func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.ActivityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	activity, err := mediator.Send[activities.CreateCommand, *model.Activity](r.Context(), h.m, activities.CreateCommand{
		Activity: req.ToModel(),
		Username: auth.UsernameFromContext(r.Context()),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("activity_created",
		"activity_id", activity.ID,
		"host", activity.HostUsername,
		"client_id", req.ID != "",
	)

	w.Header().Set("Location", "/api/v1/activities/"+activity.ID)
	writeJSON(w, http.StatusCreated, dto.ToActivityResponse(activity))
}

// Update handles PUT /api/v1/activities/{id}.
func (h *ActivityHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.ActivityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	if req.ID != "" && !sameActivityID(req.ID, id) {
		writeError(w, http.StatusBadRequest, "ID_MISMATCH", "Body id does not match the URL")
		return
	}
	req.ID = id

	activity, err := mediator.Send[activities.EditCommand, *model.Activity](r.Context(), h.m, activities.EditCommand{
		Activity: req.ToModel(),
		Username: auth.UsernameFromContext(r.Context()),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("activity_updated", "activity_id", activity.ID)
	writeJSON(w, http.StatusOK, dto.ToActivityResponse(activity))
}

// Save handles POST /api/v1/activities/save, the activity form submit:
// a form without an id creates, a form with one edits.
func (h *ActivityHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req dto.ActivityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	activity, err := mediator.Send[activities.SaveCommand, *model.Activity](r.Context(), h.m, activities.SaveCommand{
		Activity: req.ToModel(),
		Username: auth.UsernameFromContext(r.Context()),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if req.ID == "" {
		status = http.StatusCreated
		w.Header().Set("Location", "/api/v1/activities/"+activity.ID)
	}
	writeJSON(w, status, dto.ToActivityResponse(activity))
}

// Delete handles DELETE /api/v1/activities/{id}.
func (h *ActivityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_, err := mediator.Send[activities.DeleteCommand, struct{}](r.Context(), h.m, activities.DeleteCommand{
		ID:       id,
		Username: auth.UsernameFromContext(r.Context()),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("activity_deleted", "activity_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// Attend handles POST /api/v1/activities/{id}/attend.
func (h *ActivityHandler) Attend(w http.ResponseWriter, r *http.Request) {
	activity, err := mediator.Send[activities.UpdateAttendanceCommand, *model.Activity](r.Context(), h.m, activities.UpdateAttendanceCommand{
		ID:       chi.URLParam(r, "id"),
		Username: auth.UsernameFromContext(r.Context()),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToActivityResponse(activity))
}

// Events handles GET /api/v1/activities/{id}/events.
func (h *ActivityHandler) Events(w http.ResponseWriter, r *http.Request) {
	limit, err := optionalInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER", "limit must be an integer")
		return
	}

	events, err := mediator.Send[activities.EventsQuery, []*model.ActivityEvent](r.Context(), h.m, activities.EventsQuery{
		ActivityID: chi.URLParam(r, "id"),
		Limit:      limit,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToEventListResponse(events))
}

// handleServiceError maps activity errors to HTTP responses.
func (h *ActivityHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if writeCommonError(w, h.logger, r, err) {
		return
	}
	switch {
	case errors.Is(err, activities.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "ACTIVITY_NOT_FOUND", "Activity not found")
	case errors.Is(err, activities.ErrNotHost):
		writeError(w, http.StatusForbidden, "NOT_HOST", "Only the host can change this activity")
	case errors.Is(err, activities.ErrActivityExists):
		writeError(w, http.StatusConflict, "ACTIVITY_EXISTS", "An activity with this id already exists")
	case errors.Is(err, activities.ErrActivityCancelled):
		writeError(w, http.StatusConflict, "ACTIVITY_CANCELLED", "Activity is cancelled")
	case errors.Is(err, activities.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, "INVALID_CURSOR", "Invalid pagination cursor")
	case errors.Is(err, activities.ErrUnknownUser):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Account no longer exists")
	default:
		writeInternalError(w, h.logger, r, err)
	}
}

func parseListQuery(w http.ResponseWriter, r *http.Request) (activities.ListQuery, bool) {
	var q activities.ListQuery
	values := r.URL.Query()

	if raw := values.Get("start_date"); raw != "" {
		start, err := parseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PARAMETER", "start_date must be RFC 3339 or YYYY-MM-DD")
			return q, false
		}
		q.StartDate = &start
	}

	var err error
	if q.IsGoing, err = optionalBool(r, "is_going"); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER", "is_going must be true or false")
		return q, false
	}
	if q.IsHost, err = optionalBool(r, "is_host"); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER", "is_host must be true or false")
		return q, false
	}
	if q.Limit, err = optionalInt(r, "limit"); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER", "limit must be an integer")
		return q, false
	}
	q.Cursor = values.Get("cursor")

	return q, true
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}

func optionalBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func optionalInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// sameActivityID compares ids as UUIDs when both parse, so spelling
// differences in case or braces are not a mismatch.
func sameActivityID(a, b string) bool {
	pa, errA := uuid.Parse(a)
	pb, errB := uuid.Parse(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return pa == pb
}
