package middleware

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Path parameter errors.
var (
	ErrInvalidActivityID = errors.New("activity id must be a UUID")
	ErrInvalidUsername   = errors.New("username must be 3-30 letters, digits or underscores")
	ErrInvalidPhotoID    = errors.New("photo id contains invalid characters")
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
	// Cloudinary public ids and lower-case ULIDs.
	photoIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)
)

// CanonicalActivityID rejects a non-UUID activity id in URL parameter name
// with 400 and rewrites valid ones to lower-case hyphenated form, so
// handlers see one spelling per activity.
func CanonicalActivityID(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rctx := chi.RouteContext(r.Context())
			if rctx == nil {
				next.ServeHTTP(w, r)
				return
			}
			parsed, err := uuid.Parse(rctx.URLParam(name))
			if err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_PARAMETER", ErrInvalidActivityID.Error())
				return
			}
			// Later entries shadow earlier ones, as in URLParam.
			for i := len(rctx.URLParams.Keys) - 1; i >= 0; i-- {
				if rctx.URLParams.Keys[i] == name {
					rctx.URLParams.Values[i] = parsed.String()
					break
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ValidateUsername checks the username format used at registration.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidatePhotoID checks a photo host public id.
func ValidatePhotoID(id string) error {
	if !photoIDPattern.MatchString(id) {
		return ErrInvalidPhotoID
	}
	return nil
}

// ValidateURLParam rejects requests whose chi URL parameter fails check
// with 400 before the handler runs.
func ValidateURLParam(name string, check func(string) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := check(chi.URLParam(r, name)); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
