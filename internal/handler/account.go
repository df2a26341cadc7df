package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/reactivities/reactivities/internal/account"
	"github.com/reactivities/reactivities/internal/auth"
	"github.com/reactivities/reactivities/internal/handler/dto"
	"github.com/reactivities/reactivities/internal/mediator"
)

// AccountHandler handles registration, login and the current user.
type AccountHandler struct {
	m      *mediator.Mediator
	logger *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(m *mediator.Mediator, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{m: m, logger: logger}
}

// Register handles POST /api/v1/account/register.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := mediator.Send[account.RegisterCommand, *account.UserDTO](r.Context(), h.m, account.RegisterCommand{
		Email:       req.Email,
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("user_registered", "username", user.Username)
	writeJSON(w, http.StatusCreated, user)
}

// Login handles POST /api/v1/account/login.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := mediator.Send[account.LoginCommand, *account.UserDTO](r.Context(), h.m, account.LoginCommand{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Current handles GET /api/v1/account.
func (h *AccountHandler) Current(w http.ResponseWriter, r *http.Request) {
	user, err := mediator.Send[account.CurrentUserQuery, *account.UserDTO](r.Context(), h.m, account.CurrentUserQuery{
		UserID:   auth.UserIDFromContext(r.Context()),
		Username: auth.UsernameFromContext(r.Context()),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *AccountHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if writeCommonError(w, h.logger, r, err) {
		return
	}
	switch {
	case errors.Is(err, account.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	case errors.Is(err, account.ErrUserNotFound):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Account no longer exists")
	case errors.Is(err, account.ErrEmailTaken):
		writeError(w, http.StatusConflict, "EMAIL_TAKEN", "Email is already registered")
	case errors.Is(err, account.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "USERNAME_TAKEN", "Username is taken")
	default:
		writeInternalError(w, h.logger, r, err)
	}
}
