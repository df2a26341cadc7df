// Package account registers users, signs them in and issues access tokens.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/reactivities/reactivities/internal/auth"
	"github.com/reactivities/reactivities/internal/mediator"
	"github.com/reactivities/reactivities/internal/model"
	"github.com/reactivities/reactivities/internal/repository"
)

// Account errors.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrUsernameTaken      = errors.New("username is taken")
	ErrUserNotFound       = errors.New("user not found")
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

const (
	minPasswordLength = 8
	// Longer inputs only make argon2 slower.
	maxPasswordLength = 128
)

// Store is the user persistence the handlers need.
type Store interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetProfile(ctx context.Context, username string) (*model.Profile, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(userID, username string) (string, error)
}

// UserDTO is returned after register, login and current user lookups.
type UserDTO struct {
	Token       string `json:"token"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Image       string `json:"image,omitempty"`
}

// RegisterCommand creates an account.
type RegisterCommand struct {
	Email       string
	Username    string
	DisplayName string
	Password    string
}

// Validate implements mediator.Validator.
func (c RegisterCommand) Validate() error {
	v := mediator.NewValidationError()

	v.Required("user", "email", c.Email)
	v.Required("user", "username", c.Username)
	v.Required("user", "display_name", c.DisplayName)
	v.Required("user", "password", c.Password)

	if c.Email != "" {
		if addr, err := mail.ParseAddress(c.Email); err != nil || addr.Address != c.Email {
			v.Add("email", "The user email is not a valid address")
		}
	}
	if c.Username != "" && !usernameRegex.MatchString(c.Username) {
		v.Add("username", "The user username must be 3-30 letters, digits or underscores")
	}
	if c.Password != "" && !isStrongPassword(c.Password) {
		v.Add("password", "The password must be 8-128 characters with a digit, a lower case and an upper case letter")
	}

	return v.Err()
}

// LoginCommand signs a user in.
type LoginCommand struct {
	Email    string
	Password string
}

// Validate implements mediator.Validator.
func (c LoginCommand) Validate() error {
	v := mediator.NewValidationError()
	v.Required("user", "email", c.Email)
	v.Required("user", "password", c.Password)
	return v.Err()
}

// CurrentUserQuery returns the signed in user with a fresh token.
type CurrentUserQuery struct {
	UserID   string
	Username string
}

// Handlers implements the account requests.
type Handlers struct {
	store  Store
	tokens TokenIssuer
	logger *slog.Logger
	now    func() time.Time
}

// NewHandlers creates account handlers.
func NewHandlers(store Store, tokens TokenIssuer, logger *slog.Logger) *Handlers {
	return &Handlers{
		store:  store,
		tokens: tokens,
		logger: logger.With("component", "account"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register binds the account requests to m.
func (h *Handlers) Register(m *mediator.Mediator) {
	mediator.MustRegister(m, mediator.HandlerFunc[RegisterCommand, *UserDTO](h.RegisterUser))
	mediator.MustRegister(m, mediator.HandlerFunc[LoginCommand, *UserDTO](h.Login))
	mediator.MustRegister(m, mediator.HandlerFunc[CurrentUserQuery, *UserDTO](h.CurrentUser))
}

// RegisterUser creates the account and signs the new user in.
func (h *Handlers) RegisterUser(ctx context.Context, cmd RegisterCommand) (*UserDTO, error) {
	hash, err := auth.HashPassword(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        strings.TrimSpace(cmd.Email),
		Username:     cmd.Username,
		DisplayName:  strings.TrimSpace(cmd.DisplayName),
		PasswordHash: hash,
		CreatedAt:    h.now(),
	}

	if err := h.store.CreateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return nil, ErrEmailTaken
		case errors.Is(err, repository.ErrUsernameExists):
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	h.logger.InfoContext(ctx, "user registered", slog.String("username", user.Username))
	return h.userDTO(user.ID, user.Username, user.DisplayName, "")
}

// Login checks the password and issues a token. Unknown emails still pay
// for a hash so both failures take the same time.
func (h *Handlers) Login(ctx context.Context, cmd LoginCommand) (*UserDTO, error) {
	user, err := h.store.GetUserByEmail(ctx, strings.TrimSpace(cmd.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			auth.BurnVerify(cmd.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	ok, err := auth.VerifyPassword(cmd.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	image, err := h.image(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	return h.userDTO(user.ID, user.Username, user.DisplayName, image)
}

// CurrentUser reloads the caller's account.
func (h *Handlers) CurrentUser(ctx context.Context, q CurrentUserQuery) (*UserDTO, error) {
	profile, err := h.store.GetProfile(ctx, q.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return h.userDTO(q.UserID, profile.Username, profile.DisplayName, profile.Image)
}

func (h *Handlers) image(ctx context.Context, username string) (string, error) {
	profile, err := h.store.GetProfile(ctx, username)
	if err != nil {
		return "", fmt.Errorf("failed to get profile: %w", err)
	}
	return profile.Image, nil
}

func (h *Handlers) userDTO(userID, username, displayName, image string) (*UserDTO, error) {
	token, err := h.tokens.Issue(userID, username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &UserDTO{
		Token:       token,
		Username:    username,
		DisplayName: displayName,
		Image:       image,
	}, nil
}

func isStrongPassword(p string) bool {
	if len(p) < minPasswordLength || len(p) > maxPasswordLength {
		return false
	}
	var digit, lower, upper bool
	for _, r := range p {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		}
	}
	return digit && lower && upper
}
